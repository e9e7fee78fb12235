package dto

import "encoding/json"

// PluginGenerateRequest is the plugin body: the type travels with the params
type PluginGenerateRequest struct {
	Type string `json:"type" binding:"required"`
}

type GenerateResponse struct {
	JobID       string `json:"jobId"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	CreditsCost int    `json:"creditsCost"`
}

type ListJobsRequest struct {
	Type     string `form:"type"`
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListJobsResponse struct {
	Jobs       []JobDTO `json:"jobs"`
	NextCursor string   `json:"nextCursor,omitempty"`
}

type JobDTO struct {
	JobID       string          `json:"jobId"`
	Type        string          `json:"type"`
	Status      string          `json:"status"`
	CreditsCost int             `json:"creditsCost"`
	Output      json.RawMessage `json:"output,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   string          `json:"createdAt"`
	UpdatedAt   string          `json:"updatedAt"`
	CompletedAt string          `json:"completedAt,omitempty"`
}

type PluginCancelRequest struct {
	JobID string `json:"jobId" binding:"required"`
}

type CancelJobResponse struct {
	JobID     string `json:"jobId"`
	Status    string `json:"status"`
	Cancelled bool   `json:"cancelled"`
}
