package dto

import "encoding/json"

type ChatMessageDTO struct {
	ID             string          `json:"id,omitempty"`
	Type           string          `json:"type" binding:"required"`
	Content        string          `json:"content" binding:"required"`
	GenerationType string          `json:"generationType,omitempty"`
	GenerationID   string          `json:"generationId,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Timestamp      string          `json:"timestamp,omitempty"`
}

type ReplaceChatRequest struct {
	Messages *[]ChatMessageDTO `json:"messages"`
}
