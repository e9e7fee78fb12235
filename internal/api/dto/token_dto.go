package dto

type PluginTokenDTO struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	IsActive   bool   `json:"is_active"`
	LastUsedAt string `json:"last_used_at,omitempty"`
	CreatedAt  string `json:"created_at"`
	ExpiresAt  string `json:"expires_at,omitempty"`
}

type CreateTokenRequest struct {
	Name string `json:"name" binding:"max=100"`
}

type CreateTokenResponse struct {
	Token   string         `json:"token"`
	Details PluginTokenDTO `json:"details"`
}
