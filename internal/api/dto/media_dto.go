package dto

type MediaDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title,omitempty"`
	Type      string `json:"type"`
	AudioURL  string `json:"audioUrl,omitempty"`
	ImageURL  string `json:"imageUrl,omitempty"`
	VideoURL  string `json:"videoUrl,omitempty"`
	Prompt    string `json:"prompt,omitempty"`
	Genre     string `json:"genre,omitempty"`
	Plays     int    `json:"plays"`
	Likes     int    `json:"likes"`
	IsPublic  bool   `json:"isPublic"`
	CreatedAt string `json:"createdAt"`
}

type ListMediaRequest struct {
	Type     string `form:"type"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListMediaResponse struct {
	Media      []MediaDTO `json:"media"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

type TrackPlayResponse struct {
	Success bool   `json:"success"`
	Plays   int    `json:"plays"`
	Counted bool   `json:"counted"`
	Message string `json:"message,omitempty"`
}

type LikeResponse struct {
	Liked      bool `json:"liked"`
	LikesCount int  `json:"likesCount"`
}

type StreamURLResponse struct {
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expiresAt"`
}

type UploadResponse struct {
	URL         string `json:"url"`
	Key         string `json:"key"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}
