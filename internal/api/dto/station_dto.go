package dto

type StationDTO struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	Username      string     `json:"username"`
	Title         string     `json:"title,omitempty"`
	CoverURL      string     `json:"coverUrl,omitempty"`
	IsLive        bool       `json:"isLive"`
	ListenerCount int        `json:"listenerCount"`
	CurrentTrack  *TrackInfo `json:"currentTrack,omitempty"`
	StartedAt     string     `json:"startedAt,omitempty"`
}

type TrackInfo struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Image string `json:"image,omitempty"`
}

// StationStatus is the public summary returned for a username lookup
type StationStatus struct {
	IsLive        bool   `json:"isLive"`
	Title         string `json:"title"`
	Username      string `json:"username"`
	ListenerCount int    `json:"listenerCount"`
	StationID     string `json:"stationId,omitempty"`
}

type UpsertStationRequest struct {
	IsLive       bool       `json:"isLive"`
	Title        *string    `json:"title"`
	CurrentTrack *TrackInfo `json:"currentTrack"`
}

type StationMessageRequest struct {
	Message string `json:"message" binding:"required,max=500"`
}

type StationReactionRequest struct {
	Emoji string `json:"emoji" binding:"required,max=16"`
}
