package dto

type EarnPurchaseRequest struct {
	TrackID    string `json:"trackId" binding:"required"`
	SplitStems bool   `json:"splitStems"`
}

type EarnPurchaseCost struct {
	TotalCost   int `json:"totalCost"`
	ArtistShare int `json:"artistShare"`
	AdminShare  int `json:"adminShare"`
}

type EarnPurchaseResponse struct {
	Success     bool             `json:"success"`
	Message     string           `json:"message"`
	Transaction EarnPurchaseCost `json:"transaction"`
	NewCredits  int              `json:"newCredits"`
	SplitJobID  *string          `json:"splitJobId"`
}

type EarnTrackDTO struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	AudioURL    string `json:"audio_url"`
	ImageURL    string `json:"image_url,omitempty"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Plays       int    `json:"plays"`
	Likes       int    `json:"likes"`
	Downloads   int    `json:"downloads"`
	EarnPrice   int    `json:"earn_price"`
	ArtistShare int    `json:"artist_share"`
	AdminShare  int    `json:"admin_share"`
	CreatedAt   string `json:"created_at"`
}

type EarnTracksResponse struct {
	Success bool           `json:"success"`
	Tracks  []EarnTrackDTO `json:"tracks"`
	Genres  []string       `json:"genres"`
}

type EarnTransactionDTO struct {
	ID              string `json:"id"`
	TrackID         string `json:"trackId"`
	TrackTitle      string `json:"trackTitle"`
	Counterparty    string `json:"counterparty"`
	TotalCost       int    `json:"totalCost"`
	ArtistShare     int    `json:"artistShare"`
	SplitStems      bool   `json:"splitStems"`
	TransactionType string `json:"transactionType"`
	CreatedAt       string `json:"createdAt"`
}

type EarnTransactionsResponse struct {
	Success     bool                 `json:"success"`
	Sales       []EarnTransactionDTO `json:"sales"`
	Purchases   []EarnTransactionDTO `json:"purchases"`
	TotalEarned int                  `json:"totalEarned"`
	TotalSpent  int                  `json:"totalSpent"`
}
