package model

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

type User struct {
	ClerkUserID        string     `db:"clerk_user_id"`
	Username           *string    `db:"username"`
	Email              *string    `db:"email"`
	AvatarURL          *string    `db:"avatar_url"`
	Credits            int        `db:"credits"`
	WalletBalance      float64    `db:"wallet_balance"`
	SubscriptionStatus *string    `db:"subscription_status"`
	SubscriptionPlan   *string    `db:"subscription_plan"`
	SubscriptionID     *string    `db:"subscription_id"`
	SubscriptionEnd    *time.Time `db:"subscription_end"`
	RazorpayCustomerID *string    `db:"razorpay_customer_id"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

// UserUpsert is the identity-provider view of a user
type UserUpsert struct {
	ClerkUserID string
	Username    string
	Email       string
	FirstName   string
	LastName    string
	AvatarURL   string
}

// SubscriptionUpdate changes the subscription columns; nil fields are left untouched
type SubscriptionUpdate struct {
	Status     *string
	Plan       *string
	ID         *string
	CustomerID *string
	Start      *time.Time
	End        *time.Time
}

type Media struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Title     *string   `db:"title"`
	Type      string    `db:"type"`
	AudioURL  *string   `db:"audio_url"`
	ImageURL  *string   `db:"image_url"`
	VideoURL  *string   `db:"video_url"`
	Prompt    *string   `db:"prompt"`
	Genre     *string   `db:"genre"`
	Plays     int       `db:"plays"`
	Likes     int       `db:"likes"`
	IsPublic  bool      `db:"is_public"`
	CreatedAt time.Time `db:"created_at"`
}

// MediaOwner is the slice of a media row needed for play counting
type MediaOwner struct {
	UserID string `db:"user_id"`
	Plays  int    `db:"plays"`
}

type Job struct {
	ID                    string         `db:"id"`
	ClerkUserID           string         `db:"clerk_user_id"`
	Type                  string         `db:"type"`
	Status                string         `db:"status"`
	CreditsCost           int            `db:"credits_cost"`
	Params                types.JSONText `db:"params"`
	ReplicatePredictionID *string        `db:"replicate_prediction_id"`
	Output                types.JSONText `db:"output"`
	Error                 *string        `db:"error"`
	WorkerID              *string        `db:"worker_id"`
	HeartbeatAt           *time.Time     `db:"heartbeat_at"`
	CreatedAt             time.Time      `db:"created_at"`
	UpdatedAt             time.Time      `db:"updated_at"`
	CompletedAt           *time.Time     `db:"completed_at"`
}

type CreditTransaction struct {
	ID           string         `db:"id"`
	UserID       string         `db:"user_id"`
	Amount       int            `db:"amount"`
	BalanceAfter *int           `db:"balance_after"`
	Type         string         `db:"type"`
	Status       string         `db:"status"`
	Description  *string        `db:"description"`
	Metadata     types.JSONText `db:"metadata"`
	CreatedAt    time.Time      `db:"created_at"`
}

// WalletConversion is the result of convert_wallet_to_credits
type WalletConversion struct {
	Success          bool    `db:"success"`
	CreditsAdded     int     `db:"credits_added"`
	NewWalletBalance float64 `db:"new_wallet_balance"`
	NewCredits       int     `db:"new_credits"`
	ErrorMessage     *string `db:"error_message"`
}

// Deduction is the result of deduct_credits
type Deduction struct {
	Success      bool    `db:"success"`
	NewCredits   int     `db:"new_credits"`
	ErrorMessage *string `db:"error_message"`
}

type PluginToken struct {
	ID         string     `db:"id"`
	UserID     string     `db:"clerk_user_id"`
	Name       string     `db:"name"`
	IsActive   bool       `db:"is_active"`
	LastUsedAt *time.Time `db:"last_used_at"`
	ExpiresAt  *time.Time `db:"expires_at"`
	CreatedAt  time.Time  `db:"created_at"`
}

type ChatMessage struct {
	ID             string         `db:"id"`
	ClerkUserID    string         `db:"clerk_user_id"`
	MessageType    string         `db:"message_type"`
	Content        string         `db:"content"`
	GenerationType *string        `db:"generation_type"`
	GenerationID   *string        `db:"generation_id"`
	Result         types.JSONText `db:"result"`
	Timestamp      time.Time      `db:"timestamp"`
}

type Station struct {
	ID                string     `db:"id"`
	UserID            string     `db:"clerk_user_id"`
	Username          string     `db:"username"`
	Title             *string    `db:"title"`
	CoverURL          *string    `db:"cover_url"`
	IsLive            bool       `db:"is_live"`
	ListenerCount     int        `db:"listener_count"`
	CurrentTrackID    *string    `db:"current_track_id"`
	CurrentTrackTitle *string    `db:"current_track_title"`
	CurrentTrackImage *string    `db:"current_track_image"`
	StartedAt         *time.Time `db:"started_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// StationUpsert is a go-live / offline request from the host. A nil Title keeps the stored one.
type StationUpsert struct {
	UserID            string
	Username          string
	Title             *string
	IsLive            bool
	CurrentTrackID    *string
	CurrentTrackTitle *string
	CurrentTrackImage *string
}

type Profile struct {
	ClerkUserID    string  `db:"clerk_user_id"`
	Username       *string `db:"username"`
	AvatarURL      *string `db:"avatar_url"`
	FollowerCount  int     `db:"follower_count"`
	FollowingCount int     `db:"following_count"`
}

// LedgerEntry is a credit_transactions row to be written
type LedgerEntry struct {
	UserID       string
	Amount       int
	BalanceAfter *int
	Type         string
	Status       string
	Description  string
	Metadata     map[string]any
}

// NewMedia is a generated artifact to be listed in the user's library
type NewMedia struct {
	UserID   string
	Type     string
	Title    string
	AudioURL string
	ImageURL string
	VideoURL string
	Prompt   string
	Genre    string
	Metadata map[string]any
}

// EarnTrack is a release listed on the marketplace with its artist
type EarnTrack struct {
	ID          string    `db:"id"`
	Title       *string   `db:"title"`
	AudioURL    *string   `db:"audio_url"`
	ImageURL    *string   `db:"image_url"`
	UserID      string    `db:"user_id"`
	Genre       *string   `db:"genre"`
	Plays       int       `db:"plays"`
	Likes       int       `db:"likes"`
	Downloads   int       `db:"downloads"`
	EarnPrice   int       `db:"earn_price"`
	ArtistShare int       `db:"artist_share"`
	AdminShare  int       `db:"admin_share"`
	Username    string    `db:"username"`
	AvatarURL   *string   `db:"avatar_url"`
	CreatedAt   time.Time `db:"created_at"`
}

// EarnTransaction is one marketplace sale or purchase. Counterparty is the other side's
// username: the buyer for a sale, the seller for a purchase.
type EarnTransaction struct {
	ID              string    `db:"id"`
	BuyerID         string    `db:"buyer_id"`
	SellerID        string    `db:"seller_id"`
	TrackID         string    `db:"track_id"`
	TotalCost       int       `db:"total_cost"`
	ArtistShare     int       `db:"artist_share"`
	SplitStems      bool      `db:"split_stems"`
	TransactionType string    `db:"transaction_type"`
	Counterparty    string    `db:"counterparty"`
	TrackTitle      string    `db:"track_title"`
	CreatedAt       time.Time `db:"created_at"`
}

// EarnPurchase is the outcome of a marketplace download
type EarnPurchase struct {
	TransactionID string
	TotalCost     int
	ArtistShare   int
	AdminShare    int
	NewCredits    int
	SplitJobID    *string
}
