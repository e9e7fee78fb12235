package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/api/storage"
	"github.com/444radio/radio-be/internal/auth"
	"github.com/444radio/radio-be/internal/metrics"
	"github.com/444radio/radio-be/internal/objectstore"
	"github.com/444radio/radio-be/internal/realtime"
	"github.com/444radio/radio-be/internal/signing"
	"github.com/444radio/radio-be/internal/webhook"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	Store       Store
	Queue       Publisher
	Provider    PredictionCanceller
	Objects     ObjectStore
	Signer      *signing.Signer
	Realtime    Broadcaster
	Metrics     *metrics.Metrics
	Webhooks    EventProcessor
	Clerk       ClerkVerifier
	Deduper     webhook.Deduper
	HealthCheck func(ctx context.Context) error

	RazorpaySecret string
	RedeemCodes    map[string]int
	MaxUploadBytes int64
}

// Store is everything the handlers read and write; *storage.Storage satisfies it
type Store interface {
	CreditStore
	JobStore
	MediaStore
	ChatStore
	TokenStore
	StationStore
	SocialStore
	EarnStore
	ValidatePluginToken(ctx context.Context, token string) (*auth.PluginValidation, error)
}

type CreditStore interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	ListCreditTransactions(ctx context.Context, userID string, page storage.Page) ([]model.CreditTransaction, error)
	ConvertWallet(ctx context.Context, userID string, amountUSD *float64) (*model.WalletConversion, error)
	RedeemCode(ctx context.Context, userID, code string, credits int) (int, error)
}

type JobStore interface {
	GetUser(ctx context.Context, userID string) (*model.User, error)
	CreateJob(ctx context.Context, job *model.Job) error
	FailJob(ctx context.Context, jobID, reason string) error
	GetJob(ctx context.Context, userID, jobID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter storage.JobFilter) ([]model.Job, error)
	CancelJob(ctx context.Context, userID, jobID string) (*model.Job, bool, error)
}

type MediaStore interface {
	GetMedia(ctx context.Context, mediaID string) (*model.Media, error)
	GetMediaOwner(ctx context.Context, mediaID string) (*model.MediaOwner, error)
	IncrementPlayCount(ctx context.Context, mediaID string) (int, error)
	DeleteMedia(ctx context.Context, userID, mediaID string) error
	ToggleLike(ctx context.Context, userID, mediaID string) (bool, int, error)
	ListMedia(ctx context.Context, filter storage.MediaFilter) ([]model.Media, error)
}

type ChatStore interface {
	ListChatMessages(ctx context.Context, userID string) ([]model.ChatMessage, error)
	AppendChatMessage(ctx context.Context, msg *model.ChatMessage) error
	ReplaceChatMessages(ctx context.Context, userID string, msgs []model.ChatMessage) error
	ClearChatMessages(ctx context.Context, userID string) error
}

type TokenStore interface {
	CreatePluginToken(ctx context.Context, userID, name, token string, expiresAt *time.Time) (*model.PluginToken, error)
	ListPluginTokens(ctx context.Context, userID string) ([]model.PluginToken, error)
	RevokePluginToken(ctx context.Context, userID, tokenID string) error
}

type StationStore interface {
	GetUsername(ctx context.Context, userID string) (string, error)
	GetStation(ctx context.Context, stationID string) (*model.Station, error)
	GetStationByUserID(ctx context.Context, userID string) (*model.Station, error)
	GetLiveStationByUsername(ctx context.Context, username string) (*model.Station, error)
	ListLiveStations(ctx context.Context) ([]model.Station, error)
	UpsertStation(ctx context.Context, in model.StationUpsert) (*model.Station, error)
}

type SocialStore interface {
	Follow(ctx context.Context, followerID, followingID string) error
	Unfollow(ctx context.Context, followerID, followingID string) error
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)
}

type EarnStore interface {
	ListEarnTracks(ctx context.Context, filter storage.EarnTrackFilter) ([]model.EarnTrack, error)
	ListEarnSales(ctx context.Context, userID string) ([]model.EarnTransaction, error)
	ListEarnPurchases(ctx context.Context, userID string) ([]model.EarnTransaction, error)
	PurchaseTrack(ctx context.Context, buyerID, trackID string, splitStems bool) (*model.EarnPurchase, error)
}

// Publisher enqueues job messages
type Publisher interface {
	PublishJSON(ctx context.Context, v any) error
}

// PredictionCanceller is the best-effort cancel call to the generation provider
type PredictionCanceller interface {
	CancelPrediction(ctx context.Context, id string) error
}

type ObjectStore interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, contentType string) (string, error)
	Get(ctx context.Context, key string) (*objectstore.Object, error)
	KeyFromURL(raw string) (string, bool)
}

// Broadcaster relays station events and authorizes channel subscriptions
type Broadcaster interface {
	RelaySignal(stationID string, s realtime.Signal) error
	SendChat(stationID string, m realtime.ChatMessage) error
	SendReaction(stationID string, r realtime.Reaction) error
	StationUpdate(stationID string, data any) error
	Authorize(member realtime.Member, body []byte) ([]byte, error)
}

type EventProcessor interface {
	HandleRazorpay(ctx context.Context, ev webhook.RazorpayEvent) error
	HandleClerk(ctx context.Context, ev webhook.ClerkEvent) error
}

type ClerkVerifier interface {
	Verify(body []byte, headers http.Header) error
}
