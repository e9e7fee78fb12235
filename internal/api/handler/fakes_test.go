package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/api/storage"
	"github.com/444radio/radio-be/internal/auth"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/444radio/radio-be/internal/objectstore"
	"github.com/444radio/radio-be/internal/realtime"
	"github.com/444radio/radio-be/internal/webhook"
	"github.com/444radio/radio-be/shared/logger"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeStore implements Store in memory; zero values behave like empty tables
type fakeStore struct {
	user    *model.User
	userErr error

	createdJob *model.Job
	failedJob  string
	job        *model.Job
	jobs       []model.Job
	cancelled  bool
	cancelErr  error

	media      *model.Media
	owner      *model.MediaOwner
	plays      int
	liked      bool
	likes      int
	deleteErr  error
	listedType string

	conversion  *model.WalletConversion
	redeemErr   error
	redeemed    []string
	balance     int
	txs         []model.CreditTransaction
	convertedBy *float64

	chat     []model.ChatMessage
	replaced []model.ChatMessage
	cleared  bool

	tokens    []model.PluginToken
	tokenErr  error
	tokenName string
	revokeErr error

	username string
	station  *model.Station
	stations []model.Station
	upserted *model.StationUpsert

	profile   *model.Profile
	follows   []string
	followErr error

	validation *auth.PluginValidation

	earnTracks    []model.EarnTrack
	earnFilter    storage.EarnTrackFilter
	earnSales     []model.EarnTransaction
	earnPurchases []model.EarnTransaction
	purchase      *model.EarnPurchase
	purchaseErr   error
	purchased     []string
}

func (f *fakeStore) GetUser(context.Context, string) (*model.User, error) {
	if f.userErr != nil {
		return nil, f.userErr
	}
	if f.user == nil {
		return nil, domain.ErrNotFound
	}
	return f.user, nil
}

func (f *fakeStore) ListCreditTransactions(_ context.Context, _ string, page storage.Page) ([]model.CreditTransaction, error) {
	return f.txs, nil
}

func (f *fakeStore) ConvertWallet(_ context.Context, _ string, amount *float64) (*model.WalletConversion, error) {
	f.convertedBy = amount
	return f.conversion, nil
}

func (f *fakeStore) RedeemCode(_ context.Context, _ string, code string, credits int) (int, error) {
	if f.redeemErr != nil {
		return 0, f.redeemErr
	}
	f.redeemed = append(f.redeemed, code)
	return f.balance + credits, nil
}

func (f *fakeStore) CreateJob(_ context.Context, job *model.Job) error {
	job.ID = "5f0c3c7e-8f43-4a7e-9d59-3f8f2d1e0a11"
	job.CreatedAt = time.Now()
	job.UpdatedAt = job.CreatedAt
	f.createdJob = job
	return nil
}

func (f *fakeStore) FailJob(_ context.Context, jobID, _ string) error {
	f.failedJob = jobID
	return nil
}

func (f *fakeStore) GetJob(context.Context, string, string) (*model.Job, error) {
	if f.job == nil {
		return nil, domain.ErrNotFound
	}
	return f.job, nil
}

func (f *fakeStore) ListJobs(context.Context, storage.JobFilter) ([]model.Job, error) {
	return f.jobs, nil
}

func (f *fakeStore) CancelJob(context.Context, string, string) (*model.Job, bool, error) {
	if f.cancelErr != nil {
		return nil, false, f.cancelErr
	}
	return f.job, f.cancelled, nil
}

func (f *fakeStore) GetMedia(context.Context, string) (*model.Media, error) {
	if f.media == nil {
		return nil, domain.ErrNotFound
	}
	return f.media, nil
}

func (f *fakeStore) GetMediaOwner(context.Context, string) (*model.MediaOwner, error) {
	if f.owner == nil {
		return nil, domain.ErrNotFound
	}
	return f.owner, nil
}

func (f *fakeStore) IncrementPlayCount(context.Context, string) (int, error) {
	f.plays++
	return f.plays, nil
}

func (f *fakeStore) DeleteMedia(context.Context, string, string) error { return f.deleteErr }

func (f *fakeStore) ToggleLike(context.Context, string, string) (bool, int, error) {
	return f.liked, f.likes, nil
}

func (f *fakeStore) ListMedia(_ context.Context, filter storage.MediaFilter) ([]model.Media, error) {
	f.listedType = filter.Type
	if f.media == nil {
		return nil, nil
	}
	return []model.Media{*f.media}, nil
}

func (f *fakeStore) ListChatMessages(context.Context, string) ([]model.ChatMessage, error) {
	return f.chat, nil
}

func (f *fakeStore) AppendChatMessage(_ context.Context, msg *model.ChatMessage) error {
	msg.ID = "chat-1"
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	f.chat = append(f.chat, *msg)
	return nil
}

func (f *fakeStore) ReplaceChatMessages(_ context.Context, _ string, msgs []model.ChatMessage) error {
	f.replaced = msgs
	return nil
}

func (f *fakeStore) ClearChatMessages(context.Context, string) error {
	f.cleared = true
	return nil
}

func (f *fakeStore) CreatePluginToken(_ context.Context, userID, name, _ string, _ *time.Time) (*model.PluginToken, error) {
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	f.tokenName = name
	return &model.PluginToken{ID: "tok-1", UserID: userID, Name: name, IsActive: true, CreatedAt: time.Now()}, nil
}

func (f *fakeStore) ListPluginTokens(context.Context, string) ([]model.PluginToken, error) {
	return f.tokens, nil
}

func (f *fakeStore) RevokePluginToken(context.Context, string, string) error { return f.revokeErr }

func (f *fakeStore) GetUsername(context.Context, string) (string, error) {
	if f.username == "" {
		return "", domain.ErrNotFound
	}
	return f.username, nil
}

func (f *fakeStore) GetStation(context.Context, string) (*model.Station, error) {
	if f.station == nil {
		return nil, domain.ErrNotFound
	}
	return f.station, nil
}

func (f *fakeStore) GetStationByUserID(context.Context, string) (*model.Station, error) {
	return f.GetStation(context.Background(), "")
}

func (f *fakeStore) GetLiveStationByUsername(context.Context, string) (*model.Station, error) {
	return f.GetStation(context.Background(), "")
}

func (f *fakeStore) ListLiveStations(context.Context) ([]model.Station, error) {
	return f.stations, nil
}

func (f *fakeStore) UpsertStation(_ context.Context, in model.StationUpsert) (*model.Station, error) {
	f.upserted = &in
	return &model.Station{ID: "st-1", UserID: in.UserID, Username: in.Username, Title: in.Title, IsLive: in.IsLive}, nil
}

func (f *fakeStore) Follow(_ context.Context, _, following string) error {
	if f.followErr != nil {
		return f.followErr
	}
	f.follows = append(f.follows, following)
	return nil
}

func (f *fakeStore) Unfollow(context.Context, string, string) error { return nil }

func (f *fakeStore) GetProfile(context.Context, string) (*model.Profile, error) {
	if f.profile == nil {
		return nil, domain.ErrNotFound
	}
	return f.profile, nil
}

func (f *fakeStore) ValidatePluginToken(context.Context, string) (*auth.PluginValidation, error) {
	if f.validation == nil {
		return &auth.PluginValidation{}, nil
	}
	return f.validation, nil
}

func (f *fakeStore) ListEarnTracks(_ context.Context, filter storage.EarnTrackFilter) ([]model.EarnTrack, error) {
	f.earnFilter = filter
	return f.earnTracks, nil
}

func (f *fakeStore) ListEarnSales(context.Context, string) ([]model.EarnTransaction, error) {
	return f.earnSales, nil
}

func (f *fakeStore) ListEarnPurchases(context.Context, string) ([]model.EarnTransaction, error) {
	return f.earnPurchases, nil
}

func (f *fakeStore) PurchaseTrack(_ context.Context, _, trackID string, _ bool) (*model.EarnPurchase, error) {
	if f.purchaseErr != nil {
		return nil, f.purchaseErr
	}
	f.purchased = append(f.purchased, trackID)
	return f.purchase, nil
}

type fakeQueue struct {
	published []any
	err       error
}

func (q *fakeQueue) PublishJSON(_ context.Context, v any) error {
	if q.err != nil {
		return q.err
	}
	q.published = append(q.published, v)
	return nil
}

type fakeCanceller struct{ cancelled []string }

func (p *fakeCanceller) CancelPrediction(_ context.Context, id string) error {
	p.cancelled = append(p.cancelled, id)
	return nil
}

type fakeObjects struct {
	put  map[string][]byte
	objs map[string]*objectstore.Object
}

func (o *fakeObjects) Put(_ context.Context, key string, body io.ReadSeeker, _ string) (string, error) {
	b, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	if o.put == nil {
		o.put = map[string][]byte{}
	}
	o.put[key] = b
	return "https://cdn.example/" + key, nil
}

func (o *fakeObjects) Get(_ context.Context, key string) (*objectstore.Object, error) {
	obj, ok := o.objs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return obj, nil
}

func (o *fakeObjects) KeyFromURL(raw string) (string, bool) {
	const prefix = "https://cdn.example/"
	if len(raw) > len(prefix) && raw[:len(prefix)] == prefix {
		return raw[len(prefix):], true
	}
	return "", false
}

type fakeBroadcaster struct {
	signals   []realtime.Signal
	chats     []realtime.ChatMessage
	reactions []realtime.Reaction
	updates   []string
	member    realtime.Member
	authErr   error
}

func (b *fakeBroadcaster) RelaySignal(_ string, s realtime.Signal) error {
	b.signals = append(b.signals, s)
	return nil
}

func (b *fakeBroadcaster) SendChat(_ string, m realtime.ChatMessage) error {
	b.chats = append(b.chats, m)
	return nil
}

func (b *fakeBroadcaster) SendReaction(_ string, r realtime.Reaction) error {
	b.reactions = append(b.reactions, r)
	return nil
}

func (b *fakeBroadcaster) StationUpdate(stationID string, _ any) error {
	b.updates = append(b.updates, stationID)
	return nil
}

func (b *fakeBroadcaster) Authorize(member realtime.Member, _ []byte) ([]byte, error) {
	b.member = member
	if b.authErr != nil {
		return nil, b.authErr
	}
	return []byte(`{"auth":"key:sig"}`), nil
}

type fakeProcessor struct {
	razorpay []webhook.RazorpayEvent
	clerk    []webhook.ClerkEvent
	err      error
}

func (p *fakeProcessor) HandleRazorpay(_ context.Context, ev webhook.RazorpayEvent) error {
	p.razorpay = append(p.razorpay, ev)
	return p.err
}

func (p *fakeProcessor) HandleClerk(_ context.Context, ev webhook.ClerkEvent) error {
	p.clerk = append(p.clerk, ev)
	return p.err
}

// memDeduper is an in-memory webhook.Deduper
type memDeduper struct{ seen map[string]bool }

func (d *memDeduper) FirstSeen(_ context.Context, id string) (bool, error) {
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[id] {
		return false, nil
	}
	d.seen[id] = true
	return true, nil
}

func (d *memDeduper) Forget(_ context.Context, id string) error {
	delete(d.seen, id)
	return nil
}

func testDeps(store *fakeStore) *Dependencies {
	return &Dependencies{
		Logger:   logger.NewNop(),
		Store:    store,
		Queue:    &fakeQueue{},
		Provider: &fakeCanceller{},
		Objects:  &fakeObjects{},
		Realtime: &fakeBroadcaster{},
		Webhooks: &fakeProcessor{},
		Deduper:  &memDeduper{},
	}
}

// serve runs a single request through a router with the caller set to userID
func serve(t *testing.T, method, route, target string, body any, userID string, h gin.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	case []byte:
		rd = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}

	r := gin.New()
	r.Handle(method, route, func(c *gin.Context) {
		if userID != "" {
			SetCaller(c, userID, AuthSession)
		}
		c.Next()
	}, h)

	req := httptest.NewRequest(method, target, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
