package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/444radio/radio-be/internal/provider"
	"github.com/444radio/radio-be/internal/realtime"
	"github.com/444radio/radio-be/internal/worker/storage"
	"github.com/444radio/radio-be/shared/logger"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJobID = "7b0f1d2e-5c1a-4a57-9c8e-2f4d5e6a7b8c"

type fakeStore struct {
	mu sync.Mutex

	job         *model.Job
	claimErr    error
	status      domain.JobStatus
	deduction   *model.Deduction
	deductErr   error
	completeOK  bool
	completeErr error
	charged     bool
	stale       []string

	prediction string
	deducted   []int
	completed  map[string]any
	failed     string
	reset      bool
	media      []model.NewMedia
	ledger     []model.LedgerEntry
}

func (f *fakeStore) ClaimJob(ctx context.Context, jobID, workerID string, staleAfter time.Duration) (*model.Job, error) {
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	return f.job, nil
}

func (f *fakeStore) GetJobStatus(ctx context.Context, jobID string) (domain.JobStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == "" {
		return domain.JobStatusProcessing, nil
	}
	return f.status, nil
}

func (f *fakeStore) SetPrediction(ctx context.Context, jobID, predictionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prediction = predictionID
	return nil
}

func (f *fakeStore) UpdateJobHeartbeat(ctx context.Context, jobID string) error { return nil }

func (f *fakeStore) CompleteJob(ctx context.Context, jobID string, output map[string]any) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.completeErr != nil {
		return false, f.completeErr
	}
	f.completed = output
	return f.completeOK, nil
}

func (f *fakeStore) FailJob(ctx context.Context, jobID, message string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed = message
	return true, nil
}

func (f *fakeStore) ResetJob(ctx context.Context, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reset = true
	return nil
}

func (f *fakeStore) ReleaseStaleJobs(ctx context.Context, staleAfter time.Duration) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := f.stale
	f.stale = nil
	return ids, nil
}

func (f *fakeStore) IsJobCharged(ctx context.Context, jobID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.charged, nil
}

func (f *fakeStore) InsertMedia(ctx context.Context, m model.NewMedia) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.media = append(f.media, m)
	return "media-1", nil
}

func (f *fakeStore) DeductCredits(ctx context.Context, userID string, amount int) (*model.Deduction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deducted = append(f.deducted, amount)
	if f.deductErr != nil {
		return nil, f.deductErr
	}
	if f.deduction == nil {
		return &model.Deduction{Success: true, NewCredits: 8}, nil
	}
	return f.deduction, nil
}

func (f *fakeStore) LogCreditTransaction(ctx context.Context, entry model.LedgerEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ledger = append(f.ledger, entry)
	return nil
}

type fakePredictor struct {
	mu        sync.Mutex
	createErr error
	pollErr   error
	polls     []*provider.Prediction
	pollIdx   int
	created   int
	cancelled []string
}

func (f *fakePredictor) CreatePrediction(ctx context.Context, req provider.Request) (*provider.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &provider.Prediction{ID: "pred-1", Status: provider.StatusStarting}, nil
}

func (f *fakePredictor) GetPrediction(ctx context.Context, id string) (*provider.Prediction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	p := f.polls[min(f.pollIdx, len(f.polls)-1)]
	f.pollIdx++
	return p, nil
}

func (f *fakePredictor) CancelPrediction(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return nil
}

type fakeArtifacts struct {
	keys []string
	err  error
}

func (f *fakeArtifacts) CopyFromURL(ctx context.Context, src, key, contentType string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return "https://cdn.example/" + key, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeNotifier) record(kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, kind)
	return nil
}

func (f *fakeNotifier) JobCompleted(string, realtime.JobEvent) error { return f.record("completed") }
func (f *fakeNotifier) JobProgress(string, realtime.JobEvent) error  { return f.record("progress") }
func (f *fakeNotifier) JobFailed(string, realtime.JobEvent) error    { return f.record("failed") }

type fakeQueue struct {
	mu         sync.Mutex
	deliveries chan amqp.Delivery
	acked      []uint64
	nacked     map[uint64]bool
	published  []string
}

func (q *fakeQueue) PublishJSON(ctx context.Context, v any) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, v.(domain.JobMessage).JobID)
	return nil
}

func (q *fakeQueue) Consume(string, int) (<-chan amqp.Delivery, error) { return q.deliveries, nil }
func (q *fakeQueue) NotifyClose() <-chan *amqp.Error                   { return nil }

func (q *fakeQueue) Ack(tag uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, tag)
	return nil
}

func (q *fakeQueue) Nack(tag uint64, requeue bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.nacked == nil {
		q.nacked = map[uint64]bool{}
	}
	q.nacked[tag] = requeue
	return nil
}

func (q *fakeQueue) handled() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.acked) + len(q.nacked)
}

func effectsJob() *model.Job {
	return &model.Job{
		ID:          testJobID,
		ClerkUserID: "user_1",
		Type:        string(domain.GenEffects),
		Status:      string(domain.JobStatusProcessing),
		CreditsCost: 2,
		Params:      []byte(`{"prompt":"rain on a tin roof"}`),
	}
}

func succeeded(output string) *provider.Prediction {
	return &provider.Prediction{ID: "pred-1", Status: provider.StatusSucceeded, Output: json.RawMessage(output)}
}

type harness struct {
	w         *Worker
	store     *fakeStore
	predictor *fakePredictor
	artifacts *fakeArtifacts
	notifier  *fakeNotifier
	queue     *fakeQueue
}

func newHarness(store *fakeStore, predictor *fakePredictor) *harness {
	h := &harness{
		store:     store,
		predictor: predictor,
		artifacts: &fakeArtifacts{},
		notifier:  &fakeNotifier{},
		queue:     &fakeQueue{deliveries: make(chan amqp.Delivery, 4)},
	}
	h.w = NewWorker(&Config{
		Logger:            logger.NewNop(),
		Store:             store,
		Queue:             h.queue,
		Provider:          predictor,
		Artifacts:         h.artifacts,
		Notifier:          h.notifier,
		WorkerID:          "worker-test",
		Concurrency:       1,
		JobTimeout:        5 * time.Second,
		HeartbeatInterval: time.Hour,
		PollInterval:      time.Millisecond,
		MaxPollAttempts:   5,
		ShutdownTimeout:   time.Second,
	})
	h.w.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return h
}

func TestProcessJob_Success(t *testing.T) {
	store := &fakeStore{job: effectsJob(), completeOK: true}
	predictor := &fakePredictor{polls: []*provider.Prediction{
		{ID: "pred-1", Status: provider.StatusProcessing},
		succeeded(`"https://replicate.delivery/abc/output.mp3"`),
	}}
	h := newHarness(store, predictor)

	err := h.w.processJob(context.Background(), jobTask{JobID: testJobID, DeliveryTag: 1})
	require.NoError(t, err)

	assert.Equal(t, "pred-1", store.prediction)
	assert.Equal(t, []string{"users/user_1/audio/1700000000000-effects-1.mp3"}, h.artifacts.keys)
	assert.Equal(t, []int{2}, store.deducted)

	require.Len(t, store.media, 1)
	assert.Equal(t, "SFX: rain on a tin roof", store.media[0].Title)
	assert.Equal(t, "effects", store.media[0].Genre)

	require.Len(t, store.ledger, 1)
	assert.Equal(t, -2, store.ledger[0].Amount)
	assert.Equal(t, "generation_effects", store.ledger[0].Type)
	assert.Equal(t, domain.TxStatusSuccess, store.ledger[0].Status)
	require.NotNil(t, store.ledger[0].BalanceAfter)
	assert.Equal(t, 8, *store.ledger[0].BalanceAfter)

	require.NotNil(t, store.completed)
	assert.Equal(t, "https://cdn.example/users/user_1/audio/1700000000000-effects-1.mp3", store.completed["url"])
	files := store.completed["files"].([]storedFile)
	assert.Equal(t, "media-1", files[0].MediaID)

	assert.Equal(t, []string{"progress", "completed"}, h.notifier.events)
	assert.Empty(t, store.failed)
}

func musicJob(params string) *model.Job {
	return &model.Job{
		ID:          testJobID,
		ClerkUserID: "user_1",
		Type:        string(domain.GenMusic),
		Status:      string(domain.JobStatusProcessing),
		CreditsCost: 2,
		Params:      []byte(params),
	}
}

func TestProcessJob_MusicCoverArt(t *testing.T) {
	const withCover = `{"title":"Night Drive","prompt":"dark synthwave with driving bass","genre":"synthwave","generateCoverArt":true}`

	tests := []struct {
		name        string
		params      string
		polls       []*provider.Prediction
		wantCreated int
		wantCover   string
	}{
		{
			name:   "cover stored with the track",
			params: withCover,
			polls: []*provider.Prediction{
				succeeded(`"https://replicate.delivery/a/output.mp3"`),
				succeeded(`"https://replicate.delivery/b/output.jpg"`),
			},
			wantCreated: 2,
			wantCover:   "https://cdn.example/users/user_1/images/1700000000000-Night_Drive-cover.jpg",
		},
		{
			name:   "failed cover keeps the track",
			params: withCover,
			polls: []*provider.Prediction{
				succeeded(`"https://replicate.delivery/a/output.mp3"`),
				{ID: "pred-1", Status: provider.StatusFailed},
			},
			wantCreated: 2,
		},
		{
			name:        "cover not requested",
			params:      `{"title":"Night Drive","prompt":"dark synthwave with driving bass"}`,
			polls:       []*provider.Prediction{succeeded(`"https://replicate.delivery/a/output.mp3"`)},
			wantCreated: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{job: musicJob(tt.params), completeOK: true}
			predictor := &fakePredictor{polls: tt.polls}
			h := newHarness(store, predictor)

			err := h.w.processJob(context.Background(), jobTask{JobID: testJobID, DeliveryTag: 1})
			require.NoError(t, err)

			assert.Equal(t, tt.wantCreated, predictor.created)
			assert.Equal(t, []int{2}, store.deducted)
			assert.Empty(t, store.failed)

			require.Len(t, store.media, 1)
			assert.Equal(t, "Night Drive", store.media[0].Title)
			assert.Equal(t, tt.wantCover, store.media[0].ImageURL)

			require.NotNil(t, store.completed)
			if tt.wantCover == "" {
				assert.NotContains(t, store.completed, "imageUrl")
			} else {
				assert.Equal(t, tt.wantCover, store.completed["imageUrl"])
			}
		})
	}
}

func TestProcessJob_Failures(t *testing.T) {
	tests := []struct {
		name        string
		store       *fakeStore
		predictor   *fakePredictor
		copyErr     error
		wantMessage string
		wantCharged bool
	}{
		{
			name:        "provider failure is sanitized",
			store:       &fakeStore{job: effectsJob()},
			predictor:   &fakePredictor{polls: []*provider.Prediction{{ID: "pred-1", Status: provider.StatusFailed, Error: json.RawMessage(`"CUDA out of memory"`)}}},
			wantMessage: domain.ProviderBusyMessage,
		},
		{
			name: "insufficient credits",
			store: &fakeStore{
				job:       effectsJob(),
				deduction: &model.Deduction{Success: false},
			},
			predictor:   &fakePredictor{polls: []*provider.Prediction{succeeded(`"https://replicate.delivery/abc/output.mp3"`)}},
			wantMessage: "Insufficient credits",
			wantCharged: true,
		},
		{
			name:        "output copy fails",
			store:       &fakeStore{job: effectsJob()},
			predictor:   &fakePredictor{polls: []*provider.Prediction{succeeded(`"https://replicate.delivery/abc/output.mp3"`)}},
			copyErr:     errors.New("r2 unavailable"),
			wantMessage: domain.ProviderBusyMessage,
		},
		{
			name:        "empty output",
			store:       &fakeStore{job: effectsJob()},
			predictor:   &fakePredictor{polls: []*provider.Prediction{succeeded(`null`)}},
			wantMessage: domain.ProviderBusyMessage,
		},
		{
			name: "invalid params keep their message",
			store: &fakeStore{job: func() *model.Job {
				j := effectsJob()
				j.Params = []byte(`{}`)
				return j
			}()},
			predictor:   &fakePredictor{},
			wantMessage: "Missing prompt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(tt.store, tt.predictor)
			h.artifacts.err = tt.copyErr

			err := h.w.processJob(context.Background(), jobTask{JobID: testJobID, DeliveryTag: 1})
			require.Error(t, err)
			assert.False(t, shouldRequeueJob(err))

			assert.Equal(t, tt.wantMessage, tt.store.failed)
			assert.Empty(t, tt.store.media)
			assert.Nil(t, tt.store.completed)
			assert.Equal(t, tt.wantCharged, len(tt.store.deducted) > 0)

			require.Len(t, tt.store.ledger, 1)
			assert.Equal(t, 0, tt.store.ledger[0].Amount)
			assert.Equal(t, domain.TxStatusFailed, tt.store.ledger[0].Status)
			assert.Contains(t, h.notifier.events, "failed")
		})
	}
}

func TestProcessJob_CancelledWhilePolling(t *testing.T) {
	store := &fakeStore{job: effectsJob(), status: domain.JobStatusCancelled}
	predictor := &fakePredictor{polls: []*provider.Prediction{{ID: "pred-1", Status: provider.StatusProcessing}}}
	h := newHarness(store, predictor)

	err := h.w.processJob(context.Background(), jobTask{JobID: testJobID, DeliveryTag: 1})
	require.NoError(t, err)

	assert.Equal(t, []string{"pred-1"}, predictor.cancelled)
	assert.Empty(t, store.failed)
	assert.Empty(t, store.deducted)
	assert.Empty(t, h.notifier.events)
}

func TestProcessJob_PollLimit(t *testing.T) {
	store := &fakeStore{job: effectsJob()}
	predictor := &fakePredictor{polls: []*provider.Prediction{{ID: "pred-1", Status: provider.StatusProcessing}}}
	h := newHarness(store, predictor)

	err := h.w.processJob(context.Background(), jobTask{JobID: testJobID, DeliveryTag: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not finish after 5 polls")
	assert.Equal(t, []string{"pred-1"}, predictor.cancelled)
	assert.Equal(t, domain.ProviderBusyMessage, store.failed)
}

func TestProcessJob_RateLimited(t *testing.T) {
	tests := []struct {
		name        string
		redelivered bool
		wantRequeue bool
	}{
		{name: "first delivery is requeued", redelivered: false, wantRequeue: true},
		{name: "redelivery fails the job", redelivered: true, wantRequeue: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{job: effectsJob()}
			predictor := &fakePredictor{createErr: &provider.APIError{StatusCode: 429, Body: "throttled"}}
			h := newHarness(store, predictor)

			err := h.w.processJob(context.Background(), jobTask{JobID: testJobID, DeliveryTag: 1, Redelivered: tt.redelivered})
			require.Error(t, err)
			assert.Equal(t, tt.wantRequeue, shouldRequeueJob(err))
			assert.Equal(t, tt.wantRequeue, store.reset)
			if tt.wantRequeue {
				assert.Empty(t, store.failed)
			} else {
				assert.Equal(t, domain.ProviderBusyMessage, store.failed)
			}
		})
	}
}

func TestProcessJob_RateLimitedWhilePolling(t *testing.T) {
	store := &fakeStore{job: effectsJob(), completeOK: true}
	predictor := &fakePredictor{pollErr: &provider.APIError{StatusCode: 429, Body: "throttled"}}
	h := newHarness(store, predictor)

	err := h.w.processJob(context.Background(), jobTask{JobID: testJobID, DeliveryTag: 1})
	require.Error(t, err)
	assert.True(t, shouldRequeueJob(err))
	assert.True(t, store.reset)
	assert.Equal(t, "pred-1", store.prediction)
	assert.Empty(t, predictor.cancelled)

	// the requeued delivery resumes the same prediction
	store.job.ReplicatePredictionID = &store.prediction
	predictor.pollErr = nil
	predictor.polls = []*provider.Prediction{succeeded(`"https://replicate.delivery/abc/output.mp3"`)}

	require.NoError(t, h.w.processJob(context.Background(), jobTask{JobID: testJobID, DeliveryTag: 2, Redelivered: true}))
	assert.Equal(t, 1, predictor.created)
	assert.NotNil(t, store.completed)
}

func TestProcessJob_RateLimitedWhilePollingAgainCancelsPrediction(t *testing.T) {
	store := &fakeStore{job: effectsJob()}
	predictor := &fakePredictor{pollErr: &provider.APIError{StatusCode: 429, Body: "throttled"}}
	h := newHarness(store, predictor)

	err := h.w.processJob(context.Background(), jobTask{JobID: testJobID, DeliveryTag: 1, Redelivered: true})
	require.Error(t, err)
	assert.False(t, shouldRequeueJob(err))
	assert.Equal(t, []string{"pred-1"}, predictor.cancelled)
	assert.Equal(t, domain.ProviderBusyMessage, store.failed)
}

func TestProcessJob_CompletionNotRecorded(t *testing.T) {
	store := &fakeStore{job: effectsJob(), completeOK: true, completeErr: errors.New("connection reset")}
	predictor := &fakePredictor{polls: []*provider.Prediction{succeeded(`"https://replicate.delivery/abc/output.mp3"`)}}
	h := newHarness(store, predictor)

	err := h.w.processJob(context.Background(), jobTask{JobID: testJobID, DeliveryTag: 1})
	require.Error(t, err)
	assert.True(t, shouldRequeueJob(err))
	assert.Empty(t, store.failed)
	assert.Equal(t, []int{2}, store.deducted)

	// the retry finds the ledger row and does not charge again
	store.completeErr = nil
	store.charged = true
	require.NoError(t, h.w.processJob(context.Background(), jobTask{JobID: testJobID, DeliveryTag: 2, Redelivered: true}))
	assert.Equal(t, []int{2}, store.deducted)
	assert.Len(t, store.ledger, 1)
	assert.NotNil(t, store.completed)
}

func TestProcessJob_ResumesExistingPrediction(t *testing.T) {
	job := effectsJob()
	id := "pred-existing"
	job.ReplicatePredictionID = &id
	store := &fakeStore{job: job, completeOK: true}
	predictor := &fakePredictor{polls: []*provider.Prediction{succeeded(`"https://replicate.delivery/abc/output.mp3"`)}}
	h := newHarness(store, predictor)

	require.NoError(t, h.w.processJob(context.Background(), jobTask{JobID: testJobID, DeliveryTag: 1}))
	assert.Zero(t, predictor.created)
	assert.NotNil(t, store.completed)
}

func TestProcessJob_ClaimErrors(t *testing.T) {
	tests := []struct {
		name        string
		claimErr    error
		wantRequeue bool
	}{
		{name: "already claimed", claimErr: storage.ErrJobAlreadyClaimed, wantRequeue: false},
		{name: "database error", claimErr: errors.New("connection reset"), wantRequeue: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(&fakeStore{claimErr: tt.claimErr}, &fakePredictor{})
			err := h.w.processJob(context.Background(), jobTask{JobID: testJobID})
			require.Error(t, err)
			assert.Equal(t, tt.wantRequeue, shouldRequeueJob(err))
		})
	}
}

func TestProcessJob_RedeliveredClaimConflict(t *testing.T) {
	tests := []struct {
		name        string
		redelivered bool
		status      domain.JobStatus
		wantBusy    bool
	}{
		{name: "redelivered while processing", redelivered: true, status: domain.JobStatusProcessing, wantBusy: true},
		{name: "redelivered after completion", redelivered: true, status: domain.JobStatusCompleted},
		{name: "duplicate first delivery", redelivered: false, status: domain.JobStatusProcessing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{claimErr: storage.ErrJobAlreadyClaimed, status: tt.status}
			h := newHarness(store, &fakePredictor{})

			err := h.w.processJob(context.Background(), jobTask{JobID: testJobID, DeliveryTag: 7, Redelivered: tt.redelivered})
			require.ErrorIs(t, err, storage.ErrJobAlreadyClaimed)
			assert.Equal(t, tt.wantBusy, errors.Is(err, errJobBusy))
			assert.Empty(t, store.failed)
		})
	}
}

func TestWorker_HoldsRedeliveredBusyJob(t *testing.T) {
	store := &fakeStore{claimErr: storage.ErrJobAlreadyClaimed, status: domain.JobStatusProcessing}
	h := newHarness(store, &fakePredictor{})
	h.w.requeueDelay = 20 * time.Millisecond

	h.queue.deliveries <- amqp.Delivery{DeliveryTag: 7, Redelivered: true, Body: []byte(`{"job_id":"` + testJobID + `"}`)}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.w.Start(ctx) }()

	require.Eventually(t, func() bool { return h.queue.handled() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-errCh)
	require.NoError(t, h.w.Stop())

	assert.Empty(t, h.queue.acked)
	assert.Equal(t, map[uint64]bool{7: true}, h.queue.nacked)
}

func TestWorker_SweepStaleJobs(t *testing.T) {
	store := &fakeStore{stale: []string{"job-a", "job-b"}}
	h := newHarness(store, &fakePredictor{})

	h.w.sweepStaleJobs(context.Background())
	h.w.sweepStaleJobs(context.Background())

	assert.Equal(t, []string{"job-a", "job-b"}, h.queue.published)
}

func TestShouldRequeueJob(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "retryable", err: NewRetryableError(errors.New("busy")), want: true},
		{name: "invalid payload", err: ErrInvalidPayload, want: false},
		{name: "unknown", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shouldRequeueJob(tt.err))
		})
	}
}

func TestParseDelivery(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{name: "valid", body: `{"job_id":"` + testJobID + `"}`},
		{name: "malformed json", body: `{`, wantErr: true},
		{name: "not a uuid", body: `{"job_id":"42"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task, err := parseDelivery(amqp.Delivery{Body: []byte(tt.body), DeliveryTag: 7, Redelivered: true})
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testJobID, task.JobID)
			assert.Equal(t, uint64(7), task.DeliveryTag)
			assert.True(t, task.Redelivered)
		})
	}
}

func TestWorker_StartStop(t *testing.T) {
	store := &fakeStore{job: effectsJob(), completeOK: true}
	predictor := &fakePredictor{polls: []*provider.Prediction{succeeded(`"https://replicate.delivery/abc/output.mp3"`)}}
	h := newHarness(store, predictor)

	h.queue.deliveries <- amqp.Delivery{DeliveryTag: 1, Body: []byte(`{"job_id":"` + testJobID + `"}`)}
	h.queue.deliveries <- amqp.Delivery{DeliveryTag: 2, Body: []byte(`not json`)}

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- h.w.Start(ctx) }()

	require.Eventually(t, func() bool { return h.queue.handled() == 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	require.NoError(t, <-errCh)
	require.NoError(t, h.w.Stop())

	assert.Equal(t, []uint64{1}, h.queue.acked)
	assert.Equal(t, map[uint64]bool{2: false}, h.queue.nacked)
}

func TestWorker_StartReturnsWhenQueueCloses(t *testing.T) {
	h := newHarness(&fakeStore{}, &fakePredictor{})
	close(h.queue.deliveries)

	err := h.w.Start(context.Background())
	require.ErrorIs(t, err, errQueueClosed)
	require.NoError(t, h.w.Stop())
}
