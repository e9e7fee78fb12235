package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/api/storage"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEarnHandler_Purchase(t *testing.T) {
	splitID := "split_1"

	tests := []struct {
		name        string
		body        any
		purchase    *model.EarnPurchase
		purchaseErr error
		wantStatus  int
		wantError   string
	}{
		{
			name:       "download with stems",
			body:       map[string]any{"trackId": "trk_1", "splitStems": true},
			purchase:   &model.EarnPurchase{TransactionID: "etx_1", TotalCost: 7, ArtistShare: 7, NewCredits: 13, SplitJobID: &splitID},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing track id",
			body:       map[string]any{"splitStems": true},
			wantStatus: http.StatusBadRequest,
			wantError:  "trackId is required",
		},
		{
			name:        "not subscribed",
			body:        map[string]any{"trackId": "trk_1"},
			purchaseErr: domain.ErrSubscriptionRequired,
			wantStatus:  http.StatusForbidden,
			wantError:   "Subscription required. Upgrade at /pricing to download tracks.",
		},
		{
			name:        "own track",
			body:        map[string]any{"trackId": "trk_1"},
			purchaseErr: domain.Invalid("Cannot purchase your own track"),
			wantStatus:  http.StatusBadRequest,
			wantError:   "Cannot purchase your own track",
		},
		{
			name:        "short on credits",
			body:        map[string]any{"trackId": "trk_1"},
			purchaseErr: domain.ErrInsufficientCredits,
			wantStatus:  http.StatusPaymentRequired,
			wantError:   "Insufficient credits",
		},
		{
			name:        "unknown track",
			body:        map[string]any{"trackId": "nope"},
			purchaseErr: domain.ErrNotFound,
			wantStatus:  http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{purchase: tt.purchase, purchaseErr: tt.purchaseErr}
			h := NewEarnHandler(testDeps(store))

			w := serve(t, http.MethodPost, "/earn/purchase", "/earn/purchase", tt.body, "buyer_1", h.Purchase)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			body := decode(t, w)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, body["error"])
				return
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			assert.Equal(t, true, body["success"])
			assert.Equal(t, "Purchase completed", body["message"])
			assert.EqualValues(t, 13, body["newCredits"])
			assert.Equal(t, splitID, body["splitJobId"])
			tx := body["transaction"].(map[string]any)
			assert.EqualValues(t, 7, tx["totalCost"])
			assert.EqualValues(t, 7, tx["artistShare"])
			assert.EqualValues(t, 0, tx["adminShare"])
			assert.Equal(t, []string{"trk_1"}, store.purchased)
		})
	}
}

func TestEarnHandler_ListTracks(t *testing.T) {
	lofi, house := "lofi", "house"
	title := "Night Drive"
	store := &fakeStore{earnTracks: []model.EarnTrack{
		{ID: "a", Title: &title, UserID: "u1", Genre: &lofi, Username: "nova", CreatedAt: time.Now()},
		{ID: "b", UserID: "u2", Genre: &house, Username: "kai", CreatedAt: time.Now()},
		{ID: "c", UserID: "u1", Genre: &lofi, Username: "nova", CreatedAt: time.Now()},
		{ID: "d", UserID: "u3", Username: "Unknown", CreatedAt: time.Now()},
	}}
	h := NewEarnHandler(testDeps(store))

	w := serve(t, http.MethodGet, "/earn/tracks", "/earn/tracks?filter=latest&genre=lofi&q=night", nil, "", h.ListTracks)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Len(t, body["tracks"], 4)
	assert.Equal(t, []any{"house", "lofi"}, body["genres"])
	assert.Equal(t, storage.EarnTrackFilter{Sort: storage.EarnSortLatest, Genre: "lofi", Search: "night"}, store.earnFilter)
}

func TestEarnHandler_ListTransactions(t *testing.T) {
	store := &fakeStore{
		earnSales: []model.EarnTransaction{
			{ID: "s1", TotalCost: 7, ArtistShare: 7, Counterparty: "fan"},
			{ID: "s2", TotalCost: 2, ArtistShare: 2, Counterparty: "fan2"},
		},
		earnPurchases: []model.EarnTransaction{
			{ID: "p1", TotalCost: 2, ArtistShare: 2, Counterparty: "nova"},
		},
	}

	tests := []struct {
		name          string
		query         string
		wantStatus    int
		wantSales     int
		wantPurchases int
		wantEarned    int
		wantSpent     int
	}{
		{name: "all", query: "", wantStatus: http.StatusOK, wantSales: 2, wantPurchases: 1, wantEarned: 9, wantSpent: 2},
		{name: "sales only", query: "?type=sales", wantStatus: http.StatusOK, wantSales: 2, wantEarned: 9},
		{name: "purchases only", query: "?type=purchases", wantStatus: http.StatusOK, wantPurchases: 1, wantSpent: 2},
		{name: "unknown type", query: "?type=refunds", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewEarnHandler(testDeps(store))

			w := serve(t, http.MethodGet, "/earn/transactions", "/earn/transactions"+tt.query, nil, "user_1", h.ListTransactions)

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}
			body := decode(t, w)
			assert.Len(t, body["sales"], tt.wantSales)
			assert.Len(t, body["purchases"], tt.wantPurchases)
			assert.EqualValues(t, tt.wantEarned, body["totalEarned"])
			assert.EqualValues(t, tt.wantSpent, body["totalSpent"])
		})
	}
}
