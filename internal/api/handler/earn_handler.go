package handler

import (
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/444radio/radio-be/internal/api/dto"
	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/api/storage"
	"github.com/444radio/radio-be/internal/metrics"
	"github.com/gin-gonic/gin"
)

// EarnHandler serves the track marketplace: browsing, paid downloads and the sales ledger
type EarnHandler struct {
	logger  *slog.Logger
	store   EarnStore
	metrics *metrics.Metrics
}

func NewEarnHandler(deps *Dependencies) *EarnHandler {
	return &EarnHandler{
		logger:  deps.Logger,
		store:   deps.Store,
		metrics: deps.Metrics,
	}
}

// ListTracks handles GET /api/v1/earn/tracks
func (h *EarnHandler) ListTracks(c *gin.Context) {
	filter := storage.EarnTrackFilter{
		Sort:   c.DefaultQuery("filter", storage.EarnSortTrending),
		Genre:  c.Query("genre"),
		Search: c.Query("q"),
	}

	tracks, err := h.store.ListEarnTracks(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, "list earn tracks", err)
		return
	}

	out := make([]dto.EarnTrackDTO, len(tracks))
	var genres []string
	for i, t := range tracks {
		out[i] = toEarnTrackDTO(t)
		if g := str(t.Genre); g != "" && !slices.Contains(genres, g) {
			genres = append(genres, g)
		}
	}
	slices.Sort(genres)
	if genres == nil {
		genres = []string{}
	}

	c.JSON(http.StatusOK, dto.EarnTracksResponse{Success: true, Tracks: out, Genres: genres})
}

// Purchase handles POST /api/v1/earn/purchase
func (h *EarnHandler) Purchase(c *gin.Context) {
	userID := CallerID(c)

	var req dto.EarnPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "trackId is required")
		return
	}

	res, err := h.store.PurchaseTrack(c.Request.Context(), userID, req.TrackID, req.SplitStems)
	if err != nil {
		respondError(c, h.logger, "earn purchase", err)
		return
	}

	h.metrics.EarnPurchase(req.SplitStems)
	h.logger.Info("Track purchased",
		slog.String("user_id", userID),
		slog.String("track_id", req.TrackID),
		slog.String("transaction_id", res.TransactionID),
		slog.Int("cost", res.TotalCost),
		slog.Bool("split_stems", req.SplitStems),
	)

	c.JSON(http.StatusOK, dto.EarnPurchaseResponse{
		Success: true,
		Message: "Purchase completed",
		Transaction: dto.EarnPurchaseCost{
			TotalCost:   res.TotalCost,
			ArtistShare: res.ArtistShare,
			AdminShare:  res.AdminShare,
		},
		NewCredits: res.NewCredits,
		SplitJobID: res.SplitJobID,
	})
}

// ListTransactions handles GET /api/v1/earn/transactions?type=all|sales|purchases
func (h *EarnHandler) ListTransactions(c *gin.Context) {
	userID := CallerID(c)
	ctx := c.Request.Context()

	kind := c.DefaultQuery("type", "all")
	if kind != "all" && kind != "sales" && kind != "purchases" {
		badRequest(c, "type must be all, sales or purchases")
		return
	}

	resp := dto.EarnTransactionsResponse{
		Success:   true,
		Sales:     []dto.EarnTransactionDTO{},
		Purchases: []dto.EarnTransactionDTO{},
	}

	if kind != "purchases" {
		sales, err := h.store.ListEarnSales(ctx, userID)
		if err != nil {
			respondError(c, h.logger, "list earn sales", err)
			return
		}
		for _, t := range sales {
			resp.Sales = append(resp.Sales, toEarnTransactionDTO(t))
			resp.TotalEarned += t.ArtistShare
		}
	}

	if kind != "sales" {
		purchases, err := h.store.ListEarnPurchases(ctx, userID)
		if err != nil {
			respondError(c, h.logger, "list earn purchases", err)
			return
		}
		for _, t := range purchases {
			resp.Purchases = append(resp.Purchases, toEarnTransactionDTO(t))
			resp.TotalSpent += t.TotalCost
		}
	}

	c.JSON(http.StatusOK, resp)
}

func toEarnTrackDTO(t model.EarnTrack) dto.EarnTrackDTO {
	return dto.EarnTrackDTO{
		ID:          t.ID,
		Title:       str(t.Title),
		AudioURL:    str(t.AudioURL),
		ImageURL:    str(t.ImageURL),
		UserID:      t.UserID,
		Username:    t.Username,
		AvatarURL:   str(t.AvatarURL),
		Genre:       str(t.Genre),
		Plays:       t.Plays,
		Likes:       t.Likes,
		Downloads:   t.Downloads,
		EarnPrice:   t.EarnPrice,
		ArtistShare: t.ArtistShare,
		AdminShare:  t.AdminShare,
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toEarnTransactionDTO(t model.EarnTransaction) dto.EarnTransactionDTO {
	return dto.EarnTransactionDTO{
		ID:              t.ID,
		TrackID:         t.TrackID,
		TrackTitle:      t.TrackTitle,
		Counterparty:    t.Counterparty,
		TotalCost:       t.TotalCost,
		ArtistShare:     t.ArtistShare,
		SplitStems:      t.SplitStems,
		TransactionType: t.TransactionType,
		CreatedAt:       t.CreatedAt.UTC().Format(time.RFC3339),
	}
}
