package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/444radio/radio-be/internal/api/dto"
	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/domain"
	"github.com/gin-gonic/gin"
)

// CreditHandler serves balances, the ledger, wallet conversion and promo codes
type CreditHandler struct {
	logger      *slog.Logger
	store       CreditStore
	redeemCodes map[string]int
}

func NewCreditHandler(deps *Dependencies) *CreditHandler {
	codes := make(map[string]int, len(deps.RedeemCodes))
	for code, credits := range deps.RedeemCodes {
		codes[normalizeCode(code)] = credits
	}
	return &CreditHandler{
		logger:      deps.Logger,
		store:       deps.Store,
		redeemCodes: codes,
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// GetCredits handles GET /api/v1/credits and GET /api/plugin/credits
func (h *CreditHandler) GetCredits(c *gin.Context) {
	user, err := h.store.GetUser(c.Request.Context(), CallerID(c))
	if err != nil {
		respondError(c, h.logger, "get credits", err)
		return
	}

	c.JSON(http.StatusOK, dto.CreditsResponse{
		Credits:            user.Credits,
		WalletBalance:      user.WalletBalance,
		SubscriptionStatus: str(user.SubscriptionStatus),
		SubscriptionPlan:   str(user.SubscriptionPlan),
		SubscriptionEnd:    timeStr(user.SubscriptionEnd),
	})
}

// ListTransactions handles GET /api/v1/credits/transactions
func (h *CreditHandler) ListTransactions(c *gin.Context) {
	var req struct {
		PageSize int    `form:"page_size"`
		Cursor   string `form:"cursor"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		badRequest(c, "Invalid query parameters")
		return
	}

	page, err := pageFrom(req.PageSize, req.Cursor)
	if err != nil {
		badRequest(c, "Invalid cursor")
		return
	}

	txs, err := h.store.ListCreditTransactions(c.Request.Context(), CallerID(c), page)
	if err != nil {
		respondError(c, h.logger, "list transactions", err)
		return
	}

	txs, next := trimPage(txs, page.Size, func(t model.CreditTransaction) (time.Time, string) { return t.CreatedAt, t.ID })

	out := make([]dto.TransactionDTO, len(txs))
	for i, tx := range txs {
		out[i] = toTransactionDTO(tx)
	}
	c.JSON(http.StatusOK, dto.ListTransactionsResponse{Transactions: out, NextCursor: next})
}

// ConvertWallet handles POST /api/v1/credits/convert
func (h *CreditHandler) ConvertWallet(c *gin.Context) {
	userID := CallerID(c)
	h.logger.Info("ConvertWallet called", slog.String("user_id", userID))

	var req dto.ConvertWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "Invalid request body")
		return
	}

	ctx := c.Request.Context()
	user, err := h.store.GetUser(ctx, userID)
	if err != nil {
		respondError(c, h.logger, "read wallet", err)
		return
	}

	if user.WalletBalance <= 0 {
		badRequest(c, "Wallet balance is empty")
		return
	}
	amount := user.WalletBalance
	if req.AmountUSD != nil {
		if *req.AmountUSD <= 0 || *req.AmountUSD > user.WalletBalance {
			badRequest(c, "Invalid amount")
			return
		}
		amount = *req.AmountUSD
	}

	res, err := h.store.ConvertWallet(ctx, userID, req.AmountUSD)
	if err != nil {
		respondError(c, h.logger, "convert wallet", err)
		return
	}
	if !res.Success {
		msg := str(res.ErrorMessage)
		if msg == "" {
			msg = "Conversion failed"
		}
		h.logger.Warn("Wallet conversion rejected",
			slog.String("user_id", userID),
			slog.String("reason", msg),
		)
		badRequest(c, msg)
		return
	}

	h.logger.Info("Wallet converted successfully",
		slog.String("user_id", userID),
		slog.Float64("amount_usd", amount),
		slog.Int("credits_added", res.CreditsAdded),
	)

	c.JSON(http.StatusOK, dto.ConvertWalletResponse{
		Success:          true,
		AmountConverted:  amount,
		CreditsAdded:     res.CreditsAdded,
		NewWalletBalance: res.NewWalletBalance,
		NewCredits:       res.NewCredits,
	})
}

// AwardCode handles POST /api/v1/credits/award
func (h *CreditHandler) AwardCode(c *gin.Context) {
	userID := CallerID(c)

	var req dto.AwardCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Code is required")
		return
	}

	code := normalizeCode(req.Code)
	credits, ok := h.redeemCodes[code]
	if !ok {
		respondError(c, h.logger, "redeem code", domain.Invalid("Invalid code"))
		return
	}

	balance, err := h.store.RedeemCode(c.Request.Context(), userID, code, credits)
	if err != nil {
		respondError(c, h.logger, "redeem code", err)
		return
	}

	h.logger.Info("Code redeemed successfully",
		slog.String("user_id", userID),
		slog.String("code", code),
		slog.Int("credits", credits),
	)

	c.JSON(http.StatusOK, dto.AwardCodeResponse{
		Success:      true,
		CreditsAdded: credits,
		NewCredits:   balance,
	})
}
