package dto

type CreditsResponse struct {
	Credits            int     `json:"credits"`
	WalletBalance      float64 `json:"walletBalance"`
	SubscriptionStatus string  `json:"subscriptionStatus,omitempty"`
	SubscriptionPlan   string  `json:"subscriptionPlan,omitempty"`
	SubscriptionEnd    string  `json:"subscriptionEnd,omitempty"`
}

type TransactionDTO struct {
	ID           string         `json:"id"`
	Amount       int            `json:"amount"`
	BalanceAfter *int           `json:"balanceAfter"`
	Type         string         `json:"type"`
	Status       string         `json:"status"`
	Description  string         `json:"description,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    string         `json:"createdAt"`
}

type ListTransactionsResponse struct {
	Transactions []TransactionDTO `json:"transactions"`
	NextCursor   string           `json:"nextCursor,omitempty"`
}

// ConvertWalletRequest converts part of the wallet; a missing amount converts all of it
type ConvertWalletRequest struct {
	AmountUSD *float64 `json:"amountUsd"`
}

type ConvertWalletResponse struct {
	Success          bool    `json:"success"`
	AmountConverted  float64 `json:"amountConverted"`
	CreditsAdded     int     `json:"creditsAdded"`
	NewWalletBalance float64 `json:"newWalletBalance"`
	NewCredits       int     `json:"newCredits"`
}

type AwardCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

type AwardCodeResponse struct {
	Success      bool `json:"success"`
	CreditsAdded int  `json:"creditsAdded"`
	NewCredits   int  `json:"newCredits"`
}
