package domain

// Ledger transaction types outside generation_<type>
const (
	TxCreditAward       = "credit_award"
	TxCreditRefund      = "credit_refund"
	TxCreditPurchase    = "credit_purchase"
	TxWalletConversion  = "wallet_conversion"
	TxSubscriptionBonus = "subscription_bonus"
	TxEarnPurchase      = "earn_purchase"
	TxEarnSale          = "earn_sale"
)

// Ledger transaction statuses
const (
	TxStatusSuccess = "success"
	TxStatusFailed  = "failed"
)

// MaxActivePluginTokens caps live plugin tokens per user
const MaxActivePluginTokens = 5

// PluginTokenPrefix marks tokens issued to the DAW plugin
const PluginTokenPrefix = "444r_"

// ProviderBusyMessage is the only provider failure text users ever see
const ProviderBusyMessage = "444 radio is locking in, please try again in a few minutes"

// Marketplace download pricing. The whole amount goes to the artist.
const (
	EarnDownloadCost = 2
	EarnStemsCost    = 5
)

// IsSubscribed reports whether a subscription status unlocks subscriber-only features
func IsSubscribed(status string) bool {
	return status == "active" || status == "trialing"
}
