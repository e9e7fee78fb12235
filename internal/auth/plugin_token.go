package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/444radio/radio-be/internal/domain"
)

const pluginTokenBytes = 32

// minPluginTokenLength filters obvious garbage before hitting the database
const minPluginTokenLength = 32

// GeneratePluginToken returns a new "444r_" + 64 hex chars token
func GeneratePluginToken() (string, error) {
	buf := make([]byte, pluginTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate plugin token: %w", err)
	}
	return domain.PluginTokenPrefix + hex.EncodeToString(buf), nil
}

// LooksLikePluginToken does the cheap shape check
func LooksLikePluginToken(token string) bool {
	return len(token) >= minPluginTokenLength
}

// Access tiers returned by plugin token validation
const (
	TierDeniedInactive   = "denied_inactive"
	TierDeniedNoPurchase = "denied_no_purchase"
)

// PluginValidation is the result of the validate_plugin_token procedure
type PluginValidation struct {
	IsValid      bool    `db:"is_valid"`
	UserID       *string `db:"user_id"`
	TokenID      *string `db:"token_id"`
	AccessTier   *string `db:"access_tier"`
	ErrorMessage *string `db:"error_message"`
}

// Err maps an invalid validation to a domain error; nil when valid
func (p PluginValidation) Err() error {
	if p.IsValid && p.UserID != nil && *p.UserID != "" {
		return nil
	}

	msg := ""
	if p.ErrorMessage != nil {
		msg = *p.ErrorMessage
	}

	tier := ""
	if p.AccessTier != nil {
		tier = *p.AccessTier
	}

	lower := strings.ToLower(msg)
	switch {
	case tier == TierDeniedInactive:
		return &DeniedError{Kind: domain.ErrForbidden, Msg: "Your Studio subscription is inactive. Resubscribe to keep using the plugin."}
	case tier == TierDeniedNoPurchase:
		return &DeniedError{Kind: domain.ErrForbidden, Msg: "Plugin access requires a one-time purchase or a Pro/Studio subscription."}
	case strings.Contains(lower, "rate limit"):
		return &DeniedError{Kind: domain.ErrRateLimited, Msg: msg}
	case strings.Contains(lower, "revoked"):
		return &DeniedError{Kind: domain.ErrUnauthorized, Msg: "Token has been revoked. Generate a new token from Settings."}
	}
	return &DeniedError{Kind: domain.ErrUnauthorized, Msg: "Invalid or expired token. Generate a new one from Settings."}
}

// DeniedError is a plugin authentication failure with a message safe to show the user
type DeniedError struct {
	Kind error
	Msg  string
}

func (e *DeniedError) Error() string { return e.Msg }

func (e *DeniedError) Unwrap() error { return e.Kind }
