// Package auth verifies session tokens from the identity provider and issues plugin tokens.
package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("missing session token")
	ErrInvalidToken = errors.New("invalid session token")
)

// SessionClaims are the claims the identity provider puts in a session token
type SessionClaims struct {
	AuthorizedParty string `json:"azp,omitempty"`
	SessionID       string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// VerifierConfig configures a SessionVerifier
type VerifierConfig struct {
	PublicKeyPEM      string
	Issuer            string
	AuthorizedParties []string
	CookieName        string
	Leeway            time.Duration
}

// SessionVerifier validates RS256 session tokens
type SessionVerifier struct {
	key        *rsa.PublicKey
	parser     *jwt.Parser
	parties    []string
	cookieName string
}

// NewSessionVerifier parses the PEM public key and prepares a parser
func NewSessionVerifier(cfg VerifierConfig) (*SessionVerifier, error) {
	// env vars often carry the PEM with literal \n
	pemText := strings.ReplaceAll(cfg.PublicKeyPEM, `\n`, "\n")
	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemText))
	if err != nil {
		return nil, fmt.Errorf("failed to parse session public key: %w", err)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(cfg.Leeway),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}

	cookie := cfg.CookieName
	if cookie == "" {
		cookie = "__session"
	}

	return &SessionVerifier{
		key:        key,
		parser:     jwt.NewParser(opts...),
		parties:    cfg.AuthorizedParties,
		cookieName: cookie,
	}, nil
}

// Verify validates raw and returns the user id from the sub claim
func (v *SessionVerifier) Verify(raw string) (string, error) {
	if raw == "" {
		return "", ErrMissingToken
	}

	claims := &SessionClaims{}
	_, err := v.parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if len(v.parties) > 0 && claims.AuthorizedParty != "" && !slices.Contains(v.parties, claims.AuthorizedParty) {
		return "", fmt.Errorf("%w: unexpected azp %q", ErrInvalidToken, claims.AuthorizedParty)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing sub", ErrInvalidToken)
	}

	return claims.Subject, nil
}

// TokenFromRequest returns the bearer token, falling back to the session cookie
func (v *SessionVerifier) TokenFromRequest(r *http.Request) string {
	if token := BearerToken(r); token != "" {
		return token
	}
	if c, err := r.Cookie(v.cookieName); err == nil {
		return c.Value
	}
	return ""
}

// BearerToken extracts the token from an Authorization: Bearer header
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
