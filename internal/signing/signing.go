// Package signing issues and checks time-limited audio URLs.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

var (
	ErrExpired          = errors.New("signed url expired")
	ErrInvalidSignature = errors.New("invalid signature")
)

// Signer signs object keys for the audio gateway
type Signer struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

// NewSigner creates a Signer. baseURL is the host that serves /audio/{key}.
func NewSigner(secret, baseURL string, ttl time.Duration) *Signer {
	return &Signer{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Sign returns hex(HMAC_SHA256(secret, "{key}:{expiry}"))
func (s *Signer) Sign(key string, expiry int64) string {
	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", key, expiry)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignedURL returns the gateway URL for key valid for ttl (the signer default when ttl <= 0)
// along with its expiry
func (s *Signer) SignedURL(key string, ttl time.Duration) (string, time.Time) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	exp := s.now().Add(ttl).Unix()

	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", s.Sign(key, exp))

	return fmt.Sprintf("%s/audio/%s?%s", s.baseURL, escapeKey(key), q.Encode()), time.Unix(exp, 0)
}

// Verify checks a key against the exp and sig query values
func (s *Signer) Verify(key, exp, sig string) error {
	expiry, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}

	want := s.Sign(key, expiry)
	if !hmac.Equal([]byte(want), []byte(strings.ToLower(sig))) {
		return ErrInvalidSignature
	}
	if s.now().Unix() > expiry {
		return ErrExpired
	}
	return nil
}

// escapeKey escapes each path segment but keeps the separators
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
