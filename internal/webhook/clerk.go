package webhook

import (
	"fmt"
	"net/http"
	"strings"

	svix "github.com/svix/svix-webhooks/go"
)

// ClerkVerifier checks svix-signed identity-provider webhooks
type ClerkVerifier struct {
	wh *svix.Webhook
}

// NewClerkVerifier builds a verifier from a whsec_ secret
func NewClerkVerifier(secret string) (*ClerkVerifier, error) {
	wh, err := svix.NewWebhook(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to init clerk webhook verifier: %w", err)
	}
	return &ClerkVerifier{wh: wh}, nil
}

// Verify checks headers and signature of a raw payload
func (v *ClerkVerifier) Verify(body []byte, headers http.Header) error {
	if headers.Get("svix-id") == "" || headers.Get("svix-timestamp") == "" || headers.Get("svix-signature") == "" {
		return ErrMissingSignature
	}
	if err := v.wh.Verify(body, headers); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// ClerkEvent is the envelope of a Clerk webhook
type ClerkEvent struct {
	Type string    `json:"type"`
	Data ClerkUser `json:"data"`
}

type ClerkUser struct {
	ID                    string `json:"id"`
	Username              string `json:"username"`
	FirstName             string `json:"first_name"`
	LastName              string `json:"last_name"`
	ImageURL              string `json:"image_url"`
	PrimaryEmailAddressID string `json:"primary_email_address_id"`
	EmailAddresses        []struct {
		ID           string `json:"id"`
		EmailAddress string `json:"email_address"`
	} `json:"email_addresses"`
	Deleted bool `json:"deleted"`
}

// PrimaryEmail returns the primary address, or the first one
func (u ClerkUser) PrimaryEmail() string {
	for _, e := range u.EmailAddresses {
		if e.ID == u.PrimaryEmailAddressID {
			return e.EmailAddress
		}
	}
	if len(u.EmailAddresses) > 0 {
		return u.EmailAddresses[0].EmailAddress
	}
	return ""
}

// DisplayUsername picks username, first name, email local part, then a generated fallback
func (u ClerkUser) DisplayUsername() string {
	if u.Username != "" {
		return u.Username
	}
	if u.FirstName != "" {
		return u.FirstName
	}
	if local, _, ok := strings.Cut(u.PrimaryEmail(), "@"); ok && local != "" {
		return local
	}
	id := u.ID
	if len(id) > 8 {
		id = id[len(id)-8:]
	}
	return "user_" + id
}
