// Package webhook verifies and applies payment and identity-provider webhooks.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
)

var (
	ErrMissingSignature = errors.New("missing webhook signature")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrNoSecret         = errors.New("webhook secret not configured")
)

// RazorpaySignatureHeader carries hex(HMAC_SHA256(secret, body))
const RazorpaySignatureHeader = "X-Razorpay-Signature"

// RazorpayEventIDHeader identifies a delivery; retries reuse it
const RazorpayEventIDHeader = "X-Razorpay-Event-Id"

// VerifyRazorpay checks the body signature
func VerifyRazorpay(secret string, body []byte, signature string) error {
	if secret == "" {
		return ErrNoSecret
	}
	if signature == "" {
		return ErrMissingSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return ErrInvalidSignature
	}
	return nil
}

// Plan credits per billing cycle
var PlanCredits = map[string]int{
	"plan_S2DGVK6J270rtt": 167,   // Creator Monthly
	"plan_S2DGkl8VQJiZvV": 1667,  // Creator Annual
	"plan_S2DJv0bFnWoNLS": 1667,  // Creator Annual (alt)
	"plan_S2DHUGo7n1m6iv": 535,   // Pro Monthly
	"plan_S2DNEvy1YzYWNh": 5167,  // Pro Annual
	"plan_S2DIdCKNcV6TtA": 1235,  // Studio Monthly
	"plan_S2DOABOeGedJHk": 11967, // Studio Annual
}

// DetectPlanType maps a plan id to creator, pro or studio
func DetectPlanType(planID string) string {
	id := strings.ToUpper(planID)
	switch {
	case strings.Contains(id, "S2DI"), strings.Contains(id, "S2DO"):
		return "studio"
	case strings.Contains(id, "S2DH"), strings.Contains(id, "S2DN"):
		return "pro"
	}
	return "creator"
}

// RazorpayEvent is the envelope of every Razorpay webhook
type RazorpayEvent struct {
	Event     string `json:"event"`
	CreatedAt int64  `json:"created_at"`
	Payload   struct {
		Payment struct {
			Entity Payment `json:"entity"`
		} `json:"payment"`
		Subscription struct {
			Entity Subscription `json:"entity"`
		} `json:"subscription"`
	} `json:"payload"`
}

type Payment struct {
	ID               string `json:"id"`
	Amount           int64  `json:"amount"`
	Currency         string `json:"currency"`
	Status           string `json:"status"`
	ErrorCode        string `json:"error_code"`
	ErrorDescription string `json:"error_description"`
	Notes            Notes  `json:"notes"`
}

type Subscription struct {
	ID         string `json:"id"`
	PlanID     string `json:"plan_id"`
	CustomerID string `json:"customer_id"`
	Status     string `json:"status"`
	PaidCount  int    `json:"paid_count"`
	StartAt    int64  `json:"start_at"`
	EndAt      int64  `json:"end_at"`
	Notes      Notes  `json:"notes"`
}

// Notes are free-form key/values. Razorpay sends an empty array instead of {} when unset.
type Notes map[string]string

func (n *Notes) UnmarshalJSON(b []byte) error {
	*n = Notes{}
	if len(b) == 0 || b[0] != '{' {
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for k, v := range raw {
		switch t := v.(type) {
		case string:
			(*n)[k] = t
		case float64:
			(*n)[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			(*n)[k] = strconv.FormatBool(t)
		}
	}
	return nil
}

// Int returns the note as an integer, 0 when missing or malformed
func (n Notes) Int(key string) int {
	v, err := strconv.Atoi(strings.TrimSpace(n[key]))
	if err != nil {
		return 0
	}
	return v
}
