package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/444radio/radio-be/internal/api/model"
	"github.com/444radio/radio-be/internal/domain"
)

// Store is the persistence the processor needs
type Store interface {
	HasProcessedPayment(ctx context.Context, razorpayID, eventType string) (bool, error)
	GetUser(ctx context.Context, userID string) (*model.User, error)
	FindUserByRazorpayCustomer(ctx context.Context, customerID string) (*model.User, error)
	AwardCredits(ctx context.Context, entry model.LedgerEntry, sub *model.SubscriptionUpdate) (int, error)
	UpdateUserSubscription(ctx context.Context, userID string, upd model.SubscriptionUpdate) error
	UpdateSubscriptionByID(ctx context.Context, subscriptionID string, upd model.SubscriptionUpdate) (int64, error)
	UpsertUser(ctx context.Context, u model.UserUpsert) error
	DeleteUser(ctx context.Context, userID string) error
}

// Processor applies verified webhook events
type Processor struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewProcessor(store Store, logger *slog.Logger) *Processor {
	return &Processor{store: store, logger: logger, now: time.Now}
}

// HandleRazorpay applies a payment event. Returned errors are transient and the delivery
// should be retried; events that cannot apply (unknown user, duplicate) return nil.
func (p *Processor) HandleRazorpay(ctx context.Context, ev RazorpayEvent) error {
	log := p.logger.With(slog.String("event", ev.Event))

	switch ev.Event {
	case "payment.captured":
		return p.paymentCaptured(ctx, log, ev)
	case "payment.authorized":
		log.Info("Payment authorized, no credit action")
	case "payment.failed":
		pay := ev.Payload.Payment.Entity
		log.Warn("Payment failed",
			slog.String("payment_id", pay.ID),
			slog.String("error_code", pay.ErrorCode),
			slog.String("error_description", pay.ErrorDescription),
		)
	case "subscription.activated":
		return p.subscriptionActivated(ctx, log, ev.Payload.Subscription.Entity)
	case "subscription.charged":
		return p.subscriptionCharged(ctx, log, ev)
	case "subscription.paused":
		return p.setStatus(ctx, log, ev.Payload.Subscription.Entity, "paused")
	case "subscription.resumed":
		return p.setStatus(ctx, log, ev.Payload.Subscription.Entity, "active")
	case "subscription.cancelled", "subscription.expired":
		return p.setStatus(ctx, log, ev.Payload.Subscription.Entity, "cancelled")
	case "subscription.updated":
		sub := ev.Payload.Subscription.Entity
		plan := DetectPlanType(sub.PlanID)
		_, err := p.store.UpdateSubscriptionByID(ctx, sub.ID, model.SubscriptionUpdate{
			Plan: &plan,
			End:  unixTime(sub.EndAt),
		})
		if err != nil {
			return fmt.Errorf("failed to update subscription %s: %w", sub.ID, err)
		}
		log.Info("Subscription updated", slog.String("subscription_id", sub.ID), slog.String("plan", plan))
	default:
		log.Info("Unhandled razorpay event")
	}
	return nil
}

func (p *Processor) paymentCaptured(ctx context.Context, log *slog.Logger, ev RazorpayEvent) error {
	pay := ev.Payload.Payment.Entity
	log = log.With(slog.String("payment_id", pay.ID))

	done, err := p.store.HasProcessedPayment(ctx, pay.ID, ev.Event)
	if err != nil {
		return fmt.Errorf("failed to check payment idempotency: %w", err)
	}
	if done {
		log.Info("Payment already processed")
		return nil
	}

	userID := pay.Notes["clerk_user_id"]
	credits := pay.Notes.Int("credits")
	if userID == "" || credits <= 0 {
		log.Info("Payment has no user or credits in notes, skipping")
		return nil
	}

	if _, err := p.store.GetUser(ctx, userID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Warn("User not found for payment", slog.String("user_id", userID))
			return nil
		}
		return fmt.Errorf("failed to get user: %w", err)
	}

	plan := pay.Notes["plan_type"]
	if plan == "" {
		plan = DetectPlanType(pay.Notes["plan_id"])
	}
	status := "active"
	upd := &model.SubscriptionUpdate{Status: &status, Plan: &plan}
	if c := pay.Notes["customer_id"]; c != "" {
		upd.CustomerID = &c
	}
	if s := pay.Notes["subscription_id"]; s != "" {
		upd.ID = &s
	}

	balance, err := p.store.AwardCredits(ctx, model.LedgerEntry{
		UserID:      userID,
		Amount:      credits,
		Type:        domain.TxSubscriptionBonus,
		Status:      domain.TxStatusSuccess,
		Description: fmt.Sprintf("Payment captured: +%d credits (%s)", credits, plan),
		Metadata: map[string]any{
			"razorpay_id":    pay.ID,
			"event_type":     ev.Event,
			"plan_type":      plan,
			"payment_amount": pay.Amount,
		},
	}, upd)
	if err != nil {
		return fmt.Errorf("failed to award payment credits: %w", err)
	}

	log.Info("Payment credits delivered",
		slog.String("user_id", userID),
		slog.Int("credits", credits),
		slog.Int("balance", balance),
	)
	return nil
}

func (p *Processor) subscriptionActivated(ctx context.Context, log *slog.Logger, sub Subscription) error {
	user, err := p.resolveUser(ctx, sub.CustomerID)
	if err != nil || user == nil {
		return err
	}

	status := "active"
	plan := DetectPlanType(sub.PlanID)
	err = p.store.UpdateUserSubscription(ctx, user.ClerkUserID, model.SubscriptionUpdate{
		Status:     &status,
		Plan:       &plan,
		ID:         &sub.ID,
		CustomerID: &sub.CustomerID,
		Start:      unixTime(sub.StartAt),
		End:        unixTime(sub.EndAt),
	})
	if err != nil {
		return fmt.Errorf("failed to activate subscription: %w", err)
	}

	log.Info("Subscription activated",
		slog.String("subscription_id", sub.ID),
		slog.String("user_id", user.ClerkUserID),
	)
	return nil
}

func (p *Processor) subscriptionCharged(ctx context.Context, log *slog.Logger, ev RazorpayEvent) error {
	sub := ev.Payload.Subscription.Entity
	key := fmt.Sprintf("%s_charged_%d", sub.ID, sub.PaidCount)
	log = log.With(slog.String("subscription_id", sub.ID), slog.Int("paid_count", sub.PaidCount))

	done, err := p.store.HasProcessedPayment(ctx, key, ev.Event)
	if err != nil {
		return fmt.Errorf("failed to check charge idempotency: %w", err)
	}
	if done {
		log.Info("Charge already processed")
		return nil
	}

	if sub.EndAt > 0 && time.Unix(sub.EndAt, 0).Before(p.now()) {
		log.Warn("Subscription end date has passed, skipping credit award")
		return nil
	}

	user, err := p.resolveUser(ctx, sub.CustomerID)
	if err != nil || user == nil {
		return err
	}

	if s := deref(user.SubscriptionStatus); s == "cancelled" || s == "expired" {
		log.Warn("Charge for inactive subscription, skipping credit award",
			slog.String("user_id", user.ClerkUserID),
			slog.String("subscription_status", s),
		)
		return nil
	}

	credits, source := sub.Notes.Int("credits"), "notes.credits"
	if credits <= 0 {
		credits, source = PlanCredits[sub.PlanID], "plan"
	}
	if credits <= 0 {
		log.Warn("Unknown plan, no credits to award", slog.String("plan_id", sub.PlanID))
		return nil
	}

	status := "active"
	plan := DetectPlanType(sub.PlanID)
	balance, err := p.store.AwardCredits(ctx, model.LedgerEntry{
		UserID:      user.ClerkUserID,
		Amount:      credits,
		Type:        domain.TxSubscriptionBonus,
		Status:      domain.TxStatusSuccess,
		Description: fmt.Sprintf("Subscription charged (cycle #%d): +%d credits (%s)", sub.PaidCount, credits, plan),
		Metadata: map[string]any{
			"razorpay_id":     key,
			"event_type":      ev.Event,
			"plan_id":         sub.PlanID,
			"plan_type":       plan,
			"subscription_id": sub.ID,
			"credit_source":   source,
			"paid_count":      sub.PaidCount,
		},
	}, &model.SubscriptionUpdate{
		Status:     &status,
		Plan:       &plan,
		ID:         &sub.ID,
		CustomerID: &sub.CustomerID,
		Start:      unixTime(sub.StartAt),
		End:        unixTime(sub.EndAt),
	})
	if err != nil {
		return fmt.Errorf("failed to award subscription credits: %w", err)
	}

	log.Info("Subscription credits delivered",
		slog.String("user_id", user.ClerkUserID),
		slog.Int("credits", credits),
		slog.Int("balance", balance),
	)
	return nil
}

func (p *Processor) setStatus(ctx context.Context, log *slog.Logger, sub Subscription, status string) error {
	n, err := p.store.UpdateSubscriptionByID(ctx, sub.ID, model.SubscriptionUpdate{Status: &status})
	if err != nil {
		return fmt.Errorf("failed to set subscription %s to %s: %w", sub.ID, status, err)
	}
	log.Info("Subscription status updated",
		slog.String("subscription_id", sub.ID),
		slog.String("status", status),
		slog.Int64("users", n),
	)
	return nil
}

func (p *Processor) resolveUser(ctx context.Context, customerID string) (*model.User, error) {
	user, err := p.store.FindUserByRazorpayCustomer(ctx, customerID)
	if errors.Is(err, domain.ErrNotFound) {
		p.logger.Warn("User not found for customer", slog.String("customer_id", customerID))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve customer: %w", err)
	}
	return user, nil
}

// HandleClerk syncs users from identity-provider events
func (p *Processor) HandleClerk(ctx context.Context, ev ClerkEvent) error {
	switch ev.Type {
	case "user.created", "user.updated":
		u := ev.Data
		err := p.store.UpsertUser(ctx, model.UserUpsert{
			ClerkUserID: u.ID,
			Username:    u.DisplayUsername(),
			Email:       u.PrimaryEmail(),
			FirstName:   u.FirstName,
			LastName:    u.LastName,
			AvatarURL:   u.ImageURL,
		})
		if err != nil {
			return fmt.Errorf("failed to sync user: %w", err)
		}
		p.logger.Info("User synced", slog.String("user_id", u.ID), slog.String("event", ev.Type))

	case "user.deleted":
		if err := p.store.DeleteUser(ctx, ev.Data.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("failed to delete user: %w", err)
		}
		p.logger.Info("User deleted", slog.String("user_id", ev.Data.ID))

	default:
		p.logger.Debug("Ignoring clerk event", slog.String("event", ev.Type))
	}
	return nil
}

func unixTime(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
