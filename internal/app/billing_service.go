/**
 * @description
 * This file contains the billing business logic: turning a plan selection into
 * a Stripe-hosted checkout session and reconciling the resulting subscription
 * into the subscribers table.
 */
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v80"

	"github.com/razajohri/lunalink-real/internal/domain"
	"github.com/razajohri/lunalink-real/internal/store"
)

var (
	ErrStripeNotConfigured  = errors.New("STRIPE_SECRET_KEY is not set")
	ErrWebhookNotConfigured = errors.New("STRIPE_WEBHOOK_SECRET is not set")
	ErrUnauthenticated      = errors.New("User not authenticated or email not available")
	ErrPlanRequired         = errors.New("Plan is required")
	ErrInvalidPlan          = errors.New("Invalid plan selected")
	ErrNoCheckoutURL        = errors.New("checkout session has no url")
	ErrInvalidWebhook       = errors.New("invalid webhook")
)

// RateLimitError is returned when a caller exceeded the checkout rate limit.
type RateLimitError struct {
	RetryAfterSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many checkout attempts, retry in %ds", e.RetryAfterSeconds)
}

func retryAfterSeconds(wait time.Duration) int {
	secs := int(math.Ceil(wait.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// BillingProvider is the subset of the Stripe client the service needs.
type BillingProvider interface {
	FindCustomerIDByEmail(ctx context.Context, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	FindActiveSubscription(ctx context.Context, customerID string) (*stripe.Subscription, error)
}

// SubscriberRepository defines the persistence operations for subscription records.
type SubscriberRepository interface {
	GetSubscriberByUserID(ctx context.Context, userID string) (*domain.SubscriptionRecord, error)
	UpsertSubscriber(ctx context.Context, sub *domain.SubscriptionRecord) (*domain.SubscriptionRecord, error)
	MarkUnsubscribedByCustomerID(ctx context.Context, customerID string) (*domain.SubscriptionRecord, error)
}

// RateLimiter gates checkout attempts per user. A positive wait rejects the attempt.
type RateLimiter interface {
	Allow(ctx context.Context, userID string) (wait time.Duration, err error)
}

// WebhookParser verifies and decodes a Stripe webhook payload.
type WebhookParser func(payload []byte, signatureHeader, secret string) (stripe.Event, error)

// BillingOptions configures webhook verification.
type BillingOptions struct {
	WebhookSecret string
	WebhookParser WebhookParser
}

// CheckoutRequest carries everything needed to create one checkout session.
type CheckoutRequest struct {
	UserID         string
	Email          string
	Plan           string
	Origin         string
	IdempotencyKey string
}

// BillingService provides the business logic for checkout and subscriptions.
type BillingService struct {
	provider  BillingProvider
	repo      SubscriberRepository
	publisher EventPublisher
	limiter   RateLimiter
	logger    *slog.Logger
	opts      BillingOptions
	now       func() time.Time
}

// NewBillingService creates a new billing service. provider may be nil when no
// Stripe key is configured; every Stripe-backed call then fails with
// ErrStripeNotConfigured.
func NewBillingService(provider BillingProvider, repo SubscriberRepository, publisher EventPublisher, limiter RateLimiter, logger *slog.Logger, opts BillingOptions) *BillingService {
	return &BillingService{
		provider:  provider,
		repo:      repo,
		publisher: publisher,
		limiter:   limiter,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// CreateCheckout validates the plan and returns the hosted checkout URL.
func (s *BillingService) CreateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	s.logger.Info("create checkout started", "user_id", req.UserID, "plan", req.Plan)

	if s.provider == nil {
		return "", ErrStripeNotConfigured
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.Email) == "" {
		return "", ErrUnauthenticated
	}
	if strings.TrimSpace(req.Plan) == "" {
		return "", ErrPlanRequired
	}
	plan, ok := domain.LookupPlan(req.Plan)
	if !ok {
		return "", ErrInvalidPlan
	}

	if s.limiter != nil {
		wait, err := s.limiter.Allow(ctx, req.UserID)
		if err != nil {
			s.logger.Warn("checkout rate limiter unavailable", "error", err)
		} else if wait > 0 {
			return "", &RateLimitError{RetryAfterSeconds: retryAfterSeconds(wait)}
		}
	}

	customerID, err := s.provider.FindCustomerIDByEmail(ctx, req.Email)
	if err != nil {
		return "", err
	}
	if customerID != "" {
		s.logger.Info("existing customer found", "customer_id", customerID)
	} else {
		s.logger.Info("no existing customer, checkout will create one")
	}

	params := buildCheckoutSessionParams(plan, req.UserID, req.Email, customerID, req.Origin)
	params.SetIdempotencyKey(s.idempotencyKey(req))

	sess, err := s.provider.CreateCheckoutSession(ctx, params)
	if err != nil {
		return "", err
	}
	if sess == nil || sess.URL == "" {
		return "", ErrNoCheckoutURL
	}

	s.logger.Info("checkout session created", "session_id", sess.ID, "user_id", req.UserID)
	return sess.URL, nil
}

// idempotencyKey makes duplicate submissions of the same checkout collapse onto
// one Stripe session. A client-supplied key is scoped to the user and plan; the
// fallback key is stable for one minute.
func (s *BillingService) idempotencyKey(req CheckoutRequest) string {
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		return fmt.Sprintf("checkout-%s-%s-%s", req.UserID, req.Plan, key)
	}
	bucket := s.now().UTC().Truncate(time.Minute).Unix()
	name := fmt.Sprintf("%s|%s|%s|%d", req.UserID, req.Plan, req.Origin, bucket)
	return "checkout-" + uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func buildCheckoutSessionParams(plan domain.Plan, userID, email, customerID, origin string) *stripe.CheckoutSessionParams {
	metadata := map[string]string{
		"user_id":     userID,
		"plan":        plan.ID,
		"calls_limit": strconv.Itoa(plan.Calls),
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(domain.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(plan.Name),
						Description: stripe.String(fmt.Sprintf("LunaLink AI %s subscription with %d calls per month", plan.ID, plan.Calls)),
					},
					UnitAmount: stripe.Int64(plan.AmountCents),
					Recurring: &stripe.CheckoutSessionLineItemPriceDataRecurringParams{
						Interval: stripe.String(string(stripe.PriceRecurringIntervalMonth)),
					},
				},
				Quantity: stripe.Int64(1),
			},
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(domain.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String("One-Time Setup Fee"),
						Description: stripe.String("One-time setup charge for LunaLink AI subscription"),
					},
					UnitAmount: stripe.Int64(domain.SetupFeeCents),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(fmt.Sprintf("%s/payment-success?plan=%s", origin, plan.ID)),
		CancelURL:  stripe.String(fmt.Sprintf("%s/billing?canceled=true", origin)),
		Metadata:   metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: metadata,
		},
	}

	if customerID != "" {
		params.Customer = stripe.String(customerID)
	} else {
		params.CustomerEmail = stripe.String(email)
	}
	return params
}

// GetSubscription returns the user's record, or an unsubscribed default.
func (s *BillingService) GetSubscription(ctx context.Context, userID string) (*domain.SubscriptionRecord, error) {
	sub, err := s.repo.GetSubscriberByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrSubscriberNotFound) {
			return &domain.SubscriptionRecord{UserID: userID}, nil
		}
		return nil, err
	}
	return sub, nil
}

// CheckSubscription reconciles the user's Stripe state into the subscribers table.
// It is called by the dashboard after returning from checkout.
func (s *BillingService) CheckSubscription(ctx context.Context, userID, email string) (*domain.SubscriptionRecord, error) {
	if s.provider == nil {
		return nil, ErrStripeNotConfigured
	}
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(email) == "" {
		return nil, ErrUnauthenticated
	}

	record := &domain.SubscriptionRecord{UserID: userID, Email: email}

	customerID, err := s.provider.FindCustomerIDByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if customerID != "" {
		record.StripeCustomerID = customerID
		sub, err := s.provider.FindActiveSubscription(ctx, customerID)
		if err != nil {
			return nil, err
		}
		if sub != nil {
			record.Subscribed = true
			record.Plan, record.CallsLimit = planFromMetadata(sub.Metadata)
		}
	}

	saved, err := s.repo.UpsertSubscriber(ctx, record)
	if err != nil {
		return nil, fmt.Errorf("failed to save subscriber: %w", err)
	}
	s.publishUpdated(ctx, saved)
	return saved, nil
}

// HandleWebhook verifies and applies one Stripe event.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	if s.opts.WebhookSecret == "" || s.opts.WebhookParser == nil {
		return ErrWebhookNotConfigured
	}

	event, err := s.opts.WebhookParser(payload, signatureHeader, s.opts.WebhookSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhook, err)
	}
	if event.Data == nil {
		return nil
	}

	switch string(event.Type) {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("failed to decode checkout session: %w", err)
		}
		return s.applyCompletedCheckout(ctx, &sess)

	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("failed to decode subscription: %w", err)
		}
		if sub.Customer == nil || sub.Customer.ID == "" {
			return nil
		}
		saved, err := s.repo.MarkUnsubscribedByCustomerID(ctx, sub.Customer.ID)
		if err != nil {
			if errors.Is(err, store.ErrSubscriberNotFound) {
				s.logger.Warn("subscription deleted for unknown customer", "customer_id", sub.Customer.ID)
				return nil
			}
			return err
		}
		s.publishUpdated(ctx, saved)
		return nil

	default:
		s.logger.Debug("ignoring stripe event", "type", event.Type)
		return nil
	}
}

func (s *BillingService) applyCompletedCheckout(ctx context.Context, sess *stripe.CheckoutSession) error {
	userID := sess.Metadata["user_id"]
	if userID == "" {
		s.logger.Warn("checkout session without user metadata", "session_id", sess.ID)
		return nil
	}

	record := &domain.SubscriptionRecord{
		UserID:     userID,
		Email:      sess.CustomerEmail,
		Subscribed: true,
	}
	record.Plan, record.CallsLimit = planFromMetadata(sess.Metadata)
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		record.Email = sess.CustomerDetails.Email
	}
	if sess.Customer != nil {
		record.StripeCustomerID = sess.Customer.ID
	}

	saved, err := s.repo.UpsertSubscriber(ctx, record)
	if err != nil {
		return fmt.Errorf("failed to save subscriber: %w", err)
	}
	s.logger.Info("subscription reconciled from checkout", "user_id", userID, "plan", saved.Plan)
	s.publishUpdated(ctx, saved)
	return nil
}

// planFromMetadata prefers the calls_limit stamped at checkout time and falls
// back to the catalogue.
func planFromMetadata(metadata map[string]string) (string, int) {
	planID := metadata["plan"]
	if limit, err := strconv.Atoi(metadata["calls_limit"]); err == nil && limit >= 0 {
		return planID, limit
	}
	if plan, ok := domain.LookupPlan(planID); ok {
		return planID, plan.Calls
	}
	return planID, 0
}

func (s *BillingService) publishUpdated(ctx context.Context, sub *domain.SubscriptionRecord) {
	if s.publisher == nil || sub == nil {
		return
	}
	event := domain.SubscriptionUpdatedEvent{
		EventID:    uuid.NewString(),
		UserID:     sub.UserID,
		Plan:       sub.Plan,
		CallsLimit: sub.CallsLimit,
		Subscribed: sub.Subscribed,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, domain.RoutingKeySubscriptionUpdated, event); err != nil {
		s.logger.Warn("failed to publish subscription updated event", "user_id", sub.UserID, "error", err)
	}
}
