package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/razajohri/lunalink-real/internal/domain"
)

const subscriberColumns = `id, user_id, COALESCE(email, ''), COALESCE(plan, ''), calls_used, calls_limit, subscribed, COALESCE(stripe_customer_id, ''), updated_at`

func scanSubscriber(row pgx.Row) (*domain.SubscriptionRecord, error) {
	var sub domain.SubscriptionRecord
	err := row.Scan(
		&sub.ID,
		&sub.UserID,
		&sub.Email,
		&sub.Plan,
		&sub.CallsUsed,
		&sub.CallsLimit,
		&sub.Subscribed,
		&sub.StripeCustomerID,
		&sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSubscriberNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// GetSubscriberByUserID retrieves the subscription record for a user.
func (r *Repository) GetSubscriberByUserID(ctx context.Context, userID string) (*domain.SubscriptionRecord, error) {
	query := `SELECT ` + subscriberColumns + ` FROM subscribers WHERE user_id = $1`
	return scanSubscriber(r.db.QueryRow(ctx, query, userID))
}

// UpsertSubscriber creates or updates the record for sub.UserID.
// calls_used is left untouched on conflict; only the usage job and the metering
// endpoint change it. An unsubscribed record keeps no plan and a zero limit.
func (r *Repository) UpsertSubscriber(ctx context.Context, sub *domain.SubscriptionRecord) (*domain.SubscriptionRecord, error) {
	query := `
        INSERT INTO subscribers (user_id, email, plan, calls_used, calls_limit, subscribed, stripe_customer_id, updated_at)
        VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), 0, $4, $5, NULLIF($6, ''), NOW())
        ON CONFLICT (user_id) DO UPDATE SET
            email = COALESCE(EXCLUDED.email, subscribers.email),
            plan = CASE WHEN EXCLUDED.subscribed THEN COALESCE(EXCLUDED.plan, subscribers.plan) END,
            calls_limit = CASE WHEN EXCLUDED.subscribed THEN EXCLUDED.calls_limit ELSE 0 END,
            subscribed = EXCLUDED.subscribed,
            stripe_customer_id = COALESCE(EXCLUDED.stripe_customer_id, subscribers.stripe_customer_id),
            updated_at = NOW()
        RETURNING ` + subscriberColumns
	return scanSubscriber(r.db.QueryRow(ctx, query,
		sub.UserID,
		sub.Email,
		sub.Plan,
		sub.CallsLimit,
		sub.Subscribed,
		sub.StripeCustomerID,
	))
}

// IncrementCallsUsed adds calls to the counter only while the result stays within
// calls_limit and the user is subscribed.
func (r *Repository) IncrementCallsUsed(ctx context.Context, userID string, calls int) (*domain.SubscriptionRecord, error) {
	query := `
        UPDATE subscribers
        SET calls_used = calls_used + $2, updated_at = NOW()
        WHERE user_id = $1 AND subscribed AND calls_used + $2 <= calls_limit
        RETURNING ` + subscriberColumns
	sub, err := scanSubscriber(r.db.QueryRow(ctx, query, userID, calls))
	if !errors.Is(err, ErrSubscriberNotFound) {
		return sub, err
	}

	// No row updated: tell "unknown user" apart from "limit reached".
	if _, getErr := r.GetSubscriberByUserID(ctx, userID); getErr != nil {
		return nil, getErr
	}
	return nil, ErrCallLimitReached
}

// ResetAllCallsUsed zeroes every usage counter and returns how many rows changed.
func (r *Repository) ResetAllCallsUsed(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `UPDATE subscribers SET calls_used = 0, updated_at = NOW() WHERE calls_used <> 0`)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// MarkUnsubscribedByCustomerID flips subscribed off for the Stripe customer's record.
func (r *Repository) MarkUnsubscribedByCustomerID(ctx context.Context, customerID string) (*domain.SubscriptionRecord, error) {
	query := `
        UPDATE subscribers
        SET subscribed = FALSE, plan = NULL, calls_limit = 0, updated_at = NOW()
        WHERE stripe_customer_id = $1
        RETURNING ` + subscriberColumns
	return scanSubscriber(r.db.QueryRow(ctx, query, customerID))
}
