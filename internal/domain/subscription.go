/**
 * @description
 * This file defines the billing domain models: the fixed plan catalogue used to
 * build checkout sessions and the SubscriptionRecord persisted per user.
 */
package domain

import (
	"sort"
	"time"
)

// SetupFeeCents is the one-time setup charge added to every checkout, in cents.
const SetupFeeCents int64 = 2000

// Currency used for every inline price.
const Currency = "usd"

// Plan describes one subscription tier. Amounts are integer minor units (cents).
type Plan struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	AmountCents int64  `json:"amount_cents"`
	Calls       int    `json:"calls"`
}

var plans = map[string]Plan{
	"basic":  {ID: "basic", Name: "Basic Plan - 45 calls/month", AmountCents: 2899, Calls: 45},
	"growth": {ID: "growth", Name: "Growth Plan - 80 calls/month", AmountCents: 6800, Calls: 80},
	"pro":    {ID: "pro", Name: "Pro Plan - 100+ calls/month", AmountCents: 19000, Calls: 100},
}

// LookupPlan returns the plan for id and whether it exists.
func LookupPlan(id string) (Plan, bool) {
	p, ok := plans[id]
	return p, ok
}

// Plans returns the catalogue ordered by price.
func Plans() []Plan {
	out := make([]Plan, 0, len(plans))
	for _, p := range plans {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AmountCents < out[j].AmountCents })
	return out
}

// SubscriptionRecord maps to a row in the subscribers table.
type SubscriptionRecord struct {
	ID               string     `json:"id,omitempty"`
	UserID           string     `json:"user_id"`
	Email            string     `json:"email,omitempty"`
	Plan             string     `json:"plan,omitempty"`
	CallsUsed        int        `json:"calls_used"`
	CallsLimit       int        `json:"calls_limit"`
	Subscribed       bool       `json:"subscribed"`
	StripeCustomerID string     `json:"-"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// CallsRemaining never goes negative even if the counter overshot the limit.
func (s SubscriptionRecord) CallsRemaining() int {
	remaining := s.CallsLimit - s.CallsUsed
	if remaining < 0 {
		return 0
	}
	return remaining
}
