/**
 * @description
 * Thin wrapper over stripe-go for the calls the billing service needs:
 * customer lookup by email, checkout session creation, active subscription
 * lookup and webhook verification. Each Client owns its own backend so the
 * secret key and retry policy are passed in rather than set globally.
 */
package stripeclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/client"
	"github.com/stripe/stripe-go/v80/webhook"
)

// Client is a Stripe API client bound to one secret key.
type Client struct {
	api *client.API
}

// NewClient creates a client that retries network failures up to maxRetries times.
// Stripe replays idempotent POSTs safely as long as the caller set an idempotency key.
func NewClient(secretKey string, maxRetries int64) *Client {
	return newClient(secretKey, maxRetries, "")
}

// NewClientWithURL is NewClient pointed at a different API host.
func NewClientWithURL(secretKey string, maxRetries int64, apiURL string) *Client {
	return newClient(secretKey, maxRetries, apiURL)
}

func newClient(secretKey string, maxRetries int64, apiURL string) *Client {
	cfg := &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(maxRetries),
	}
	if apiURL != "" {
		cfg.URL = stripe.String(strings.TrimSuffix(apiURL, "/"))
	}

	backends := &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	}
	return &Client{api: client.New(secretKey, backends)}
}

// FindCustomerIDByEmail returns the id of the first customer with exactly this email,
// or "" when none exists.
func (c *Client) FindCustomerIDByEmail(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Limit = stripe.Int64(1)
	params.Context = ctx

	iter := c.api.Customers.List(params)
	for iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("failed to list customers: %w", err)
	}
	return "", nil
}

// CreateCheckoutSession creates a hosted checkout session.
func (c *Client) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	params.Context = ctx
	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// FindActiveSubscription returns the customer's first active subscription, or nil.
func (c *Client) FindActiveSubscription(ctx context.Context, customerID string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Limit = stripe.Int64(1)
	params.Context = ctx

	iter := c.api.Subscriptions.List(params)
	for iter.Next() {
		return iter.Subscription(), nil
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return nil, nil
}

// ParseWebhookEvent verifies the Stripe-Signature header and decodes the event.
func ParseWebhookEvent(payload []byte, signatureHeader, secret string) (stripe.Event, error) {
	return webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
}
