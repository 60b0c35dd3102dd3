/**
 * @description
 * Event payloads published to the message broker so the calling workers can
 * react to store connections and subscription changes.
 */
package domain

import "time"

// Routing keys for published events.
const (
	RoutingKeyStoreConnected      = "store.connected"
	RoutingKeySubscriptionUpdated = "subscription.updated"
)

// StoreConnectedEvent is published after a StoreConnection has been saved.
type StoreConnectedEvent struct {
	EventID     string    `json:"event_id"`
	UserID      string    `json:"user_id"`
	StoreDomain string    `json:"store_domain"`
	Source      string    `json:"source"` // "oauth" or "manual"
	ConnectedAt time.Time `json:"connected_at"`
}

// SubscriptionUpdatedEvent is published after a SubscriptionRecord has been reconciled.
type SubscriptionUpdatedEvent struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	Plan       string    `json:"plan"`
	CallsLimit int       `json:"calls_limit"`
	Subscribed bool      `json:"subscribed"`
	OccurredAt time.Time `json:"occurred_at"`
}
