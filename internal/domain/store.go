/**
 * @description
 * This file defines the StoreConnection domain model: one merchant's link to
 * their Shopify storefront and the Admin API credential used to reach it.
 */
package domain

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// ShopifyDomainSuffix is the canonical suffix of every storefront domain we persist.
const ShopifyDomainSuffix = ".myshopify.com"

// ErrInvalidShopDomain is returned when a storefront domain cannot be normalized.
var ErrInvalidShopDomain = errors.New("invalid shop domain")

var shopNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)

// StoreConnection maps to a row in the shopify_stores table.
// There is at most one connection per user.
type StoreConnection struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	StoreDomain string    `json:"store_domain"`
	AccessToken string    `json:"-"`
	ConnectedAt time.Time `json:"connected_at"`
}

// StoreStatus is the API view of a user's connection; the token never leaves the server.
type StoreStatus struct {
	Connected   bool       `json:"connected"`
	StoreDomain string     `json:"store_domain,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
}

// NormalizeShopDomain turns user input such as "https://MyStore.myshopify.com/" or
// "mystore" into the canonical "mystore.myshopify.com" form.
func NormalizeShopDomain(raw string) (string, error) {
	clean := strings.ToLower(strings.TrimSpace(raw))
	clean = strings.TrimPrefix(clean, "https://")
	clean = strings.TrimPrefix(clean, "http://")
	clean = strings.TrimRight(clean, "/")

	name := strings.TrimSuffix(clean, ShopifyDomainSuffix)
	if name == "" || !shopNamePattern.MatchString(name) {
		return "", ErrInvalidShopDomain
	}
	return name + ShopifyDomainSuffix, nil
}
