package app

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const checkoutLimiterPrefix = "lunalink:checkout_attempts"

// checkoutWindowScript counts an attempt and returns 0 while the caller is under
// the limit, otherwise the milliseconds left in the window.
var checkoutWindowScript = redis.NewScript(`
local attempts = redis.call("INCR", KEYS[1])
if attempts == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
if attempts <= tonumber(ARGV[2]) then
  return 0
end
local remaining = redis.call("PTTL", KEYS[1])
if remaining <= 0 then
  remaining = tonumber(ARGV[1])
end
return remaining
`)

// CheckoutLimiter caps how many checkout sessions one user may open per window.
// Counters live in Redis so every API replica shares them.
type CheckoutLimiter struct {
	client redis.UniversalClient
	limit  int
	window time.Duration
}

// NewCheckoutLimiter allows limit attempts per user per window. Windows shorter
// than a second are rounded up to one second.
func NewCheckoutLimiter(client redis.UniversalClient, limit int, window time.Duration) *CheckoutLimiter {
	if window < time.Second {
		window = time.Second
	}
	return &CheckoutLimiter{client: client, limit: limit, window: window}
}

// Allow records one attempt for userID. A positive wait means the attempt is
// over the limit and the user may retry after it.
func (l *CheckoutLimiter) Allow(ctx context.Context, userID string) (time.Duration, error) {
	userID = strings.TrimSpace(userID)
	if l == nil || l.client == nil || l.limit <= 0 || userID == "" {
		return 0, nil
	}

	remainingMs, err := checkoutWindowScript.Run(ctx, l.client, []string{checkoutAttemptsKey(userID)}, l.window.Milliseconds(), l.limit).Int64()
	if err != nil {
		return 0, err
	}
	return time.Duration(remainingMs) * time.Millisecond, nil
}

func checkoutAttemptsKey(userID string) string {
	return checkoutLimiterPrefix + ":" + userID
}
