package app

import (
	"context"
	"errors"
	"strings"

	"github.com/razajohri/lunalink-real/internal/domain"
)

var ErrInvalidUsage = errors.New("user_id and a positive calls count are required")

// UsageRepository defines the counter operations on subscription records.
type UsageRepository interface {
	IncrementCallsUsed(ctx context.Context, userID string, calls int) (*domain.SubscriptionRecord, error)
	ResetAllCallsUsed(ctx context.Context) (int64, error)
}

// UsageService meters calls placed on behalf of a subscriber.
type UsageService struct {
	repo UsageRepository
}

// NewUsageService creates a new usage service.
func NewUsageService(repo UsageRepository) *UsageService {
	return &UsageService{repo: repo}
}

// RecordCalls adds calls to the user's counter. It fails with
// store.ErrCallLimitReached instead of letting calls_used pass calls_limit.
func (s *UsageService) RecordCalls(ctx context.Context, userID string, calls int) (*domain.SubscriptionRecord, error) {
	if strings.TrimSpace(userID) == "" || calls <= 0 {
		return nil, ErrInvalidUsage
	}
	return s.repo.IncrementCallsUsed(ctx, userID, calls)
}

// ResetMonthlyUsage zeroes all counters.
func (s *UsageService) ResetMonthlyUsage(ctx context.Context) (int64, error) {
	return s.repo.ResetAllCallsUsed(ctx)
}
