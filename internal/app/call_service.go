/**
 * @description
 * Call log and analytics for the dashboard. Calls are read live from the voice
 * platform; when it cannot be reached a fixed demo list is served instead so the
 * panels still render.
 */
package app

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/razajohri/lunalink-real/internal/domain"
)

const (
	CallSourceLive = "live"
	CallSourceMock = "mock"

	// Share of calls counted as recovered carts in the daily histogram.
	assumedRecoveryRate = 0.7
)

// CallSource lists calls from the voice platform.
type CallSource interface {
	ListCalls(ctx context.Context, assistantID string) ([]domain.VoiceCallRecord, error)
}

// CallService builds the call log and stats views.
type CallService struct {
	source CallSource
	logger *slog.Logger
	now    func() time.Time
}

// NewCallService creates a new call service.
func NewCallService(source CallSource, logger *slog.Logger) *CallService {
	return &CallService{source: source, logger: logger, now: time.Now}
}

// ListCalls returns live calls, or the demo list when the platform is unavailable.
func (s *CallService) ListCalls(ctx context.Context, assistantID string) domain.CallList {
	if s.source != nil {
		calls, err := s.source.ListCalls(ctx, assistantID)
		if err == nil {
			return domain.CallList{Calls: calls, Source: CallSourceLive}
		}
		s.logger.Warn("error fetching calls, serving demo data", "error", err)
	}
	return domain.CallList{Calls: mockCalls(), Source: CallSourceMock}
}

// Stats aggregates the same list ListCalls would return.
func (s *CallService) Stats(ctx context.Context, assistantID string) domain.CallStats {
	return computeStats(s.ListCalls(ctx, assistantID).Calls, s.now())
}

func computeStats(calls []domain.VoiceCallRecord, now time.Time) domain.CallStats {
	completed := lo.Filter(calls, func(call domain.VoiceCallRecord, _ int) bool {
		return call.Status == domain.CallStatusCompleted
	})

	stats := domain.CallStats{
		TotalCalls:     len(calls),
		TotalCost:      lo.SumBy(calls, func(call domain.VoiceCallRecord) float64 { return call.Cost }),
		CallsLast7Days: lastSevenDays(calls, now),
	}
	if len(calls) > 0 {
		rate := float64(len(completed)) / float64(len(calls)) * 100
		stats.SuccessRate = math.Round(rate*10) / 10
	}
	if len(completed) > 0 {
		duration := lo.SumBy(completed, func(call domain.VoiceCallRecord) float64 { return call.Duration })
		stats.AverageDuration = int(math.Round(duration / float64(len(completed))))
	}
	return stats
}

func lastSevenDays(calls []domain.VoiceCallRecord, now time.Time) []domain.DailyCalls {
	days := make([]domain.DailyCalls, 0, 7)
	for i := 6; i >= 0; i-- {
		day := now.UTC().AddDate(0, 0, -i)
		prefix := day.Format("2006-01-02")

		count := lo.CountBy(calls, func(call domain.VoiceCallRecord) bool {
			return strings.HasPrefix(call.StartedAt, prefix)
		})

		days = append(days, domain.DailyCalls{
			Date:      day.Format("Jan 2"),
			Calls:     count,
			Recovered: int(math.Floor(float64(count) * assumedRecoveryRate)),
		})
	}
	return days
}

func mockCalls() []domain.VoiceCallRecord {
	return []domain.VoiceCallRecord{
		{
			ID:          "1",
			AssistantID: "cart-recovery",
			Customer:    &domain.CallCustomer{Number: "+1234567890", Name: "John Smith"},
			Status:      domain.CallStatusCompleted,
			StartedAt:   "2024-01-15T10:30:00Z",
			EndedAt:     "2024-01-15T10:32:30Z",
			Duration:    150,
			Cost:        0.0125,
			Transcript:  "Customer call transcript...",
		},
		{
			ID:          "2",
			AssistantID: "order-followup",
			Customer:    &domain.CallCustomer{Number: "+1234567891", Name: "Sarah Johnson"},
			Status:      domain.CallStatusCompleted,
			StartedAt:   "2024-01-15T11:15:00Z",
			EndedAt:     "2024-01-15T11:17:45Z",
			Duration:    165,
			Cost:        0.0138,
		},
		{
			ID:          "3",
			AssistantID: "cart-recovery",
			Customer:    &domain.CallCustomer{Number: "+1234567892", Name: "Mike Davis"},
			Status:      domain.CallStatusFailed,
			StartedAt:   "2024-01-15T12:00:00Z",
			Cost:        0.0050,
		},
	}
}
