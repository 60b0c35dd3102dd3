package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/razajohri/lunalink-real/internal/domain"
	"github.com/razajohri/lunalink-real/internal/security"
)

// newTestRepository connects to LUNALINK_TEST_DATABASE_URL and skips when it is unset.
func newTestRepository(t *testing.T) (*Repository, string) {
	t.Helper()

	databaseURL := os.Getenv("LUNALINK_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("LUNALINK_TEST_DATABASE_URL not set; skipping postgres repository test")
	}

	ctx := context.Background()
	pool, err := NewPool(ctx, databaseURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(pool.Close)

	migrator, err := NewMigrator(pool, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to build migrator: %v", err)
	}
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	cipher, err := security.NewTokenCipher("MDEyMzQ1Njc4OWFiY2RlZjAxMjM0NTY3ODlhYmNkZWY=")
	if err != nil {
		t.Fatalf("failed to build cipher: %v", err)
	}

	userID := "test-" + uuid.NewString()
	t.Cleanup(func() {
		pool.Exec(context.Background(), `DELETE FROM shopify_stores WHERE user_id = $1`, userID)
		pool.Exec(context.Background(), `DELETE FROM subscribers WHERE user_id = $1`, userID)
	})

	return NewRepository(pool, cipher), userID
}

func TestStoreConnectionLastWriteWins(t *testing.T) {
	repo, userID := newTestRepository(t)
	ctx := context.Background()

	first, err := repo.UpsertStoreConnection(ctx, &domain.StoreConnection{
		UserID:      userID,
		StoreDomain: "first.myshopify.com",
		AccessToken: "token-1",
		ConnectedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	second, err := repo.UpsertStoreConnection(ctx, &domain.StoreConnection{
		UserID:      userID,
		StoreDomain: "second.myshopify.com",
		AccessToken: "token-2",
		ConnectedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected the same row to be updated, got %s and %s", first.ID, second.ID)
	}

	got, err := repo.GetStoreConnectionByUserID(ctx, userID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.StoreDomain != "second.myshopify.com" || got.AccessToken != "token-2" {
		t.Fatalf("expected latest write, got %+v", got)
	}

	var stored string
	if err := repo.db.QueryRow(ctx, `SELECT access_token FROM shopify_stores WHERE user_id = $1`, userID).Scan(&stored); err != nil {
		t.Fatalf("raw select failed: %v", err)
	}
	if stored == "token-2" {
		t.Fatal("expected access token to be encrypted at rest")
	}
}

func TestReplaceAndDeleteStoreConnection(t *testing.T) {
	repo, userID := newTestRepository(t)
	ctx := context.Background()

	if _, err := repo.ReplaceStoreConnection(ctx, &domain.StoreConnection{
		UserID:      userID,
		StoreDomain: "manual.myshopify.com",
		AccessToken: "shpat_manual",
		ConnectedAt: time.Now().UTC(),
	}); err != nil {
		t.Fatalf("replace failed: %v", err)
	}

	if err := repo.DeleteStoreConnection(ctx, userID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.GetStoreConnectionByUserID(ctx, userID); !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound, got %v", err)
	}
	if err := repo.DeleteStoreConnection(ctx, userID); !errors.Is(err, ErrStoreNotFound) {
		t.Fatalf("expected ErrStoreNotFound on second delete, got %v", err)
	}
}

func TestIncrementCallsUsed(t *testing.T) {
	repo, userID := newTestRepository(t)
	ctx := context.Background()

	if _, err := repo.IncrementCallsUsed(ctx, userID, 1); !errors.Is(err, ErrSubscriberNotFound) {
		t.Fatalf("expected ErrSubscriberNotFound, got %v", err)
	}

	if _, err := repo.UpsertSubscriber(ctx, &domain.SubscriptionRecord{
		UserID:     userID,
		Email:      "a@x.com",
		Plan:       "basic",
		CallsLimit: 2,
		Subscribed: true,
	}); err != nil {
		t.Fatalf("upsert subscriber failed: %v", err)
	}

	sub, err := repo.IncrementCallsUsed(ctx, userID, 2)
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if sub.CallsUsed != 2 {
		t.Fatalf("expected 2 calls used, got %d", sub.CallsUsed)
	}

	if _, err := repo.IncrementCallsUsed(ctx, userID, 1); !errors.Is(err, ErrCallLimitReached) {
		t.Fatalf("expected ErrCallLimitReached, got %v", err)
	}

	// Re-reconciling the subscription must not reset the counter.
	sub, err = repo.UpsertSubscriber(ctx, &domain.SubscriptionRecord{UserID: userID, CallsLimit: 2, Subscribed: true})
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}
	if sub.CallsUsed != 2 || sub.Email != "a@x.com" || sub.Plan != "basic" {
		t.Fatalf("expected counter and profile preserved, got %+v", sub)
	}
}

func TestLapsedSubscriberHasNoPlan(t *testing.T) {
	repo, userID := newTestRepository(t)
	ctx := context.Background()

	if _, err := repo.UpsertSubscriber(ctx, &domain.SubscriptionRecord{
		UserID:           userID,
		Email:            "a@x.com",
		Plan:             "growth",
		CallsLimit:       80,
		Subscribed:       true,
		StripeCustomerID: "cus_" + userID,
	}); err != nil {
		t.Fatalf("upsert subscriber failed: %v", err)
	}

	sub, err := repo.UpsertSubscriber(ctx, &domain.SubscriptionRecord{UserID: userID, Email: "a@x.com", Subscribed: false})
	if err != nil {
		t.Fatalf("lapse upsert failed: %v", err)
	}
	if sub.Subscribed || sub.Plan != "" || sub.CallsLimit != 0 {
		t.Fatalf("expected no plan and zero limit, got %+v", sub)
	}

	if _, err := repo.UpsertSubscriber(ctx, &domain.SubscriptionRecord{UserID: userID, Plan: "pro", CallsLimit: 100, Subscribed: true}); err != nil {
		t.Fatalf("resubscribe failed: %v", err)
	}
	sub, err = repo.MarkUnsubscribedByCustomerID(ctx, "cus_"+userID)
	if err != nil {
		t.Fatalf("mark unsubscribed failed: %v", err)
	}
	if sub.Subscribed || sub.Plan != "" || sub.CallsLimit != 0 {
		t.Fatalf("expected cancelled record without plan, got %+v", sub)
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	repo, _ := newTestRepository(t)
	ctx := context.Background()

	migrator, err := NewMigrator(repo.db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("failed to build migrator: %v", err)
	}
	if err := migrator.Up(ctx); err != nil {
		t.Fatalf("expected second Up to be a no-op, got %v", err)
	}
	version, err := migrator.Version(ctx)
	if err != nil {
		t.Fatalf("failed to read version: %v", err)
	}
	if version < 1 {
		t.Fatalf("expected version >= 1, got %d", version)
	}
}
