/**
 * @description
 * This file implements the data access layer for store connections.
 * It contains the SQL for the shopify_stores table. Every write is an upsert
 * keyed by user_id, so repeating a write for the same user is idempotent and the
 * last write wins.
 */
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/razajohri/lunalink-real/internal/domain"
	"github.com/razajohri/lunalink-real/internal/security"
)

var (
	ErrStoreNotFound      = errors.New("store connection not found")
	ErrSubscriberNotFound = errors.New("subscriber not found")
	ErrCallLimitReached   = errors.New("call limit reached")
)

// Repository handles database operations for store connections and subscribers.
type Repository struct {
	db     *pgxpool.Pool
	cipher *security.TokenCipher
}

// NewRepository creates a new repository.
func NewRepository(db *pgxpool.Pool, cipher *security.TokenCipher) *Repository {
	return &Repository{db: db, cipher: cipher}
}

const upsertStoreConnectionQuery = `
    INSERT INTO shopify_stores (user_id, store_domain, access_token, connected_at)
    VALUES ($1, $2, $3, $4)
    ON CONFLICT (user_id) DO UPDATE SET
        store_domain = EXCLUDED.store_domain,
        access_token = EXCLUDED.access_token,
        connected_at = EXCLUDED.connected_at
    RETURNING id, user_id, store_domain, connected_at
`

// UpsertStoreConnection creates or overwrites the connection for conn.UserID.
func (r *Repository) UpsertStoreConnection(ctx context.Context, conn *domain.StoreConnection) (*domain.StoreConnection, error) {
	token, err := r.cipher.Encrypt(conn.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	saved := domain.StoreConnection{AccessToken: conn.AccessToken}
	err = r.db.QueryRow(ctx, upsertStoreConnectionQuery,
		conn.UserID,
		conn.StoreDomain,
		token,
		conn.ConnectedAt,
	).Scan(&saved.ID, &saved.UserID, &saved.StoreDomain, &saved.ConnectedAt)
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// ReplaceStoreConnection writes domain and token for a user inside one transaction.
// The existing row (if any) is locked first so concurrent manual connects for the
// same user serialize instead of interleaving.
func (r *Repository) ReplaceStoreConnection(ctx context.Context, conn *domain.StoreConnection) (*domain.StoreConnection, error) {
	token, err := r.cipher.Encrypt(conn.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}

	saved := domain.StoreConnection{AccessToken: conn.AccessToken}
	err = pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		var existingID string
		lockErr := tx.QueryRow(ctx,
			`SELECT id FROM shopify_stores WHERE user_id = $1 FOR UPDATE`,
			conn.UserID,
		).Scan(&existingID)
		if lockErr != nil && !errors.Is(lockErr, pgx.ErrNoRows) {
			return lockErr
		}

		return tx.QueryRow(ctx, upsertStoreConnectionQuery,
			conn.UserID,
			conn.StoreDomain,
			token,
			conn.ConnectedAt,
		).Scan(&saved.ID, &saved.UserID, &saved.StoreDomain, &saved.ConnectedAt)
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// GetStoreConnectionByUserID retrieves the connection for a user, token decrypted.
func (r *Repository) GetStoreConnectionByUserID(ctx context.Context, userID string) (*domain.StoreConnection, error) {
	var conn domain.StoreConnection
	var token string
	query := `
        SELECT id, user_id, store_domain, access_token, connected_at
        FROM shopify_stores
        WHERE user_id = $1
    `
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&conn.ID,
		&conn.UserID,
		&conn.StoreDomain,
		&token,
		&conn.ConnectedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrStoreNotFound
		}
		return nil, err
	}

	conn.AccessToken, err = r.cipher.Decrypt(token)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	return &conn, nil
}

// DeleteStoreConnection removes the connection for a user.
func (r *Repository) DeleteStoreConnection(ctx context.Context, userID string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM shopify_stores WHERE user_id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStoreNotFound
	}
	return nil
}
