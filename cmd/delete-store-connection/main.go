/**
 * @description
 * Script to delete a user's Shopify store connection.
 * It cleans up test connections so the same account can run the OAuth
 * install again from a clean state.
 *
 * Usage:
 *   go run ./cmd/delete-store-connection <user-id>
 *
 * @dependencies
 * - Environment variables: DATABASE_URL, TOKEN_ENCRYPTION_KEY (optional)
 */
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/razajohri/lunalink-real/internal/config"
	"github.com/razajohri/lunalink-real/internal/domain"
	"github.com/razajohri/lunalink-real/internal/security"
	"github.com/razajohri/lunalink-real/internal/store"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Println("Usage: go run ./cmd/delete-store-connection <user-id>")
		fmt.Println("Example: go run ./cmd/delete-store-connection 6f1c1c1e-6a52-4c8e-9d0b-3f1f3c0d2a11")
		os.Exit(1)
	}

	userID := strings.TrimSpace(os.Args[1])

	// Missing files are fine; the environment may already be set. Values
	// already present are never overridden, so the local .env wins.
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), stepTimeout)
	defer cancel()

	dbpool, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database setup failed: %v", err)
	}
	defer dbpool.Close()

	cipher, err := security.NewTokenCipher(cfg.TokenEncryptionKey)
	if err != nil {
		log.Fatalf("invalid TOKEN_ENCRYPTION_KEY: %v", err)
	}
	repository := store.NewRepository(dbpool, cipher)

	if err := deleteConnection(repository, os.Stdin, os.Stdout, userID); err != nil {
		log.Fatalf("%v", err)
	}
}

// stepTimeout bounds each database round trip. The confirmation prompt is not
// covered by it.
const stepTimeout = 30 * time.Second

type connectionStore interface {
	GetStoreConnectionByUserID(ctx context.Context, userID string) (*domain.StoreConnection, error)
	DeleteStoreConnection(ctx context.Context, userID string) error
}

// deleteConnection shows the user's connection, asks for confirmation on in and
// deletes it. A missing connection or a declined prompt is not an error.
func deleteConnection(repo connectionStore, in io.Reader, out io.Writer, userID string) error {
	fmt.Fprintf(out, "Fetching store connection for user: %s\n", userID)

	lookupCtx, cancelLookup := context.WithTimeout(context.Background(), stepTimeout)
	conn, err := repo.GetStoreConnectionByUserID(lookupCtx, userID)
	cancelLookup()
	if err != nil {
		if errors.Is(err, store.ErrStoreNotFound) {
			fmt.Fprintln(out, "No store connection found for this user.")
			return nil
		}
		return fmt.Errorf("fetch store connection: %w", err)
	}

	fmt.Fprintf(out, "Store Connection:\n")
	fmt.Fprintf(out, "  ID: %s\n", conn.ID)
	fmt.Fprintf(out, "  User: %s\n", conn.UserID)
	fmt.Fprintf(out, "  Domain: %s\n", conn.StoreDomain)
	fmt.Fprintf(out, "  Connected At: %s\n", conn.ConnectedAt.Format(time.RFC3339))

	if !confirm(in, out, "\nAre you sure you want to delete this connection? (yes/no): ") {
		fmt.Fprintln(out, "Deletion cancelled.")
		return nil
	}

	deleteCtx, cancelDelete := context.WithTimeout(context.Background(), stepTimeout)
	defer cancelDelete()

	fmt.Fprintf(out, "Deleting store connection for %s...\n", userID)
	if err := repo.DeleteStoreConnection(deleteCtx, userID); err != nil {
		return fmt.Errorf("delete store connection: %w", err)
	}

	fmt.Fprintf(out, "Deleted store connection %s (%s)\n", conn.ID, conn.StoreDomain)
	fmt.Fprintln(out, "The user can now reconnect the store from the dashboard.")
	return nil
}

// confirm prints prompt and reports whether the operator typed "yes".
func confirm(in io.Reader, out io.Writer, prompt string) bool {
	fmt.Fprint(out, prompt)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(answer), "yes")
}
