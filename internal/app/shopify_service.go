/**
 * @description
 * This file contains the store-connection business logic: completing the
 * Shopify OAuth callback, building the consent URL, reporting connection
 * status and the single-write manual connect.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/razajohri/lunalink-real/internal/domain"
	"github.com/razajohri/lunalink-real/internal/store"
	"github.com/razajohri/lunalink-real/pkg/shopifyclient"
)

// Redirect outcomes of the OAuth callback. The dashboard maps each code to a message.
const (
	CallbackSuccess             = "shopify_connected"
	CallbackErrOAuthFailed      = "oauth_failed"
	CallbackErrMissingParams    = "missing_params"
	CallbackErrInvalidHMAC      = "invalid_hmac"
	CallbackErrTokenExchange    = "token_exchange_failed"
	CallbackErrNoAccessToken    = "no_access_token"
	CallbackErrDBSaveFailed     = "db_save_failed"
	CallbackErrUnexpectedFailed = "unexpected_error"
)

var (
	ErrAccessTokenRequired = errors.New("access token is required")
	ErrAccessTokenRejected = errors.New("access token was rejected by the store")
)

// StoreRepository defines the persistence operations for store connections.
type StoreRepository interface {
	UpsertStoreConnection(ctx context.Context, conn *domain.StoreConnection) (*domain.StoreConnection, error)
	ReplaceStoreConnection(ctx context.Context, conn *domain.StoreConnection) (*domain.StoreConnection, error)
	GetStoreConnectionByUserID(ctx context.Context, userID string) (*domain.StoreConnection, error)
}

// ShopifyGateway is the subset of the Shopify client the service needs.
type ShopifyGateway interface {
	AuthorizeURL(shop, state string) string
	ExchangeCode(ctx context.Context, shop, code string) (string, error)
	VerifyCallback(u *url.URL) (bool, error)
	VerifyAccessToken(ctx context.Context, shop, accessToken string) error
}

// EventPublisher publishes domain events to the broker.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

// CallbackParams are the query parameters Shopify sends to the OAuth callback.
type CallbackParams struct {
	Code  string
	Shop  string
	State string
	Error string
	// Query is the full callback URL, used for hmac verification.
	Query *url.URL
}

// CallbackResult is the terminal state of one callback invocation.
type CallbackResult struct {
	Success bool
	Code    string
}

// ShopifyOptions toggles the optional checks around store connection.
type ShopifyOptions struct {
	VerifyHMAC        bool
	VerifyManualToken bool
}

// ShopifyService provides the business logic for store connections.
type ShopifyService struct {
	repo      StoreRepository
	shopify   ShopifyGateway
	publisher EventPublisher
	logger    *slog.Logger
	opts      ShopifyOptions
	now       func() time.Time
}

// NewShopifyService creates a new store-connection service.
func NewShopifyService(repo StoreRepository, shopify ShopifyGateway, publisher EventPublisher, logger *slog.Logger, opts ShopifyOptions) *ShopifyService {
	return &ShopifyService{
		repo:      repo,
		shopify:   shopify,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

// HandleCallback runs received → validating-params → exchanging-token →
// persisting and always returns a terminal result. Nothing is retried.
func (s *ShopifyService) HandleCallback(ctx context.Context, p CallbackParams) (result CallbackResult) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("shopify callback panicked", "panic", rec)
			result = CallbackResult{Code: CallbackErrUnexpectedFailed}
		}
	}()

	if strings.TrimSpace(p.Error) != "" {
		s.logger.Warn("shopify oauth error", "error", p.Error, "shop", p.Shop)
		return CallbackResult{Code: CallbackErrOAuthFailed}
	}

	code := strings.TrimSpace(p.Code)
	state := strings.TrimSpace(p.State)
	if code == "" || strings.TrimSpace(p.Shop) == "" || state == "" {
		return CallbackResult{Code: CallbackErrMissingParams}
	}

	shop, err := domain.NormalizeShopDomain(p.Shop)
	if err != nil {
		s.logger.Warn("shopify callback with malformed shop", "shop", p.Shop)
		return CallbackResult{Code: CallbackErrMissingParams}
	}

	if s.opts.VerifyHMAC {
		ok, err := s.shopify.VerifyCallback(p.Query)
		if err != nil || !ok {
			s.logger.Warn("shopify callback hmac rejected", "shop", shop, "error", err)
			return CallbackResult{Code: CallbackErrInvalidHMAC}
		}
	}

	token, err := s.shopify.ExchangeCode(ctx, shop, code)
	if err != nil {
		if errors.Is(err, shopifyclient.ErrNoAccessToken) {
			return CallbackResult{Code: CallbackErrNoAccessToken}
		}
		if errors.Is(err, shopifyclient.ErrMalformedTokenResponse) {
			s.logger.Error("unreadable token response", "shop", shop, "error", err)
			return CallbackResult{Code: CallbackErrUnexpectedFailed}
		}
		s.logger.Error("failed to exchange code for token", "shop", shop, "error", err)
		return CallbackResult{Code: CallbackErrTokenExchange}
	}
	if strings.TrimSpace(token) == "" {
		return CallbackResult{Code: CallbackErrNoAccessToken}
	}

	s.logger.Info("saving store connection", "user_id", state, "shop", shop)
	saved, err := s.repo.UpsertStoreConnection(ctx, &domain.StoreConnection{
		UserID:      state,
		StoreDomain: shop,
		AccessToken: token,
		ConnectedAt: s.now().UTC(),
	})
	if err != nil {
		s.logger.Error("failed to save store connection", "user_id", state, "error", err)
		return CallbackResult{Code: CallbackErrDBSaveFailed}
	}

	s.publishConnected(ctx, saved, "oauth")
	s.logger.Info("store connection saved", "user_id", state, "shop", shop)
	return CallbackResult{Success: true, Code: CallbackSuccess}
}

// ConnectURL builds the Shopify consent URL for the user.
func (s *ShopifyService) ConnectURL(userID, rawShop string) (string, error) {
	shop, err := domain.NormalizeShopDomain(rawShop)
	if err != nil {
		return "", err
	}
	return s.shopify.AuthorizeURL(shop, userID), nil
}

// GetStatus reports whether the user has a connected store.
func (s *ShopifyService) GetStatus(ctx context.Context, userID string) (*domain.StoreStatus, error) {
	conn, err := s.repo.GetStoreConnectionByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrStoreNotFound) {
			return &domain.StoreStatus{Connected: false}, nil
		}
		return nil, err
	}
	return toStoreStatus(conn), nil
}

// ConnectManually saves a domain and an access token the merchant pasted in,
// both in one write.
func (s *ShopifyService) ConnectManually(ctx context.Context, userID, rawDomain, accessToken string) (*domain.StoreStatus, error) {
	shop, err := domain.NormalizeShopDomain(rawDomain)
	if err != nil {
		return nil, err
	}
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, ErrAccessTokenRequired
	}

	if s.opts.VerifyManualToken {
		if err := s.shopify.VerifyAccessToken(ctx, shop, accessToken); err != nil {
			s.logger.Warn("manual store token rejected", "user_id", userID, "shop", shop, "error", err)
			return nil, ErrAccessTokenRejected
		}
	}

	saved, err := s.repo.ReplaceStoreConnection(ctx, &domain.StoreConnection{
		UserID:      userID,
		StoreDomain: shop,
		AccessToken: accessToken,
		ConnectedAt: s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save store connection: %w", err)
	}

	s.publishConnected(ctx, saved, "manual")
	return toStoreStatus(saved), nil
}

func (s *ShopifyService) publishConnected(ctx context.Context, conn *domain.StoreConnection, source string) {
	if s.publisher == nil || conn == nil {
		return
	}
	event := domain.StoreConnectedEvent{
		EventID:     uuid.NewString(),
		UserID:      conn.UserID,
		StoreDomain: conn.StoreDomain,
		Source:      source,
		ConnectedAt: conn.ConnectedAt,
	}
	if err := s.publisher.Publish(ctx, domain.RoutingKeyStoreConnected, event); err != nil {
		s.logger.Warn("failed to publish store connected event", "user_id", conn.UserID, "error", err)
	}
}

func toStoreStatus(conn *domain.StoreConnection) *domain.StoreStatus {
	connectedAt := conn.ConnectedAt
	return &domain.StoreStatus{
		Connected:   true,
		StoreDomain: conn.StoreDomain,
		ConnectedAt: &connectedAt,
	}
}
