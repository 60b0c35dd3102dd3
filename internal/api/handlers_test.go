package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/razajohri/lunalink-real/internal/app"
	"github.com/razajohri/lunalink-real/internal/domain"
	"github.com/razajohri/lunalink-real/internal/metrics"
	"github.com/razajohri/lunalink-real/internal/store"
)

const (
	testJWTSecret   = "super-secret-jwt-token-with-at-least-32-characters"
	testInternalKey = "internal-key"
	testAppBaseURL  = "https://app.lunalink.test"
)

type storeServiceStub struct {
	result     app.CallbackResult
	lastParams app.CallbackParams
}

func (s *storeServiceStub) HandleCallback(ctx context.Context, p app.CallbackParams) app.CallbackResult {
	s.lastParams = p
	return s.result
}

func (s *storeServiceStub) ConnectURL(userID, rawShop string) (string, error) {
	shop, err := domain.NormalizeShopDomain(rawShop)
	if err != nil {
		return "", err
	}
	return "https://" + shop + "/admin/oauth/authorize?state=" + userID, nil
}

func (s *storeServiceStub) GetStatus(ctx context.Context, userID string) (*domain.StoreStatus, error) {
	return &domain.StoreStatus{Connected: false}, nil
}

func (s *storeServiceStub) ConnectManually(ctx context.Context, userID, rawDomain, accessToken string) (*domain.StoreStatus, error) {
	if accessToken == "" {
		return nil, app.ErrAccessTokenRequired
	}
	return &domain.StoreStatus{Connected: true, StoreDomain: rawDomain}, nil
}

type billingServiceStub struct {
	url        string
	err        error
	webhookErr error
	lastReq    app.CheckoutRequest
}

func (s *billingServiceStub) CreateCheckout(ctx context.Context, req app.CheckoutRequest) (string, error) {
	s.lastReq = req
	return s.url, s.err
}

func (s *billingServiceStub) GetSubscription(ctx context.Context, userID string) (*domain.SubscriptionRecord, error) {
	return &domain.SubscriptionRecord{UserID: userID, Plan: "basic", CallsUsed: 10, CallsLimit: 45, Subscribed: true}, nil
}

func (s *billingServiceStub) CheckSubscription(ctx context.Context, userID, email string) (*domain.SubscriptionRecord, error) {
	return &domain.SubscriptionRecord{UserID: userID, Email: email}, nil
}

func (s *billingServiceStub) HandleWebhook(ctx context.Context, payload []byte, signatureHeader string) error {
	return s.webhookErr
}

type usageServiceStub struct {
	err error
}

func (s *usageServiceStub) RecordCalls(ctx context.Context, userID string, calls int) (*domain.SubscriptionRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.SubscriptionRecord{UserID: userID, CallsUsed: calls, CallsLimit: 45, Subscribed: true}, nil
}

type callServiceStub struct{}

func (callServiceStub) ListCalls(ctx context.Context, assistantID string) domain.CallList {
	return domain.CallList{Calls: []domain.VoiceCallRecord{{ID: "1"}}, Source: app.CallSourceMock}
}

func (callServiceStub) Stats(ctx context.Context, assistantID string) domain.CallStats {
	return domain.CallStats{TotalCalls: 1}
}

type testServer struct {
	router  http.Handler
	stores  *storeServiceStub
	billing *billingServiceStub
	usage   *usageServiceStub
}

func newTestServer() *testServer {
	ts := &testServer{
		stores:  &storeServiceStub{},
		billing: &billingServiceStub{url: "https://checkout.stripe.com/c/pay/cs_test_1"},
		usage:   &usageServiceStub{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := NewHandler(ts.stores, ts.billing, ts.usage, callServiceStub{}, testAppBaseURL, logger, metrics.New())
	ts.router = NewRouter(h, testJWTSecret, testInternalKey, "/metrics")
	return ts
}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func validToken(t *testing.T) string {
	return signToken(t, jwt.MapClaims{
		"sub":   "user-1",
		"email": "a@x.com",
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Error
}

func TestShopifyCallbackRedirects(t *testing.T) {
	tests := []struct {
		name   string
		result app.CallbackResult
		want   string
	}{
		{
			name:   "success",
			result: app.CallbackResult{Success: true, Code: app.CallbackSuccess},
			want:   testAppBaseURL + "/dashboard?success=shopify_connected",
		},
		{
			name:   "missing params",
			result: app.CallbackResult{Code: app.CallbackErrMissingParams},
			want:   testAppBaseURL + "/dashboard?error=missing_params",
		},
		{
			name:   "token exchange failed",
			result: app.CallbackResult{Code: app.CallbackErrTokenExchange},
			want:   testAppBaseURL + "/dashboard?error=token_exchange_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			ts.stores.result = tt.result

			req := httptest.NewRequest(http.MethodGet, "/shopify/callback?code=xyz&shop=demo.myshopify.com&state=u-123", nil)
			rec := httptest.NewRecorder()
			ts.router.ServeHTTP(rec, req)

			if rec.Code != http.StatusFound {
				t.Fatalf("expected 302, got %d", rec.Code)
			}
			if got := rec.Header().Get("Location"); got != tt.want {
				t.Fatalf("expected Location %q, got %q", tt.want, got)
			}
			if ts.stores.lastParams.Code != "xyz" || ts.stores.lastParams.State != "u-123" || ts.stores.lastParams.Shop != "demo.myshopify.com" {
				t.Fatalf("unexpected params forwarded: %+v", ts.stores.lastParams)
			}
		})
	}
}

func TestAuthMiddlewareRejectsBadTokens(t *testing.T) {
	expired := signToken(t, jwt.MapClaims{"sub": "user-1", "exp": time.Now().Add(-time.Hour).Unix()})
	wrongKey, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-1"}).SignedString([]byte("another-secret"))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	noSubject := signToken(t, jwt.MapClaims{"email": "a@x.com"})

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing header", header: ""},
		{name: "not bearer", header: "Token abc"},
		{name: "expired", header: "Bearer " + expired},
		{name: "wrong signing key", header: "Bearer " + wrongKey},
		{name: "no subject", header: "Bearer " + noSubject},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			req := httptest.NewRequest(http.MethodGet, "/shopify/store", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			ts.router.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rec.Code)
			}
		})
	}
}

func TestCreateCheckoutHandler(t *testing.T) {
	t.Run("returns url and forwards caller identity", func(t *testing.T) {
		ts := newTestServer()
		req := httptest.NewRequest(http.MethodPost, "/billing/checkout", strings.NewReader(`{"plan":"growth"}`))
		req.Header.Set("Authorization", "Bearer "+validToken(t))
		req.Header.Set("Idempotency-Key", "k-1")
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body map[string]string
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		if body["url"] != ts.billing.url {
			t.Fatalf("expected url %q, got %q", ts.billing.url, body["url"])
		}
		got := ts.billing.lastReq
		if got.UserID != "user-1" || got.Email != "a@x.com" || got.Plan != "growth" || got.IdempotencyKey != "k-1" {
			t.Fatalf("unexpected checkout request: %+v", got)
		}
		if got.Origin != testAppBaseURL {
			t.Fatalf("expected origin fallback %q, got %q", testAppBaseURL, got.Origin)
		}
	})

	t.Run("uses origin header", func(t *testing.T) {
		ts := newTestServer()
		req := httptest.NewRequest(http.MethodPost, "/billing/checkout", strings.NewReader(`{"plan":"basic"}`))
		req.Header.Set("Authorization", "Bearer "+validToken(t))
		req.Header.Set("Origin", "https://preview.lunalink.test")
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		if ts.billing.lastReq.Origin != "https://preview.lunalink.test" {
			t.Fatalf("expected origin header to be used, got %q", ts.billing.lastReq.Origin)
		}
	})

	t.Run("service error becomes 500 with message", func(t *testing.T) {
		ts := newTestServer()
		ts.billing.err = app.ErrInvalidPlan
		req := httptest.NewRequest(http.MethodPost, "/billing/checkout", strings.NewReader(`{"plan":"enterprise"}`))
		req.Header.Set("Authorization", "Bearer "+validToken(t))
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("expected 500, got %d", rec.Code)
		}
		if msg := decodeError(t, rec); msg != "Invalid plan selected" {
			t.Fatalf("unexpected error message %q", msg)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		ts := newTestServer()
		ts.billing.err = &app.RateLimitError{RetryAfterSeconds: 30}
		req := httptest.NewRequest(http.MethodPost, "/billing/checkout", strings.NewReader(`{"plan":"pro"}`))
		req.Header.Set("Authorization", "Bearer "+validToken(t))
		rec := httptest.NewRecorder()
		ts.router.ServeHTTP(rec, req)

		if rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
		if rec.Header().Get("Retry-After") != "30" {
			t.Fatalf("expected Retry-After 30, got %q", rec.Header().Get("Retry-After"))
		}
	})
}

func TestGetSubscriptionIncludesRemainingCalls(t *testing.T) {
	ts := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/billing/subscription", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		UserID         string `json:"user_id"`
		CallsRemaining int    `json:"calls_remaining"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.UserID != "user-1" || body.CallsRemaining != 35 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestConnectURLHandler(t *testing.T) {
	ts := newTestServer()

	req := httptest.NewRequest(http.MethodGet, "/shopify/connect-url?shop=bad%20shop", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid shop, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/shopify/connect-url?shop=demo", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec = httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "demo.myshopify.com") {
		t.Fatalf("expected normalized shop in url, got %s", rec.Body.String())
	}
}

func TestConnectStoreHandlerRequiresToken(t *testing.T) {
	ts := newTestServer()
	req := httptest.NewRequest(http.MethodPut, "/shopify/store", strings.NewReader(`{"domain":"demo"}`))
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestRecordCallsHandler(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		serviceErr error
		wantStatus int
	}{
		{name: "missing key", key: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong key", key: "nope", wantStatus: http.StatusUnauthorized},
		{name: "recorded", key: testInternalKey, wantStatus: http.StatusOK},
		{name: "limit reached", key: testInternalKey, serviceErr: store.ErrCallLimitReached, wantStatus: http.StatusPaymentRequired},
		{name: "unknown subscriber", key: testInternalKey, serviceErr: store.ErrSubscriberNotFound, wantStatus: http.StatusNotFound},
		{name: "invalid usage", key: testInternalKey, serviceErr: app.ErrInvalidUsage, wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			ts.usage.err = tt.serviceErr
			req := httptest.NewRequest(http.MethodPost, "/internal/usage/calls", strings.NewReader(`{"user_id":"user-1","calls":1}`))
			if tt.key != "" {
				req.Header.Set("X-Internal-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			ts.router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestStripeWebhookHandler(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{name: "accepted", wantStatus: http.StatusOK},
		{name: "bad signature", err: app.ErrInvalidWebhook, wantStatus: http.StatusBadRequest},
		{name: "not configured", err: app.ErrWebhookNotConfigured, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer()
			ts.billing.webhookErr = tt.err
			req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
			req.Header.Set("Stripe-Signature", "t=1,v1=abc")
			rec := httptest.NewRecorder()
			ts.router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestListCallsHandler(t *testing.T) {
	ts := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/calls", nil)
	req.Header.Set("Authorization", "Bearer "+validToken(t))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body domain.CallList
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Source != "mock" || len(body.Calls) != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestMetricsEndpointCountsCallbacks(t *testing.T) {
	ts := newTestServer()
	ts.stores.result = app.CallbackResult{Code: app.CallbackErrMissingParams}

	ts.router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/shopify/callback", nil))

	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `lunalink_shopify_callback_total{outcome="missing_params"} 1`) {
		t.Fatalf("expected callback counter in metrics output")
	}
}

func TestPlanLabel(t *testing.T) {
	if got := planLabel("growth"); got != "growth" {
		t.Fatalf("expected growth, got %q", got)
	}
	if got := planLabel("enterprise; drop"); got != "invalid" {
		t.Fatalf("expected invalid, got %q", got)
	}
}
