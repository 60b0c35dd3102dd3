/**
 * @description
 * Client for the Shopify OAuth and Admin API endpoints used to connect a store.
 * The code exchange and the token check both go through go-shopify; failures
 * are sorted into the sentinel errors the OAuth callback redirects on.
 */
package shopifyclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

// ErrMalformedTokenResponse is a 2xx exchange response whose body is not JSON.
var (
	ErrTokenExchangeFailed    = errors.New("token exchange failed")
	ErrNoAccessToken          = errors.New("no access token in response")
	ErrMalformedTokenResponse = errors.New("malformed token response")
)

// Client talks to a merchant's storefront on behalf of our Shopify app registration.
type Client struct {
	apiKey      string
	apiSecret   string
	scopes      string
	redirectURI string
	app         goshopify.App
	httpClient  *http.Client
}

// NewClient creates a new Shopify client.
func NewClient(apiKey, apiSecret, scopes, redirectURI string) *Client {
	return &Client{
		apiKey:      strings.TrimSpace(apiKey),
		apiSecret:   strings.TrimSpace(apiSecret),
		scopes:      strings.TrimSpace(scopes),
		redirectURI: strings.TrimSpace(redirectURI),
		app: goshopify.App{
			ApiKey:      strings.TrimSpace(apiKey),
			ApiSecret:   strings.TrimSpace(apiSecret),
			RedirectUrl: strings.TrimSpace(redirectURI),
			Scope:       strings.TrimSpace(scopes),
		},
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// WithHTTPClient returns a copy of the client that sends storefront requests through hc.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	clone := *c
	clone.httpClient = hc
	return &clone
}

// AuthorizeURL builds the storefront consent URL. state carries the user id and is
// echoed back to the callback.
func (c *Client) AuthorizeURL(shop, state string) string {
	q := url.Values{}
	q.Set("client_id", c.apiKey)
	q.Set("scope", c.scopes)
	q.Set("redirect_uri", c.redirectURI)
	q.Set("state", state)
	return fmt.Sprintf("https://%s/admin/oauth/authorize?%s", shop, q.Encode())
}

func (c *Client) shopClient(shop, accessToken string) (*goshopify.Client, error) {
	return goshopify.NewClient(c.app, shop, accessToken, goshopify.WithHTTPClient(c.httpClient))
}

// ExchangeCode trades an authorization code for an offline access token.
func (c *Client) ExchangeCode(ctx context.Context, shop, code string) (string, error) {
	client, err := c.shopClient(shop, "")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}

	app := c.app
	app.Client = client
	token, err := app.GetAccessToken(ctx, shop, code)
	if err != nil {
		if isDecodeError(err) {
			return "", fmt.Errorf("%w: %v", ErrMalformedTokenResponse, err)
		}
		return "", fmt.Errorf("%w: %v", ErrTokenExchangeFailed, err)
	}
	if strings.TrimSpace(token) == "" {
		return "", ErrNoAccessToken
	}
	return token, nil
}

// isDecodeError reports whether err came from decoding a response body rather
// than from the transport or a non-2xx status.
func isDecodeError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return false
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, io.EOF)
}

// VerifyCallback checks the hmac Shopify signs the callback query string with.
func (c *Client) VerifyCallback(u *url.URL) (bool, error) {
	if c.apiSecret == "" {
		return false, errors.New("shopify api secret is not configured")
	}
	return c.app.VerifyAuthorizationURL(u)
}

// VerifyAccessToken makes a lightweight Admin API call to prove the token works
// for the shop.
func (c *Client) VerifyAccessToken(ctx context.Context, shop, accessToken string) error {
	client, err := c.shopClient(shop, accessToken)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	if _, err := client.Shop.Get(ctx, nil); err != nil {
		return fmt.Errorf("failed to get shop: %w", err)
	}
	return nil
}
