// Package gateway is the HTTP implementation of the RemoteGateway port. It
// is stateless: the bearer token comes from the injected token source on
// every request, and every failure is mapped onto the domain error taxonomy
// before it leaves this package.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/cookeasy/recipe-client/internal/core/domain"
	"github.com/cookeasy/recipe-client/internal/core/ports"
	"github.com/cookeasy/recipe-client/internal/pkg/metrics"
)

const defaultTimeout = 10 * time.Second

// Client talks to the CookEasy REST backend.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  ports.TokenSource
	log     zerolog.Logger
}

var _ ports.RemoteGateway = (*Client)(nil)

// NewClient builds a gateway client. The timeout bounds every request; if
// zero or negative, defaultTimeout applies. Requests are never retried
// automatically — a blind retry could duplicate a toggle.
func NewClient(baseURL string, timeout time.Duration, tokens ports.TokenSource, log zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		log:     log.With().Str("component", "gateway").Logger(),
	}
}

func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*ports.LoginResponse, error) {
	var resp ports.LoginResponse
	if err := c.do(ctx, "login", http.MethodPost, "/auth/login", creds, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Register(ctx context.Context, reg domain.Registration) (*ports.LoginResponse, error) {
	var resp ports.LoginResponse
	if err := c.do(ctx, "register", http.MethodPost, "/auth/register", reg, &resp, false); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) FetchProfile(ctx context.Context) (*domain.Identity, error) {
	var resp struct {
		User domain.Identity `json:"user"`
	}
	if err := c.do(ctx, "fetch_profile", http.MethodGet, "/auth/profile", nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *Client) UpdateProfile(ctx context.Context, patch domain.IdentityPatch) (*domain.Identity, error) {
	var resp struct {
		User domain.Identity `json:"user"`
	}
	if err := c.do(ctx, "update_profile", http.MethodPut, "/auth/profile", patch, &resp, true); err != nil {
		return nil, err
	}
	return &resp.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, "logout", http.MethodPost, "/auth/logout", nil, nil, true)
}

func (c *Client) LoadFavorites(ctx context.Context) ([]int, error) {
	var resp struct {
		RecipeIDs []int `json:"recipe_ids"`
	}
	if err := c.do(ctx, "load_favorites", http.MethodGet, "/recipes/favorites", nil, &resp, true); err != nil {
		return nil, err
	}
	return resp.RecipeIDs, nil
}

func (c *Client) ToggleFavorite(ctx context.Context, recipeID int) (*ports.FavoriteResponse, error) {
	var resp ports.FavoriteResponse
	path := fmt.Sprintf("/recipes/%d/favorite", recipeID)
	if err := c.do(ctx, "toggle_favorite", http.MethodPost, path, nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SubmitRating(ctx context.Context, recipeID int, input domain.RatingInput) (*ports.RatingResponse, error) {
	var resp ports.RatingResponse
	path := fmt.Sprintf("/recipes/%d/rate", recipeID)
	if err := c.do(ctx, "submit_rating", http.MethodPost, path, input, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) FetchRecipeRatings(ctx context.Context, recipeID int) (*ports.RecipeRatings, error) {
	var resp ports.RecipeRatings
	path := fmt.Sprintf("/recipes/%d/ratings", recipeID)
	if err := c.do(ctx, "fetch_recipe_ratings", http.MethodGet, path, nil, &resp, true); err != nil {
		return nil, err
	}
	return &resp, nil
}

// errorBody is the backend's error envelope.
type errorBody struct {
	Error   string            `json:"error,omitempty"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e errorBody) text() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Error
}

// do issues one request and decodes the response into out (when non-nil).
// endpoint is the logical name used for logs and metrics.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body, out any, authed bool) error {
	start := time.Now()
	err := c.doOnce(ctx, method, path, body, out, authed)
	metrics.GatewayRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	metrics.GatewayRequestsTotal.WithLabelValues(endpoint, outcome(err)).Inc()

	if err != nil {
		c.log.Debug().Err(err).Str("endpoint", endpoint).Msg("request failed")
		return err
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out any, authed bool) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		if token, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return mapStatus(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", domain.ErrServer, err)
	}
	return nil
}

// mapStatus translates an HTTP error status into the domain taxonomy.
func mapStatus(resp *http.Response) error {
	var envelope errorBody
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	_ = json.Unmarshal(raw, &envelope)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		return domain.ErrForbidden
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", domain.ErrServer, resp.StatusCode)
	default:
		fields := envelope.Fields
		if len(fields) == 0 {
			msg := envelope.text()
			if msg == "" {
				msg = fmt.Sprintf("request rejected with status %d", resp.StatusCode)
			}
			fields = map[string]string{"detail": msg}
		}
		return &domain.ValidationError{Fields: fields}
	}
}

// outcome buckets an error for the request counter.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrNetworkUnavailable):
		return "network"
	case errors.Is(err, domain.ErrServer):
		return "server"
	default:
		return "validation"
	}
}
