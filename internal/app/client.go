// Package app is the composition root: it builds the storage adapter, the
// gateway, the session store, and both optimistic caches, and wires them
// together by explicit injection. Nothing here is a global; callers own the
// Client and pass it (or its parts) to whatever consumes them.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cookeasy/recipe-client/internal/core/authz"
	"github.com/cookeasy/recipe-client/internal/core/cache"
	"github.com/cookeasy/recipe-client/internal/core/domain"
	"github.com/cookeasy/recipe-client/internal/core/ports"
	"github.com/cookeasy/recipe-client/internal/core/session"
	"github.com/cookeasy/recipe-client/internal/infrastructure/gateway"
	"github.com/cookeasy/recipe-client/internal/infrastructure/storage"
	"github.com/cookeasy/recipe-client/internal/pkg/config"
	"github.com/cookeasy/recipe-client/pkg/logger"
)

// Client bundles the session core and its collections.
type Client struct {
	Session   *session.Store
	Favorites *cache.Favorites
	Ratings   *cache.Ratings
	Gateway   ports.RemoteGateway

	log zerolog.Logger
}

// NewFromEnv loads configuration from the environment, initialises the
// process logger from it, and assembles a Client. The shortest path for an
// embedding application; anything needing a custom logger or config should
// call New directly.
func NewFromEnv(ctx context.Context) (*Client, error) {
	cfg := config.Load()
	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	return New(ctx, cfg, log)
}

// New assembles a Client from configuration.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Client, error) {
	creds, err := newCredentialStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewWithStore(cfg, creds, log), nil
}

// NewWithStore assembles a Client around an existing credential store;
// tests use it to inject the in-memory adapter.
func NewWithStore(cfg *config.Config, creds ports.CredentialStore, log zerolog.Logger) *Client {
	// The gateway pulls the token from the session store, which in turn
	// issues requests through the gateway; the token source closure breaks
	// the construction cycle.
	var sess *session.Store
	tokens := ports.TokenSourceFunc(func() (string, bool) {
		if sess == nil {
			return "", false
		}
		return sess.Token()
	})

	gw := gateway.NewClient(cfg.APIBaseURL, cfg.RequestTimeout, tokens, log)
	sess = session.NewStore(gw, creds, log)

	favorites := cache.NewFavorites(gw, sess, log)
	ratings := cache.NewRatings(gw, sess, log)
	sess.OnReset(favorites.Reset)
	sess.OnReset(ratings.Reset)

	return &Client{
		Session:   sess,
		Favorites: favorites,
		Ratings:   ratings,
		Gateway:   gw,
		log:       log.With().Str("component", "app").Logger(),
	}
}

// Bootstrap restores the persisted session and, when one survives
// revalidation, warms the favorites mirror. Load failures are logged, not
// fatal: the mirror simply starts empty.
func (c *Client) Bootstrap(ctx context.Context) domain.SessionState {
	state := c.Session.Restore(ctx)
	if state.Authenticated() {
		if err := c.Favorites.Load(ctx); err != nil {
			c.log.Warn().Err(err).Msg("failed to load favorites after restore")
		}
	}
	return state
}

// SignIn authenticates and warms the favorites mirror for the new identity.
func (c *Client) SignIn(ctx context.Context, creds domain.Credentials) domain.AuthResult {
	result := c.Session.Authenticate(ctx, creds)
	if result.Success {
		if err := c.Favorites.Load(ctx); err != nil {
			c.log.Warn().Err(err).Msg("failed to load favorites after sign-in")
		}
	}
	return result
}

// SignOut ends the session; caches are cleared synchronously by the session
// store's reset hooks before this returns.
func (c *Client) SignOut(ctx context.Context) {
	c.Session.Deauthenticate(ctx)
}

// Authorize evaluates a declarative requirement against the current
// identity.
func (c *Client) Authorize(req authz.Requirement) authz.Decision {
	return authz.Evaluate(req, c.Session.Identity())
}

func newCredentialStore(ctx context.Context, cfg *config.Config) (ports.CredentialStore, error) {
	switch cfg.Storage.Backend {
	case "file":
		return storage.NewFileStore(cfg.Storage.Path), nil
	case "redis":
		client, err := storage.ConnectRedis(ctx, storage.RedisConfig{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return storage.NewRedisStore(client), nil
	case "memory":
		return storage.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
