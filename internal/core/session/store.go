// Package session owns the process-wide authenticated identity: who is
// signed in, their bearer token, and the durable {token, identity} pair.
// It is the only component that touches credential storage, and its
// generation counter is what keeps every other cache honest across
// login/logout/identity switches.
package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/cookeasy/recipe-client/internal/core/domain"
	"github.com/cookeasy/recipe-client/internal/core/ports"
	"github.com/cookeasy/recipe-client/internal/pkg/metrics"
)

// Store is the single source of truth for the session. Exactly one exists
// per client; it is created at startup and injected into every consumer.
//
// Lock order: Store.mu before any cache lock (reset callbacks run under
// mu). Callers must not invoke NotifyUnauthorized while holding a lock
// that a reset callback also takes.
type Store struct {
	gateway ports.RemoteGateway
	creds   ports.CredentialStore
	log     zerolog.Logger

	// generation is bumped on every transition into or out of an
	// authenticated identity. Responses tagged with an older generation
	// are discarded by their observers.
	generation atomic.Uint64

	mu       sync.Mutex
	status   domain.SessionStatus
	identity *domain.Identity
	token    string
	reason   string
	resets   []func()
}

// NewStore builds an unauthenticated session store.
func NewStore(gateway ports.RemoteGateway, creds ports.CredentialStore, log zerolog.Logger) *Store {
	return &Store{
		gateway: gateway,
		creds:   creds,
		log:     log.With().Str("component", "session").Logger(),
		status:  domain.StatusUnauthenticated,
	}
}

// OnReset registers a callback invoked synchronously whenever the session
// leaves the authenticated state or switches identity. Caches register here
// so they are emptied before any response for the new identity can land.
// Registration is not concurrency-safe; wire everything before first use.
func (s *Store) OnReset(fn func()) {
	s.resets = append(s.resets, fn)
}

// Generation returns the current session generation. Lock-free; safe to
// call from any goroutine, including under a cache's own lock.
func (s *Store) Generation() uint64 {
	return s.generation.Load()
}

// State returns a snapshot of the session.
func (s *Store) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.SessionState{Status: s.status, Identity: cloneIdentity(s.identity), Reason: s.reason}
}

// Identity returns a copy of the current identity, or nil when signed out.
func (s *Store) Identity() *domain.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneIdentity(s.identity)
}

// Token implements ports.TokenSource for the gateway.
func (s *Store) Token() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

// Restore rebuilds the session from persisted credentials at startup. It
// never returns an error: every failure path resolves into a concrete
// state, worst case Unauthenticated with storage wiped.
//
// When a pair is found the session turns authenticated immediately from the
// cached identity, then revalidates against the profile endpoint; server
// truth replaces the cached identity on success, and any failure (auth or
// network) tears the session back down.
func (s *Store) Restore(ctx context.Context) domain.SessionState {
	stored, err := s.creds.Load(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("credential load failed, starting unauthenticated")
		s.clearSession(ctx)
		return s.State()
	}
	if stored == nil {
		s.log.Debug().Msg("no persisted session")
		return s.State()
	}

	// Tokens happen to be JWTs today; when one is visibly expired the
	// profile call is guaranteed to 401, so skip the round trip. Opaque
	// tokens fall through to server validation.
	if tokenExpired(stored.Token) {
		s.log.Info().Msg("persisted token expired, discarding session")
		s.clearSession(ctx)
		return s.State()
	}

	s.mu.Lock()
	id := stored.Identity
	s.identity = &id
	s.token = stored.Token
	s.status = domain.StatusAuthenticated
	s.reason = ""
	s.generation.Add(1)
	s.runResetsLocked()
	s.mu.Unlock()

	gen := s.Generation()
	fresh, err := s.gateway.FetchProfile(ctx)
	if err != nil {
		s.log.Info().Err(err).Msg("session revalidation failed, discarding session")
		s.clearSession(ctx)
		return s.State()
	}

	s.mu.Lock()
	stale := s.Generation() != gen || s.status != domain.StatusAuthenticated
	if !stale {
		s.identity = cloneIdentity(fresh)
	}
	token := s.token
	s.mu.Unlock()

	if stale {
		// The session was torn down while revalidation was in flight;
		// nothing may be re-persisted on its behalf.
		return s.State()
	}

	if err := s.creds.Save(ctx, ports.Credentials{Token: token, Identity: *fresh}); err != nil {
		s.log.Warn().Err(err).Msg("failed to re-persist revalidated identity")
	}

	s.log.Info().Str("username", fresh.Username).Msg("session restored")
	return s.State()
}

// Authenticate performs a login. It returns a result value rather than an
// error: credential rejection is an expected path the UI renders inline.
func (s *Store) Authenticate(ctx context.Context, creds domain.Credentials) domain.AuthResult {
	if err := domain.Validate(creds); err != nil {
		s.setError(err.Error())
		return domain.AuthResult{Success: false, Message: err.Error()}
	}

	s.setStatus(domain.StatusAuthenticating)

	resp, err := s.gateway.Login(ctx, creds)
	if err != nil {
		reason := loginFailureMessage(err)
		s.log.Info().Err(err).Msg("login failed")
		s.setError(reason)
		return domain.AuthResult{Success: false, Message: reason}
	}

	s.establish(ctx, resp)

	msg := resp.Message
	if msg == "" {
		msg = "Welcome back, " + resp.Identity.Username + "!"
	}
	return domain.AuthResult{Success: true, Message: msg}
}

// Register creates an account and signs the new identity in, with the same
// persistence and failure semantics as Authenticate.
func (s *Store) Register(ctx context.Context, reg domain.Registration) domain.AuthResult {
	if err := domain.Validate(reg); err != nil {
		s.setError(err.Error())
		return domain.AuthResult{Success: false, Message: err.Error()}
	}

	s.setStatus(domain.StatusAuthenticating)

	resp, err := s.gateway.Register(ctx, reg)
	if err != nil {
		reason := registerFailureMessage(err)
		s.log.Info().Err(err).Msg("registration failed")
		s.setError(reason)
		return domain.AuthResult{Success: false, Message: reason}
	}

	s.establish(ctx, resp)

	msg := resp.Message
	if msg == "" {
		msg = "Account created."
	}
	return domain.AuthResult{Success: true, Message: msg}
}

// establish commits a successful login/registration: persist the pair
// atomically, swap the identity in, bump the generation, and clear the
// previous identity's caches in case this was a direct identity switch.
func (s *Store) establish(ctx context.Context, resp *ports.LoginResponse) {
	pair := ports.Credentials{Token: resp.Token, Identity: resp.Identity}
	if err := s.creds.Save(ctx, pair); err != nil {
		// The session still works in memory; it just won't survive a
		// restart. The store guarantees nothing partial was written.
		s.log.Warn().Err(err).Msg("failed to persist session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := resp.Identity
	s.identity = &id
	s.token = resp.Token
	s.status = domain.StatusAuthenticated
	s.reason = ""
	s.generation.Add(1)
	s.runResetsLocked()
	s.log.Info().Str("username", id.Username).Str("role", string(id.Role)).Msg("authenticated")
}

// Deauthenticate signs out: best-effort remote logout, then an unconditional
// local teardown. The remote call's failure is ignored — the local session
// ends regardless.
func (s *Store) Deauthenticate(ctx context.Context) {
	if _, ok := s.Token(); ok {
		if err := s.gateway.Logout(ctx); err != nil {
			s.log.Debug().Err(err).Msg("remote logout failed, ignoring")
		}
	}
	s.clearSession(ctx)
	s.log.Info().Msg("signed out")
}

// NotifyUnauthorized routes a 401 observed by any authenticated call into a
// forced logout. gen must be the generation that was current when the
// failed request was issued; a stale gen means the session already moved on
// and the notification is dropped. Concurrent 401s from multiple in-flight
// requests collapse into exactly one logout transition because the first
// teardown bumps the generation.
//
// No remote logout is attempted: the token is already dead.
func (s *Store) NotifyUnauthorized(ctx context.Context, gen uint64) {
	if gen != s.Generation() {
		return
	}
	s.mu.Lock()
	if gen != s.Generation() || s.status != domain.StatusAuthenticated {
		s.mu.Unlock()
		return
	}
	s.clearSessionLocked(ctx)
	s.mu.Unlock()

	metrics.ForcedLogoutsTotal.Inc()
	s.log.Warn().Msg("token rejected, forced logout")
}

// UpdateProfile pushes a partial profile change to the server, merges the
// confirmed identity, and re-persists the pair. Valid only while
// authenticated; the session status never changes here.
func (s *Store) UpdateProfile(ctx context.Context, patch domain.IdentityPatch) (*domain.Identity, error) {
	s.mu.Lock()
	if s.status != domain.StatusAuthenticated || s.identity == nil {
		s.mu.Unlock()
		return nil, domain.ErrNotAuthenticated
	}
	s.mu.Unlock()

	gen := s.Generation()
	fresh, err := s.gateway.UpdateProfile(ctx, patch)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			s.NotifyUnauthorized(ctx, gen)
		}
		return nil, err
	}

	s.mu.Lock()
	if gen != s.Generation() || s.status != domain.StatusAuthenticated {
		// Identity changed while the update was in flight; the response
		// belongs to a session that no longer exists.
		s.mu.Unlock()
		return nil, nil
	}
	s.identity = cloneIdentity(fresh)
	token := s.token
	s.mu.Unlock()

	if err := s.creds.Save(ctx, ports.Credentials{Token: token, Identity: *fresh}); err != nil {
		s.log.Warn().Err(err).Msg("failed to re-persist updated identity")
	}
	return cloneIdentity(fresh), nil
}

// clearSession tears the session down outside any external lock.
func (s *Store) clearSession(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearSessionLocked(ctx)
}

// clearSessionLocked wipes storage and local identity, bumps the generation
// so in-flight responses from the old identity become inert, and empties
// every registered cache before releasing control. Callers hold s.mu.
func (s *Store) clearSessionLocked(ctx context.Context) {
	if err := s.creds.Clear(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to clear persisted credentials")
	}
	s.identity = nil
	s.token = ""
	s.status = domain.StatusUnauthenticated
	s.reason = ""
	s.generation.Add(1)
	s.runResetsLocked()
}

func (s *Store) runResetsLocked() {
	for _, fn := range s.resets {
		fn()
	}
}

func (s *Store) setStatus(status domain.SessionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.reason = ""
}

func (s *Store) setError(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = domain.StatusError
	s.reason = reason
}

// tokenExpired reports whether token is a JWT whose exp claim has passed.
// Anything that does not parse as a JWT is treated as opaque and defers to
// server-side validation.
func tokenExpired(token string) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}

func loginFailureMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "Invalid email or password."
	case errors.Is(err, domain.ErrNetworkUnavailable):
		return "Could not reach the server. Please try again."
	default:
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return ve.Error()
		}
		return "Login failed. Please try again."
	}
}

func registerFailureMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNetworkUnavailable):
		return "Could not reach the server. Please try again."
	default:
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return ve.Error()
		}
		return "Registration failed. Please try again."
	}
}

func cloneIdentity(id *domain.Identity) *domain.Identity {
	if id == nil {
		return nil
	}
	clone := *id
	return &clone
}
