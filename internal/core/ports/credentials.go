package ports

import (
	"context"

	"github.com/cookeasy/recipe-client/internal/core/domain"
)

// Credentials is the durable {token, identity} pair. It is written and
// cleared as a single unit: a store must never leave one half behind after a
// crash or a concurrent clear, since a token without its identity (or the
// reverse) would resurrect a half-formed session on restart.
type Credentials struct {
	Token    string          `json:"token"`
	Identity domain.Identity `json:"identity"`
}

// CredentialStore is the session store's persistence port. No other
// component reads or writes durable state; all storage access funnels
// through the session store holding one of these.
type CredentialStore interface {
	// Save persists the pair atomically, replacing any previous pair.
	Save(ctx context.Context, creds Credentials) error
	// Load returns the stored pair, or (nil, nil) when none is present.
	Load(ctx context.Context) (*Credentials, error)
	// Clear removes the pair. Clearing an empty store is not an error.
	Clear(ctx context.Context) error
}
