package cache

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/cookeasy/recipe-client/internal/core/ports"
)

// Favorites mirrors the signed-in user's favorited recipe set. A recipe is
// present in the mirror with value true when favorited; unfavorited recipes
// are removed on commit rather than kept as false entries.
type Favorites struct {
	gateway ports.RemoteGateway
	col     *Collection[int, bool]
}

// NewFavorites wires the favorites mirror to the gateway and registers its
// reset with the session store.
func NewFavorites(gateway ports.RemoteGateway, sess Session, log zerolog.Logger) *Favorites {
	return &Favorites{
		gateway: gateway,
		col:     NewCollection[int, bool]("favorites", sess, log),
	}
}

// Reset empties the mirror. Registered with the session store's OnReset.
func (f *Favorites) Reset() { f.col.Reset() }

// Load fetches the full favorite set for the current identity.
func (f *Favorites) Load(ctx context.Context) error {
	return f.col.Load(ctx, func(ctx context.Context) (map[int]bool, error) {
		ids, err := f.gateway.LoadFavorites(ctx)
		if err != nil {
			return nil, err
		}
		set := make(map[int]bool, len(ids))
		for _, id := range ids {
			set[id] = true
		}
		return set, nil
	})
}

// Toggle flips the favorited state of a recipe optimistically and reconciles
// with the server's authoritative answer. Returns the confirmed state; on
// failure the optimistic flip is rolled back and the error surfaces to the
// caller.
func (f *Favorites) Toggle(ctx context.Context, recipeID int) (bool, error) {
	target := !f.IsFavorited(recipeID)
	confirmed, applied, err := f.col.Mutate(ctx, recipeID, target,
		func(ctx context.Context, _ bool) (bool, error) {
			resp, err := f.gateway.ToggleFavorite(ctx, recipeID)
			if err != nil {
				return false, err
			}
			return resp.IsFavorited, nil
		})
	if err != nil {
		return false, err
	}
	if !applied {
		return false, nil
	}
	if !confirmed {
		f.forget(recipeID)
	}
	return confirmed, nil
}

// forget drops a committed false entry so the mirror stays a plain set.
func (f *Favorites) forget(recipeID int) {
	f.col.DropIf(recipeID, func(v bool) bool { return !v })
}

// IsFavorited reports the local (read-your-writes) favorited state.
func (f *Favorites) IsFavorited(recipeID int) bool {
	v, ok := f.col.Get(recipeID)
	return ok && v
}

// Count returns the number of locally favorited recipes.
func (f *Favorites) Count() int {
	n := 0
	for _, v := range f.col.Snapshot() {
		if v {
			n++
		}
	}
	return n
}
