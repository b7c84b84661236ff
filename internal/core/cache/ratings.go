package cache

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cookeasy/recipe-client/internal/core/domain"
	"github.com/cookeasy/recipe-client/internal/core/ports"
)

// Ratings mirrors the signed-in user's own rating per recipe, plus an
// opportunistic cache of server-computed aggregate stats. The backend
// exposes no bulk "my ratings" endpoint, so records accumulate from
// mutation responses and from priming individual recipes.
type Ratings struct {
	gateway ports.RemoteGateway
	sess    Session
	col     *Collection[int, domain.RatingRecord]

	// stats is not identity-scoped, but it is cleared with the session
	// anyway: it is only ever populated from responses to this identity's
	// calls, and a fresh session should not trust a dead one's snapshot.
	statsMu sync.Mutex
	stats   map[int]domain.AggregateStats
}

// NewRatings wires the ratings mirror to the gateway.
func NewRatings(gateway ports.RemoteGateway, sess Session, log zerolog.Logger) *Ratings {
	return &Ratings{
		gateway: gateway,
		sess:    sess,
		col:     NewCollection[int, domain.RatingRecord]("ratings", sess, log),
		stats:   make(map[int]domain.AggregateStats),
	}
}

// Reset empties both the rating records and the aggregate cache.
func (r *Ratings) Reset() {
	r.col.Reset()
	r.statsMu.Lock()
	r.stats = make(map[int]domain.AggregateStats)
	r.statsMu.Unlock()
}

// Submit records the user's rating for a recipe optimistically, confirms it
// with the backend, and on success also caches the recomputed aggregate
// from the response payload. Failures roll the optimistic record back and
// surface to the caller.
func (r *Ratings) Submit(ctx context.Context, recipeID int, input domain.RatingInput) (*domain.RatingRecord, error) {
	if err := domain.Validate(input); err != nil {
		return nil, err
	}

	gen := r.sess.Generation()
	optimistic := domain.RatingRecord{RecipeID: recipeID, Rating: input.Rating, Review: input.Review}

	confirmed, applied, err := r.col.Mutate(ctx, recipeID, optimistic,
		func(ctx context.Context, _ domain.RatingRecord) (domain.RatingRecord, error) {
			resp, err := r.gateway.SubmitRating(ctx, recipeID, input)
			if err != nil {
				return domain.RatingRecord{}, err
			}
			r.cacheStats(gen, resp.Stats)
			return resp.Record, nil
		})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, nil
	}
	return &confirmed, nil
}

// Prime fetches one recipe's ratings and seeds the mirror with the current
// identity's own record (when present) and the recipe's aggregate. The
// response is discarded if the identity changed mid-flight.
func (r *Ratings) Prime(ctx context.Context, recipeID, identityID int) error {
	gen := r.sess.Generation()

	resp, err := r.gateway.FetchRecipeRatings(ctx, recipeID)
	if err != nil {
		return err
	}

	r.cacheStats(gen, resp.Stats)

	for _, entry := range resp.Ratings {
		if entry.UserID != identityID {
			continue
		}
		r.col.Seed(recipeID, domain.RatingRecord{
			RecipeID: recipeID,
			Rating:   entry.Rating,
			Review:   entry.Review,
		}, gen)
		break
	}
	return nil
}

// UserRating returns the current identity's rating for a recipe:
// read-your-writes, including a not-yet-confirmed optimistic record.
func (r *Ratings) UserRating(recipeID int) (domain.RatingRecord, bool) {
	return r.col.Get(recipeID)
}

// Stats returns the cached aggregate for a recipe, if any response has
// carried one this session.
func (r *Ratings) Stats(recipeID int) (domain.AggregateStats, bool) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	s, ok := r.stats[recipeID]
	return s, ok
}

// cacheStats stores an aggregate from a response issued at gen, unless the
// session has moved on since.
func (r *Ratings) cacheStats(gen uint64, stats domain.AggregateStats) {
	if gen != r.sess.Generation() {
		return
	}
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	r.stats[stats.RecipeID] = stats
}
