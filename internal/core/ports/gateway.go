package ports

import (
	"context"

	"github.com/cookeasy/recipe-client/internal/core/domain"
)

// LoginResponse is the payload of a successful login or registration.
type LoginResponse struct {
	Token    string          `json:"token"`
	Identity domain.Identity `json:"user"`
	Message  string          `json:"message,omitempty"`
}

// FavoriteResponse is the server's answer to a favorite toggle: the
// authoritative favorited state after the toggle was applied.
type FavoriteResponse struct {
	IsFavorited bool `json:"is_favorited"`
}

// RatingResponse is the server's answer to a rating submission: the
// normalized record plus the recomputed aggregate for the recipe.
type RatingResponse struct {
	Record domain.RatingRecord   `json:"rating"`
	Stats  domain.AggregateStats `json:"recipe_stats"`
}

// RecipeRatingEntry is one visible rating on a recipe.
type RecipeRatingEntry struct {
	UserID int    `json:"user_id"`
	Rating int    `json:"rating"`
	Review string `json:"review,omitempty"`
}

// RecipeRatings lists the ratings visible on one recipe along with its
// aggregate, as returned by the per-recipe ratings endpoint.
type RecipeRatings struct {
	Ratings []RecipeRatingEntry   `json:"ratings"`
	Stats   domain.AggregateStats `json:"recipe_stats"`
}

// RemoteGateway is the stateless HTTP boundary to the recipe backend. It
// holds no client state of its own: the bearer token is pulled per request
// from the token source it was constructed with, and every error it returns
// is one of the domain taxonomy kinds.
type RemoteGateway interface {
	Login(ctx context.Context, creds domain.Credentials) (*LoginResponse, error)
	Register(ctx context.Context, reg domain.Registration) (*LoginResponse, error)
	FetchProfile(ctx context.Context) (*domain.Identity, error)
	UpdateProfile(ctx context.Context, patch domain.IdentityPatch) (*domain.Identity, error)
	Logout(ctx context.Context) error

	LoadFavorites(ctx context.Context) ([]int, error)
	ToggleFavorite(ctx context.Context, recipeID int) (*FavoriteResponse, error)

	SubmitRating(ctx context.Context, recipeID int, input domain.RatingInput) (*RatingResponse, error)
	FetchRecipeRatings(ctx context.Context, recipeID int) (*RecipeRatings, error)
}

// TokenSource supplies the current bearer token, if any. Implemented by the
// session store so the gateway never caches credentials.
type TokenSource interface {
	Token() (string, bool)
}

// TokenSourceFunc adapts a plain function to a TokenSource.
type TokenSourceFunc func() (string, bool)

func (f TokenSourceFunc) Token() (string, bool) { return f() }
