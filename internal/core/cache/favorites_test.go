package cache

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cookeasy/recipe-client/internal/core/domain"
	"github.com/cookeasy/recipe-client/internal/core/ports"
)

// stubGateway implements the slice of ports.RemoteGateway the caches use.
type stubGateway struct {
	ports.RemoteGateway

	loadFavoritesFn  func(ctx context.Context) ([]int, error)
	toggleFavoriteFn func(ctx context.Context, recipeID int) (*ports.FavoriteResponse, error)
	submitRatingFn   func(ctx context.Context, recipeID int, input domain.RatingInput) (*ports.RatingResponse, error)
	recipeRatingsFn  func(ctx context.Context, recipeID int) (*ports.RecipeRatings, error)
}

func (s *stubGateway) LoadFavorites(ctx context.Context) ([]int, error) {
	return s.loadFavoritesFn(ctx)
}

func (s *stubGateway) ToggleFavorite(ctx context.Context, recipeID int) (*ports.FavoriteResponse, error) {
	return s.toggleFavoriteFn(ctx, recipeID)
}

func (s *stubGateway) SubmitRating(ctx context.Context, recipeID int, input domain.RatingInput) (*ports.RatingResponse, error) {
	return s.submitRatingFn(ctx, recipeID, input)
}

func (s *stubGateway) FetchRecipeRatings(ctx context.Context, recipeID int) (*ports.RecipeRatings, error) {
	return s.recipeRatingsFn(ctx, recipeID)
}

func TestFavorites_LoadAndRead(t *testing.T) {
	gw := &stubGateway{
		loadFavoritesFn: func(_ context.Context) ([]int, error) {
			return []int{4, 8}, nil
		},
	}
	fav := NewFavorites(gw, &stubSession{}, zerolog.Nop())

	if err := fav.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
	if !fav.IsFavorited(4) || !fav.IsFavorited(8) {
		t.Fatal("loaded favorites missing")
	}
	if fav.IsFavorited(5) {
		t.Fatal("unexpected favorite")
	}
	if fav.Count() != 2 {
		t.Fatalf("count = %d, want 2", fav.Count())
	}
}

func TestFavorites_Toggle_CommitsServerAnswer(t *testing.T) {
	gw := &stubGateway{
		toggleFavoriteFn: func(_ context.Context, recipeID int) (*ports.FavoriteResponse, error) {
			return &ports.FavoriteResponse{IsFavorited: true}, nil
		},
	}
	fav := NewFavorites(gw, &stubSession{}, zerolog.Nop())

	on, err := fav.Toggle(context.Background(), 42)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if !on || !fav.IsFavorited(42) {
		t.Fatal("expected recipe favorited after confirmed toggle")
	}
}

func TestFavorites_Toggle_ServerErrorRollsBack(t *testing.T) {
	gw := &stubGateway{
		toggleFavoriteFn: func(_ context.Context, recipeID int) (*ports.FavoriteResponse, error) {
			return nil, fmt.Errorf("%w: status 500", domain.ErrServer)
		},
	}
	fav := NewFavorites(gw, &stubSession{}, zerolog.Nop())

	_, err := fav.Toggle(context.Background(), 42)
	if !errors.Is(err, domain.ErrServer) {
		t.Fatalf("expected server error surfaced, got %v", err)
	}
	if fav.IsFavorited(42) {
		t.Fatal("optimistic favorite must be rolled back on failure")
	}
}

func TestFavorites_Toggle_OffRemovesEntry(t *testing.T) {
	on := true
	gw := &stubGateway{
		loadFavoritesFn: func(_ context.Context) ([]int, error) { return []int{7}, nil },
		toggleFavoriteFn: func(_ context.Context, recipeID int) (*ports.FavoriteResponse, error) {
			on = !on
			return &ports.FavoriteResponse{IsFavorited: on}, nil
		},
	}
	fav := NewFavorites(gw, &stubSession{}, zerolog.Nop())
	if err := fav.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	nowOn, err := fav.Toggle(context.Background(), 7)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if nowOn || fav.IsFavorited(7) {
		t.Fatal("expected recipe unfavorited")
	}
	if fav.Count() != 0 {
		t.Fatalf("count = %d, want 0", fav.Count())
	}
}

func TestFavorites_ResetClears(t *testing.T) {
	gw := &stubGateway{
		loadFavoritesFn: func(_ context.Context) ([]int, error) { return []int{1, 2, 3}, nil },
	}
	fav := NewFavorites(gw, &stubSession{}, zerolog.Nop())
	if err := fav.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}

	fav.Reset()

	if fav.Count() != 0 || fav.IsFavorited(1) {
		t.Fatal("reset must empty the mirror")
	}
}
