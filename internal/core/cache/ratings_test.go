package cache

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/cookeasy/recipe-client/internal/core/domain"
	"github.com/cookeasy/recipe-client/internal/core/ports"
)

func TestRatings_Submit_CommitsRecordAndStats(t *testing.T) {
	gw := &stubGateway{
		submitRatingFn: func(_ context.Context, recipeID int, input domain.RatingInput) (*ports.RatingResponse, error) {
			return &ports.RatingResponse{
				Record: domain.RatingRecord{
					RecipeID: recipeID,
					Rating:   input.Rating,
					Review:   strings.TrimSpace(input.Review),
				},
				Stats: domain.AggregateStats{RecipeID: recipeID, AverageRating: 4.5, RatingCount: 2},
			}, nil
		},
	}
	ratings := NewRatings(gw, &stubSession{}, zerolog.Nop())

	record, err := ratings.Submit(context.Background(), 10, domain.RatingInput{Rating: 5, Review: "  lovely  "})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if record == nil || record.Review != "lovely" {
		t.Fatalf("expected server-normalized record, got %+v", record)
	}

	got, ok := ratings.UserRating(10)
	if !ok || got.Rating != 5 || got.Review != "lovely" {
		t.Fatalf("unexpected local record: %+v ok=%v", got, ok)
	}

	stats, ok := ratings.Stats(10)
	if !ok || stats.RatingCount != 2 || stats.AverageRating != 4.5 {
		t.Fatalf("expected aggregate cached from response, got %+v ok=%v", stats, ok)
	}
}

func TestRatings_Submit_InvalidInputRejectedLocally(t *testing.T) {
	called := false
	gw := &stubGateway{
		submitRatingFn: func(_ context.Context, _ int, _ domain.RatingInput) (*ports.RatingResponse, error) {
			called = true
			return nil, nil
		},
	}
	ratings := NewRatings(gw, &stubSession{}, zerolog.Nop())

	_, err := ratings.Submit(context.Background(), 10, domain.RatingInput{Rating: 9})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if called {
		t.Fatal("invalid input must not reach the gateway")
	}
	if _, ok := ratings.UserRating(10); ok {
		t.Fatal("no state may be committed for rejected input")
	}
}

func TestRatings_Submit_FailureRollsBack(t *testing.T) {
	gw := &stubGateway{
		submitRatingFn: func(_ context.Context, _ int, _ domain.RatingInput) (*ports.RatingResponse, error) {
			return nil, domain.ErrNetworkUnavailable
		},
	}
	ratings := NewRatings(gw, &stubSession{}, zerolog.Nop())

	_, err := ratings.Submit(context.Background(), 10, domain.RatingInput{Rating: 4})
	if !errors.Is(err, domain.ErrNetworkUnavailable) {
		t.Fatalf("expected network error surfaced, got %v", err)
	}
	if _, ok := ratings.UserRating(10); ok {
		t.Fatal("optimistic rating must be rolled back")
	}
	if _, ok := ratings.Stats(10); ok {
		t.Fatal("no aggregate may be cached from a failed mutation")
	}
}

func TestRatings_Prime_SeedsOwnRecord(t *testing.T) {
	gw := &stubGateway{
		recipeRatingsFn: func(_ context.Context, recipeID int) (*ports.RecipeRatings, error) {
			return &ports.RecipeRatings{
				Ratings: []ports.RecipeRatingEntry{
					{UserID: 2, Rating: 3, Review: "fine"},
					{UserID: 5, Rating: 4, Review: "mine"},
				},
				Stats: domain.AggregateStats{RecipeID: recipeID, AverageRating: 3.5, RatingCount: 2},
			}, nil
		},
	}
	ratings := NewRatings(gw, &stubSession{}, zerolog.Nop())

	if err := ratings.Prime(context.Background(), 20, 5); err != nil {
		t.Fatalf("prime: %v", err)
	}

	rec, ok := ratings.UserRating(20)
	if !ok || rec.Rating != 4 || rec.Review != "mine" {
		t.Fatalf("expected own record seeded, got %+v ok=%v", rec, ok)
	}
	if _, ok := ratings.Stats(20); !ok {
		t.Fatal("expected aggregate seeded")
	}
}

func TestRatings_ResetClearsRecordsAndStats(t *testing.T) {
	gw := &stubGateway{
		submitRatingFn: func(_ context.Context, recipeID int, input domain.RatingInput) (*ports.RatingResponse, error) {
			return &ports.RatingResponse{
				Record: domain.RatingRecord{RecipeID: recipeID, Rating: input.Rating},
				Stats:  domain.AggregateStats{RecipeID: recipeID, AverageRating: 5, RatingCount: 1},
			}, nil
		},
	}
	ratings := NewRatings(gw, &stubSession{}, zerolog.Nop())

	if _, err := ratings.Submit(context.Background(), 10, domain.RatingInput{Rating: 5}); err != nil {
		t.Fatalf("submit: %v", err)
	}

	ratings.Reset()

	if _, ok := ratings.UserRating(10); ok {
		t.Fatal("reset must clear records")
	}
	if _, ok := ratings.Stats(10); ok {
		t.Fatal("reset must clear aggregates")
	}
}
