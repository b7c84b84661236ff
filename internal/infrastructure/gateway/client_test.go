package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/cookeasy/recipe-client/internal/core/domain"
	"github.com/cookeasy/recipe-client/internal/core/ports"
	"github.com/cookeasy/recipe-client/internal/infrastructure/gatewaytest"
)

func staticToken(token string) ports.TokenSource {
	return ports.TokenSourceFunc(func() (string, bool) { return token, token != "" })
}

func testClient(t *testing.T) (*Client, *gatewaytest.Server, domain.Identity) {
	t.Helper()
	backend := gatewaytest.New()
	t.Cleanup(backend.Close)

	identity := backend.AddUser("alice", "alice@example.com", "sourdough4ever", domain.RoleChef)
	token := backend.IssueToken(identity, time.Hour)
	client := NewClient(backend.URL(), 5*time.Second, staticToken(token), zerolog.Nop())
	return client, backend, identity
}

func TestClient_Login(t *testing.T) {
	client, _, _ := testClient(t)

	resp, err := client.Login(context.Background(), domain.Credentials{
		Email:    "alice@example.com",
		Password: "sourdough4ever",
	})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("expected token")
	}
	if resp.Identity.Username != "alice" || resp.Identity.Role != domain.RoleChef {
		t.Fatalf("unexpected identity %+v", resp.Identity)
	}
}

func TestClient_Login_BadPassword(t *testing.T) {
	client, _, _ := testClient(t)

	_, err := client.Login(context.Background(), domain.Credentials{
		Email:    "alice@example.com",
		Password: "wrong",
	})
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestClient_FetchProfile(t *testing.T) {
	client, _, identity := testClient(t)

	got, err := client.FetchProfile(context.Background())
	if err != nil {
		t.Fatalf("fetch profile: %v", err)
	}
	if got.ID != identity.ID || got.Email != identity.Email {
		t.Fatalf("unexpected profile %+v", got)
	}
}

func TestClient_FetchProfile_NoToken(t *testing.T) {
	backend := gatewaytest.New()
	t.Cleanup(backend.Close)
	client := NewClient(backend.URL(), 5*time.Second, staticToken(""), zerolog.Nop())

	_, err := client.FetchProfile(context.Background())
	if !errors.Is(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestClient_UpdateProfile(t *testing.T) {
	client, _, _ := testClient(t)

	bio := "fermentation enthusiast"
	got, err := client.UpdateProfile(context.Background(), domain.IdentityPatch{Bio: &bio})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if got.Bio != bio {
		t.Fatalf("expected bio applied, got %q", got.Bio)
	}
}

func TestClient_FavoritesEndpoints(t *testing.T) {
	client, backend, identity := testClient(t)
	backend.SetFavorites(identity.ID, 4, 8)

	ids, err := client.LoadFavorites(context.Background())
	if err != nil {
		t.Fatalf("load favorites: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 favorites, got %v", ids)
	}

	resp, err := client.ToggleFavorite(context.Background(), 4)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if resp.IsFavorited {
		t.Fatal("expected recipe 4 toggled off")
	}
}

func TestClient_RatingEndpoints(t *testing.T) {
	client, _, identity := testClient(t)

	resp, err := client.SubmitRating(context.Background(), 10, domain.RatingInput{Rating: 5, Review: "superb"})
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	if resp.Record.Rating != 5 || resp.Stats.RatingCount != 1 {
		t.Fatalf("unexpected response %+v", resp)
	}

	list, err := client.FetchRecipeRatings(context.Background(), 10)
	if err != nil {
		t.Fatalf("list ratings: %v", err)
	}
	if len(list.Ratings) != 1 || list.Ratings[0].UserID != identity.ID {
		t.Fatalf("unexpected ratings %+v", list.Ratings)
	}
}

func TestClient_SubmitRating_ValidationDetail(t *testing.T) {
	client, _, _ := testClient(t)

	_, err := client.SubmitRating(context.Background(), 10, domain.RatingInput{Rating: 9})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if _, ok := ve.Fields["rating"]; !ok {
		t.Fatalf("expected field detail, got %v", ve.Fields)
	}
}

func TestClient_ErrorMapping(t *testing.T) {
	client, backend, _ := testClient(t)

	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, domain.ErrUnauthorized},
		{http.StatusForbidden, domain.ErrForbidden},
		{http.StatusInternalServerError, domain.ErrServer},
		{http.StatusBadGateway, domain.ErrServer},
	}
	for _, tc := range cases {
		backend.FailNext(tc.status)
		_, err := client.FetchProfile(context.Background())
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
	}
}

func TestClient_NetworkFailure(t *testing.T) {
	// A server that is no longer there.
	dead := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	dead.Close()

	client := NewClient(dead.URL, time.Second, staticToken("tok"), zerolog.Nop())
	_, err := client.FetchProfile(context.Background())
	if !errors.Is(err, domain.ErrNetworkUnavailable) {
		t.Fatalf("expected ErrNetworkUnavailable, got %v", err)
	}
	if !domain.Retryable(err) {
		t.Fatal("network failure should be retryable")
	}
}
