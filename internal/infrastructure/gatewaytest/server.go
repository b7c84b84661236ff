// Package gatewaytest runs an in-process CookEasy backend for integration
// tests: real HTTP, real HS256 JWTs, bcrypt-hashed fixture users, and
// knobs for injecting failures. It implements exactly the surface the
// gateway client consumes, nothing more.
package gatewaytest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/cookeasy/recipe-client/internal/core/domain"
)

const tokenTTL = 24 * time.Hour

type user struct {
	identity     domain.Identity
	passwordHash []byte
}

// Server is the fake backend. All exported mutators are safe for concurrent
// use with in-flight requests.
type Server struct {
	ts     *httptest.Server
	secret string

	mu        sync.Mutex
	nextID    int
	users     map[string]*user // keyed by email
	favorites map[int]map[int]bool
	ratings   map[int]map[int]domain.RatingRecord // user id → recipe id → record
	revoked   bool
	failures  []int // HTTP statuses to force, one per upcoming request
}

// New starts the fake backend on a random local port.
func New() *Server {
	s := &Server{
		secret:    "gatewaytest-secret",
		nextID:    1,
		users:     make(map[string]*user),
		favorites: make(map[int]map[int]bool),
		ratings:   make(map[int]map[int]domain.RatingRecord),
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler

	api := e.Group("/api")
	api.POST("/auth/login", s.login)
	api.POST("/auth/register", s.register)

	authed := api.Group("", s.requireToken)
	authed.GET("/auth/profile", s.profile)
	authed.PUT("/auth/profile", s.updateProfile)
	authed.POST("/auth/logout", s.logout)
	authed.GET("/recipes/favorites", s.listFavorites)
	authed.POST("/recipes/:id/favorite", s.toggleFavorite)
	authed.POST("/recipes/:id/rate", s.rateRecipe)
	authed.GET("/recipes/:id/ratings", s.recipeRatings)

	s.ts = httptest.NewServer(s.intercept(e))
	return s
}

// URL is the API base URL clients should point at.
func (s *Server) URL() string { return s.ts.URL + "/api" }

// Close shuts the backend down.
func (s *Server) Close() { s.ts.Close() }

// AddUser registers a fixture account and returns its identity.
func (s *Server) AddUser(username, email, password string, role domain.Role) domain.Identity {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := domain.Identity{
		ID:        s.nextID,
		Username:  username,
		Email:     email,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	s.nextID++
	s.users[email] = &user{identity: id, passwordHash: hash}
	return id
}

// SetFavorites seeds the favorite set of a fixture user.
func (s *Server) SetFavorites(userID int, recipeIDs ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set := make(map[int]bool, len(recipeIDs))
	for _, id := range recipeIDs {
		set[id] = true
	}
	s.favorites[userID] = set
}

// FailNext forces the next len(statuses) requests to answer with the given
// HTTP statuses, in order, before any routing happens.
func (s *Server) FailNext(statuses ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, statuses...)
}

// RevokeTokens makes every authenticated call answer 401 until restored,
// simulating server-side session invalidation.
func (s *Server) RevokeTokens(revoked bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked = revoked
}

// IssueToken mints a token the way login does; useful for seeding persisted
// credentials in tests. ttl <= 0 produces an already-expired token.
func (s *Server) IssueToken(identity domain.Identity, ttl time.Duration) string {
	claims := jwt.MapClaims{
		"sub":   strconv.Itoa(identity.ID),
		"email": identity.Email,
		"exp":   time.Now().Add(ttl).Unix(),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(s.secret))
	if err != nil {
		panic(err)
	}
	return signed
}

// intercept applies injected failures before the router sees the request.
func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		var forced int
		if len(s.failures) > 0 {
			forced = s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mu.Unlock()

		if forced != 0 {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(forced)
			fmt.Fprint(w, `{"error":"injected failure"}`)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireToken validates the bearer JWT and resolves the fixture user,
// mirroring the production backend's token_required decorator.
func (s *Server) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		s.mu.Lock()
		revoked := s.revoked
		s.mu.Unlock()
		if revoked {
			return echo.NewHTTPError(http.StatusUnauthorized, "token revoked")
		}

		header := c.Request().Header.Get("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token")
		}

		claims := jwt.MapClaims{}
		tkn, err := jwt.ParseWithClaims(parts[1], claims, func(token *jwt.Token) (interface{}, error) {
			if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrTokenSignatureInvalid
			}
			return []byte(s.secret), nil
		})
		if err != nil || !tkn.Valid {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
		}

		email, _ := claims["email"].(string)
		s.mu.Lock()
		u, ok := s.users[email]
		s.mu.Unlock()
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "unknown user")
		}

		c.Set("user", u)
		return next(c)
	}
}

func currentUser(c echo.Context) *user {
	u, _ := c.Get("user").(*user)
	return u
}

func (s *Server) login(c echo.Context) error {
	var req domain.Credentials
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	s.mu.Lock()
	u, ok := s.users[req.Email]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(u.passwordHash, []byte(req.Password)) != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"token":   s.IssueToken(u.identity, tokenTTL),
		"user":    u.identity,
		"message": "Login successful",
	})
}

func (s *Server) register(c echo.Context) error {
	var req domain.Registration
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := domain.Validate(req); err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			return c.JSON(http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": ve.Fields,
			})
		}
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	s.mu.Lock()
	if _, exists := s.users[req.Email]; exists {
		s.mu.Unlock()
		return echo.NewHTTPError(http.StatusConflict, "email already registered")
	}
	s.mu.Unlock()

	identity := s.AddUser(req.Username, req.Email, req.Password, domain.RoleUser)
	return c.JSON(http.StatusCreated, map[string]any{
		"token":   s.IssueToken(identity, tokenTTL),
		"user":    identity,
		"message": "Account created",
	})
}

func (s *Server) profile(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"user": currentUser(c).identity})
}

func (s *Server) updateProfile(c echo.Context) error {
	var patch domain.IdentityPatch
	if err := c.Bind(&patch); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	u := currentUser(c)
	s.mu.Lock()
	u.identity = u.identity.Merge(patch)
	updated := u.identity
	s.mu.Unlock()

	return c.JSON(http.StatusOK, map[string]any{"user": updated})
}

func (s *Server) logout(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{"message": "Logged out"})
}

func (s *Server) listFavorites(c echo.Context) error {
	u := currentUser(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.favorites[u.identity.ID]))
	for id, on := range s.favorites[u.identity.ID] {
		if on {
			ids = append(ids, id)
		}
	}
	return c.JSON(http.StatusOK, map[string]any{"recipe_ids": ids})
}

func (s *Server) toggleFavorite(c echo.Context) error {
	recipeID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid recipe id")
	}
	u := currentUser(c)

	s.mu.Lock()
	defer s.mu.Unlock()
	set := s.favorites[u.identity.ID]
	if set == nil {
		set = make(map[int]bool)
		s.favorites[u.identity.ID] = set
	}
	set[recipeID] = !set[recipeID]
	return c.JSON(http.StatusOK, map[string]any{"is_favorited": set[recipeID]})
}

func (s *Server) rateRecipe(c echo.Context) error {
	recipeID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid recipe id")
	}

	var input domain.RatingInput
	if err := c.Bind(&input); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return c.JSON(http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": map[string]string{"rating": "rating must be between 1 and 5"},
		})
	}

	u := currentUser(c)
	s.mu.Lock()
	defer s.mu.Unlock()

	byRecipe := s.ratings[u.identity.ID]
	if byRecipe == nil {
		byRecipe = make(map[int]domain.RatingRecord)
		s.ratings[u.identity.ID] = byRecipe
	}
	record := domain.RatingRecord{
		RecipeID: recipeID,
		Rating:   input.Rating,
		Review:   strings.TrimSpace(input.Review),
	}
	byRecipe[recipeID] = record

	return c.JSON(http.StatusOK, map[string]any{
		"rating":       record,
		"recipe_stats": s.aggregateLocked(recipeID),
	})
}

func (s *Server) recipeRatings(c echo.Context) error {
	recipeID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid recipe id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]map[string]any, 0)
	for userID, byRecipe := range s.ratings {
		if rec, ok := byRecipe[recipeID]; ok {
			entries = append(entries, map[string]any{
				"user_id": userID,
				"rating":  rec.Rating,
				"review":  rec.Review,
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]any{
		"ratings":      entries,
		"recipe_stats": s.aggregateLocked(recipeID),
	})
}

// aggregateLocked recomputes a recipe's aggregate from stored ratings.
func (s *Server) aggregateLocked(recipeID int) domain.AggregateStats {
	var sum, count int
	for _, byRecipe := range s.ratings {
		if rec, ok := byRecipe[recipeID]; ok {
			sum += rec.Rating
			count++
		}
	}
	stats := domain.AggregateStats{RecipeID: recipeID, RatingCount: count}
	if count > 0 {
		stats.AverageRating = float64(sum) / float64(count)
	}
	return stats
}

// errorHandler renders the backend's JSON error envelope.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		_ = c.JSON(he.Code, map[string]any{"error": fmt.Sprintf("%v", he.Message)})
		return
	}
	_ = c.JSON(http.StatusInternalServerError, map[string]any{"error": "internal server error"})
}
