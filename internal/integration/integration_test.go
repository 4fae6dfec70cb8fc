// Package integration drives the full HTTP stack against PostgreSQL, Redis and
// a fake engine served over HTTP. Every test is skipped without docker.
package integration

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/pageza/recipe-lens/backend/config"
	"github.com/pageza/recipe-lens/backend/internal/api"
	"github.com/pageza/recipe-lens/backend/internal/inference"
	"github.com/pageza/recipe-lens/backend/internal/logging"
	"github.com/pageza/recipe-lens/backend/internal/ratelimit"
	"github.com/pageza/recipe-lens/backend/internal/service"
	"github.com/pageza/recipe-lens/backend/internal/testhelpers"
)

func init() {
	gin.SetMode(gin.TestMode)
	logging.Init(logging.Config{Level: "disabled"})
}

type stack struct {
	router      *gin.Engine
	engineCalls *atomic.Int32
}

// engineServer answers /infer with one valid variant.
func engineServer(t *testing.T, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if _, _, err := r.FormFile("image"); err != nil {
			http.Error(w, "missing image", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"classification": "OK",
			"food_probability": 0.97,
			"variants": [{"title": "Mushroom Risotto", "ingredients": ["rice", "mushrooms"], "instructions": ["Toast the rice.", "Add stock slowly."]}]
		}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setupStack(t *testing.T) *stack {
	t.Helper()
	db := testhelpers.SetupTestDatabase(t)
	rdb := testhelpers.SetupTestRedis(t)

	calls := &atomic.Int32{}
	engine := inference.NewHTTPEngine(engineServer(t, calls).URL, inference.WithThrottle(50, 5))

	limiter := ratelimit.New(ratelimit.NewRedisStore(rdb), map[ratelimit.Route]ratelimit.Rule{
		ratelimit.RoutePredict: {Limit: 3, Window: time.Minute},
		ratelimit.RouteDefault: {Limit: 1000, Window: time.Minute},
	})

	deps := &api.Dependencies{
		DB:        db,
		Auth:      service.NewAuthService(db, "integration-secret", time.Hour, service.WithBcryptCost(bcrypt.MinCost)),
		Recipes:   service.NewRecipeService(db),
		Ratings:   service.NewRatingService(db),
		Favorites: service.NewFavoriteService(db),
		Shopping:  service.NewShoppingService(db),
		Gateway: service.NewInferenceGateway(engine, limiter, config.InferenceConfig{
			Timeout:       5 * time.Second,
			FoodThreshold: 0.15,
			CacheTTL:      time.Minute,
		}, service.WithResultCache(service.NewRedisResultCache(rdb))),
		Limiter:        limiter,
		MaxUploadBytes: 1 << 20,
	}
	return &stack{router: api.NewRouter(deps, nil), engineCalls: calls}
}

func (s *stack) doJSON(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *stack) register(t *testing.T, email string) string {
	t.Helper()
	w := s.doJSON(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"email": email, "password": "password123"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Token
}

func (s *stack) predict(t *testing.T, token string, image []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("imagefile", "risotto.png")
	require.NoError(t, err)
	_, err = part.Write(image)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predict", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestGenerateSaveAndRate(t *testing.T) {
	s := setupStack(t)
	token := s.register(t, "cook@example.com")

	w := s.predict(t, token, []byte("risotto photo"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var first service.InferenceResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &first))
	require.Equal(t, service.ClassificationSuccess, first.Classification)
	assert.False(t, first.Cached)

	w = s.predict(t, token, []byte("risotto photo"))
	require.Equal(t, http.StatusOK, w.Code)
	var second service.InferenceResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.True(t, second.Cached)
	assert.Equal(t, int32(1), s.engineCalls.Load())

	draft := first.Recipes[0]
	w = s.doJSON(t, http.MethodPost, "/api/v1/recipes", token, map[string]interface{}{
		"title":        draft.Title,
		"ingredients":  draft.Ingredients,
		"instructions": draft.Instructions,
		"is_public":    true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var recipe struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recipe))

	w = s.doJSON(t, http.MethodPost, "/api/v1/recipes/"+recipe.ID+"/rate", token, map[string]interface{}{"rating": 5, "comment": "  lovely  "})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"rating_count":1`)
	assert.Contains(t, w.Body.String(), `"comment":"lovely"`)
}

func TestPredictBudgetSharedThroughRedis(t *testing.T) {
	s := setupStack(t)
	token := s.register(t, "budget@example.com")

	for i := 0; i < 3; i++ {
		w := s.predict(t, token, []byte(fmt.Sprintf("photo %d", i)))
		require.Equal(t, http.StatusOK, w.Code)
	}
	w := s.predict(t, token, []byte("photo 4"))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Equal(t, int32(3), s.engineCalls.Load())
}

func TestConcurrentRatingsOverHTTP(t *testing.T) {
	s := setupStack(t)
	owner := s.register(t, "owner@example.com")

	w := s.doJSON(t, http.MethodPost, "/api/v1/recipes", owner, map[string]interface{}{
		"title":        "Shared Stew",
		"ingredients":  []string{"beans"},
		"instructions": []string{"Simmer."},
		"is_public":    true,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var recipe struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recipe))

	const raters = 10
	tokens := make([]string, raters)
	for i := range tokens {
		tokens[i] = s.register(t, fmt.Sprintf("rater%d@example.com", i))
	}

	var wg sync.WaitGroup
	for i, token := range tokens {
		wg.Add(1)
		go func(value int, token string) {
			defer wg.Done()
			w := s.doJSON(t, http.MethodPost, "/api/v1/recipes/"+recipe.ID+"/rate", token, map[string]int{"rating": value})
			assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
		}(i%5+1, token)
	}
	wg.Wait()

	w = s.doJSON(t, http.MethodGet, "/api/v1/recipes/"+recipe.ID, owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		AverageRating *float64 `json:"average_rating"`
		RatingCount   int      `json:"rating_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, raters, got.RatingCount)
	require.NotNil(t, got.AverageRating)
	assert.InDelta(t, 3.0, *got.AverageRating, 1e-9)
}
