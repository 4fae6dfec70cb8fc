package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/pageza/recipe-lens/backend/config"
	"github.com/pageza/recipe-lens/backend/internal/inference"
	"github.com/pageza/recipe-lens/backend/internal/logging"
	"github.com/pageza/recipe-lens/backend/internal/metrics"
	"github.com/pageza/recipe-lens/backend/internal/ratelimit"
)

// Classification is the outcome of one generation request.
type Classification string

const (
	ClassificationSuccess   Classification = "success"
	ClassificationNotFood   Classification = "not_food"
	ClassificationNotRecipe Classification = "not_recipe"
)

// InferenceRequest is one uploaded image plus optional user overrides.
type InferenceRequest struct {
	Image    []byte
	Filename string
	// Title replaces the generated title when non-blank.
	Title string
	// Ingredients is a comma separated list appended to every variant.
	Ingredients string
}

// RecipeDraft is an unsaved generated recipe.
type RecipeDraft struct {
	Title        string   `json:"title"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
}

type InferenceResult struct {
	Classification  Classification `json:"classification"`
	Recipes         []RecipeDraft  `json:"recipes"`
	Reasons         []string       `json:"reasons,omitempty"`
	FoodProbability *float64       `json:"food_probability,omitempty"`
	ImageURL        *string        `json:"image_url,omitempty"`
	Cached          bool           `json:"cached"`
}

// InferenceGateway mediates between users and the inference engine: it
// enforces the predict budget, calls the engine at most once per request and
// classifies what comes back.
type InferenceGateway struct {
	engine    inference.Engine
	limiter   *ratelimit.Limiter
	cache     ResultCache
	images    ImageStore
	breaker   *gobreaker.CircuitBreaker[*inference.Output]
	flights   singleflight.Group
	timeout   time.Duration
	threshold float64
	cacheTTL  time.Duration
}

type GatewayOption func(*InferenceGateway)

func WithResultCache(c ResultCache) GatewayOption {
	return func(g *InferenceGateway) { g.cache = c }
}

func WithImageStore(s ImageStore) GatewayOption {
	return func(g *InferenceGateway) { g.images = s }
}

// NewInferenceGateway builds a gateway. limiter may be nil to disable the
// predict budget.
func NewInferenceGateway(engine inference.Engine, limiter *ratelimit.Limiter, cfg config.InferenceConfig, opts ...GatewayOption) *InferenceGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	g := &InferenceGateway{
		engine:    engine,
		limiter:   limiter,
		timeout:   cfg.Timeout,
		threshold: cfg.FoodThreshold,
		cacheTTL:  cfg.CacheTTL,
	}

	failures := cfg.BreakerFailures
	g.breaker = gobreaker.NewCircuitBreaker[*inference.Output](gobreaker.Settings{
		Name:        "inference",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state changed")
		},
	})
	metrics.CircuitBreakerState.WithLabelValues("inference").Set(float64(gobreaker.StateClosed))

	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate turns an image into recipe variants. identity is the rate-limit
// key of the caller. NotFood and NotRecipe are results, not errors.
func (g *InferenceGateway) Generate(ctx context.Context, identity string, req *InferenceRequest) (*InferenceResult, error) {
	if len(req.Image) == 0 {
		return nil, invalid("imagefile", "an image is required")
	}
	if err := g.admit(ctx, identity); err != nil {
		return nil, err
	}

	key := resultKey(req)
	if g.cache != nil {
		cached, ok, err := g.cache.Get(ctx, key)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("inference cache lookup failed")
		} else if ok {
			cached.Cached = true
			metrics.InferenceOutcomes.WithLabelValues("cached").Inc()
			return cached, nil
		}
	}

	out, err := g.infer(ctx, req)
	if err != nil {
		return nil, err
	}

	result := classify(out, g.threshold)
	if result.Classification == ClassificationSuccess {
		mergeOverrides(result, req)
	}

	// The caller left while the engine ran; drop the result.
	if err := ctx.Err(); err != nil {
		metrics.InferenceOutcomes.WithLabelValues("discarded").Inc()
		return nil, err
	}

	if result.Classification == ClassificationSuccess && g.images != nil {
		objectKey, contentType := imageObjectKey(req.Image)
		url, err := g.images.Put(ctx, objectKey, req.Image, contentType)
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("image upload failed, returning result without image")
		} else {
			result.ImageURL = &url
		}
	}

	if g.cache != nil && g.cacheTTL > 0 {
		if err := g.cache.Set(ctx, key, result, g.cacheTTL); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("inference cache store failed")
		}
	}

	metrics.InferenceOutcomes.WithLabelValues(string(result.Classification)).Inc()
	logging.Ctx(ctx).Info().
		Str("classification", string(result.Classification)).
		Int("variants", len(result.Recipes)).
		Msg("inference classified")
	return result, nil
}

// admit charges one predict request to identity. The predict route fails
// closed when the limiter store is unreachable.
func (g *InferenceGateway) admit(ctx context.Context, identity string) error {
	if g.limiter == nil {
		return nil
	}

	d, err := g.limiter.Admit(ctx, identity, ratelimit.RoutePredict)
	if err != nil {
		logging.Ctx(ctx).Error().Err(err).Msg("rate limiter unavailable, rejecting inference")
		metrics.InferenceOutcomes.WithLabelValues("unavailable").Inc()
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if !d.Allowed {
		metrics.InferenceOutcomes.WithLabelValues("rate_limited").Inc()
		return &RateLimitError{
			Route:      string(ratelimit.RoutePredict),
			Limit:      d.Limit,
			RetryAfter: d.RetryAfter,
		}
	}
	return nil
}

// infer waits for the engine output. Identical images in flight share one
// engine call, which runs detached from ctx so a departing caller does not
// cancel it for the others.
func (g *InferenceGateway) infer(ctx context.Context, req *InferenceRequest) (*inference.Output, error) {
	flight := g.flights.DoChan(contentKey(req.Image), func() (interface{}, error) {
		return g.callEngine(context.WithoutCancel(ctx), req)
	})

	select {
	case <-ctx.Done():
		metrics.InferenceOutcomes.WithLabelValues("discarded").Inc()
		return nil, ctx.Err()
	case res := <-flight:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*inference.Output), nil
	}
}

func (g *InferenceGateway) callEngine(parent context.Context, req *InferenceRequest) (*inference.Output, error) {
	ctx, cancel := context.WithTimeout(parent, g.timeout)
	defer cancel()

	out, err := g.breaker.Execute(func() (*inference.Output, error) {
		start := time.Now()
		defer func() { metrics.InferenceDuration.Observe(time.Since(start).Seconds()) }()

		type reply struct {
			out *inference.Output
			err error
		}
		done := make(chan reply, 1)
		go func() {
			out, err := g.engine.Infer(ctx, req.Image, req.Filename)
			done <- reply{out: out, err: err}
		}()

		select {
		case r := <-done:
			if r.err == nil && r.out == nil {
				return nil, inference.ErrMalformedResponse
			}
			return r.out, r.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
	if err != nil {
		logging.Ctx(parent).Warn().Err(err).Msg("inference engine call failed")
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			metrics.InferenceOutcomes.WithLabelValues("circuit_open").Inc()
			return nil, ErrInferenceCircuitOpen
		case errors.Is(err, context.DeadlineExceeded):
			metrics.InferenceOutcomes.WithLabelValues("unavailable").Inc()
			return nil, fmt.Errorf("%w: no answer within %s", ErrInferenceUnavailable, g.timeout)
		default:
			metrics.InferenceOutcomes.WithLabelValues("unavailable").Inc()
			return nil, fmt.Errorf("%w: %v", ErrInferenceUnavailable, err)
		}
	}
	return out, nil
}

// classify reduces engine output to exactly one Classification.
func classify(out *inference.Output, threshold float64) *InferenceResult {
	result := &InferenceResult{
		FoodProbability: out.FoodProbability,
		Recipes:         []RecipeDraft{},
	}

	if out.Class == inference.ClassNotFood ||
		(out.FoodProbability != nil && *out.FoodProbability < threshold) {
		result.Classification = ClassificationNotFood
		result.Reasons = []string{"the image does not appear to show food"}
		return result
	}

	var reasons []string
	for i, v := range out.Variants {
		draft := RecipeDraft{
			Title:        strings.TrimSpace(v.Title),
			Ingredients:  cleanLines(v.Ingredients),
			Instructions: cleanLines(v.Instructions),
		}
		if problem := variantProblem(v.Reason, draft); problem != "" {
			reasons = append(reasons, fmt.Sprintf("variant %d: %s", i+1, problem))
			continue
		}
		result.Recipes = append(result.Recipes, draft)
	}

	if out.Class == inference.ClassNotRecipe || len(result.Recipes) == 0 {
		result.Classification = ClassificationNotRecipe
		result.Recipes = []RecipeDraft{}
		if len(reasons) == 0 {
			reasons = []string{"no recipe could be produced from this image"}
		}
		result.Reasons = reasons
		return result
	}

	result.Classification = ClassificationSuccess
	return result
}

func variantProblem(engineReason string, d RecipeDraft) string {
	switch {
	case engineReason != "":
		return engineReason
	case degenerateTitle(d.Title):
		return "title is not a recipe name"
	case len(d.Ingredients) == 0:
		return "ingredients are empty"
	case len(d.Instructions) == 0:
		return "instructions are empty"
	}
	return ""
}

// degenerateTitle reports blank, punctuation-only and sentinel titles.
func degenerateTitle(title string) bool {
	if strings.EqualFold(title, inference.LegacyNotFoodTitle) ||
		strings.EqualFold(title, inference.LegacyNotRecipeTitle) {
		return true
	}
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// mergeOverrides applies the user's title and extra ingredients to every
// variant of a successful result.
func mergeOverrides(result *InferenceResult, req *InferenceRequest) {
	title := strings.TrimSpace(req.Title)
	extras := splitIngredients(req.Ingredients)

	for i := range result.Recipes {
		if title != "" {
			result.Recipes[i].Title = title
		}
		result.Recipes[i].Ingredients = appendUnique(result.Recipes[i].Ingredients, extras)
	}
}

// splitIngredients parses a comma separated override list.
func splitIngredients(s string) []string {
	return appendUnique(nil, strings.Split(s, ","))
}

// appendUnique appends the non-blank extras that are not already present,
// comparing case-insensitively.
func appendUnique(base []string, extras []string) []string {
	seen := make(map[string]struct{}, len(base)+len(extras))
	for _, item := range base {
		seen[strings.ToLower(item)] = struct{}{}
	}
	for _, item := range extras {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		k := strings.ToLower(item)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		base = append(base, item)
	}
	return base
}
