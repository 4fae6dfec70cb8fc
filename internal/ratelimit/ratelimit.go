// Package ratelimit enforces per-identity request budgets of the form
// "at most N requests in any window of length M".
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pageza/recipe-lens/backend/internal/metrics"
)

// Route names a budget. Each (key, route) pair is counted independently.
type Route string

const (
	RoutePredict    Route = "predict"
	RouteLogin      Route = "login"
	RouteRegister   Route = "register"
	RouteRecipeSave Route = "recipe_save"
	RouteRate       Route = "rate"
	RouteDefault    Route = "default"
)

// Rule is a budget of Limit requests per Window.
type Rule struct {
	Limit  int
	Window time.Duration
}

func (r Rule) String() string {
	return fmt.Sprintf("%d/%s", r.Limit, r.Window)
}

// ParseRule parses "<limit>/<window>", e.g. "5/1m" or "3/1h".
func ParseRule(s string) (Rule, error) {
	limitPart, windowPart, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Rule{}, fmt.Errorf("invalid rule %q: expected <limit>/<window>", s)
	}
	limit, err := strconv.Atoi(strings.TrimSpace(limitPart))
	if err != nil || limit <= 0 {
		return Rule{}, fmt.Errorf("invalid rule %q: limit must be a positive integer", s)
	}
	window, err := time.ParseDuration(strings.TrimSpace(windowPart))
	if err != nil || window <= 0 {
		return Rule{}, fmt.Errorf("invalid rule %q: window must be a positive duration", s)
	}
	return Rule{Limit: limit, Window: window}, nil
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// Store records admissions for a key. Implementations must make the
// check-and-record step atomic per key.
type Store interface {
	Take(ctx context.Context, key string, rule Rule, now time.Time) (Decision, error)
}

// Limiter maps routes to rules and delegates counting to a Store.
type Limiter struct {
	store Store
	rules map[Route]Rule
	now   func() time.Time
}

type Option func(*Limiter)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a limiter. Routes without a rule use the RouteDefault rule, and
// are unlimited if that is missing too.
func New(store Store, rules map[Route]Rule, opts ...Option) *Limiter {
	l := &Limiter{
		store: store,
		rules: rules,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Rule returns the rule applied to route.
func (l *Limiter) Rule(route Route) (Rule, bool) {
	if r, ok := l.rules[route]; ok {
		return r, true
	}
	r, ok := l.rules[RouteDefault]
	return r, ok
}

// Admit checks and records one request for key on route.
func (l *Limiter) Admit(ctx context.Context, key string, route Route) (Decision, error) {
	rule, ok := l.Rule(route)
	if !ok {
		return Decision{Allowed: true, Remaining: -1}, nil
	}

	d, err := l.store.Take(ctx, storeKey(route, key), rule, l.now())
	if err != nil {
		metrics.RateLimitDecisions.WithLabelValues(string(route), "error").Inc()
		return Decision{}, fmt.Errorf("rate limit store: %w", err)
	}

	if d.Allowed {
		metrics.RateLimitDecisions.WithLabelValues(string(route), "allowed").Inc()
	} else {
		metrics.RateLimitDecisions.WithLabelValues(string(route), "denied").Inc()
	}
	return d, nil
}

func storeKey(route Route, key string) string {
	return "rate_limit:" + string(route) + ":" + key
}
