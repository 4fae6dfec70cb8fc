package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/recipe-lens/backend/internal/service"
	"github.com/pageza/recipe-lens/backend/internal/testhelpers"
)

func exampleResult() *service.InferenceResult {
	p := 0.8
	return &service.InferenceResult{
		Classification:  service.ClassificationSuccess,
		FoodProbability: &p,
		Recipes: []service.RecipeDraft{
			{Title: "Pancakes", Ingredients: []string{"flour", "milk"}, Instructions: []string{"Mix.", "Fry."}},
		},
	}
}

func TestMemoryResultCache(t *testing.T) {
	c := service.NewMemoryResultCache(time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", exampleResult(), time.Minute))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Pancakes", got.Recipes[0].Title)

	// Callers get their own copy.
	got.Cached = true
	again, _, _ := c.Get(ctx, "k")
	assert.False(t, again.Cached)
}

func TestRedisResultCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-based test in short mode")
	}
	client := testhelpers.SetupTestRedis(t)
	c := service.NewRedisResultCache(client)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k", exampleResult(), time.Minute))
	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, exampleResult(), got)

	ttl, err := client.TTL(ctx, "inference:result:k").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)
}
