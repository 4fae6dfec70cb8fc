package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pageza/recipe-lens/backend/internal/models"
	"github.com/pageza/recipe-lens/backend/internal/service"
	"github.com/pageza/recipe-lens/backend/internal/testhelpers"
)

func rateAs(t *testing.T, db *gorm.DB, svc *service.RatingService, recipe *models.Recipe, n int, value int) {
	t.Helper()
	for i := 0; i < n; i++ {
		user := testhelpers.CreateUser(t, db, uuid.NewString()+"@example.com")
		_, err := svc.Rate(context.Background(), recipe.ID, user.ID, value, nil)
		require.NoError(t, err)
	}
}

func TestRateComputesAverage(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	svc := service.NewRatingService(db)
	owner := testhelpers.CreateUser(t, db, "owner@example.com")
	recipe := testhelpers.CreateRecipe(t, db, owner, true)

	rateAs(t, db, svc, recipe, 4, 5)

	critic := testhelpers.CreateUser(t, db, "critic@example.com")
	res, err := svc.Rate(context.Background(), recipe.ID, critic.ID, 1, nil)
	require.NoError(t, err)

	require.NotNil(t, res.AverageRating)
	assert.InDelta(t, 4.2, *res.AverageRating, 1e-9)
	assert.Equal(t, 5, res.RatingCount)
	assert.Equal(t, 1, res.Rating.Value)

	var stored models.Recipe
	require.NoError(t, db.First(&stored, "id = ?", recipe.ID).Error)
	require.NotNil(t, stored.AverageRating)
	assert.InDelta(t, 4.2, *stored.AverageRating, 1e-9)
	assert.Equal(t, 5, stored.RatingCount)
}

func TestReRateUpdatesInPlace(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	svc := service.NewRatingService(db)
	ctx := context.Background()
	owner := testhelpers.CreateUser(t, db, "owner@example.com")
	rater := testhelpers.CreateUser(t, db, "rater@example.com")
	recipe := testhelpers.CreateRecipe(t, db, owner, true)

	comment := "  too salty "
	first, err := svc.Rate(ctx, recipe.ID, rater.ID, 2, &comment)
	require.NoError(t, err)
	require.NotNil(t, first.Rating.Comment)
	assert.Equal(t, "too salty", *first.Rating.Comment)

	blank := "   "
	second, err := svc.Rate(ctx, recipe.ID, rater.ID, 4, &blank)
	require.NoError(t, err)

	assert.Equal(t, 1, second.RatingCount)
	assert.InDelta(t, 4.0, *second.AverageRating, 1e-9)
	assert.Equal(t, first.Rating.ID, second.Rating.ID)
	assert.Nil(t, second.Rating.Comment)

	var rows int64
	require.NoError(t, db.Model(&models.Rating{}).Where("recipe_id = ?", recipe.ID).Count(&rows).Error)
	assert.Equal(t, int64(1), rows)
}

func TestRateValidation(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	svc := service.NewRatingService(db)
	owner := testhelpers.CreateUser(t, db, "owner@example.com")
	recipe := testhelpers.CreateRecipe(t, db, owner, true)

	for _, v := range []int{0, 6, -1} {
		_, err := svc.Rate(context.Background(), recipe.ID, owner.ID, v, nil)
		assert.ErrorIs(t, err, service.ErrValidation, "value %d", v)
	}
}

func TestRatePrivateRecipe(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	svc := service.NewRatingService(db)
	ctx := context.Background()
	owner := testhelpers.CreateUser(t, db, "owner@example.com")
	other := testhelpers.CreateUser(t, db, "other@example.com")
	recipe := testhelpers.CreateRecipe(t, db, owner, false)

	_, err := svc.Rate(ctx, recipe.ID, other.ID, 5, nil)
	assert.ErrorIs(t, err, service.ErrForbidden)

	_, err = svc.Rate(ctx, recipe.ID, owner.ID, 5, nil)
	assert.NoError(t, err)

	_, err = svc.Rate(ctx, uuid.New(), owner.ID, 5, nil)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestUnrate(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	svc := service.NewRatingService(db)
	ctx := context.Background()
	owner := testhelpers.CreateUser(t, db, "owner@example.com")
	recipe := testhelpers.CreateRecipe(t, db, owner, true)

	_, err := svc.Unrate(ctx, recipe.ID, owner.ID)
	assert.ErrorIs(t, err, service.ErrNotFound)

	_, err = svc.Rate(ctx, recipe.ID, owner.ID, 3, nil)
	require.NoError(t, err)

	agg, err := svc.Unrate(ctx, recipe.ID, owner.ID)
	require.NoError(t, err)
	assert.Nil(t, agg.AverageRating)
	assert.Zero(t, agg.RatingCount)

	var stored models.Recipe
	require.NoError(t, db.First(&stored, "id = ?", recipe.ID).Error)
	assert.Nil(t, stored.AverageRating)
	assert.Zero(t, stored.RatingCount)
}

func TestListAndMyRating(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	svc := service.NewRatingService(db)
	ctx := context.Background()
	owner := testhelpers.CreateUser(t, db, "owner@example.com")
	rater := testhelpers.CreateUser(t, db, "rater@example.com")
	recipe := testhelpers.CreateRecipe(t, db, owner, true)

	mine, err := svc.MyRating(ctx, recipe.ID, rater.ID)
	require.NoError(t, err)
	assert.Nil(t, mine)

	_, err = svc.Rate(ctx, recipe.ID, rater.ID, 5, nil)
	require.NoError(t, err)
	_, err = svc.Rate(ctx, recipe.ID, owner.ID, 3, nil)
	require.NoError(t, err)

	mine, err = svc.MyRating(ctx, recipe.ID, rater.ID)
	require.NoError(t, err)
	require.NotNil(t, mine)
	assert.Equal(t, 5, mine.Value)

	all, err := svc.ListRatings(ctx, recipe.ID, rater.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

// Concurrent raters on PostgreSQL must not lose updates to the aggregate.
func TestConcurrentRatingsPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container-based test in short mode")
	}
	db := testhelpers.SetupTestDatabase(t)
	svc := service.NewRatingService(db)
	owner := testhelpers.CreateUser(t, db, "owner@example.com")
	recipe := testhelpers.CreateRecipe(t, db, owner, true)

	const raters = 20
	users := make([]*models.User, raters)
	for i := range users {
		users[i] = testhelpers.CreateUser(t, db, uuid.NewString()+"@example.com")
	}

	var wg sync.WaitGroup
	errs := make(chan error, raters)
	for i, u := range users {
		wg.Add(1)
		go func(u *models.User, value int) {
			defer wg.Done()
			_, err := svc.Rate(context.Background(), recipe.ID, u.ID, value, nil)
			errs <- err
		}(u, i%5+1)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var stored models.Recipe
	require.NoError(t, db.First(&stored, "id = ?", recipe.ID).Error)
	assert.Equal(t, raters, stored.RatingCount)
	require.NotNil(t, stored.AverageRating)
	assert.InDelta(t, 3.0, *stored.AverageRating, 1e-9)
}
