package database

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pageza/recipe-lens/backend/config"
	"github.com/pageza/recipe-lens/backend/internal/models"
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: "file:" + uuid.NewString() + "?mode=memory&cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	require.NoError(t, RunMigrations(db))
	return db
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.DatabaseConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database driver")
}

func TestSQLiteMigrationsAndHealth(t *testing.T) {
	db := openSQLite(t)

	for _, m := range models.All() {
		assert.True(t, db.Migrator().HasTable(m), "%T", m)
	}
	assert.NoError(t, HealthCheck(context.Background(), db))
}

func TestDuplicateEmailIsTranslated(t *testing.T) {
	db := openSQLite(t)

	u1 := models.User{Name: "a", Email: "dup@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&u1).Error)
	assert.NotEqual(t, uuid.Nil, u1.ID)
	assert.Equal(t, models.DefaultSpiceLevel, u1.SpiceLevel)

	u2 := models.User{Name: "b", Email: "dup@example.com", PasswordHash: "y"}
	err := db.Create(&u2).Error
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey), "got %v", err)
}

func TestRatingUniquePerRecipeAndUser(t *testing.T) {
	db := openSQLite(t)

	owner := models.User{Name: "o", Email: "o@example.com", PasswordHash: "x"}
	require.NoError(t, db.Create(&owner).Error)
	recipe := models.Recipe{UserID: owner.ID, Title: "Soup", Ingredients: models.JSONBStringArray{"water"}}
	require.NoError(t, db.Create(&recipe).Error)

	require.NoError(t, db.Create(&models.Rating{RecipeID: recipe.ID, UserID: owner.ID, Value: 4}).Error)
	err := db.Create(&models.Rating{RecipeID: recipe.ID, UserID: owner.ID, Value: 2}).Error
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)

	var stored models.Recipe
	require.NoError(t, db.First(&stored, "id = ?", recipe.ID).Error)
	assert.Equal(t, []string{"water"}, []string(stored.Ingredients))
	assert.Equal(t, []string{}, []string(stored.Instructions))
	assert.Nil(t, stored.AverageRating)
}
