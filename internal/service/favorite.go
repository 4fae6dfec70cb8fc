package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/recipe-lens/backend/internal/models"
)

type FavoriteService struct {
	db *gorm.DB
}

func NewFavoriteService(db *gorm.DB) *FavoriteService {
	return &FavoriteService{db: db}
}

// Toggle flips the favorite state and returns the new one. Toggles on the
// same recipe are serialized by the recipe row lock.
func (s *FavoriteService) Toggle(ctx context.Context, user, recipeID uuid.UUID) (bool, error) {
	var favorited bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockVisibleRecipe(tx, recipeID, user); err != nil {
			return err
		}

		res := tx.Where("user_id = ? AND recipe_id = ?", user, recipeID).Delete(&models.Favorite{})
		if res.Error != nil {
			return fmt.Errorf("removing favorite: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			favorited = false
			return nil
		}

		favorited = true
		return insertFavorite(tx, user, recipeID)
	})
	if err != nil {
		return false, err
	}
	return favorited, nil
}

// Set makes the favorite state equal to favorited. Repeating it is a no-op.
func (s *FavoriteService) Set(ctx context.Context, user, recipeID uuid.UUID, favorited bool) (bool, error) {
	db := s.db.WithContext(ctx)
	if _, err := visibleRecipe(db, recipeID, user); err != nil {
		return false, err
	}

	if favorited {
		if err := insertFavorite(db, user, recipeID); err != nil {
			return false, err
		}
		return true, nil
	}

	err := db.Where("user_id = ? AND recipe_id = ?", user, recipeID).Delete(&models.Favorite{}).Error
	if err != nil {
		return false, fmt.Errorf("removing favorite: %w", err)
	}
	return false, nil
}

// List returns the user's favorited recipes, most recently favorited first.
// Recipes that have since become private to someone else are left out.
func (s *FavoriteService) List(ctx context.Context, user uuid.UUID) ([]*models.Recipe, error) {
	var recipes []*models.Recipe
	err := s.db.WithContext(ctx).
		Joins("JOIN favorites ON favorites.recipe_id = recipes.id").
		Where("favorites.user_id = ?", user).
		Where("(recipes.is_public = ? OR recipes.user_id = ?)", true, user).
		Order("favorites.created_at DESC").
		Find(&recipes).Error
	if err != nil {
		return nil, fmt.Errorf("listing favorites: %w", err)
	}
	return recipes, nil
}

// insertFavorite is a no-op when the pair already exists.
func insertFavorite(db *gorm.DB, user, recipeID uuid.UUID) error {
	fav := &models.Favorite{UserID: user, RecipeID: recipeID}
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "recipe_id"}},
		DoNothing: true,
	}).Create(fav).Error
	if err != nil {
		return fmt.Errorf("adding favorite: %w", err)
	}
	return nil
}
