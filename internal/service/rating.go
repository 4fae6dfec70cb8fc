package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/recipe-lens/backend/internal/logging"
	"github.com/pageza/recipe-lens/backend/internal/metrics"
	"github.com/pageza/recipe-lens/backend/internal/models"
	"github.com/pageza/recipe-lens/backend/internal/types"
)

// RatingService keeps one rating per (recipe, user) and the recipe's
// denormalized average in step with the rating rows.
type RatingService struct {
	db *gorm.DB
}

func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{db: db}
}

// Rate inserts or replaces the user's rating and returns the new aggregate.
func (s *RatingService) Rate(ctx context.Context, recipeID, user uuid.UUID, value int, comment *string) (*types.RateRecipeResponse, error) {
	if value < models.MinRating || value > models.MaxRating {
		return nil, invalid("rating", fmt.Sprintf("must be between %d and %d", models.MinRating, models.MaxRating))
	}

	rating := &models.Rating{
		RecipeID: recipeID,
		UserID:   user,
		Value:    value,
		Comment:  nonBlank(comment),
	}

	var agg *types.RatingAggregate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockVisibleRecipe(tx, recipeID, user); err != nil {
			return err
		}

		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "recipe_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"rating", "comment", "updated_at"}),
		}).Create(rating).Error
		if err != nil {
			return fmt.Errorf("upserting rating: %w", err)
		}

		// On conflict the row keeps its original id and created_at.
		stored := &models.Rating{}
		if err := tx.Where("recipe_id = ? AND user_id = ?", recipeID, user).First(stored).Error; err != nil {
			return fmt.Errorf("loading rating: %w", err)
		}
		rating = stored

		agg, err = refreshAggregate(tx, recipeID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RatingUpserts.Inc()
	logging.Ctx(ctx).Debug().
		Str("recipe_id", recipeID.String()).
		Int("rating_count", agg.RatingCount).
		Msg("rating stored")
	return &types.RateRecipeResponse{RatingAggregate: *agg, Rating: rating}, nil
}

// Unrate removes the user's rating. ErrNotFound when there is none.
func (s *RatingService) Unrate(ctx context.Context, recipeID, user uuid.UUID) (*types.RatingAggregate, error) {
	var agg *types.RatingAggregate
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockVisibleRecipe(tx, recipeID, user); err != nil {
			return err
		}

		res := tx.Where("recipe_id = ? AND user_id = ?", recipeID, user).Delete(&models.Rating{})
		if res.Error != nil {
			return fmt.Errorf("deleting rating: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		var err error
		agg, err = refreshAggregate(tx, recipeID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.RatingUpserts.Inc()
	return agg, nil
}

// ListRatings returns every rating of a recipe the viewer can see, most
// recently changed first.
func (s *RatingService) ListRatings(ctx context.Context, recipeID, viewer uuid.UUID) ([]*models.Rating, error) {
	db := s.db.WithContext(ctx)
	if _, err := visibleRecipe(db, recipeID, viewer); err != nil {
		return nil, err
	}

	var ratings []*models.Rating
	if err := db.Where("recipe_id = ?", recipeID).Order("updated_at DESC").Find(&ratings).Error; err != nil {
		return nil, fmt.Errorf("listing ratings: %w", err)
	}
	return ratings, nil
}

// MyRating returns the user's rating or nil when they have not rated.
func (s *RatingService) MyRating(ctx context.Context, recipeID, user uuid.UUID) (*models.Rating, error) {
	db := s.db.WithContext(ctx)
	if _, err := visibleRecipe(db, recipeID, user); err != nil {
		return nil, err
	}

	var rating models.Rating
	err := db.Where("recipe_id = ? AND user_id = ?", recipeID, user).First(&rating).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading rating: %w", err)
	}
	return &rating, nil
}

// lockVisibleRecipe takes a row lock on the recipe so concurrent rating
// writes for it are serialized. SQLite has no row locks; it runs with a
// single connection instead.
func lockVisibleRecipe(tx *gorm.DB, recipeID, viewer uuid.UUID) (*models.Recipe, error) {
	q := tx
	if tx.Dialector.Name() == "postgres" {
		q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return visibleRecipe(q, recipeID, viewer)
}

// refreshAggregate recomputes count and mean from all rating rows and writes
// them to the recipe. The average is null when there are no ratings.
func refreshAggregate(tx *gorm.DB, recipeID uuid.UUID) (*types.RatingAggregate, error) {
	var row struct {
		Count   int64
		Average sql.NullFloat64
	}
	err := tx.Model(&models.Rating{}).
		Select("COUNT(*) AS count, AVG(rating) AS average").
		Where("recipe_id = ?", recipeID).
		Scan(&row).Error
	if err != nil {
		return nil, fmt.Errorf("aggregating ratings: %w", err)
	}

	agg := &types.RatingAggregate{RecipeID: recipeID, RatingCount: int(row.Count)}
	if row.Count > 0 && row.Average.Valid {
		avg := row.Average.Float64
		agg.AverageRating = &avg
	}

	err = tx.Model(&models.Recipe{}).Where("id = ?", recipeID).Updates(map[string]interface{}{
		"average_rating": agg.AverageRating,
		"rating_count":   agg.RatingCount,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("updating recipe aggregate: %w", err)
	}
	return agg, nil
}
