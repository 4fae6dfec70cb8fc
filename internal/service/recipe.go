package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pageza/recipe-lens/backend/internal/logging"
	"github.com/pageza/recipe-lens/backend/internal/models"
	"github.com/pageza/recipe-lens/backend/internal/types"
)

const maxTitleLength = 255

// RecipeService handles recipe operations
type RecipeService struct {
	db *gorm.DB
}

// NewRecipeService creates a new RecipeService instance
func NewRecipeService(db *gorm.DB) *RecipeService {
	return &RecipeService{db: db}
}

// Save stores a recipe owned by owner.
func (s *RecipeService) Save(ctx context.Context, owner uuid.UUID, req *types.SaveRecipeRequest) (*models.Recipe, error) {
	title, err := cleanTitle(req.Title)
	if err != nil {
		return nil, err
	}
	ingredients := cleanLines(req.Ingredients)
	if len(ingredients) == 0 {
		return nil, invalid("ingredients", "at least one ingredient is required")
	}

	recipe := &models.Recipe{
		UserID:       owner,
		Title:        title,
		Ingredients:  ingredients,
		Instructions: cleanLines(req.Instructions),
		ImageURL:     nonBlank(req.ImageURL),
		IsPublic:     req.IsPublic,
	}
	if err := s.db.WithContext(ctx).Create(recipe).Error; err != nil {
		return nil, fmt.Errorf("saving recipe: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("recipe_id", recipe.ID.String()).
		Str("user_id", owner.String()).
		Msg("recipe saved")
	return recipe, nil
}

// Get returns the recipe if viewer owns it or it is public.
func (s *RecipeService) Get(ctx context.Context, id, viewer uuid.UUID) (*models.Recipe, error) {
	return visibleRecipe(s.db.WithContext(ctx), id, viewer)
}

// ListOwned returns the owner's recipes, newest first.
func (s *RecipeService) ListOwned(ctx context.Context, owner uuid.UUID) ([]*models.Recipe, error) {
	var recipes []*models.Recipe
	err := s.db.WithContext(ctx).
		Where("user_id = ?", owner).
		Order("created_at DESC").
		Find(&recipes).Error
	if err != nil {
		return nil, fmt.Errorf("listing recipes: %w", err)
	}
	return recipes, nil
}

// Update applies an owner-only patch.
func (s *RecipeService) Update(ctx context.Context, id, user uuid.UUID, req *types.UpdateRecipeRequest) (*models.Recipe, error) {
	db := s.db.WithContext(ctx)
	recipe, err := findRecipe(db, id)
	if err != nil {
		return nil, err
	}
	if recipe.UserID != user {
		return nil, ErrForbidden
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		title, err := cleanTitle(*req.Title)
		if err != nil {
			return nil, err
		}
		updates["title"] = title
	}
	if req.Ingredients != nil {
		ingredients := cleanLines(req.Ingredients)
		if len(ingredients) == 0 {
			return nil, invalid("ingredients", "at least one ingredient is required")
		}
		updates["ingredients"] = ingredients
	}
	if req.Instructions != nil {
		updates["instructions"] = cleanLines(req.Instructions)
	}
	if req.IsPublic != nil {
		updates["is_public"] = *req.IsPublic
	}
	if len(updates) == 0 {
		return recipe, nil
	}

	if err := db.Model(recipe).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating recipe: %w", err)
	}
	return findRecipe(db, id)
}

// Delete removes the recipe together with its ratings and favorites.
func (s *RecipeService) Delete(ctx context.Context, id, user uuid.UUID) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recipe, err := findRecipe(tx, id)
		if err != nil {
			return err
		}
		if recipe.UserID != user {
			return ErrForbidden
		}

		if err := tx.Where("recipe_id = ?", id).Delete(&models.Rating{}).Error; err != nil {
			return fmt.Errorf("deleting ratings: %w", err)
		}
		if err := tx.Where("recipe_id = ?", id).Delete(&models.Favorite{}).Error; err != nil {
			return fmt.Errorf("deleting favorites: %w", err)
		}
		if err := tx.Delete(&models.Recipe{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("deleting recipe: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logging.Ctx(ctx).Info().Str("recipe_id", id.String()).Msg("recipe deleted")
	return nil
}

// findRecipe loads a recipe with db, which may be a transaction.
func findRecipe(db *gorm.DB, id uuid.UUID) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := db.First(&recipe, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading recipe: %w", err)
	}
	return &recipe, nil
}

// visibleRecipe loads a recipe and checks that viewer may see it.
func visibleRecipe(db *gorm.DB, id, viewer uuid.UUID) (*models.Recipe, error) {
	recipe, err := findRecipe(db, id)
	if err != nil {
		return nil, err
	}
	if !recipe.VisibleTo(viewer) {
		return nil, ErrForbidden
	}
	return recipe, nil
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", invalid("title", "must not be blank")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return "", invalid("title", fmt.Sprintf("must be at most %d characters", maxTitleLength))
	}
	return title, nil
}

// cleanLines trims each line and drops blank ones, keeping order.
func cleanLines(lines []string) models.JSONBStringArray {
	out := make(models.JSONBStringArray, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func nonBlank(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
