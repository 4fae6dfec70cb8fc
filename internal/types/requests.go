package types

import (
	"github.com/google/uuid"
	"github.com/pageza/recipe-lens/backend/internal/models"
)

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	Name     string `json:"name" binding:"omitempty,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// UpdatePreferencesRequest patches the dietary profile; nil fields are left untouched.
type UpdatePreferencesRequest struct {
	Name               *string  `json:"name" binding:"omitempty,min=1,max=100"`
	DietaryType        *string  `json:"dietary_type" binding:"omitempty,max=50"`
	Allergies          []string `json:"allergies" binding:"omitempty,max=50,dive,min=1,max=50"`
	CuisinePreferences []string `json:"cuisine_preferences" binding:"omitempty,max=50,dive,min=1,max=50"`
	SpiceLevel         *int     `json:"spice_level" binding:"omitempty,min=1,max=5"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required,min=6,max=72"`
}

// SaveRecipeRequest persists a generated (or hand edited) recipe.
type SaveRecipeRequest struct {
	Title        string   `json:"title"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	ImageURL     *string  `json:"image_url" binding:"omitempty,url"`
	IsPublic     bool     `json:"is_public"`
}

// UpdateRecipeRequest is an owner-only patch; nil fields are left untouched.
type UpdateRecipeRequest struct {
	Title        *string  `json:"title"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	IsPublic     *bool    `json:"is_public"`
}

type RateRecipeRequest struct {
	Rating  int     `json:"rating" binding:"required"`
	Comment *string `json:"comment" binding:"omitempty,max=2000"`
}

// RatingAggregate is the denormalized rating state of a recipe.
type RatingAggregate struct {
	RecipeID      uuid.UUID `json:"recipe_id"`
	AverageRating *float64  `json:"average_rating"`
	RatingCount   int       `json:"rating_count"`
}

type RateRecipeResponse struct {
	RatingAggregate
	Rating *models.Rating `json:"rating"`
}

type FavoriteResponse struct {
	RecipeID  uuid.UUID `json:"recipe_id"`
	Favorited bool      `json:"favorited"`
}

type AddShoppingItemRequest struct {
	Item string `json:"item" binding:"required,max=255"`
}

type AddRecipeToShoppingListRequest struct {
	RecipeID uuid.UUID `json:"recipe_id" binding:"required"`
}
