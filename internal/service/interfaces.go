package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/pageza/recipe-lens/backend/internal/models"
	"github.com/pageza/recipe-lens/backend/internal/types"
)

// IAuthService defines the interface for authentication operations
type IAuthService interface {
	Register(ctx context.Context, email, password, name string) (*models.User, error)
	Login(ctx context.Context, email, password string) (*models.User, error)
	GenerateToken(user *models.User) (string, error)
	ValidateToken(token string) (*types.TokenClaims, error)
	Authenticate(ctx context.Context, token string) (*models.User, error)
	GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
	UpdatePreferences(ctx context.Context, userID uuid.UUID, req *types.UpdatePreferencesRequest) (*models.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error
}

// IRecipeService defines the interface for recipe operations
type IRecipeService interface {
	Save(ctx context.Context, owner uuid.UUID, req *types.SaveRecipeRequest) (*models.Recipe, error)
	Get(ctx context.Context, id, viewer uuid.UUID) (*models.Recipe, error)
	ListOwned(ctx context.Context, owner uuid.UUID) ([]*models.Recipe, error)
	Update(ctx context.Context, id, user uuid.UUID, req *types.UpdateRecipeRequest) (*models.Recipe, error)
	Delete(ctx context.Context, id, user uuid.UUID) error
}

type IRatingService interface {
	Rate(ctx context.Context, recipeID, user uuid.UUID, value int, comment *string) (*types.RateRecipeResponse, error)
	Unrate(ctx context.Context, recipeID, user uuid.UUID) (*types.RatingAggregate, error)
	ListRatings(ctx context.Context, recipeID, viewer uuid.UUID) ([]*models.Rating, error)
	MyRating(ctx context.Context, recipeID, user uuid.UUID) (*models.Rating, error)
}

type IFavoriteService interface {
	Toggle(ctx context.Context, user, recipeID uuid.UUID) (bool, error)
	Set(ctx context.Context, user, recipeID uuid.UUID, favorited bool) (bool, error)
	List(ctx context.Context, user uuid.UUID) ([]*models.Recipe, error)
}

type IShoppingService interface {
	List(ctx context.Context, user uuid.UUID) ([]*models.ShoppingItem, error)
	AddItem(ctx context.Context, user uuid.UUID, text string) (*models.ShoppingItem, error)
	Toggle(ctx context.Context, user, itemID uuid.UUID) (*models.ShoppingItem, error)
	Delete(ctx context.Context, user, itemID uuid.UUID) error
	AddFromRecipe(ctx context.Context, user, recipeID uuid.UUID) ([]*models.ShoppingItem, error)
	ClearChecked(ctx context.Context, user uuid.UUID) (int64, error)
	ClearAll(ctx context.Context, user uuid.UUID) (int64, error)
}

// IInferenceGateway generates recipes from images.
type IInferenceGateway interface {
	Generate(ctx context.Context, identity string, req *InferenceRequest) (*InferenceResult, error)
}

var (
	_ IAuthService      = (*AuthService)(nil)
	_ IRecipeService    = (*RecipeService)(nil)
	_ IRatingService    = (*RatingService)(nil)
	_ IFavoriteService  = (*FavoriteService)(nil)
	_ IShoppingService  = (*ShoppingService)(nil)
	_ IInferenceGateway = (*InferenceGateway)(nil)
	_ ImageStore        = (*S3ImageStore)(nil)
	_ ResultCache       = (*MemoryResultCache)(nil)
	_ ResultCache       = (*RedisResultCache)(nil)
)
