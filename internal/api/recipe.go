package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/recipe-lens/backend/internal/middleware"
	"github.com/pageza/recipe-lens/backend/internal/ratelimit"
	"github.com/pageza/recipe-lens/backend/internal/service"
	"github.com/pageza/recipe-lens/backend/internal/types"
)

// RecipeHandler serves saved recipes along with their ratings and favorites.
type RecipeHandler struct {
	recipes   service.IRecipeService
	ratings   service.IRatingService
	favorites service.IFavoriteService
}

func NewRecipeHandler(recipes service.IRecipeService, ratings service.IRatingService, favorites service.IFavoriteService) *RecipeHandler {
	return &RecipeHandler{recipes: recipes, ratings: ratings, favorites: favorites}
}

func (h *RecipeHandler) RegisterRoutes(router *gin.RouterGroup, limit limitFunc) {
	router.POST("", limit(ratelimit.RouteRecipeSave, middleware.ByUser), h.SaveRecipe)
	router.GET("/mine", h.ListMine)
	router.GET("/favorites", h.ListFavorites)

	router.GET("/:id", h.GetRecipe)
	router.PUT("/:id", h.UpdateRecipe)
	router.DELETE("/:id", h.DeleteRecipe)

	router.POST("/:id/favorite", h.setFavorite(true))
	router.DELETE("/:id/favorite", h.setFavorite(false))
	router.POST("/:id/favorite/toggle", h.ToggleFavorite)

	router.POST("/:id/rate", limit(ratelimit.RouteRate, middleware.ByUser), h.RateRecipe)
	router.DELETE("/:id/rate", h.UnrateRecipe)
	router.GET("/:id/ratings", h.ListRatings)
	router.GET("/:id/my-rating", h.MyRating)
}

func (h *RecipeHandler) SaveRecipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.SaveRecipeRequest
	if !bind(c, &req) {
		return
	}

	recipe, err := h.recipes.Save(c.Request.Context(), userID, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

func (h *RecipeHandler) ListMine(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	recipes, err := h.recipes.ListOwned(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

func (h *RecipeHandler) GetRecipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	recipe, err := h.recipes.Get(c.Request.Context(), id, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) UpdateRecipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req types.UpdateRecipeRequest
	if !bind(c, &req) {
		return
	}

	recipe, err := h.recipes.Update(c.Request.Context(), id, userID, &req)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

func (h *RecipeHandler) DeleteRecipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.recipes.Delete(c.Request.Context(), id, userID); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "recipe deleted"})
}

func (h *RecipeHandler) ListFavorites(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	recipes, err := h.favorites.List(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

func (h *RecipeHandler) ToggleFavorite(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	favorited, err := h.favorites.Toggle(c.Request.Context(), userID, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, types.FavoriteResponse{RecipeID: id, Favorited: favorited})
}

// setFavorite backs the idempotent POST and DELETE favorite routes.
func (h *RecipeHandler) setFavorite(favorited bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			return
		}
		id, ok := pathID(c, "id")
		if !ok {
			return
		}

		state, err := h.favorites.Set(c.Request.Context(), userID, id, favorited)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, types.FavoriteResponse{RecipeID: id, Favorited: state})
	}
}

func (h *RecipeHandler) RateRecipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req types.RateRecipeRequest
	if !bind(c, &req) {
		return
	}

	resp, err := h.ratings.Rate(c.Request.Context(), id, userID, req.Rating, req.Comment)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RecipeHandler) UnrateRecipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	agg, err := h.ratings.Unrate(c.Request.Context(), id, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, agg)
}

func (h *RecipeHandler) ListRatings(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	ratings, err := h.ratings.ListRatings(c.Request.Context(), id, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ratings": ratings})
}

func (h *RecipeHandler) MyRating(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	rating, err := h.ratings.MyRating(c.Request.Context(), id, userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rating": rating})
}
