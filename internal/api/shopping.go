package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/recipe-lens/backend/internal/service"
	"github.com/pageza/recipe-lens/backend/internal/types"
)

type ShoppingHandler struct {
	shopping service.IShoppingService
}

func NewShoppingHandler(shopping service.IShoppingService) *ShoppingHandler {
	return &ShoppingHandler{shopping: shopping}
}

func (h *ShoppingHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("", h.List)
	router.POST("", h.AddItem)
	router.POST("/from-recipe", h.AddFromRecipe)
	router.PUT("/:id/toggle", h.Toggle)
	router.DELETE("/checked", h.ClearChecked)
	router.DELETE("/:id", h.Delete)
	router.DELETE("", h.ClearAll)
}

func (h *ShoppingHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	items, err := h.shopping.List(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *ShoppingHandler) AddItem(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.AddShoppingItemRequest
	if !bind(c, &req) {
		return
	}

	item, err := h.shopping.AddItem(c.Request.Context(), userID, req.Item)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func (h *ShoppingHandler) AddFromRecipe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req types.AddRecipeToShoppingListRequest
	if !bind(c, &req) {
		return
	}

	items, err := h.shopping.AddFromRecipe(c.Request.Context(), userID, req.RecipeID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"count": len(items), "items": items})
}

func (h *ShoppingHandler) Toggle(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	item, err := h.shopping.Toggle(c.Request.Context(), userID, id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *ShoppingHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.shopping.Delete(c.Request.Context(), userID, id); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "item deleted"})
}

func (h *ShoppingHandler) ClearChecked(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	n, err := h.shopping.ClearChecked(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *ShoppingHandler) ClearAll(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	n, err := h.shopping.ClearAll(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
