package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yishak-cs/restaurant_orders/internal/cart"
	"github.com/yishak-cs/restaurant_orders/internal/models"
)

type addToCartRequest struct {
	RecipeID string `json:"recipeId" binding:"required"`
}

type quantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func cartResponse(s *cart.Store) gin.H {
	items, total := s.Snapshot()
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return gin.H{"items": items, "total": total, "count": count}
}

// GetCart returns the cart of the client
func (h *APIHandler) GetCart(c *gin.Context) {
	c.JSON(http.StatusOK, cartResponse(instance(c).Cart))
}

// AddToCart adds one unit of a recipe
func (h *APIHandler) AddToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "recipeId is required"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	recipe, err := h.catalog.GetRecipe(ctx, req.RecipeID)
	if err != nil {
		h.respondError(c, err, "Failed to fetch recipe")
		return
	}

	s := instance(c).Cart
	s.Add(models.LineItemFromRecipe(recipe))
	c.JSON(http.StatusOK, cartResponse(s))
}

// UpdateCartItem sets the quantity of a line item; zero or less removes it
func (h *APIHandler) UpdateCartItem(c *gin.Context) {
	var req quantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "quantity is required"})
		return
	}

	s := instance(c).Cart
	s.SetQuantity(c.Param("id"), *req.Quantity)
	c.JSON(http.StatusOK, cartResponse(s))
}

// RemoveCartItem drops a line item
func (h *APIHandler) RemoveCartItem(c *gin.Context) {
	s := instance(c).Cart
	s.Remove(c.Param("id"))
	c.JSON(http.StatusOK, cartResponse(s))
}

// ClearCart empties the cart
func (h *APIHandler) ClearCart(c *gin.Context) {
	s := instance(c).Cart
	s.Clear()
	c.JSON(http.StatusOK, cartResponse(s))
}
