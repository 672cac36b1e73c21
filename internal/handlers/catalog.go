package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListCategories returns every category
func (h *APIHandler) ListCategories(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	categories, err := h.catalog.ListCategories(ctx)
	if err != nil {
		h.respondError(c, err, "Failed to fetch categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// GetCategory returns a category with its recipes
func (h *APIHandler) GetCategory(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	category, recipes, err := h.catalog.GetCategoryWithRecipes(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Failed to fetch recipes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category, "recipes": recipes})
}

// GetRecipe returns one recipe
func (h *APIHandler) GetRecipe(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	recipe, err := h.catalog.GetRecipe(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Failed to fetch recipe")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipe": recipe})
}
