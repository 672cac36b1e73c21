package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yishak-cs/restaurant_orders/internal/imaging"
	"github.com/yishak-cs/restaurant_orders/internal/models"
	"github.com/yishak-cs/restaurant_orders/internal/services"
)

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

// readImage returns the bytes of the optional "image" upload
func readImage(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if header.Size > imaging.MaxUploadBytes {
		return nil, &services.ValidationError{
			Fields:  []string{"image"},
			Message: "Image must be 5MB or smaller",
		}
	}

	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(io.LimitReader(f, imaging.MaxUploadBytes+1))
}

func categoryInput(c *gin.Context) (services.CategoryInput, error) {
	image, err := readImage(c)
	if err != nil {
		return services.CategoryInput{}, err
	}
	return services.CategoryInput{Name: c.PostForm("name"), Image: image}, nil
}

func recipeInput(c *gin.Context) (services.RecipeInput, error) {
	image, err := readImage(c)
	if err != nil {
		return services.RecipeInput{}, err
	}

	in := services.RecipeInput{
		Name:       c.PostForm("name"),
		CategoryID: c.PostForm("categoryId"),
		Image:      image,
	}
	for _, ingredient := range c.PostFormArray("ingredients") {
		if ingredient = strings.TrimSpace(ingredient); ingredient != "" {
			in.Ingredients = append(in.Ingredients, ingredient)
		}
	}
	if raw := strings.TrimSpace(c.PostForm("price")); raw != "" {
		price, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return services.RecipeInput{}, &services.ValidationError{
				Fields:  []string{"price"},
				Message: "Price must be a number",
			}
		}
		in.Price = price
	}
	return in, nil
}

func confirmed(c *gin.Context) bool {
	ok, _ := strconv.ParseBool(c.Query("confirm"))
	return ok
}

// Dashboard returns the admin landing page counts
func (h *APIHandler) Dashboard(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	dashboard, err := h.admin.Dashboard(ctx)
	if err != nil {
		h.respondError(c, err, "Failed to load dashboard")
		return
	}
	c.JSON(http.StatusOK, gin.H{"dashboard": dashboard, "user": currentUser(c)})
}

// AdminListCategories returns every category
func (h *APIHandler) AdminListCategories(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	categories, err := h.admin.ListCategories(ctx)
	if err != nil {
		h.respondError(c, err, "Failed to fetch categories")
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// CreateCategory handles the multipart category form
func (h *APIHandler) CreateCategory(c *gin.Context) {
	in, err := categoryInput(c)
	if err != nil {
		h.respondError(c, err, "Failed to read upload")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	category, err := h.admin.CreateCategory(ctx, in)
	if err != nil {
		h.respondError(c, err, "Failed to save category")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"category": category})
}

// UpdateCategory handles the multipart category edit form
func (h *APIHandler) UpdateCategory(c *gin.Context) {
	in, err := categoryInput(c)
	if err != nil {
		h.respondError(c, err, "Failed to read upload")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	category, err := h.admin.UpdateCategory(ctx, c.Param("id"), in)
	if err != nil {
		h.respondError(c, err, "Failed to save category")
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": category})
}

// DeleteCategory removes a category; the request must carry confirm=true
func (h *APIHandler) DeleteCategory(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.admin.DeleteCategory(ctx, c.Param("id"), confirmed(c)); err != nil {
		h.respondError(c, err, "Failed to delete category")
		return
	}
	c.Status(http.StatusNoContent)
}

// AdminListRecipes returns every recipe with its category name
func (h *APIHandler) AdminListRecipes(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	recipes, err := h.admin.ListRecipes(ctx)
	if err != nil {
		h.respondError(c, err, "Failed to fetch recipes")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipes": recipes})
}

// CreateRecipe handles the multipart recipe form
func (h *APIHandler) CreateRecipe(c *gin.Context) {
	in, err := recipeInput(c)
	if err != nil {
		h.respondError(c, err, "Failed to read upload")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	recipe, err := h.admin.CreateRecipe(ctx, in)
	if err != nil {
		h.respondError(c, err, "Failed to save recipe")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"recipe": recipe})
}

// UpdateRecipe handles the multipart recipe edit form
func (h *APIHandler) UpdateRecipe(c *gin.Context) {
	in, err := recipeInput(c)
	if err != nil {
		h.respondError(c, err, "Failed to read upload")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	recipe, err := h.admin.UpdateRecipe(ctx, c.Param("id"), in)
	if err != nil {
		h.respondError(c, err, "Failed to save recipe")
		return
	}
	c.JSON(http.StatusOK, gin.H{"recipe": recipe})
}

// DeleteRecipe removes a recipe; the request must carry confirm=true
func (h *APIHandler) DeleteRecipe(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	if err := h.admin.DeleteRecipe(ctx, c.Param("id"), confirmed(c)); err != nil {
		h.respondError(c, err, "Failed to delete recipe")
		return
	}
	c.Status(http.StatusNoContent)
}

// AdminListOrders returns all orders, newest first
func (h *APIHandler) AdminListOrders(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	orders, err := h.admin.ListOrders(ctx)
	if err != nil {
		h.respondError(c, err, "Failed to fetch orders")
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// AdminGetOrder returns any order
func (h *APIHandler) AdminGetOrder(c *gin.Context) {
	ctx, cancel := requestContext(c)
	defer cancel()

	order, err := h.admin.GetOrder(ctx, c.Param("id"))
	if err != nil {
		h.respondError(c, err, "Failed to fetch order")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// UpdateOrderStatus moves an order to a new status
func (h *APIHandler) UpdateOrderStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	order, err := h.admin.UpdateOrderStatus(ctx, c.Param("id"), req.Status)
	if err != nil {
		h.respondError(c, err, "Failed to update order status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

// ListStatuses returns the order statuses in display order
func (h *APIHandler) ListStatuses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"statuses": models.AllStatuses})
}
