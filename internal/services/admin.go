package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yishak-cs/restaurant_orders/internal/database"
	"github.com/yishak-cs/restaurant_orders/internal/events"
	"github.com/yishak-cs/restaurant_orders/internal/imaging"
	"github.com/yishak-cs/restaurant_orders/internal/metrics"
	"github.com/yishak-cs/restaurant_orders/internal/models"
)

// CategoryInput is a category form submission. Image holds the raw upload, if any.
type CategoryInput struct {
	Name  string
	Image []byte
}

// RecipeInput is a recipe form submission. Image holds the raw upload, if any.
type RecipeInput struct {
	Name        string
	CategoryID  string
	Ingredients []string
	Price       float64
	Image       []byte
}

// Dashboard holds the counts shown on the admin landing page
type Dashboard struct {
	Categories    int `json:"categories"`
	Recipes       int `json:"recipes"`
	Orders        int `json:"orders"`
	PendingOrders int `json:"pendingOrders"`
}

// AdminService implements the staff side: menu maintenance and order handling
type AdminService struct {
	store       database.DocumentStore
	catalog     *CatalogService
	publisher   events.Publisher
	metrics     *metrics.Metrics
	transitions models.TransitionTable
	logger      logrus.FieldLogger
	now         func() time.Time
}

// NewAdminService creates a new admin service. A nil transition table allows any
// change between known statuses.
func NewAdminService(store database.DocumentStore, publisher events.Publisher, m *metrics.Metrics, transitions models.TransitionTable, logger logrus.FieldLogger) *AdminService {
	if transitions == nil {
		transitions = models.OpenTransitions()
	}
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &AdminService{
		store:       store,
		catalog:     NewCatalogService(store),
		publisher:   publisher,
		metrics:     m,
		transitions: transitions,
		logger:      logger,
		now:         time.Now,
	}
}

// ListCategories returns every category
func (s *AdminService) ListCategories(ctx context.Context) ([]models.Category, error) {
	return s.catalog.ListCategories(ctx)
}

// CreateCategory validates and stores a new category; an image is required
func (s *AdminService) CreateCategory(ctx context.Context, in CategoryInput) (models.Category, error) {
	name := strings.TrimSpace(in.Name)
	var fields fieldErrors
	fields.require("name", name)
	fields.check("image", len(in.Image) > 0)
	if err := fields.err("Please fill in all required fields"); err != nil {
		return models.Category{}, err
	}

	image, err := s.processImage(in.Image)
	if err != nil {
		return models.Category{}, err
	}

	category := models.Category{Name: name, Image: image, CreatedAt: s.now().UTC()}
	id, err := s.store.Add(ctx, database.CollectionCategories, map[string]interface{}{
		"name":      category.Name,
		"image":     category.Image,
		"createdAt": category.CreatedAt,
	})
	if err != nil {
		return models.Category{}, storeError("create category", err)
	}
	category.ID = id
	s.logger.WithField("category_id", id).Info("Category created")
	return category, nil
}

// UpdateCategory renames a category and replaces its image when a new one is given
func (s *AdminService) UpdateCategory(ctx context.Context, id string, in CategoryInput) (models.Category, error) {
	name := strings.TrimSpace(in.Name)
	var fields fieldErrors
	fields.require("name", name)
	if err := fields.err("Please fill in all required fields"); err != nil {
		return models.Category{}, err
	}

	doc, err := s.store.Get(ctx, database.CollectionCategories, id)
	if err != nil {
		return models.Category{}, storeError("get category", err)
	}
	category := categoryFromDocument(doc)
	category.Name = name

	update := map[string]interface{}{"name": name}
	if len(in.Image) > 0 {
		image, err := s.processImage(in.Image)
		if err != nil {
			return models.Category{}, err
		}
		category.Image = image
		update["image"] = image
	}

	if err := s.store.Update(ctx, database.CollectionCategories, id, update); err != nil {
		return models.Category{}, storeError("update category", err)
	}
	return category, nil
}

// DeleteCategory removes a category. Recipes filed under it are kept and show up
// under the "Unknown" category.
func (s *AdminService) DeleteCategory(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return confirmationRequired("category")
	}
	if err := s.store.Delete(ctx, database.CollectionCategories, id); err != nil {
		return storeError("delete category", err)
	}
	s.logger.WithField("category_id", id).Info("Category deleted")
	return nil
}

// ListRecipes returns every recipe with its category name
func (s *AdminService) ListRecipes(ctx context.Context) ([]models.Recipe, error) {
	return s.catalog.ListRecipes(ctx)
}

// CreateRecipe validates and stores a new recipe; an image is required
func (s *AdminService) CreateRecipe(ctx context.Context, in RecipeInput) (models.Recipe, error) {
	recipe, err := s.validateRecipe(ctx, in, true)
	if err != nil {
		return models.Recipe{}, err
	}

	image, err := s.processImage(in.Image)
	if err != nil {
		return models.Recipe{}, err
	}
	recipe.Image = image
	recipe.CreatedAt = s.now().UTC()

	id, err := s.store.Add(ctx, database.CollectionRecipes, map[string]interface{}{
		"name":        recipe.Name,
		"categoryId":  recipe.CategoryID,
		"ingredients": recipe.Ingredients,
		"price":       recipe.Price,
		"image":       recipe.Image,
		"createdAt":   recipe.CreatedAt,
	})
	if err != nil {
		return models.Recipe{}, storeError("create recipe", err)
	}
	recipe.ID = id
	s.logger.WithField("recipe_id", id).Info("Recipe created")
	return recipe, nil
}

// UpdateRecipe replaces the fields of a recipe, keeping its image unless a new one is given
func (s *AdminService) UpdateRecipe(ctx context.Context, id string, in RecipeInput) (models.Recipe, error) {
	recipe, err := s.validateRecipe(ctx, in, false)
	if err != nil {
		return models.Recipe{}, err
	}

	doc, err := s.store.Get(ctx, database.CollectionRecipes, id)
	if err != nil {
		return models.Recipe{}, storeError("get recipe", err)
	}
	previous := recipeFromDocument(doc)
	recipe.ID = id
	recipe.Image = previous.Image
	recipe.CreatedAt = previous.CreatedAt

	update := map[string]interface{}{
		"name":        recipe.Name,
		"categoryId":  recipe.CategoryID,
		"ingredients": recipe.Ingredients,
		"price":       recipe.Price,
	}
	if len(in.Image) > 0 {
		image, err := s.processImage(in.Image)
		if err != nil {
			return models.Recipe{}, err
		}
		recipe.Image = image
		update["image"] = image
	}

	if err := s.store.Update(ctx, database.CollectionRecipes, id, update); err != nil {
		return models.Recipe{}, storeError("update recipe", err)
	}
	return recipe, nil
}

// DeleteRecipe removes a recipe. Orders keep their own copy of it.
func (s *AdminService) DeleteRecipe(ctx context.Context, id string, confirmed bool) error {
	if !confirmed {
		return confirmationRequired("recipe")
	}
	if err := s.store.Delete(ctx, database.CollectionRecipes, id); err != nil {
		return storeError("delete recipe", err)
	}
	s.logger.WithField("recipe_id", id).Info("Recipe deleted")
	return nil
}

func (s *AdminService) validateRecipe(ctx context.Context, in RecipeInput, imageRequired bool) (models.Recipe, error) {
	recipe := models.Recipe{
		Name:       strings.TrimSpace(in.Name),
		CategoryID: strings.TrimSpace(in.CategoryID),
		Price:      models.RoundCents(in.Price),
	}
	for _, ingredient := range in.Ingredients {
		if trimmed := strings.TrimSpace(ingredient); trimmed != "" {
			recipe.Ingredients = append(recipe.Ingredients, trimmed)
		}
	}

	var fields fieldErrors
	fields.require("name", recipe.Name)
	fields.require("categoryId", recipe.CategoryID)
	fields.check("ingredients", len(recipe.Ingredients) > 0)
	fields.check("price", recipe.Price > 0)
	if imageRequired {
		fields.check("image", len(in.Image) > 0)
	}
	if err := fields.err("Please fill in all required fields"); err != nil {
		return models.Recipe{}, err
	}

	category, err := s.store.Get(ctx, database.CollectionCategories, recipe.CategoryID)
	if errors.Is(err, database.ErrNotFound) {
		return models.Recipe{}, &ValidationError{Fields: []string{"categoryId"}, Message: "Category does not exist"}
	}
	if err != nil {
		return models.Recipe{}, storeError("get category", err)
	}
	recipe.CategoryName = category.String("name")
	return recipe, nil
}

func (s *AdminService) processImage(data []byte) (string, error) {
	url, err := imaging.Process(data)
	switch {
	case err == nil:
		s.metrics.ImageProcessed("ok")
		return url, nil
	case errors.Is(err, imaging.ErrEmpty), errors.Is(err, imaging.ErrTooLarge),
		errors.Is(err, imaging.ErrTooManyPixels), errors.Is(err, imaging.ErrNotImage):
		s.metrics.ImageProcessed("rejected")
		return "", &ValidationError{Fields: []string{"image"}, Message: err.Error()}
	default:
		s.metrics.ImageProcessed("error")
		return "", fmt.Errorf("failed to process image: %w", err)
	}
}

// ListOrders returns every order, newest first
func (s *AdminService) ListOrders(ctx context.Context) ([]models.Order, error) {
	docs, err := s.store.Query(ctx, database.CollectionOrders, database.Query{}.Order("createdAt", true))
	if err != nil {
		return nil, storeError("list orders", err)
	}
	orders := make([]models.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, orderFromDocument(doc))
	}
	return orders, nil
}

// GetOrder returns any order
func (s *AdminService) GetOrder(ctx context.Context, id string) (models.Order, error) {
	doc, err := s.store.Get(ctx, database.CollectionOrders, id)
	if err != nil {
		return models.Order{}, storeError("get order", err)
	}
	return orderFromDocument(doc), nil
}

// UpdateOrderStatus moves an order to a new status. Only the status field changes.
func (s *AdminService) UpdateOrderStatus(ctx context.Context, id, rawStatus string) (models.Order, error) {
	status, err := models.ParseOrderStatus(rawStatus)
	if err != nil {
		return models.Order{}, &ValidationError{Fields: []string{"status"}, Message: err.Error()}
	}

	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return models.Order{}, err
	}
	from := order.Status
	if !s.transitions.Allows(from, status) {
		return models.Order{}, &ValidationError{
			Fields:  []string{"status"},
			Message: fmt.Sprintf("Cannot change an order from %s to %s", from, status),
		}
	}
	if from == status {
		return order, nil
	}

	changedAt := s.now().UTC()
	err = s.store.Update(ctx, database.CollectionOrders, id, map[string]interface{}{
		"status":    string(status),
		"updatedAt": changedAt,
	})
	if err != nil {
		return models.Order{}, storeError("update order status", err)
	}
	order.Status = status

	s.metrics.StatusChanged(string(status))
	event := events.OrderStatusChanged{OrderID: id, From: string(from), To: string(status), ChangedAt: changedAt}
	if err := s.publisher.PublishJSON(ctx, events.KeyOrderStatusChanged, event); err != nil {
		s.logger.WithError(err).WithField("order_id", id).Warn("Failed to publish status event")
	}
	s.logger.WithFields(logrus.Fields{"order_id": id, "from": from, "to": status}).Info("Order status updated")
	return order, nil
}

// Dashboard counts the documents of each collection
func (s *AdminService) Dashboard(ctx context.Context) (Dashboard, error) {
	counts, err := database.GetImportStatus(ctx, s.store)
	if err != nil {
		return Dashboard{}, storeError("load dashboard", err)
	}
	pending, err := s.store.Query(ctx, database.CollectionOrders, database.Where("status", string(models.StatusPending)))
	if err != nil {
		return Dashboard{}, storeError("count pending orders", err)
	}
	return Dashboard{
		Categories:    counts[database.CollectionCategories],
		Recipes:       counts[database.CollectionRecipes],
		Orders:        counts[database.CollectionOrders],
		PendingOrders: len(pending),
	}, nil
}

func confirmationRequired(kind string) error {
	return &ValidationError{
		Fields:  []string{"confirm"},
		Message: fmt.Sprintf("Deleting a %s must be confirmed", kind),
	}
}
