package services

import (
	"context"

	"github.com/yishak-cs/restaurant_orders/internal/database"
	"github.com/yishak-cs/restaurant_orders/internal/models"
)

// CatalogService answers the read-only menu views
type CatalogService struct {
	store database.DocumentStore
}

// NewCatalogService creates a new catalog service
func NewCatalogService(store database.DocumentStore) *CatalogService {
	return &CatalogService{store: store}
}

// ListCategories returns every category
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	docs, err := s.store.GetAll(ctx, database.CollectionCategories)
	if err != nil {
		return nil, storeError("list categories", err)
	}
	categories := make([]models.Category, 0, len(docs))
	for _, doc := range docs {
		categories = append(categories, categoryFromDocument(doc))
	}
	return categories, nil
}

// GetCategoryWithRecipes returns a category and the recipes filed under it
func (s *CatalogService) GetCategoryWithRecipes(ctx context.Context, categoryID string) (models.Category, []models.Recipe, error) {
	doc, err := s.store.Get(ctx, database.CollectionCategories, categoryID)
	if err != nil {
		return models.Category{}, nil, storeError("get category", err)
	}
	category := categoryFromDocument(doc)

	docs, err := s.store.Query(ctx, database.CollectionRecipes, database.Where("categoryId", categoryID))
	if err != nil {
		return models.Category{}, nil, storeError("list recipes", err)
	}
	recipes := make([]models.Recipe, 0, len(docs))
	for _, d := range docs {
		recipe := recipeFromDocument(d)
		recipe.CategoryName = category.Name
		recipes = append(recipes, recipe)
	}
	return category, recipes, nil
}

// GetRecipe returns one recipe with its category name
func (s *CatalogService) GetRecipe(ctx context.Context, recipeID string) (models.Recipe, error) {
	doc, err := s.store.Get(ctx, database.CollectionRecipes, recipeID)
	if err != nil {
		return models.Recipe{}, storeError("get recipe", err)
	}
	recipe := recipeFromDocument(doc)

	names, err := s.categoryNames(ctx)
	if err != nil {
		return models.Recipe{}, err
	}
	recipe.CategoryName = categoryName(names, recipe.CategoryID)
	return recipe, nil
}

// ListRecipes returns every recipe with its category name resolved
func (s *CatalogService) ListRecipes(ctx context.Context) ([]models.Recipe, error) {
	names, err := s.categoryNames(ctx)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.GetAll(ctx, database.CollectionRecipes)
	if err != nil {
		return nil, storeError("list recipes", err)
	}
	recipes := make([]models.Recipe, 0, len(docs))
	for _, doc := range docs {
		recipe := recipeFromDocument(doc)
		recipe.CategoryName = categoryName(names, recipe.CategoryID)
		recipes = append(recipes, recipe)
	}
	return recipes, nil
}

func (s *CatalogService) categoryNames(ctx context.Context) (map[string]string, error) {
	categories, err := s.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	return names, nil
}

// categoryName resolves id, falling back to "Unknown" for deleted categories
func categoryName(names map[string]string, id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return models.UnknownCategoryName
}
