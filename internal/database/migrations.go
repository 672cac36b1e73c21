package database

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Collections used by the application
const (
	CollectionCategories = "categories"
	CollectionRecipes    = "recipes"
	CollectionOrders     = "orders"
	CollectionUsers      = "users"
)

// EnsureSchema creates the constraints and indexes the Neo4j store relies on
func EnsureSchema(ctx context.Context, client *Neo4jClient, logger logrus.FieldLogger) error {
	statements := []struct {
		name  string
		query string
	}{
		{"document_key", "CREATE CONSTRAINT document_key IF NOT EXISTS FOR (d:Document) REQUIRE d.key IS UNIQUE"},
		{"document_collection", "CREATE INDEX document_collection IF NOT EXISTS FOR (d:Document) ON (d.collection)"},
	}

	for _, stmt := range statements {
		if err := client.ExecuteWrite(ctx, stmt.query, nil); err != nil {
			return fmt.Errorf("failed to create %s: %w", stmt.name, err)
		}
		logger.WithField("schema", stmt.name).Debug("Schema object ensured")
	}
	return nil
}

// MenuSeed is the YAML layout of a seed file
type MenuSeed struct {
	Categories []CategorySeed `yaml:"categories"`
}

// CategorySeed is one category and its recipes
type CategorySeed struct {
	Name    string       `yaml:"name"`
	Image   string       `yaml:"image"`
	Recipes []RecipeSeed `yaml:"recipes"`
}

// RecipeSeed is one recipe of a seeded category
type RecipeSeed struct {
	Name        string   `yaml:"name"`
	Price       float64  `yaml:"price"`
	Ingredients []string `yaml:"ingredients"`
	Image       string   `yaml:"image"`
}

// MenuImporter loads a starter menu into an empty document store
type MenuImporter struct {
	store  DocumentStore
	logger logrus.FieldLogger
}

// NewMenuImporter creates a new menu importer
func NewMenuImporter(store DocumentStore, logger logrus.FieldLogger) *MenuImporter {
	return &MenuImporter{store: store, logger: logger}
}

// LoadSeedFile parses a YAML seed file
func LoadSeedFile(path string) (MenuSeed, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return MenuSeed{}, fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed MenuSeed
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return MenuSeed{}, fmt.Errorf("failed to parse seed file: %w", err)
	}
	return seed, nil
}

// ImportAllData imports categories and then their recipes. Nothing is imported when
// the store already holds categories.
func (i *MenuImporter) ImportAllData(ctx context.Context, seed MenuSeed) error {
	existing, err := i.store.Count(ctx, CollectionCategories)
	if err != nil {
		return fmt.Errorf("failed to count categories: %w", err)
	}
	if existing > 0 {
		i.logger.WithField("categories", existing).Info("Menu already present, skipping seed import")
		return nil
	}

	i.logger.Info("Starting menu import...")
	recipes := 0
	for _, category := range seed.Categories {
		name := strings.TrimSpace(category.Name)
		if name == "" {
			continue
		}
		categoryID, err := i.store.Add(ctx, CollectionCategories, map[string]interface{}{
			"name":      name,
			"image":     category.Image,
			"createdAt": time.Now().UTC(),
		})
		if err != nil {
			return fmt.Errorf("failed to import category %s: %w", name, err)
		}

		for _, recipe := range category.Recipes {
			if _, err := i.store.Add(ctx, CollectionRecipes, map[string]interface{}{
				"name":        strings.TrimSpace(recipe.Name),
				"categoryId":  categoryID,
				"ingredients": recipe.Ingredients,
				"price":       recipe.Price,
				"image":       recipe.Image,
				"createdAt":   time.Now().UTC(),
			}); err != nil {
				return fmt.Errorf("failed to import recipe %s: %w", recipe.Name, err)
			}
			recipes++
		}
	}

	i.logger.WithFields(logrus.Fields{
		"categories": len(seed.Categories),
		"recipes":    recipes,
	}).Info("Menu import completed successfully")
	return nil
}

// GetImportStatus returns the number of documents per collection
func GetImportStatus(ctx context.Context, store DocumentStore) (map[string]int, error) {
	status := map[string]int{}
	for _, collection := range []string{CollectionCategories, CollectionRecipes, CollectionOrders} {
		total, err := store.Count(ctx, collection)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", collection, err)
		}
		status[collection] = total
	}
	return status, nil
}
