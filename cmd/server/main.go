package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/yishak-cs/restaurant_orders/internal/appstate"
	"github.com/yishak-cs/restaurant_orders/internal/auth"
	"github.com/yishak-cs/restaurant_orders/internal/database"
	"github.com/yishak-cs/restaurant_orders/internal/events"
	"github.com/yishak-cs/restaurant_orders/internal/handlers"
	"github.com/yishak-cs/restaurant_orders/internal/metrics"
	"github.com/yishak-cs/restaurant_orders/internal/models"
	"github.com/yishak-cs/restaurant_orders/internal/services"
	"github.com/yishak-cs/restaurant_orders/internal/storage"
	"github.com/yishak-cs/restaurant_orders/pkg/helper"
)

func main() {
	config, err := helper.LoadConfig()
	if err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}
	logger := helper.NewLogger(config.LogLevel, config.LogFormat)

	// Document store: Neo4j when configured, otherwise in memory
	var store database.DocumentStore
	var health func(ctx context.Context) error
	if config.Neo4jURI != "" {
		neo4jClient, err := database.NewNeo4jClient(config.Neo4jConfig(), logger)
		if err != nil {
			logger.Fatalf("Failed to connect to Neo4j: %v", err)
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := neo4jClient.Close(ctx); err != nil {
				logger.Printf("Error closing Neo4j connection: %v", err)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		err = database.EnsureSchema(ctx, neo4jClient, logger)
		cancel()
		if err != nil {
			logger.Fatalf("Failed to prepare schema: %v", err)
		}
		store = database.NewNeo4jStore(neo4jClient)
		health = neo4jClient.Health
	} else {
		logger.Warn("NEO4J_URI not set, using the in-memory document store")
		store = database.NewMemoryStore()
	}

	if config.SeedFile != "" {
		if err := importMenu(store, config.SeedFile, logger); err != nil {
			logger.Fatalf("Import failed: %v", err)
		}
	}

	backend, err := newStorageBackend(config)
	if err != nil {
		logger.Fatalf("Failed to open client storage: %v", err)
	}
	defer backend.Close()

	// Events and mail go through RabbitMQ when configured
	var publisher events.Publisher = events.Noop{}
	var mailer auth.Mailer = auth.LogMailer{Logger: logger}
	if config.AMQPURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(config.AMQPURL, config.AMQPExchange)
		if err != nil {
			logger.Fatalf("Failed to connect to RabbitMQ: %v", err)
		}
		defer amqpPublisher.Close()
		publisher = amqpPublisher
		mailer = auth.QueueMailer{Publisher: amqpPublisher, RoutingKey: events.KeyPasswordResetMail}
	}

	m := metrics.New()

	authService, err := auth.NewService(store, mailer, auth.Config{
		Secret:        config.JWTSecret,
		SessionTTL:    config.SessionTTL,
		ResetTokenTTL: config.ResetTokenTTL,
		PublicURL:     config.PublicURL,
		IsAdminEmail:  config.IsAdminEmail,
		SignInRate:    config.AuthRateLimit,
		SignInBurst:   config.AuthRateBurst,
	}, logger)
	if err != nil {
		logger.Fatalf("Failed to create auth service: %v", err)
	}

	transitions := models.OpenTransitions()
	if config.OrderStrictTransitions {
		transitions = models.StrictTransitions()
	}

	// Initialize services
	checkoutService := services.NewCheckoutService(store, publisher, m, services.DefaultRetryConfig(), logger)
	adminService := services.NewAdminService(store, publisher, m, transitions, logger)
	catalogService := services.NewCatalogService(store)
	orderService := services.NewOrderService(store)

	registry := appstate.NewRegistry(backend, authService, checkoutService, m, config.ClientIdleTimeout, logger)
	registry.StartSweeper(time.Minute)
	defer registry.Close()

	stopCleanup := make(chan struct{})
	defer close(stopCleanup)
	authLimiter := helper.NewRateLimiter(config.AuthRateLimit*10, config.AuthRateBurst*4)
	authLimiter.StartCleanup(10*time.Minute, stopCleanup)

	// Initialize API handlers
	apiHandler := handlers.NewAPIHandler(handlers.Options{
		Registry:      registry,
		Catalog:       catalogService,
		Orders:        orderService,
		Admin:         adminService,
		Metrics:       m,
		AuthLimiter:   authLimiter,
		SessionWait:   config.SessionWait,
		SecureCookies: config.SecureCookies,
		Health:        health,
		Logger:        logger,
	})

	// Setup Gin router
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery(), m.GinMiddleware(), handlers.CORS())

	// Setup API routes
	apiHandler.SetupRoutes(router)

	// Static assets and SPA fallback
	router.Static("/static", config.StaticDir)
	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") || strings.HasPrefix(c.Request.URL.Path, "/admin/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
			return
		}
		c.File(filepath.Join(config.StaticDir, "index.html"))
	})

	// Create server with graceful shutdown
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", config.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited properly")
}

func importMenu(store database.DocumentStore, path string, logger logrus.FieldLogger) error {
	seed, err := database.LoadSeedFile(path)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	if err := database.NewMenuImporter(store, logger).ImportAllData(ctx, seed); err != nil {
		return err
	}

	counts, err := database.GetImportStatus(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to get import status: %w", err)
	}
	logger.WithFields(logrus.Fields{
		"categories": counts[database.CollectionCategories],
		"recipes":    counts[database.CollectionRecipes],
		"orders":     counts[database.CollectionOrders],
	}).Info("Menu ready")
	return nil
}

func newStorageBackend(config helper.Config) (storage.Backend, error) {
	switch config.StorageBackend {
	case "redis":
		backend, err := storage.NewRedisBackend(storage.RedisConfig{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
			DB:       config.RedisDB,
			TTL:      config.RedisTTL,
		})
		if err != nil {
			return nil, err
		}
		return backend, nil
	case "memory":
		return storage.NewMemoryBackend(), nil
	default:
		backend, err := storage.NewFileBackend(config.StorageDir)
		if err != nil {
			return nil, err
		}
		return backend, nil
	}
}
