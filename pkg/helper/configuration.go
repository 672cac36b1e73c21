package helper

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/yishak-cs/restaurant_orders/internal/database"
)

// Config holds every setting the server reads from the environment
type Config struct {
	Port          string `envconfig:"APP_PORT" default:"8080"`
	PublicURL     string `envconfig:"PUBLIC_URL" default:"http://localhost:8080"`
	StaticDir     string `envconfig:"STATIC_DIR" default:"./web/static"`
	SecureCookies bool   `envconfig:"SECURE_COOKIES" default:"false"`

	// Neo4j; an empty URI selects the in-memory document store
	Neo4jURI      string `envconfig:"NEO4J_URI"`
	Neo4jUsername string `envconfig:"NEO4J_USERNAME" default:"neo4j"`
	Neo4jPassword string `envconfig:"NEO4J_PASSWORD"`
	Neo4jDatabase string `envconfig:"NEO4J_DATABASE" default:"neo4j"`

	// Auth
	JWTSecret     string        `envconfig:"JWT_SECRET" required:"true"`
	SessionTTL    time.Duration `envconfig:"SESSION_TTL" default:"24h"`
	ResetTokenTTL time.Duration `envconfig:"RESET_TOKEN_TTL" default:"1h"`
	AdminEmails   []string      `envconfig:"ADMIN_EMAILS"`
	AuthRateLimit float64       `envconfig:"AUTH_RATE_LIMIT" default:"1"`
	AuthRateBurst int           `envconfig:"AUTH_RATE_BURST" default:"5"`
	// SessionWait bounds how long a guarded request waits for a session being restored
	SessionWait time.Duration `envconfig:"SESSION_WAIT" default:"3s"`

	// Client local storage
	StorageBackend    string        `envconfig:"STORAGE_BACKEND" default:"file"`
	StorageDir        string        `envconfig:"STORAGE_DIR" default:"./data/clients"`
	RedisAddr         string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword     string        `envconfig:"REDIS_PASSWORD"`
	RedisDB           int           `envconfig:"REDIS_DB" default:"0"`
	RedisTTL          time.Duration `envconfig:"REDIS_TTL" default:"720h"`
	ClientIdleTimeout time.Duration `envconfig:"CLIENT_IDLE_TIMEOUT" default:"30m"`

	// Order events; an empty URL disables publishing
	AMQPURL      string `envconfig:"AMQP_URL"`
	AMQPExchange string `envconfig:"AMQP_EXCHANGE" default:"restaurant.events"`
	NotifyQueue  string `envconfig:"NOTIFY_QUEUE" default:"restaurant.notifications"`

	SeedFile               string `envconfig:"SEED_FILE"`
	OrderStrictTransitions bool   `envconfig:"ORDER_STRICT_TRANSITIONS" default:"false"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// LoadConfig loads a .env file when present and then reads the environment
func LoadConfig() (Config, error) {
	// A missing .env is normal outside local development
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field rules envconfig cannot express
func (c Config) Validate() error {
	switch c.StorageBackend {
	case "file", "redis", "memory":
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}
	if len(c.JWTSecret) < 16 {
		return fmt.Errorf("JWT_SECRET must be at least 16 characters")
	}
	return nil
}

// Neo4jConfig maps the settings onto the database client configuration
func (c Config) Neo4jConfig() database.Config {
	return database.Config{
		URI:      c.Neo4jURI,
		Username: c.Neo4jUsername,
		Password: c.Neo4jPassword,
		Database: c.Neo4jDatabase,
	}
}

// IsAdminEmail reports whether email is listed in ADMIN_EMAILS
func (c Config) IsAdminEmail(email string) bool {
	for _, admin := range c.AdminEmails {
		if strings.EqualFold(strings.TrimSpace(admin), strings.TrimSpace(email)) {
			return true
		}
	}
	return false
}
