package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends
const (
	StorageDynamoDB = "dynamodb"
	StorageMemory   = "memory"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerAddress string
	Environment   string

	// AWS configuration
	AWSRegion      string
	DynamoDBTable  string
	IndexName      string // GSI1 - owner, driver status and connection lookups
	GSI2IndexName  string // GSI2 - all cases by recency
	EventBusName   string
	StorageBackend string

	// Lambda configuration
	IsLambda           bool
	LambdaFunctionName string

	// WebSocket configuration
	WebSocketEndpoint  string
	StreamPollInterval time.Duration

	// Conversation graphs
	FlowsFile   string
	DefaultFlow string

	// Logging
	LogLevel string

	// Authentication
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	// HTTP
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
	SignupLimit        int
	SignupWindow       time.Duration

	// Resilience
	BreakerMaxFailures int
	BreakerOpenTimeout time.Duration

	// Metrics and caching
	MetricsNamespace string
	CacheTTLSeconds  int

	// Feature flags
	EnableMetrics bool
	EnableTracing bool
	EnableCache   bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerAddress:  serverAddress(),
		Environment:    getEnv("ENVIRONMENT", "development"),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		DynamoDBTable:  getEnv("TABLE_NAME", "supportchat"),
		IndexName:      getEnv("INDEX_NAME", "ByOwnerIndex"),
		GSI2IndexName:  getEnv("GSI2_INDEX_NAME", "AllCasesIndex"),
		EventBusName:   getEnv("EVENT_BUS_NAME", "supportchat-events"),
		StorageBackend: getEnv("STORAGE_BACKEND", StorageDynamoDB),

		IsLambda:           getEnvBool("IS_LAMBDA", false),
		LambdaFunctionName: getEnv("AWS_LAMBDA_FUNCTION_NAME", ""),

		WebSocketEndpoint:  getEnv("WEBSOCKET_ENDPOINT", ""),
		StreamPollInterval: getEnvDuration("STREAM_POLL_INTERVAL", time.Second),

		FlowsFile:   getEnv("FLOWS_FILE", ""),
		DefaultFlow: getEnv("DEFAULT_FLOW", ""),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "supportchat"),
		JWTAudience: getEnv("JWT_AUDIENCE", "supportchat-api"),

		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		RateLimitRPS:       getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvInt("RATE_LIMIT_BURST", 20),
		SignupLimit:        getEnvInt("SIGNUP_RATE_LIMIT", 5),
		SignupWindow:       getEnvDuration("SIGNUP_RATE_WINDOW", time.Hour),

		BreakerMaxFailures: getEnvInt("BREAKER_MAX_FAILURES", 5),
		BreakerOpenTimeout: getEnvDuration("BREAKER_OPEN_TIMEOUT", 30*time.Second),

		MetricsNamespace: getEnv("METRICS_NAMESPACE", "SupportChat"),
		CacheTTLSeconds:  getEnvInt("CACHE_TTL_SECONDS", 30),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", false),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
		EnableCache:   getEnvBool("ENABLE_CACHE", true),
	}
	if cfg.LambdaFunctionName != "" {
		cfg.IsLambda = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if all required configuration is present
func (c *Config) Validate() error {
	switch c.StorageBackend {
	case StorageDynamoDB:
		if c.DynamoDBTable == "" {
			return fmt.Errorf("TABLE_NAME is required for the dynamodb backend")
		}
	case StorageMemory:
		if c.IsProduction() {
			return fmt.Errorf("the memory backend cannot be used in production")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be %q or %q, got %q", StorageDynamoDB, StorageMemory, c.StorageBackend)
	}

	if c.IsProduction() {
		if c.JWTSecret == "" && !c.IsLambda {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.EventBusName == "" {
			return fmt.Errorf("EVENT_BUS_NAME is required")
		}
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.BreakerMaxFailures <= 0 {
		return fmt.Errorf("BREAKER_MAX_FAILURES must be positive")
	}
	if c.StreamPollInterval <= 0 {
		return fmt.Errorf("STREAM_POLL_INTERVAL must be positive")
	}

	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// serverAddress honours PORT before SERVER_ADDRESS.
func serverAddress() string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + strings.TrimPrefix(port, ":")
	}
	return getEnv("SERVER_ADDRESS", ":8080")
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("1500ms") or whole seconds ("30").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blanks.
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
