package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/fusionmc/server/internal/streaming"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the FusionMC culling server
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Culling  CullingConfig
	Logging  LoggingConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Environment  string
}

// DatabaseConfig holds database connection configuration.
// An empty Host disables statistics history.
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// AuthConfig holds operator authentication configuration
type AuthConfig struct {
	JWTSecret            string
	JWTExpiration        time.Duration
	OperatorPasswordHash string
	BCryptCost           int
}

// CullingConfig holds the initial feature toggles and tick loop settings
type CullingConfig struct {
	EnableBlockEntityCulling bool
	EnableChunkCulling       bool
	EnableDistanceCulling    bool
	EnableFrustumCulling     bool
	EnableLOD                bool
	EnableChunkRenderingOpt  bool
	DebugMode                bool
	MaxRenderDistance        int           // chunks
	UpdateInterval           int           // ticks between maintenance passes
	CacheWatchdogThreshold   int           // chunk cache size that triggers a full clear
	StatsInterval            time.Duration // debug stats dump period
	PriorityTablePath        string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string
	OutputPath string
}

// Load reads configuration from environment variables and .env file
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found (this is OK if using environment variables): %v", err)
	}

	config := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "127.0.0.1"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDurationEnv("SERVER_IDLE_TIMEOUT", 60*time.Second),
			Environment:  getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", ""),
			Port:            getIntEnv("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "fusionmc"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxConnections:  getIntEnv("DB_MAX_CONNECTIONS", 5),
			MaxIdleConns:    getIntEnv("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getDurationEnv("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret:            getEnv("JWT_SECRET", ""),
			JWTExpiration:        getDurationEnv("JWT_EXPIRATION", 30*time.Minute),
			OperatorPasswordHash: getEnv("OPERATOR_PASSWORD_HASH", ""),
			BCryptCost:           getIntEnv("BCRYPT_COST", 10),
		},
		Culling: CullingConfig{
			EnableBlockEntityCulling: getBoolEnv("CULL_BLOCK_ENTITIES", true),
			EnableChunkCulling:       getBoolEnv("CULL_CHUNKS", true),
			EnableDistanceCulling:    getBoolEnv("CULL_DISTANCE", true),
			EnableFrustumCulling:     getBoolEnv("CULL_FRUSTUM", true),
			EnableLOD:                getBoolEnv("CULL_LOD", true),
			EnableChunkRenderingOpt:  getBoolEnv("CULL_CHUNK_RENDERING", true),
			DebugMode:                getBoolEnv("CULL_DEBUG", false),
			MaxRenderDistance:        getIntEnv("CULL_MAX_RENDER_DISTANCE", 16),
			UpdateInterval:           getIntEnv("CULL_UPDATE_INTERVAL", 5),
			CacheWatchdogThreshold:   getIntEnv("CULL_CACHE_WATCHDOG", 500),
			StatsInterval:            getDurationEnv("CULL_STATS_INTERVAL", time.Second),
			PriorityTablePath:        getEnv("CULL_PRIORITY_TABLE", ""),
		},
		Logging: LoggingConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			OutputPath: getEnv("LOG_OUTPUT_PATH", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.Auth.OperatorPasswordHash == "" {
		return fmt.Errorf("OPERATOR_PASSWORD_HASH is required")
	}
	if c.Culling.UpdateInterval <= 0 {
		return fmt.Errorf("CULL_UPDATE_INTERVAL must be positive, got %d", c.Culling.UpdateInterval)
	}
	if c.Culling.MaxRenderDistance <= 0 || c.Culling.MaxRenderDistance > streaming.MaxRadiusChunks {
		return fmt.Errorf("CULL_MAX_RENDER_DISTANCE must be between 1 and %d, got %d",
			streaming.MaxRadiusChunks, c.Culling.MaxRenderDistance)
	}
	if c.Database.Host != "" && c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required when DB_HOST is set")
	}
	return nil
}

// Enabled reports whether statistics history storage is configured
func (c *DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// DatabaseURL returns a PostgreSQL connection string
func (c *DatabaseConfig) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}

// IsDevelopment returns true if running in development mode
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Address returns host:port for the HTTP listener
func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

// Helper functions for environment variable access

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Warning: invalid integer value for %s: %s, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return intValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Warning: invalid boolean value for %s: %s, using default: %t", key, value, defaultValue)
		return defaultValue
	}
	return boolValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Warning: invalid duration value for %s: %s, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return duration
}
