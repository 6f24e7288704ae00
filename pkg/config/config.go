package config

import (
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for schemalink-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL with pgvector)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (optional query-embedding cache)
	Redis RedisConfig `yaml:"redis"`

	// Embeddings configuration (external embedding generator)
	Embeddings EmbeddingsConfig `yaml:"embeddings"`

	// Search tuning
	Search SearchConfig `yaml:"search"`

	// Context resolver tuning
	Resolver ResolverConfig `yaml:"resolver"`

	// Schema graph traversal tuning
	Graph GraphConfig `yaml:"graph"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"schemalink"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"schemalink_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// RedisConfig holds optional Redis configuration. When Host is empty the
// query-embedding cache is disabled and every search embeds its query text
// through the external generator.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	// TTLMinutes is how long cached query embeddings are kept.
	TTLMinutes int `yaml:"ttl_minutes" env:"REDIS_TTL_MINUTES" env-default:"60"`
}

// EmbeddingsConfig holds settings for the external embedding generator.
type EmbeddingsConfig struct {
	// BaseURL overrides the OpenAI-compatible endpoint (empty = api.openai.com).
	BaseURL string `yaml:"base_url" env:"EMBEDDINGS_BASE_URL" env-default:""`
	APIKey  string `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML
	Model   string `yaml:"model" env:"EMBEDDINGS_MODEL" env-default:"text-embedding-3-small"`
	// Dimensions must match the vector columns created by migrations.
	Dimensions int `yaml:"dimensions" env:"EMBEDDINGS_DIMENSIONS" env-default:"1536"`
	// TimeoutSeconds bounds each embedding call.
	TimeoutSeconds int `yaml:"timeout_seconds" env:"EMBEDDINGS_TIMEOUT_SECONDS" env-default:"15"`
}

// SearchConfig holds hybrid search tuning parameters.
type SearchConfig struct {
	// RRFConstant is the smoothing constant k in 1/(k+rank) rank fusion.
	RRFConstant int `yaml:"rrf_constant" env:"SEARCH_RRF_CONSTANT" env-default:"60"`
	// CandidateMultiplier scales how many candidates each branch fetches
	// relative to the requested page window.
	CandidateMultiplier int `yaml:"candidate_multiplier" env:"SEARCH_CANDIDATE_MULTIPLIER" env-default:"2"`
	// DefaultLimit is the page size when the caller does not specify one.
	DefaultLimit int `yaml:"default_limit" env:"SEARCH_DEFAULT_LIMIT" env-default:"10"`
	// MaxLimit caps the page size a caller may request.
	MaxLimit int `yaml:"max_limit" env:"SEARCH_MAX_LIMIT" env-default:"100"`
}

// ResolverConfig holds context resolver fan-out settings.
type ResolverConfig struct {
	// MaxConcurrent bounds how many per-item searches run at once.
	MaxConcurrent int `yaml:"max_concurrent" env:"RESOLVER_MAX_CONCURRENT" env-default:"8"`
	// ItemTimeoutSeconds bounds each individual sub-search.
	ItemTimeoutSeconds int `yaml:"item_timeout_seconds" env:"RESOLVER_ITEM_TIMEOUT_SECONDS" env-default:"10"`
	// GlobalTimeoutSeconds bounds the whole resolve request. On expiry,
	// completed sub-results are returned with a partial flag.
	GlobalTimeoutSeconds int `yaml:"global_timeout_seconds" env:"RESOLVER_GLOBAL_TIMEOUT_SECONDS" env-default:"30"`
	// ItemLimit is how many hits each sub-search contributes.
	ItemLimit int `yaml:"item_limit" env:"RESOLVER_ITEM_LIMIT" env-default:"5"`
}

// GraphConfig holds path-finder bounds.
type GraphConfig struct {
	DefaultMaxDepth int `yaml:"default_max_depth" env:"GRAPH_DEFAULT_MAX_DEPTH" env-default:"3"`
	MaxDepthCeiling int `yaml:"max_depth_ceiling" env:"GRAPH_MAX_DEPTH_CEILING" env-default:"5"`
	// ExpansionBudget caps total node expansions per request so pathological
	// graphs cannot blow up even within the depth bound.
	ExpansionBudget int `yaml:"expansion_budget" env:"GRAPH_EXPANSION_BUDGET" env-default:"10000"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		return nil, fmt.Errorf("failed to read config.yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	if c.Search.RRFConstant <= 0 {
		return fmt.Errorf("search.rrf_constant must be positive, got %d", c.Search.RRFConstant)
	}
	if c.Graph.DefaultMaxDepth > c.Graph.MaxDepthCeiling {
		return fmt.Errorf("graph.default_max_depth (%d) exceeds graph.max_depth_ceiling (%d)",
			c.Graph.DefaultMaxDepth, c.Graph.MaxDepthCeiling)
	}
	return nil
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// EmbedTimeout returns the per-call embedding deadline as a duration.
func (c *EmbeddingsConfig) EmbedTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ItemTimeout returns the per-item sub-search deadline as a duration.
func (c *ResolverConfig) ItemTimeout() time.Duration {
	return time.Duration(c.ItemTimeoutSeconds) * time.Second
}

// GlobalTimeout returns the whole-request deadline as a duration.
func (c *ResolverConfig) GlobalTimeout() time.Duration {
	return time.Duration(c.GlobalTimeoutSeconds) * time.Second
}

// TTL returns the query-embedding cache TTL as a duration.
func (c *RedisConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}
