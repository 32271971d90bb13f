package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for sas-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, API keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8080"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Analyzer defaults
	Analyzer AnalyzerConfig `yaml:"analyzer"`

	// Database configuration (PostgreSQL, optional)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (optional, used for report caching)
	Redis RedisConfig `yaml:"redis"`

	// AI model configuration for SAS-to-Python conversion
	AI AIConfig `yaml:"ai"`

	// Scripts directory for generated conversion output
	ScriptsDir string `yaml:"scripts_dir" env:"SCRIPTS_DIR" env-default:"./generated_scripts"`
}

// AnalyzerConfig holds default analysis parameters.
type AnalyzerConfig struct {
	// MaxChunkTokens is the default chunk token budget.
	MaxChunkTokens int `yaml:"max_chunk_tokens" env:"ANALYZER_MAX_CHUNK_TOKENS" env-default:"4000"`
}

// DatabaseConfig holds PostgreSQL configuration for persisting analysis
// runs. Leave Host empty to run without persistence.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:""`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"sas_engine"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"sas_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
	MigrationsPath string `yaml:"migrations_path" env:"PGMIGRATIONS_PATH" env-default:"migrations"`
}

// IsConfigured returns true when a database host is set.
func (c *DatabaseConfig) IsConfigured() bool {
	return c.Host != ""
}

// ConnectionString returns a PostgreSQL connection URL.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// RedisConfig holds Redis configuration for report caching.
// Leave Host empty to disable caching.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	// ReportTTLMinutes is how long cached analysis reports are kept.
	ReportTTLMinutes int `yaml:"report_ttl_minutes" env:"REDIS_REPORT_TTL_MINUTES" env-default:"60"`
}

// AIConfig holds LLM endpoints for the conversion pipeline.
// Provider selects the backend: "openai" (any OpenAI-compatible endpoint)
// or "anthropic".
type AIConfig struct {
	Provider string `yaml:"provider" env:"AI_PROVIDER" env-default:"openai"`

	OpenAIBaseURL string `yaml:"openai_base_url" env:"OPENAI_BASE_URL" env-default:"https://api.openai.com/v1"`
	OpenAIModel   string `yaml:"openai_model" env:"OPENAI_MODEL" env-default:"gpt-4o"`
	OpenAIKey     string `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML

	AnthropicModel string `yaml:"anthropic_model" env:"ANTHROPIC_MODEL" env-default:"claude-sonnet-4-20250514"`
	AnthropicKey   string `yaml:"-" env:"ANTHROPIC_API_KEY"` // Secret - not in YAML

	// MaxOutputTokens bounds each completion in the conversion pipeline.
	MaxOutputTokens int `yaml:"max_output_tokens" env:"AI_MAX_OUTPUT_TOKENS" env-default:"8000"`
}

// IsAvailable returns true if a conversion backend is configured.
func (c *AIConfig) IsAvailable() bool {
	switch c.Provider {
	case "anthropic":
		return c.AnthropicKey != ""
	default:
		return c.OpenAIKey != "" || c.OpenAIBaseURL != "https://api.openai.com/v1"
	}
}

// Load reads configuration from config.yaml with environment variable
// overrides. The version parameter is injected at build time and set on
// the returned Config. A missing config.yaml is not an error; environment
// variables and defaults apply alone in that case.
func Load(version string) (*Config, error) {
	cfg := &Config{Version: version}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	}

	return cfg, nil
}
