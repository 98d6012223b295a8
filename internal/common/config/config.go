// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig               `mapstructure:"app"`
	Camunda     CamundaConfig           `mapstructure:"camunda"`
	Database    DatabaseConfig          `mapstructure:"database"`
	Workers     map[string]WorkerConfig `mapstructure:"workers"`
	Supervisor  SupervisorConfig        `mapstructure:"supervisor"`
	Specialists SpecialistsConfig       `mapstructure:"specialists"`
	LLM         LLMConfig               `mapstructure:"llm"`
	Embedding   EmbeddingConfig         `mapstructure:"embedding"`
	Logging     LoggingConfig           `mapstructure:"logging"`
	Metrics     MetricsConfig           `mapstructure:"metrics"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// Enabled reports whether enough is configured to open a connection.
func (p PostgresConfig) Enabled() bool {
	return p.Host != "" && p.Database != ""
}

type ElasticsearchConfig struct {
	Addresses     []string `mapstructure:"addresses"`
	Username      string   `mapstructure:"username"`
	Password      string   `mapstructure:"password"`
	ChunkIndex    string   `mapstructure:"chunk_index"`
	DocumentIndex string   `mapstructure:"document_index"`
	MaxSearchHits int      `mapstructure:"max_search_hits"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"`     // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"` // For error handling
}

// --- Supervisor ---

// SupervisorConfig tunes the orchestration core.
type SupervisorConfig struct {
	SpecialistTimeout    int     `mapstructure:"specialist_timeout"` // milliseconds, per tier
	SemanticThreshold    float64 `mapstructure:"semantic_threshold"`
	SimpleWordCeiling    int     `mapstructure:"simple_word_ceiling"`
	RegistryPath         string  `mapstructure:"registry_path"`
	AnchorCacheTTL       int     `mapstructure:"anchor_cache_ttl"` // seconds
	SynthesisMaxTokens   int     `mapstructure:"synthesis_max_tokens"`
	SynthesisTemperature float64 `mapstructure:"synthesis_temperature"`
}

// SpecialistsConfig points at the specialist agent service.
type SpecialistsConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
}

// LLMConfig selects the reasoning/synthesis provider and tier models.
type LLMConfig struct {
	Provider string `mapstructure:"provider"` // anthropic | openai | google | gateway
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds
	Models   struct {
		Simple  string `mapstructure:"simple"`
		Medium  string `mapstructure:"medium"`
		Complex string `mapstructure:"complex"`
	} `mapstructure:"models"`
}

// EmbeddingConfig configures the optional semantic classifier.
type EmbeddingConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Provider string `mapstructure:"provider"` // openai | gateway
	Model    string `mapstructure:"model"`
	APIKey   string `mapstructure:"api_key"`
	BaseURL  string `mapstructure:"base_url"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig holds the health/metrics listener address.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
}
