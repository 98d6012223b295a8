// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml on top,
// expands ${VAR} placeholders and applies defaults.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	// LLM_API_KEY overrides llm.api_key, and so on.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // environment overlay is optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env", // test/e2e
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// findProjectRoot walks up from the working directory looking for go.mod.
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders. An unset variable leaves the
// key empty so optional stores stay disabled; list entries that resolve to
// nothing are dropped.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		switch val := v.Get(key).(type) {
		case string:
			if isPlaceholder(val) {
				v.Set(key, os.ExpandEnv(val))
			}
		case []interface{}:
			out := make([]string, 0, len(val))
			changed := false
			for _, item := range val {
				str := fmt.Sprint(item)
				if isPlaceholder(str) {
					str = os.ExpandEnv(str)
					changed = true
				}
				if str != "" {
					out = append(out, str)
				}
			}
			if changed {
				v.Set(key, out)
			}
		}
	}
}

func isPlaceholder(s string) bool {
	return strings.Contains(s, "${") || (strings.HasPrefix(s, "$") && len(s) > 1)
}

// overrideEmptyConfig fills secrets from well-known variable names when the
// file left them blank.
func overrideEmptyConfig(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		switch cfg.LLM.Provider {
		case "anthropic":
			cfg.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
		case "openai":
			cfg.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
		case "google":
			cfg.LLM.APIKey = os.Getenv("GEMINI_API_KEY")
		}
	}

	if cfg.Embedding.APIKey == "" && cfg.Embedding.Provider == "openai" {
		cfg.Embedding.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if cfg.Specialists.BaseURL == "" {
		if val := os.Getenv("SPECIALISTS_BASE_URL"); val != "" {
			cfg.Specialists.BaseURL = val
		}
	}

	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "dealroom-supervisor"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Elasticsearch.ChunkIndex == "" {
		cfg.Database.Elasticsearch.ChunkIndex = "document_chunks"
	}
	if cfg.Database.Elasticsearch.DocumentIndex == "" {
		cfg.Database.Elasticsearch.DocumentIndex = "documents"
	}
	if cfg.Database.Elasticsearch.MaxSearchHits == 0 {
		cfg.Database.Elasticsearch.MaxSearchHits = 8
	}

	if cfg.Supervisor.SpecialistTimeout == 0 {
		cfg.Supervisor.SpecialistTimeout = 45000
	}
	if cfg.Supervisor.SemanticThreshold == 0 {
		cfg.Supervisor.SemanticThreshold = 0.6
	}
	if cfg.Supervisor.SimpleWordCeiling == 0 {
		cfg.Supervisor.SimpleWordCeiling = 10
	}
	if cfg.Supervisor.AnchorCacheTTL == 0 {
		cfg.Supervisor.AnchorCacheTTL = 7 * 24 * 3600
	}
	if cfg.Supervisor.SynthesisMaxTokens == 0 {
		cfg.Supervisor.SynthesisMaxTokens = 2048
	}
	if cfg.Supervisor.SynthesisTemperature == 0 {
		cfg.Supervisor.SynthesisTemperature = 0.3
	}

	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "anthropic"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60000
	}
	if cfg.LLM.Models.Simple == "" {
		cfg.LLM.Models.Simple = "claude-3-5-haiku-latest"
	}
	if cfg.LLM.Models.Medium == "" {
		cfg.LLM.Models.Medium = "claude-sonnet-4-20250514"
	}
	if cfg.LLM.Models.Complex == "" {
		cfg.LLM.Models.Complex = "claude-opus-4-20250514"
	}

	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "openai"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = "text-embedding-3-small"
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 10000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":8080"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = 5
		}
		if worker.Timeout == 0 {
			// must outlive two specialist tiers plus synthesis
			worker.Timeout = 120000
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Camunda.BrokerAddress == "" {
		return fmt.Errorf("camunda.broker_address is required")
	}

	if cfg.Specialists.BaseURL == "" {
		return fmt.Errorf("specialists.base_url is required")
	}

	switch cfg.LLM.Provider {
	case "anthropic", "openai", "google":
	case "gateway":
		if cfg.LLM.BaseURL == "" {
			return fmt.Errorf("llm.base_url is required for the gateway provider")
		}
	default:
		return fmt.Errorf("unsupported llm.provider %q", cfg.LLM.Provider)
	}

	if cfg.Embedding.Enabled {
		switch cfg.Embedding.Provider {
		case "openai":
		case "gateway":
			if cfg.Embedding.BaseURL == "" {
				return fmt.Errorf("embedding.base_url is required for the gateway provider")
			}
		default:
			return fmt.Errorf("unsupported embedding.provider %q", cfg.Embedding.Provider)
		}
	}

	if cfg.Supervisor.SemanticThreshold < 0 || cfg.Supervisor.SemanticThreshold > 1 {
		return fmt.Errorf("supervisor.semantic_threshold must be within [0,1]")
	}

	if cfg.Database.Postgres.Host != "" && cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required when a host is set")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

// GetWorkerConfig retrieves worker-specific configuration with fallback to defaults
func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	return WorkerConfig{
		Enabled:       true,
		MaxJobsActive: 5,
		Timeout:       120000,
		MaxRetries:    3,
	}
}

// IsWorkerEnabled checks if a specific worker is enabled
func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
