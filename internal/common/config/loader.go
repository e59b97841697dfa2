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

	apperrors "library-assistant/internal/common/errors"
)

func Load() (*Config, error) {
	loadEnvFile()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like SUPABASE_URL
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile tries .env from the working directory upward so the binary and
// tests resolve the same file.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
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

// findProjectRoot walks up directories looking for go.mod.
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

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				// An unset variable expands to "", so validation can catch
				// the missing credential instead of a literal "${VAR}".
				if expanded := os.ExpandEnv(strVal); expanded != strVal {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig fills credentials from well-known env vars when the
// config file left them empty.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Database.Supabase.URL == "" {
		if val := os.Getenv("SUPABASE_URL"); val != "" {
			cfg.Database.Supabase.URL = val
		}
	}
	if cfg.Database.Supabase.Key == "" {
		if val := os.Getenv("SUPABASE_KEY"); val != "" {
			cfg.Database.Supabase.Key = val
		}
	}

	if cfg.LLM.APIKey == "" {
		if val := os.Getenv("GEMINI_API_KEY"); val != "" {
			cfg.LLM.APIKey = val
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

// LoadFromFile loads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for optional configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "library-assistant"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "supabase"
	}
	if cfg.Database.Supabase.Timeout == 0 {
		cfg.Database.Supabase.Timeout = 10000
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

	if cfg.LLM.BaseURL == "" {
		cfg.LLM.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-2.0-flash-exp"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30000
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 2
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1024
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = 0.7
	}

	if cfg.Schema.MappingPath == "" {
		cfg.Schema.MappingPath = "configs/schema_mapping.json"
	}

	if cfg.Pipeline.TurnTimeout == 0 {
		cfg.Pipeline.TurnTimeout = 60000
	}
	if cfg.Pipeline.MaxResults == 0 {
		cfg.Pipeline.MaxResults = 10
	}
	if cfg.Pipeline.RelatedBooks == 0 {
		cfg.Pipeline.RelatedBooks = 3
	}
	if cfg.Pipeline.RelatedLoans == 0 {
		cfg.Pipeline.RelatedLoans = 2
	}
	if cfg.Pipeline.CacheTTL == 0 {
		cfg.Pipeline.CacheTTL = 300
	}
	if cfg.Pipeline.RenderedLimit == 0 {
		cfg.Pipeline.RenderedLimit = 5
	}

	if cfg.Metrics.Address == "" {
		cfg.Metrics.Address = ":9102"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}
}

// Validate fails fast on missing credentials so a bad deployment dies at
// startup instead of deep inside a query.
func Validate(cfg *Config) error {
	switch cfg.Database.Driver {
	case "supabase":
		if cfg.Database.Supabase.URL == "" {
			return apperrors.NewConfigMissingError("database.supabase.url")
		}
		if cfg.Database.Supabase.Key == "" {
			return apperrors.NewConfigMissingError("database.supabase.key")
		}
	case "postgres":
		if cfg.Database.Postgres.Host == "" {
			return apperrors.NewConfigMissingError("database.postgres.host")
		}
		if cfg.Database.Postgres.Database == "" {
			return apperrors.NewConfigMissingError("database.postgres.database")
		}
		if cfg.Database.Postgres.User == "" {
			return apperrors.NewConfigMissingError("database.postgres.user")
		}
	default:
		return fmt.Errorf("unsupported database.driver %q", cfg.Database.Driver)
	}

	if cfg.LLM.APIKey == "" {
		return apperrors.NewConfigMissingError("llm.api_key")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration.
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
