// Package config loads mintbalance settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dvloznov/mintbalance/internal/ai"
	"gopkg.in/yaml.v3"
)

// Config is the top-level mintbalance.yaml configuration.
type Config struct {
	Store    StoreConfig    `yaml:"store"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	AI       AIConfig       `yaml:"ai"`
	Sync     SyncConfig     `yaml:"sync"`
	Backup   BackupConfig   `yaml:"backup"`
	BigQuery BigQueryConfig `yaml:"bigquery"`
	Notion   NotionConfig   `yaml:"notion"`
}

// StoreConfig locates the local ledger database.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls logger.Configure.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig controls the HTTP API.
type ServerConfig struct {
	Port         string        `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	AllowOrigin  string        `yaml:"allow_origin"`
	// AuthToken, when set, is required as a bearer token on /api routes.
	AuthToken    string        `yaml:"auth_token,omitempty"`
}

// AIConfig selects and tunes the model backend.
type AIConfig struct {
	// Mode overrides the mode stored in ledger settings when set.
	Mode            string        `yaml:"mode,omitempty"`
	GeminiAPIKey    string        `yaml:"gemini_api_key,omitempty"`
	AnthropicAPIKey string        `yaml:"anthropic_api_key,omitempty"`
	Model           string        `yaml:"model,omitempty"`
	LocalURL        string        `yaml:"local_url"`
	LocalModel      string        `yaml:"local_model"`
	BrokeredURL     string        `yaml:"brokered_url"`
	KeySourceURL    string        `yaml:"key_source_url"`
	Timeout         time.Duration `yaml:"timeout"`
	Workers         int           `yaml:"workers"`
	Policy          PolicyConfig  `yaml:"policy"`
}

// PolicyConfig is the per-operation failure mode: "propagate" or
// "fallback".
type PolicyConfig struct {
	Categorize string `yaml:"categorize"`
	Predict    string `yaml:"predict"`
	Insights   string `yaml:"insights"`
}

// SyncConfig points at the remote sync endpoint.
type SyncConfig struct {
	URL   string `yaml:"url,omitempty"`
	Token string `yaml:"token,omitempty"`
}

// BackupConfig names the Cloud Storage location for ledger backups.
type BackupConfig struct {
	Bucket string `yaml:"bucket,omitempty"`
	Prefix string `yaml:"prefix"`
}

// BigQueryConfig names the analytics export table.
type BigQueryConfig struct {
	ProjectID string `yaml:"project_id,omitempty"`
	Dataset   string `yaml:"dataset"`
	Table     string `yaml:"table"`
}

// NotionConfig names the Notion database transactions are mirrored to.
type NotionConfig struct {
	Token      string `yaml:"token,omitempty"`
	DatabaseID string `yaml:"database_id,omitempty"`
}

// Default returns a Config with defaults for a fresh install.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Path: defaultStorePath(),
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Server: ServerConfig{
			Port: "8080",
			// Writes outlast the AI request timeout so synchronous
			// predictions can complete.
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  60 * time.Second,
			AllowOrigin:  "*",
		},
		AI: AIConfig{
			LocalURL:     ai.DefaultLocalURL,
			LocalModel:   ai.DefaultLocalModel,
			BrokeredURL:  ai.DefaultBrokeredURL,
			KeySourceURL: ai.DefaultKeySourceURL,
			Timeout:      ai.DefaultTimeout,
			Workers:      1,
			Policy: PolicyConfig{
				Categorize: string(ai.Propagate),
				Predict:    string(ai.Fallback),
				Insights:   string(ai.Fallback),
			},
		},
		Backup: BackupConfig{
			Prefix: "backups",
		},
		BigQuery: BigQueryConfig{
			Dataset: "mintbalance",
			Table:   "transactions",
		},
	}
}

// DefaultPath is where the CLI and API look for mintbalance.yaml when no
// path is given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "mintbalance.yaml"
	}
	return filepath.Join(dir, "mintbalance", "mintbalance.yaml")
}

func defaultStorePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "mintbalance.db"
	}
	return filepath.Join(dir, "mintbalance", "ledger.db")
}

// Load reads a mintbalance.yaml file from disk. Fields missing from the
// file keep their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// Resolve loads path if it exists (defaults otherwise), applies
// environment overrides and validates the result.
func Resolve(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes a Config to a YAML file, creating its directory.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	// Keys may be stored here.
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv() error {
	c.Store.Path = getEnv("MINTBALANCE_DB", c.Store.Path)
	c.Log.Level = getEnv("MINTBALANCE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("MINTBALANCE_LOG_FORMAT", c.Log.Format)
	c.Server.Port = getEnv("MINTBALANCE_PORT", c.Server.Port)
	c.Server.AllowOrigin = getEnv("MINTBALANCE_ALLOW_ORIGIN", c.Server.AllowOrigin)
	c.Server.AuthToken = getEnv("MINTBALANCE_API_TOKEN", c.Server.AuthToken)

	c.AI.Mode = getEnv("MINTBALANCE_AI_MODE", c.AI.Mode)
	c.AI.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.AI.GeminiAPIKey)
	c.AI.AnthropicAPIKey = getEnv("ANTHROPIC_API_KEY", c.AI.AnthropicAPIKey)
	c.AI.Model = getEnv("MINTBALANCE_AI_MODEL", c.AI.Model)
	c.AI.LocalURL = getEnv("OLLAMA_URL", c.AI.LocalURL)
	c.AI.LocalModel = getEnv("OLLAMA_MODEL", c.AI.LocalModel)
	c.AI.KeySourceURL = getEnv("MINTBALANCE_KEY_SOURCE_URL", c.AI.KeySourceURL)

	if v := os.Getenv("MINTBALANCE_AI_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("ApplyEnv: MINTBALANCE_AI_TIMEOUT: %w", err)
		}
		c.AI.Timeout = d
	}
	if v := os.Getenv("MINTBALANCE_AI_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("ApplyEnv: MINTBALANCE_AI_WORKERS: %w", err)
		}
		c.AI.Workers = n
	}

	c.Sync.URL = getEnv("MINTBALANCE_SYNC_URL", c.Sync.URL)
	c.Sync.Token = getEnv("MINTBALANCE_SYNC_TOKEN", c.Sync.Token)
	c.Backup.Bucket = getEnv("GCS_BUCKET", c.Backup.Bucket)
	c.BigQuery.ProjectID = getEnv("GOOGLE_CLOUD_PROJECT", c.BigQuery.ProjectID)
	c.Notion.Token = getEnv("NOTION_TOKEN", c.Notion.Token)
	c.Notion.DatabaseID = getEnv("NOTION_DATABASE_ID", c.Notion.DatabaseID)
	return nil
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("Validate: store.path is required")
	}
	if c.AI.Mode != "" {
		switch ai.Kind(c.AI.Mode) {
		case ai.KindCloud, ai.KindClaude, ai.KindBrokered, ai.KindLocal:
		default:
			return fmt.Errorf("Validate: ai.mode %q: %w", c.AI.Mode, ai.ErrUnknownBackend)
		}
	}
	if c.AI.Workers < 1 {
		return fmt.Errorf("Validate: ai.workers must be at least 1, got %d", c.AI.Workers)
	}
	if _, err := c.AI.FailurePolicy(); err != nil {
		return fmt.Errorf("Validate: %w", err)
	}
	return nil
}

// FailurePolicy converts the configured failure modes into an ai.Policy.
// Empty entries take the default for that operation.
func (a AIConfig) FailurePolicy() (ai.Policy, error) {
	p := ai.DefaultPolicy()
	for _, f := range []struct {
		name  string
		value string
		dst   *ai.FailureMode
	}{
		{"categorize", a.Policy.Categorize, &p.Categorize},
		{"predict", a.Policy.Predict, &p.Predict},
		{"insights", a.Policy.Insights, &p.Insights},
	} {
		switch mode := ai.FailureMode(strings.ToLower(strings.TrimSpace(f.value))); mode {
		case "":
		case ai.Propagate, ai.Fallback:
			*f.dst = mode
		default:
			return ai.Policy{}, fmt.Errorf("ai.policy.%s: unknown failure mode %q", f.name, f.value)
		}
	}
	return p, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
