package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the sentinel API configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Database  DatabaseConfig  `yaml:"database"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Auth      AuthConfig      `yaml:"auth"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider      string       `yaml:"provider"` // label for logs/metrics, e.g. "openai"
	APIKey        string       `yaml:"api_key"`
	BaseURL       string       `yaml:"base_url"`
	Model         string       `yaml:"model"`
	Dimensions    int          `yaml:"dimensions"`
	CacheTTLHours int          `yaml:"cache_ttl_hours"` // vector cache in Redis, 0 disables
	Budget        BudgetConfig `yaml:"budget"`
	Retry         RetryConfig  `yaml:"retry"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// RetryConfig holds the embedding retry policy.
type RetryConfig struct {
	MaxAttempts        int     `yaml:"max_attempts"`
	BaseDelayMs        int     `yaml:"base_delay_ms"`
	MaxDelayMs         int     `yaml:"max_delay_ms"`
	JitterFactor       float64 `yaml:"jitter_factor"`         // randomization factor in [0,1]
	RateLimitedFloorMs int     `yaml:"rate_limited_floor_ms"` // minimum wait after a 429
	AttemptTimeoutMs   int     `yaml:"attempt_timeout_ms"`
}

// PipelineConfig holds the detection pipeline settings.
type PipelineConfig struct {
	CorpusVersion     string          `yaml:"corpus_version"`
	TopK              int             `yaml:"top_k"`
	MaxTopK           int             `yaml:"max_top_k"`
	Tau               float64         `yaml:"tau"` // decision threshold, score in [-1,1]
	MaxInputRunes     int             `yaml:"max_input_runes"`
	TopMatchesInReply int             `yaml:"top_matches_in_reply"`
	Cache             CacheConfig     `yaml:"cache"`
	Admission         AdmissionConfig `yaml:"admission"`
}

// CacheConfig holds decision cache settings.
type CacheConfig struct {
	Capacity   int `yaml:"capacity"`
	TTLSeconds int `yaml:"ttl_sec"`
}

// AdmissionConfig holds rate controller settings.
type AdmissionConfig struct {
	WaitTimeoutMs int          `yaml:"wait_timeout_ms"`
	Embedder      BucketConfig `yaml:"embedder"`
	Index         BucketConfig `yaml:"index"`
}

// BucketConfig holds token-bucket settings for one guarded resource.
type BucketConfig struct {
	Capacity      int     `yaml:"capacity"`
	RefillPerSec  float64 `yaml:"refill_per_sec"`
	MaxConcurrent int     `yaml:"max_concurrent"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	r := &c.Embedding.Retry
	if r.MaxAttempts <= 0 {
		r.MaxAttempts = 3
	}
	if r.BaseDelayMs <= 0 {
		r.BaseDelayMs = 200
	}
	if r.MaxDelayMs <= 0 {
		r.MaxDelayMs = 5000
	}
	if r.JitterFactor <= 0 {
		r.JitterFactor = 0.5
	}
	if r.RateLimitedFloorMs <= 0 {
		r.RateLimitedFloorMs = 1000
	}
	if r.AttemptTimeoutMs <= 0 {
		r.AttemptTimeoutMs = 10000
	}

	p := &c.Pipeline
	if p.CorpusVersion == "" {
		p.CorpusVersion = "v1"
	}
	if p.TopK <= 0 {
		p.TopK = 5
	}
	if p.MaxTopK <= 0 {
		p.MaxTopK = 50
	}
	if p.Tau == 0 {
		p.Tau = 0.3
	}
	if p.MaxInputRunes <= 0 {
		p.MaxInputRunes = 2000
	}
	if p.TopMatchesInReply <= 0 {
		p.TopMatchesInReply = 3
	}
	if p.Cache.Capacity <= 0 {
		p.Cache.Capacity = 4096
	}
	if p.Cache.TTLSeconds <= 0 {
		p.Cache.TTLSeconds = 300
	}
	if p.Admission.WaitTimeoutMs < 0 {
		p.Admission.WaitTimeoutMs = 0
	}
	applyBucketDefaults(&p.Admission.Embedder)
	applyBucketDefaults(&p.Admission.Index)
}

func applyBucketDefaults(b *BucketConfig) {
	if b.Capacity <= 0 {
		b.Capacity = 10
	}
	if b.RefillPerSec <= 0 {
		b.RefillPerSec = 5
	}
	if b.MaxConcurrent <= 0 {
		b.MaxConcurrent = 8
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Pipeline.Tau < 0 || c.Pipeline.Tau > 1 {
		return fmt.Errorf("pipeline.tau must be in [0,1], got %g", c.Pipeline.Tau)
	}
	if c.Pipeline.TopK > c.Pipeline.MaxTopK {
		return fmt.Errorf("pipeline.top_k %d exceeds pipeline.max_top_k %d",
			c.Pipeline.TopK, c.Pipeline.MaxTopK)
	}
	if f := c.Embedding.Retry.JitterFactor; f < 0 || f > 1 {
		return fmt.Errorf("embedding.retry.jitter_factor must be in [0,1], got %g", f)
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf("embedding.budget.action must be \"warn\" or \"reject\", got %q",
			c.Embedding.Budget.Action)
	}
	return nil
}

// IndexVersion derives the version string recorded on every Decision:
// model, vector dimension, and corpus version must all match for cached and
// fresh decisions to be comparable.
func (c *Config) IndexVersion() string {
	return fmt.Sprintf("%s:%d:%s", c.Embedding.Model, c.Embedding.Dimensions, c.Pipeline.CorpusVersion)
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
