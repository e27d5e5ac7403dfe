package common

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment"` // "development" or "production"
	Server      ServerConfig   `toml:"server"`
	Storage     StorageConfig  `toml:"storage"`
	Queue       QueueConfig    `toml:"queue"`
	Fetch       FetchConfig    `toml:"fetch"`
	Parse       ParseConfig    `toml:"parse"`
	Embedding   EmbedConfig    `toml:"embedding"`
	Mail        MailConfig     `toml:"mail"`
	Progress    ProgressConfig `toml:"progress"`
	Logging     LoggingConfig  `toml:"logging"`
}

type ServerConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	UploadDir string `toml:"upload_dir"` // Directory for uploaded pipeline documents
}

// StorageConfig holds SQLite storage configuration
type StorageConfig struct {
	Path          string `toml:"path"`            // Database file path
	CacheSizeMB   int    `toml:"cache_size_mb"`   // SQLite page cache size
	BusyTimeoutMS int    `toml:"busy_timeout_ms"` // SQLITE_BUSY retry window
	WALMode       bool   `toml:"wal_mode"`        // Enable write-ahead logging
}

// QueueConfig controls the dispatcher and scheduler
type QueueConfig struct {
	DefaultMaxAttempts int               `toml:"default_max_attempts"` // Retry bound per job
	DefaultPriority    int               `toml:"default_priority"`     // Priority when caller omits one
	BatchLimit         int               `toml:"batch_limit"`          // Max jobs per processBatch call
	FetchJobDelay      time.Duration     `toml:"fetch_job_delay"`      // Delay between fetch jobs in a batch
	Schedules          map[string]string `toml:"schedules"`            // family -> cron expression
}

// FetchConfig controls the page fetch/extract executor
type FetchConfig struct {
	UserAgent      string        `toml:"user_agent"`      // Crawler identification string
	RenderTimeout  time.Duration `toml:"render_timeout"`  // Headless render bound before static fallback
	RequestTimeout time.Duration `toml:"request_timeout"` // Static fetch timeout
	MaxDepth       int           `toml:"max_depth"`       // Default crawl depth bound
	MaxChildLinks  int           `toml:"max_child_links"` // Fan-out cap per page
	MaxPatterns    int           `toml:"max_patterns"`    // Pattern cap per page
	MaxBodySize    int           `toml:"max_body_size"`   // Static fetch body cap in bytes
}

// ParseConfig controls the document parse executor
type ParseConfig struct {
	MaxProducts int `toml:"max_products"` // Extracted product cap per document
}

// EmbedConfig controls embedding generation
type EmbedConfig struct {
	Provider      string        `toml:"provider"`       // "gemini" or "pseudo"
	Model         string        `toml:"model"`          // Gemini embedding model name
	APIKey        string        `toml:"api_key"`        // Loaded from GEMINI_API_KEY when empty
	Dimensions    int           `toml:"dimensions"`     // Vector length
	MaxInputLen   int           `toml:"max_input_len"`  // Text truncation bound
	Timeout       time.Duration `toml:"timeout"`        // Provider call timeout
	MinSimilarity float64       `toml:"min_similarity"` // Default search threshold
}

// MailConfig controls the send executor. An empty Username selects test
// mode: deliveries are logged and recorded but not transmitted.
type MailConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"` // Loaded from SMTP_PASSWORD when empty
	From     string `toml:"from"`
	FromName string `toml:"from_name"`
}

// ProgressConfig controls the progress channel and subscriber fallback
type ProgressConfig struct {
	BufferSize      int           `toml:"buffer_size"`      // Per-session event buffer
	PatienceTimeout time.Duration `toml:"patience_timeout"` // Subscriber wait before degrading
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// DefaultConfig returns the configuration used when no file is provided
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:      "localhost",
			Port:      8085,
			UploadDir: "./data/uploads",
		},
		Storage: StorageConfig{
			Path:          "./data/conveyor.db",
			CacheSizeMB:   64,
			BusyTimeoutMS: 5000,
			WALMode:       true,
		},
		Queue: QueueConfig{
			DefaultMaxAttempts: 3,
			DefaultPriority:    5,
			BatchLimit:         10,
			FetchJobDelay:      time.Second,
		},
		Fetch: FetchConfig{
			UserAgent:      "Conveyor/1.0 (+https://vistaview.ai/bot)",
			RenderTimeout:  30 * time.Second,
			RequestTimeout: 15 * time.Second,
			MaxDepth:       2,
			MaxChildLinks:  10,
			MaxPatterns:    50,
			MaxBodySize:    10 * 1024 * 1024,
		},
		Parse: ParseConfig{
			MaxProducts: 500,
		},
		Embedding: EmbedConfig{
			Provider:      "pseudo",
			Model:         "gemini-embedding-001",
			Dimensions:    1536,
			MaxInputLen:   8000,
			Timeout:       30 * time.Second,
			MinSimilarity: 0.5,
		},
		Mail: MailConfig{
			Host:     "smtp.gmail.com",
			Port:     587,
			From:     "noreply@vistaview.ai",
			FromName: "VistaView",
		},
		Progress: ProgressConfig{
			BufferSize:      64,
			PatienceTimeout: 8 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
	}
}

// LoadConfig loads configuration from a TOML file over the defaults,
// then applies environment variable overrides for secrets.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides pulls secrets from the environment so they never
// need to live in the config file.
func applyEnvOverrides(config *Config) {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		config.Embedding.APIKey = key
	}
	if pass := os.Getenv("SMTP_PASSWORD"); pass != "" {
		config.Mail.Password = pass
	}
	if user := os.Getenv("SMTP_USERNAME"); user != "" {
		config.Mail.Username = user
	}
}

// Validate checks configuration invariants that would otherwise surface
// as confusing runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Queue.DefaultMaxAttempts < 1 {
		return fmt.Errorf("queue.default_max_attempts must be at least 1")
	}
	if c.Queue.BatchLimit < 1 {
		return fmt.Errorf("queue.batch_limit must be at least 1")
	}
	if c.Embedding.Dimensions < 1 {
		return fmt.Errorf("embedding.dimensions must be positive")
	}
	if c.Fetch.MaxDepth < 0 {
		return fmt.Errorf("fetch.max_depth cannot be negative")
	}
	return nil
}

// ApplyFlagOverrides applies command-line overrides on top of the loaded
// configuration (highest priority).
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}
