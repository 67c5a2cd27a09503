// Package config loads and validates tracker settings through viper.
package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
	"github.com/lrocampoa/ExpenseTracker/internal/ingest"
	"github.com/lrocampoa/ExpenseTracker/internal/llm"
	"github.com/lrocampoa/ExpenseTracker/internal/mailbox"
	"github.com/lrocampoa/ExpenseTracker/internal/pipeline"
)

// DefaultUserID owns accounts and rules when no user is configured.
const DefaultUserID = "default"

// Config is the typed view of the tracker configuration.
type Config struct {
	Database  DatabaseConfig
	Logging   LoggingConfig
	Outlook   OutlookConfig
	Gmail     GmailConfig
	IMAP      IMAPConfig
	LLM       LLMConfig
	Server    ServerConfig
	UserID    string
	TokenDir  string
	Sync      SyncConfig
	Pipeline  PipelineConfig
	Scheduler SchedulerConfig
}

// DatabaseConfig locates the SQLite database and its backups.
type DatabaseConfig struct {
	Path      string
	BackupDir string
}

// LoggingConfig selects the slog level and handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// SyncConfig tunes mailbox ingestion.
type SyncConfig struct {
	BaselineQuery    string
	PageLimit        int
	MaxPages         int
	FailureThreshold int
	BaselineDays     int
	LeaseTTL         time.Duration
	Timeout          time.Duration
}

// PipelineConfig tunes message processing.
type PipelineConfig struct {
	MaxAttempts   int
	Parallelism   int
	Concurrency   int
	MinConfidence float64
}

// LLMConfig selects and limits the inference fallback.
type LLMConfig struct {
	Provider        string
	APIKey          string
	Model           string
	BaseURL         string
	Temperature     float64
	CostPer1KTokens float64
	MaxTokens       int
	RateLimit       int
	MaxRetries      int
	DailyBudget     int
	Timeout         time.Duration
}

// GmailConfig holds the Google OAuth client.
type GmailConfig struct {
	ClientID     string
	ClientSecret string
}

// OutlookConfig holds the Microsoft OAuth client and Graph settings.
type OutlookConfig struct {
	ClientID     string
	ClientSecret string
	Tenant       string
	Folder       string
	BaseURL      string
}

// IMAPConfig holds the IMAP server settings.
type IMAPConfig struct {
	Host     string
	Username string
	Password string
	Folder   string
	Port     int
	Insecure bool
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string
}

// SchedulerConfig configures periodic runs.
type SchedulerConfig struct {
	Interval time.Duration
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("user_id", DefaultUserID)
	v.SetDefault("token_dir", "~/.config/tracker/tokens")

	v.SetDefault("database.path", "~/.local/share/tracker/tracker.db")
	v.SetDefault("database.backup_dir", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	sync := ingest.DefaultConfig()
	opts := mailbox.DefaultOptions()
	v.SetDefault("sync.page_limit", sync.PageLimit)
	v.SetDefault("sync.max_pages", sync.MaxPages)
	v.SetDefault("sync.failure_threshold", sync.FailureThreshold)
	v.SetDefault("sync.lease_ttl", sync.LeaseTTL)
	v.SetDefault("sync.baseline_query", opts.BaselineQuery)
	v.SetDefault("sync.baseline_days", opts.BaselineDays)
	v.SetDefault("sync.timeout", opts.Timeout)

	pipe := pipeline.DefaultConfig()
	v.SetDefault("pipeline.max_attempts", pipe.MaxAttempts)
	v.SetDefault("pipeline.parallelism", pipe.Parallelism)
	v.SetDefault("pipeline.concurrency", 2)
	v.SetDefault("pipeline.min_confidence", 0.5)

	fb := llm.DefaultFallbackConfig()
	v.SetDefault("llm.provider", "none")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 300)
	v.SetDefault("llm.rate_limit", fb.RateLimit)
	v.SetDefault("llm.max_retries", fb.Retry.MaxAttempts)
	v.SetDefault("llm.daily_budget", 50)
	v.SetDefault("llm.timeout", fb.CallTimeout)
	v.SetDefault("llm.cost_per_1k_tokens", 0.0)

	v.SetDefault("outlook.tenant", "common")
	v.SetDefault("outlook.folder", "inbox")
	v.SetDefault("outlook.base_url", "https://graph.microsoft.com/v1.0")

	v.SetDefault("imap.port", 993)
	v.SetDefault("imap.folder", "INBOX")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("scheduler.interval", 15*time.Minute)
}

// Load reads the typed configuration from v and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		UserID:   v.GetString("user_id"),
		TokenDir: ExpandPath(v.GetString("token_dir")),
		Database: DatabaseConfig{
			Path:      ExpandPath(v.GetString("database.path")),
			BackupDir: ExpandPath(v.GetString("database.backup_dir")),
		},
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Sync: SyncConfig{
			PageLimit:        v.GetInt("sync.page_limit"),
			MaxPages:         v.GetInt("sync.max_pages"),
			FailureThreshold: v.GetInt("sync.failure_threshold"),
			LeaseTTL:         v.GetDuration("sync.lease_ttl"),
			BaselineQuery:    v.GetString("sync.baseline_query"),
			BaselineDays:     v.GetInt("sync.baseline_days"),
			Timeout:          v.GetDuration("sync.timeout"),
		},
		Pipeline: PipelineConfig{
			MaxAttempts:   v.GetInt("pipeline.max_attempts"),
			Parallelism:   v.GetInt("pipeline.parallelism"),
			Concurrency:   v.GetInt("pipeline.concurrency"),
			MinConfidence: v.GetFloat64("pipeline.min_confidence"),
		},
		LLM: LLMConfig{
			Provider:        v.GetString("llm.provider"),
			APIKey:          v.GetString("llm.api_key"),
			Model:           v.GetString("llm.model"),
			BaseURL:         v.GetString("llm.base_url"),
			Temperature:     v.GetFloat64("llm.temperature"),
			MaxTokens:       v.GetInt("llm.max_tokens"),
			RateLimit:       v.GetInt("llm.rate_limit"),
			MaxRetries:      v.GetInt("llm.max_retries"),
			DailyBudget:     v.GetInt("llm.daily_budget"),
			Timeout:         v.GetDuration("llm.timeout"),
			CostPer1KTokens: v.GetFloat64("llm.cost_per_1k_tokens"),
		},
		Gmail: GmailConfig{
			ClientID:     v.GetString("gmail.client_id"),
			ClientSecret: v.GetString("gmail.client_secret"),
		},
		Outlook: OutlookConfig{
			ClientID:     v.GetString("outlook.client_id"),
			ClientSecret: v.GetString("outlook.client_secret"),
			Tenant:       v.GetString("outlook.tenant"),
			Folder:       v.GetString("outlook.folder"),
			BaseURL:      v.GetString("outlook.base_url"),
		},
		IMAP: IMAPConfig{
			Host:     v.GetString("imap.host"),
			Port:     v.GetInt("imap.port"),
			Username: v.GetString("imap.username"),
			Password: v.GetString("imap.password"),
			Folder:   v.GetString("imap.folder"),
			Insecure: v.GetBool("imap.insecure"),
		},
		Server:    ServerConfig{Addr: v.GetString("server.addr")},
		Scheduler: SchedulerConfig{Interval: v.GetDuration("scheduler.interval")},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component could run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.UserID) == "" {
		return fmt.Errorf("%w: user_id", common.ErrMissingConfig)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
	}
	if c.Pipeline.MaxAttempts < 1 {
		return fmt.Errorf("%w: pipeline.max_attempts must be at least 1", common.ErrInvalidConfig)
	}
	if c.Pipeline.MinConfidence < 0 || c.Pipeline.MinConfidence > 1 {
		return fmt.Errorf("%w: pipeline.min_confidence must be within [0, 1]", common.ErrInvalidConfig)
	}
	if c.LLM.DailyBudget < 0 {
		return fmt.Errorf("%w: llm.daily_budget must not be negative", common.ErrInvalidConfig)
	}
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("%w: scheduler.interval must be positive", common.ErrInvalidConfig)
	}

	switch strings.ToLower(c.LLM.Provider) {
	case "", "none":
	case "openai", "anthropic":
		if c.LLM.APIKey == "" {
			return fmt.Errorf("%w: llm.api_key for provider %s", common.ErrMissingConfig, c.LLM.Provider)
		}
	default:
		return fmt.Errorf("%w: llm.provider %q", common.ErrInvalidConfig, c.LLM.Provider)
	}
	return nil
}

// LLMEnabled reports whether an inference provider is configured.
func (c *Config) LLMEnabled() bool {
	p := strings.ToLower(c.LLM.Provider)
	return p != "" && p != "none"
}

// IngestConfig returns the ingestion service settings.
func (c *Config) IngestConfig() ingest.Config {
	return ingest.Config{
		LeaseTTL:         c.Sync.LeaseTTL,
		PageLimit:        c.Sync.PageLimit,
		MaxPages:         c.Sync.MaxPages,
		FailureThreshold: c.Sync.FailureThreshold,
	}
}

// PipelineConfig returns the orchestrator settings.
func (c *Config) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		MaxAttempts: c.Pipeline.MaxAttempts,
		Parallelism: c.Pipeline.Parallelism,
	}
}

// ClientConfig returns the inference provider settings.
func (c *Config) ClientConfig() llm.Config {
	return llm.Config{
		Provider:        c.LLM.Provider,
		APIKey:          c.LLM.APIKey,
		Model:           c.LLM.Model,
		BaseURL:         c.LLM.BaseURL,
		Temperature:     c.LLM.Temperature,
		MaxTokens:       c.LLM.MaxTokens,
		Timeout:         c.LLM.Timeout,
		RateLimit:       c.LLM.RateLimit,
		MaxRetries:      c.LLM.MaxRetries,
		DailyBudget:     c.LLM.DailyBudget,
		CostPer1KTokens: c.LLM.CostPer1KTokens,
	}
}

// FallbackConfig returns the settings of the inference fallback decorator.
func (c *Config) FallbackConfig() llm.FallbackConfig {
	cfg := llm.DefaultFallbackConfig()
	if c.LLM.MaxRetries > 0 {
		cfg.Retry.MaxAttempts = c.LLM.MaxRetries
	}
	if c.LLM.Timeout > 0 {
		cfg.CallTimeout = c.LLM.Timeout
	}
	if c.LLM.RateLimit > 0 {
		cfg.RateLimit = c.LLM.RateLimit
	}
	cfg.CostPer1KTokens = c.LLM.CostPer1KTokens
	return cfg
}

// MailboxConfig returns the adapter factory settings.
func (c *Config) MailboxConfig(logger *slog.Logger) mailbox.Config {
	opts := mailbox.DefaultOptions()
	opts.BaselineQuery = c.Sync.BaselineQuery
	if c.Sync.BaselineDays > 0 {
		opts.BaselineDays = c.Sync.BaselineDays
	}
	if c.Sync.Timeout > 0 {
		opts.Timeout = c.Sync.Timeout
	}

	return mailbox.Config{
		Logger:       logger,
		Google:       mailbox.GoogleOAuth(c.Gmail.ClientID, c.Gmail.ClientSecret, ""),
		Microsoft:    mailbox.MicrosoftOAuth(c.Outlook.ClientID, c.Outlook.ClientSecret, c.Outlook.Tenant, ""),
		TokenDir:     c.TokenDir,
		GraphBaseURL: c.Outlook.BaseURL,
		GraphFolder:  c.Outlook.Folder,
		Options:      opts,
		IMAP: mailbox.IMAPConfig{
			Host:     c.IMAP.Host,
			Port:     c.IMAP.Port,
			Username: c.IMAP.Username,
			Password: c.IMAP.Password,
			Folder:   c.IMAP.Folder,
			Insecure: c.IMAP.Insecure,
		},
	}
}

// BackupDir returns where database snapshots are written.
func (c *Config) BackupDir() string {
	if c.Database.BackupDir != "" {
		return c.Database.BackupDir
	}
	return filepath.Join(filepath.Dir(c.Database.Path), "backups")
}

