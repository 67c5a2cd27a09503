package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
)

func newViper(t *testing.T, values map[string]any) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	for k, val := range values {
		v.Set(k, val)
	}
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper(t, nil))
	require.NoError(t, err)

	assert.Equal(t, DefaultUserID, cfg.UserID)
	assert.Equal(t, 5, cfg.Pipeline.MaxAttempts)
	assert.Equal(t, 4, cfg.Pipeline.Parallelism)
	assert.Equal(t, 100, cfg.Sync.PageLimit)
	assert.Equal(t, 5*time.Minute, cfg.Sync.LeaseTTL)
	assert.Equal(t, 15*time.Minute, cfg.Scheduler.Interval)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.LLMEnabled())
	assert.True(t, filepath.IsAbs(cfg.Database.Path))
}

func TestLoad_Overrides(t *testing.T) {
	cfg, err := Load(newViper(t, map[string]any{
		"llm.provider":          "openai",
		"llm.api_key":           "sk-test",
		"llm.daily_budget":      0,
		"llm.timeout":           "5s",
		"llm.rate_limit":        10,
		"sync.page_limit":       25,
		"pipeline.max_attempts": 2,
		"imap.host":             "imap.example.com",
	}))
	require.NoError(t, err)

	assert.True(t, cfg.LLMEnabled())
	assert.Equal(t, 0, cfg.LLM.DailyBudget)
	assert.Equal(t, 25, cfg.IngestConfig().PageLimit)
	assert.Equal(t, 2, cfg.PipelineConfig().MaxAttempts)

	client := cfg.ClientConfig()
	assert.Equal(t, "openai", client.Provider)
	assert.Equal(t, "sk-test", client.APIKey)

	fallback := cfg.FallbackConfig()
	assert.Equal(t, 5*time.Second, fallback.CallTimeout)
	assert.Equal(t, 10, fallback.RateLimit)

	mb := cfg.MailboxConfig(nil)
	assert.Equal(t, "imap.example.com", mb.IMAP.Host)
	assert.Equal(t, 993, mb.IMAP.Port)
	assert.Equal(t, "inbox", mb.GraphFolder)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		values  map[string]any
		wantErr error
		name    string
	}{
		{name: "missing api key", values: map[string]any{"llm.provider": "anthropic"}, wantErr: common.ErrMissingConfig},
		{name: "unknown provider", values: map[string]any{"llm.provider": "bard"}, wantErr: common.ErrInvalidConfig},
		{name: "zero attempts", values: map[string]any{"pipeline.max_attempts": 0}, wantErr: common.ErrInvalidConfig},
		{name: "negative budget", values: map[string]any{"llm.daily_budget": -1}, wantErr: common.ErrInvalidConfig},
		{name: "confidence above one", values: map[string]any{"pipeline.min_confidence": 1.5}, wantErr: common.ErrInvalidConfig},
		{name: "empty user", values: map[string]any{"user_id": " "}, wantErr: common.ErrMissingConfig},
		{name: "provider none", values: map[string]any{"llm.provider": "none"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(newViper(t, tt.values))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBackupDir(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{Path: "/data/tracker.db"}}
	assert.Equal(t, "/data/backups", cfg.BackupDir())

	cfg.Database.BackupDir = "/snapshots"
	assert.Equal(t, "/snapshots", cfg.BackupDir())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("TRACKER_TEST_DIR", "/tmp/tracker")

	tests := []struct {
		in   string
		want string
	}{
		{in: "", want: ""},
		{in: "~", want: home},
		{in: "~/tracker.db", want: filepath.Join(home, "tracker.db")},
		{in: "$TRACKER_TEST_DIR/db", want: "/tmp/tracker/db"},
		{in: "/abs/path", want: "/abs/path"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ExpandPath(tt.in))
		})
	}
}
