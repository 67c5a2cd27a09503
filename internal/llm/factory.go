package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
)

// Config holds the inference provider settings.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	RetryDelay  time.Duration
	// RateLimit is the number of requests allowed per minute.
	RateLimit  int
	MaxRetries int
	// DailyBudget caps fallback calls per user per day. Zero disables the fallback.
	DailyBudget int
	// CostPer1KTokens prices one thousand tokens in arbitrary cost units.
	CostPer1KTokens float64
}

// NewClient creates an inference client for the configured provider.
// An empty provider or "none" returns common.ErrInferenceDisabled.
func NewClient(cfg Config) (Client, error) {
	var (
		c   completer
		err error
	)

	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, common.ErrInferenceDisabled
	case "openai":
		c, err = newOpenAIClient(cfg)
	case "anthropic":
		c, err = newAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	return &promptClient{completer: c}, nil
}
