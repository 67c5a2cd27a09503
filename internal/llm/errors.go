package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
)

func classifyStatus(provider string, status int, body []byte) error {
	apiErr := fmt.Errorf("%s API error (status %d): %s", provider, status, truncate(string(body), 300))
	switch {
	case status == http.StatusTooManyRequests:
		return common.NewTransientProviderError(provider, "complete", fmt.Errorf("%w: %w", common.ErrRateLimit, apiErr))
	case status >= 500:
		return common.NewTransientProviderError(provider, "complete", apiErr)
	default:
		return common.Permanent(apiErr)
	}
}

func classifyTransportError(provider string, err error) error {
	if errors.Is(err, context.Canceled) {
		return common.Permanent(err)
	}
	return common.NewTransientProviderError(provider, "complete", err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
