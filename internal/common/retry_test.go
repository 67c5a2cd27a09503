package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lrocampoa/ExpenseTracker/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name      string
		failures  int
		attempts  int
		err       error
		wantCalls int
		wantErr   error
	}{
		{name: "succeeds first try", failures: 0, attempts: 3, wantCalls: 1},
		{name: "succeeds after retries", failures: 2, attempts: 3, err: errBoom, wantCalls: 3},
		{name: "exhausts attempts", failures: 5, attempts: 3, err: errBoom, wantCalls: 3, wantErr: ErrMaxRetries},
		{name: "permanent error stops immediately", failures: 5, attempts: 3, err: Permanent(errBoom), wantCalls: 1, wantErr: errBoom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), func() error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			}, fastRetry(tt.attempts))

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithRetry(ctx, func() error { return errors.New("fail") }, service.RetryOptions{
		MaxAttempts:  3,
		InitialDelay: time.Second,
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "provider error", err: NewTransientProviderError("gmail", "history.list", errors.New("503")), want: true},
		{name: "max retries", err: ErrMaxRetries, want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "canceled", err: context.Canceled, want: false},
		{name: "budget", err: ErrBudgetExhausted, want: false},
		{name: "extraction", err: &ExtractionIncompleteError{Template: "bac", Missing: []string{"amount"}}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestExtractionIncompleteError(t *testing.T) {
	err := &ExtractionIncompleteError{
		Template: "bac",
		Missing:  []string{"amount", "card"},
		Err:      ErrBudgetExhausted,
	}

	assert.Contains(t, err.Error(), "amount, card")
	assert.ErrorIs(t, err, ErrBudgetExhausted)
}
