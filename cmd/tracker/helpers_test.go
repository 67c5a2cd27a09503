package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lrocampoa/ExpenseTracker/internal/common"
)

func TestParseID(t *testing.T) {
	tests := []struct {
		input   string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseID(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseAmountFlag(t *testing.T) {
	got, err := parseAmountFlag("")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = parseAmountFlag("12500.50")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Equal(decimal.RequireFromString("12500.5")))

	_, err = parseAmountFlag("12,500")
	assert.Error(t, err)
}

func TestFormatRange(t *testing.T) {
	lo := decimal.NewFromInt(10)
	hi := decimal.NewFromInt(20)

	assert.Equal(t, "-", formatRange(nil, nil))
	assert.Equal(t, "≥ 10", formatRange(&lo, nil))
	assert.Equal(t, "≤ 20", formatRange(nil, &hi))
	assert.Equal(t, "10–20", formatRange(&lo, &hi))
}

func TestDescribeRunError(t *testing.T) {
	tests := []struct {
		err      error
		name     string
		wantUser bool
	}{
		{name: "lease held", err: fmt.Errorf("account a1: %w", common.ErrLeaseHeld), wantUser: true},
		{name: "disabled", err: fmt.Errorf("account a1: %w", common.ErrAccountDisabled), wantUser: true},
		{name: "other", err: errors.New("boom"), wantUser: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := describeRunError(tt.err)
			var userErr *common.UserError
			assert.Equal(t, tt.wantUser, errors.As(got, &userErr))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestLoadSeed(t *testing.T) {
	t.Run("bundled", func(t *testing.T) {
		d, err := loadSeed("")
		require.NoError(t, err)
		assert.NotEmpty(t, d.Categories)
		assert.NotEmpty(t, d.Rules)
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "seed.yaml")
		data := "categories:\n  - name: Pets\nrules:\n  - merchant: pet zone\n    category: Pets\n"
		require.NoError(t, os.WriteFile(path, []byte(data), 0600))

		d, err := loadSeed(path)
		require.NoError(t, err)
		require.Len(t, d.Rules, 1)
		assert.Equal(t, "Pets", d.Rules[0].Category)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadSeed(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}
