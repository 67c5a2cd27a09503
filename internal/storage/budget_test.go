package storage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteBudget_Reserve(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	day := time.Date(2024, 3, 12, 15, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		limit int
		calls int
		want  int
	}{
		{name: "zero budget never reserves", limit: 0, calls: 3, want: 0},
		{name: "negative budget never reserves", limit: -1, calls: 1, want: 0},
		{name: "stops at limit", limit: 2, calls: 5, want: 2},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			budget := NewSQLiteBudget(store, tt.limit)
			user := "user-" + string(rune('a'+i))

			granted := 0
			for range tt.calls {
				ok, err := budget.Reserve(ctx, user, day)
				require.NoError(t, err)
				if ok {
					granted++
				}
			}
			assert.Equal(t, tt.want, granted)

			used, err := budget.Used(ctx, user, day)
			require.NoError(t, err)
			assert.Equal(t, tt.want, used)
		})
	}
}

func TestSQLiteBudget_NewDayResets(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	budget := NewSQLiteBudget(store, 1)
	day := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC)

	ok, err := budget.Reserve(ctx, "user-1", day)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = budget.Reserve(ctx, "user-1", day)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = budget.Reserve(ctx, "user-1", day.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteBudget_Concurrent(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	budget := NewSQLiteBudget(store, 5)
	day := time.Now()

	var mu sync.Mutex
	var wg sync.WaitGroup
	granted := 0
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := budget.Reserve(ctx, "user-1", day)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, granted)
}
