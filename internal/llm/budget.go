package llm

import (
	"context"
	"sync"
	"time"
)

// Budget caps fallback inference calls per user per day.
// Reserve must check and spend in one atomic step.
type Budget interface {
	Reserve(ctx context.Context, userID string, day time.Time) (bool, error)
}

// MemoryBudget is an in-process Budget.
type MemoryBudget struct {
	used  map[string]int
	limit int
	mu    sync.Mutex
}

// NewMemoryBudget creates a budget allowing limit calls per user per day.
func NewMemoryBudget(limit int) *MemoryBudget {
	return &MemoryBudget{limit: limit, used: make(map[string]int)}
}

// Reserve spends one unit for userID on day, reporting false once the limit is reached.
func (b *MemoryBudget) Reserve(ctx context.Context, userID string, day time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := budgetKey(userID, day)
	if b.used[key] >= b.limit {
		return false, nil
	}
	b.used[key]++
	return true, nil
}

// Used returns the units spent by userID on day.
func (b *MemoryBudget) Used(userID string, day time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used[budgetKey(userID, day)]
}

func budgetKey(userID string, day time.Time) string {
	return userID + "|" + day.Format(time.DateOnly)
}
