package tx

import (
	"context"
	"sync"
)

type journalKey struct{}

// Journal collects compensating actions for in-memory writes made inside one
// unit of work. Rollback replays them newest first.
type Journal struct {
	mu   sync.Mutex
	undo []func()
}

// WithJournal binds j to ctx so stores can register their compensations.
func WithJournal(ctx context.Context, j *Journal) context.Context {
	if j == nil {
		return ctx
	}
	return context.WithValue(ctx, journalKey{}, j)
}

// OnRollback registers undo with the journal bound to ctx. Outside a unit of
// work it does nothing and the write stands.
func OnRollback(ctx context.Context, undo func()) {
	j, ok := ctx.Value(journalKey{}).(*Journal)
	if !ok {
		return
	}
	j.mu.Lock()
	j.undo = append(j.undo, undo)
	j.mu.Unlock()
}

// Rollback reverts every registered write and empties the journal.
func (j *Journal) Rollback() {
	j.mu.Lock()
	undo := j.undo
	j.undo = nil
	j.mu.Unlock()
	for i := len(undo) - 1; i >= 0; i-- {
		undo[i]()
	}
}
