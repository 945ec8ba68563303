package service

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"sync"
	"time"

	dErrors "doctrack/pkg/domain-errors"
	txcontext "doctrack/pkg/platform/tx"
)

// StoreTx is the unit-of-work boundary around one transition. lockKey is the
// document id; implementations serialise work on the same key.
type StoreTx interface {
	RunInTx(ctx context.Context, lockKey int64, fn func(ctx context.Context) error) error
}

// numShards spreads documents over independent mutexes so unrelated
// documents never contend.
const numShards = 128

const defaultTxTimeout = 5 * time.Second

// ShardedTx is the in-memory StoreTx. Work on one document runs under that
// document's shard mutex, and a failed fn has its store writes undone through
// a txcontext.Journal.
type ShardedTx struct {
	shards  [numShards]sync.Mutex
	timeout time.Duration
}

func NewShardedTx(timeout time.Duration) *ShardedTx {
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &ShardedTx{timeout: timeout}
}

func (t *ShardedTx) RunInTx(ctx context.Context, lockKey int64, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	shard := &t.shards[shardFor(lockKey)]
	shard.Lock()
	defer shard.Unlock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	journal := &txcontext.Journal{}
	if err := fn(txcontext.WithJournal(ctx, journal)); err != nil {
		journal.Rollback()
		return err
	}
	return nil
}

// shardFor hashes the key with FNV-1a for an even spread of sequential ids.
func shardFor(key int64) int {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(key))
	h := fnv.New32a()
	_, _ = h.Write(buf[:])
	return int(h.Sum32() % numShards)
}
