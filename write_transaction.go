package kvsql

import (
	"context"
	log "log/slog"
)

// writeTransaction extends readTransaction with staged mutation and atomic
// commit. Staged writes are visible to this transaction's own reads before
// anything is persisted.
type writeTransaction struct {
	readTransaction
}

func newWriteTransaction(engine Engine, table string, marshaler Marshaler) *writeTransaction {
	return &writeTransaction{
		readTransaction: *newReadTransaction(engine, table, true, marshaler),
	}
}

// Put stages key=value in the transaction cache; no backing I/O occurs.
// The value is serialized now, so a SerializationError surfaces at the call
// that introduced the bad value and the staged data is an immutable snapshot.
func (t *writeTransaction) Put(ctx context.Context, key string, value any) error {
	if t.ended {
		return errClosed("transaction")
	}
	encoded, err := encodeValue(t.marshaler, value)
	if err != nil {
		return err
	}
	t.cache.stagePut(key, encoded)
	return nil
}

// Delete stages a tombstone for key; no backing I/O occurs.
func (t *writeTransaction) Delete(ctx context.Context, key string) error {
	if t.ended {
		return errClosed("transaction")
	}
	t.cache.stageDelete(key)
	return nil
}

// Commit flushes every dirty cache entry as one batch of statements inside
// the single writable backing transaction, then commits it. Clean entries
// generate no I/O; zero dirty entries issue zero statements. Whether Commit
// succeeds or fails, the transaction is inert afterwards; after a failure the
// cache state is untrustworthy and the transaction must be discarded, the
// backing engine having left no partial effect.
func (t *writeTransaction) Commit(ctx context.Context) error {
	if t.ended {
		return errClosed("transaction")
	}
	dirty := t.cache.dirtyEntries()
	if len(dirty) == 0 && t.btx == nil {
		// Nothing staged, nothing read; no backing transaction was ever opened.
		t.ended = true
		return nil
	}
	if err := t.begun(ctx); err != nil {
		t.ended = true
		return err
	}
	for _, kvp := range dirty {
		var err error
		if kvp.Value.tombstone {
			_, err = t.btx.Execute(ctx, DeleteStatement(t.table), kvp.Key)
		} else {
			_, err = t.btx.Execute(ctx, UpsertStatement(t.table), kvp.Key, kvp.Value.value)
		}
		if err != nil {
			t.abort(ctx)
			return err
		}
	}
	btx := t.btx
	t.btx = nil
	t.ended = true
	t.cache.clear()
	return btx.Commit(ctx)
}

// abort ends the transaction after a failed flush, rolling back the backing
// transaction so no partial effect remains.
func (t *writeTransaction) abort(ctx context.Context) {
	t.ended = true
	t.cache.clear()
	btx := t.btx
	t.btx = nil
	if err := btx.Rollback(ctx); err != nil {
		log.Warn("rollback after failed commit flush failed", "transaction", t.id.String(), "error", err.Error())
	}
}
