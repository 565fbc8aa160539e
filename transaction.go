package kvsql

import (
	"context"
	"fmt"
)

// readTransaction wraps one backing transaction handle, opened lazily on the
// first cache miss, and serves point lookups through its owned cache.
type readTransaction struct {
	id        UUID
	engine    Engine
	table     string
	writable  bool
	marshaler Marshaler
	cache     *txCache
	// btx is nil until the first operation needs the backing engine.
	btx EngineTransaction
	// ended marks the transaction inert (released or committed).
	ended bool
}

func newReadTransaction(engine Engine, table string, writable bool, marshaler Marshaler) *readTransaction {
	return &readTransaction{
		id:        NewUUID(),
		engine:    engine,
		table:     table,
		writable:  writable,
		marshaler: marshaler,
		cache:     newTxCache(),
	}
}

func errClosed(what string) error {
	return Error{Code: ClosedError, Err: fmt.Errorf("%s is closed", what)}
}

// begun ensures a backing transaction handle is established.
func (t *readTransaction) begun(ctx context.Context) error {
	if t.ended {
		return errClosed("transaction")
	}
	if t.btx != nil {
		return nil
	}
	btx, err := t.engine.Begin(ctx, t.writable)
	if err != nil {
		return err
	}
	t.btx = btx
	return nil
}

// fetch resolves key cache-first, falling back to one backing point lookup.
// Both hits and misses land in the cache, making it authoritative for key
// within this transaction afterwards.
func (t *readTransaction) fetch(ctx context.Context, key string) (cacheEntry, error) {
	if t.ended {
		return cacheEntry{}, errClosed("transaction")
	}
	if e, ok := t.cache.get(key); ok {
		return e, nil
	}
	if err := t.begun(ctx); err != nil {
		return cacheEntry{}, err
	}
	rows, err := t.btx.Execute(ctx, SelectStatement(t.table), key)
	if err != nil {
		return cacheEntry{}, err
	}
	if len(rows) == 0 {
		return t.cache.setRead(key, "", false), nil
	}
	return t.cache.setRead(key, rows[0][0], true), nil
}

// Get looks key up and decodes the value into target when found.
func (t *readTransaction) Get(ctx context.Context, key string, target any) (bool, error) {
	e, err := t.fetch(ctx, key)
	if err != nil {
		return false, err
	}
	if !e.present() {
		return false, nil
	}
	if err := decodeValue(t.marshaler, e.value, target); err != nil {
		return false, err
	}
	return true, nil
}

// Has reports whether key has a value, without decoding it.
func (t *readTransaction) Has(ctx context.Context, key string) (bool, error) {
	e, err := t.fetch(ctx, key)
	if err != nil {
		return false, err
	}
	return e.present(), nil
}

// Release makes the transaction inert. A lazily opened backing transaction is
// rolled back; staged state is discarded. Safe to call more than once and
// after Commit.
func (t *readTransaction) Release(ctx context.Context) error {
	if t.ended {
		return nil
	}
	t.ended = true
	t.cache.clear()
	if t.btx == nil {
		return nil
	}
	btx := t.btx
	t.btx = nil
	return btx.Rollback(ctx)
}

// Closed reports whether the transaction is inert.
func (t *readTransaction) Closed() bool {
	return t.ended
}

// GetID returns the transaction ID.
func (t *readTransaction) GetID() UUID {
	return t.id
}
