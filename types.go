package kvsql

import (
	"context"
	"time"
)

// Row is one result row returned by the backing engine, column values in
// statement select order.
type Row []string

// Engine is the backing engine adapter. Implementations wrap a persistent
// SQL-like engine that provides atomic, serializable execution of a batch of
// statements inside one transaction handle.
type Engine interface {
	// Open idempotently ensures the backing table exists with schema
	// ("key" TEXT PRIMARY KEY, "value" TEXT). It must probe schema metadata
	// first and create the table only when absent. Failures carry SchemaError.
	Open(ctx context.Context, table string) error
	// Begin opens a read-only or writable transaction against the engine.
	// Serializing writable transactions is the engine's responsibility.
	Begin(ctx context.Context, writable bool) (EngineTransaction, error)
	// Close releases the engine's connection resources.
	Close() error
}

// EngineTransaction is one backing transaction handle.
type EngineTransaction interface {
	// Execute runs one parameterized statement and returns its result rows.
	// Failures carry StatementError wrapping the engine's native failure.
	Execute(ctx context.Context, statement string, args ...any) ([]Row, error)
	// Commit makes all executed statements durable as one atomic unit.
	Commit(ctx context.Context) error
	// Rollback discards all executed statements.
	Rollback(ctx context.Context) error
}

// ReadTransaction serves point lookups through a transaction-owned cache.
// A transaction object is single-owner; it is not safe for concurrent use.
type ReadTransaction interface {
	// Get looks key up cache-first, falling back to one backing point lookup.
	// Misses are cached too, so repeated lookups of the same key cost one
	// round-trip at most. When found, the value is decoded into target.
	Get(ctx context.Context, key string, target any) (bool, error)
	// Has is equivalent to Get finding the key, without decoding the value.
	Has(ctx context.Context, key string) (bool, error)
	// Release makes the transaction inert and rolls back the backing
	// transaction if one was opened. Idempotent; safe after Commit.
	Release(ctx context.Context) error
	// Closed reports whether the transaction is inert (released or committed).
	Closed() bool
	// GetID returns the transaction ID.
	GetID() UUID
}

// WriteTransaction stages mutations in the transaction cache and flushes the
// dirty entries as one atomic batch on Commit.
type WriteTransaction interface {
	ReadTransaction
	// Put stages key=value; the value is serialized to JSON text now and no
	// backing I/O occurs until Commit.
	Put(ctx context.Context, key string, value any) error
	// Delete stages a tombstone for key; no backing I/O occurs until Commit.
	Delete(ctx context.Context, key string) error
	// Commit flushes every dirty cache entry inside the single writable
	// backing transaction and commits it. The transaction is inert afterwards,
	// whether Commit succeeded or not.
	Commit(ctx context.Context) error
}

// Store manufactures transactions over one backing table.
type Store interface {
	// Read returns a new read transaction. Fails with ClosedError when the
	// store is closed.
	Read() (ReadTransaction, error)
	// Write returns a new write transaction. Same closed check as Read.
	Write() (WriteTransaction, error)
	// WithRead acquires a read transaction, invokes fn with it and guarantees
	// Release on every exit path, including panics.
	WithRead(ctx context.Context, fn func(ReadTransaction) error) error
	// WithWrite acquires a write transaction, invokes fn with it and
	// guarantees Release on every exit path. fn decides whether to Commit.
	WithWrite(ctx context.Context, fn func(WriteTransaction) error) error
	// Close is idempotent; it discards the engine reference and marks the
	// store closed. In-flight transactions are not flushed nor aborted.
	Close() error
	// Closed reports whether Close has been called.
	Closed() bool
	// Name returns the store's logical name.
	Name() string
}

// StoreRepository manages StoreInfo records in the backing engine's registry table.
type StoreRepository interface {
	// Add registers store records and creates their backing tables.
	Add(ctx context.Context, stores ...StoreInfo) error
	// Get fetches store records by name, cache-first.
	Get(ctx context.Context, names ...string) ([]StoreInfo, error)
	// GetAll returns the names of all registered stores.
	GetAll(ctx context.Context) ([]string, error)
	// Remove deregisters stores and drops their backing tables.
	Remove(ctx context.Context, names ...string) error
}

// Cache interface specifies the methods implemented for out-of-process caching
// and cache-based locking. String key and any value are the supported types.
type Cache interface {
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Get(ctx context.Context, key string) (bool, string, error)
	SetStruct(ctx context.Context, key string, value any, expiration time.Duration) error
	GetStruct(ctx context.Context, key string, target any) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error

	// FormatLockKey returns the key formatted for lock usage.
	FormatLockKey(k string) string
	// CreateLockKeys converts keys into LockKeys usable for locking.
	CreateLockKeys(keys ...string) []*LockKey
	// Lock attempts to acquire locks for all provided keys using the given TTL
	// duration. If any key is owned elsewhere, it returns false and that owner's ID.
	Lock(ctx context.Context, duration time.Duration, lockKeys []*LockKey) (bool, UUID, error)
	// IsLocked reports whether all provided lock keys are owned by this process.
	IsLocked(ctx context.Context, lockKeys []*LockKey) (bool, error)
	// Unlock releases the locks owned by this process.
	Unlock(ctx context.Context, lockKeys []*LockKey) error
}

// LockKey is a cache-based lock handle.
type LockKey struct {
	Key         string
	LockID      UUID
	IsLockOwner bool
}
