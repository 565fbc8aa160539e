// Package kvsql defines the core interfaces, types, and helpers of the kvsql
// transactional key-value store. It provides the store handle, read and write
// transactions over string-keyed JSON values, the backing engine adapter
// contract, store options and metadata, and shared error codes. The concrete
// SQLite backing engine lives in the sqlite subpackage, the Redis cache client
// in redis, and map-backed test doubles in mocks.
//
// The store presents atomic, isolated transactions on top of a backing engine
// that executes parameterized statements inside its own transaction handles.
// Writes are staged in a per-transaction cache and flushed as one batch on
// Commit; reads are served cache-first with read-your-writes semantics.
package kvsql
