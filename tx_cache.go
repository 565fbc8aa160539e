package kvsql

import "sort"

// cacheEntry is one cached key state within a transaction.
type cacheEntry struct {
	// value is the JSON text of the entry; meaningless when tombstone is set
	// or found is false.
	value string
	// found distinguishes a present value from a confirmed miss. Misses are
	// cached too so repeated negative lookups cost one round-trip at most.
	found bool
	// tombstone marks "deleted by this transaction", distinct from "never looked up".
	tombstone bool
	// dirty is set only by this transaction's own Put/Delete; only dirty
	// entries are flushed on commit.
	dirty bool
}

// present reports whether the entry represents a readable value.
func (e cacheEntry) present() bool {
	return e.found && !e.tombstone
}

// txCache is the transaction-owned key state map. Its lifetime is exactly the
// transaction's lifetime and it is never shared across transaction instances.
// Once a key lands here, the cache is authoritative over the backing table
// for that key within the owning transaction.
type txCache struct {
	lookup map[string]cacheEntry
}

func newTxCache() *txCache {
	return &txCache{
		lookup: make(map[string]cacheEntry),
	}
}

func (c *txCache) get(key string) (cacheEntry, bool) {
	e, ok := c.lookup[key]
	return e, ok
}

// setRead records a clean lookup result, hit or miss.
func (c *txCache) setRead(key string, value string, found bool) cacheEntry {
	e := cacheEntry{
		value: value,
		found: found,
	}
	c.lookup[key] = e
	return e
}

// stagePut records a dirty value; last write wins per key.
func (c *txCache) stagePut(key string, value string) {
	c.lookup[key] = cacheEntry{
		value: value,
		found: true,
		dirty: true,
	}
}

// stageDelete records a dirty tombstone.
func (c *txCache) stageDelete(key string) {
	c.lookup[key] = cacheEntry{
		tombstone: true,
		dirty:     true,
	}
}

// dirtyEntries collects the staged mutations in key order. Deterministic
// flush order keeps commits of overlapping transactions applying in the same
// sequence, reducing the chance of engine-level deadlock.
func (c *txCache) dirtyEntries() []KeyValuePair[string, cacheEntry] {
	keys := make([]string, 0, len(c.lookup))
	for k, e := range c.lookup {
		if e.dirty {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	r := make([]KeyValuePair[string, cacheEntry], len(keys))
	for i, k := range keys {
		r[i] = KeyValuePair[string, cacheEntry]{Key: k, Value: c.lookup[k]}
	}
	return r
}

func (c *txCache) clear() {
	c.lookup = make(map[string]cacheEntry)
}
