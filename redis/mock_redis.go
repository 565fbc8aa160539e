package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/replisync/kvsql"
)

type mockRedis struct {
	mux    sync.Mutex
	lookup map[string]string
}

// NewMockClient returns a new Redis mock client backed by an in-process map.
// Expirations are ignored.
func NewMockClient() kvsql.Cache {
	return &mockRedis{
		lookup: make(map[string]string),
	}
}

func (m *mockRedis) Ping(ctx context.Context) error {
	return nil
}

func (m *mockRedis) Set(ctx context.Context, key string, value string, expiration time.Duration) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	m.lookup[key] = value
	return nil
}

func (m *mockRedis) Get(ctx context.Context, key string) (bool, string, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	s, ok := m.lookup[key]
	return ok, s, nil
}

func (m *mockRedis) SetStruct(ctx context.Context, key string, value any, expiration time.Duration) error {
	ba, err := kvsql.DefaultMarshaler.Marshal(value)
	if err != nil {
		return err
	}
	return m.Set(ctx, key, string(ba), expiration)
}

func (m *mockRedis) GetStruct(ctx context.Context, key string, target any) (bool, error) {
	found, s, _ := m.Get(ctx, key)
	if !found {
		return false, nil
	}
	return true, kvsql.DefaultMarshaler.Unmarshal([]byte(s), target)
}

func (m *mockRedis) Delete(ctx context.Context, keys ...string) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	for _, k := range keys {
		delete(m.lookup, k)
	}
	return nil
}

// Lock mirrors the real client's set-then-reread acquisition over the map.
func (m *mockRedis) Lock(ctx context.Context, duration time.Duration, lockKeys []*kvsql.LockKey) (bool, kvsql.UUID, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	for _, lk := range lockKeys {
		if owner, ok := m.lookup[lk.Key]; ok {
			if owner != lk.LockID.String() {
				id, _ := kvsql.ParseUUID(owner)
				return false, id, nil
			}
			continue
		}
		m.lookup[lk.Key] = lk.LockID.String()
		lk.IsLockOwner = true
	}
	return true, kvsql.NilUUID, nil
}

func (m *mockRedis) IsLocked(ctx context.Context, lockKeys []*kvsql.LockKey) (bool, error) {
	m.mux.Lock()
	defer m.mux.Unlock()
	for _, lk := range lockKeys {
		if m.lookup[lk.Key] != lk.LockID.String() {
			lk.IsLockOwner = false
			return false, nil
		}
		lk.IsLockOwner = true
	}
	return true, nil
}

func (m *mockRedis) Unlock(ctx context.Context, lockKeys []*kvsql.LockKey) error {
	m.mux.Lock()
	defer m.mux.Unlock()
	for _, lk := range lockKeys {
		if !lk.IsLockOwner {
			continue
		}
		delete(m.lookup, lk.Key)
	}
	return nil
}

func (m *mockRedis) CreateLockKeys(keys ...string) []*kvsql.LockKey {
	lockKeys := make([]*kvsql.LockKey, len(keys))
	for i := range keys {
		lockKeys[i] = &kvsql.LockKey{
			Key:    m.FormatLockKey(keys[i]),
			LockID: kvsql.NewUUID(),
		}
	}
	return lockKeys
}

func (m *mockRedis) FormatLockKey(k string) string {
	return fmt.Sprintf("L%s", k)
}
