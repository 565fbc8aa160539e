package kvsql

import (
	"context"
	"sync"
)

// store owns the engine reference for one backing table and manufactures
// read/write transactions over it.
type store struct {
	si        StoreInfo
	engine    Engine
	marshaler Marshaler
	mux       sync.Mutex
	closed    bool
}

// NewStore wraps an already opened backing table in a Store. No I/O occurs.
func NewStore(engine Engine, si StoreInfo) Store {
	return &store{
		si:        si,
		engine:    engine,
		marshaler: DefaultMarshaler,
	}
}

// OpenStore validates options, ensures the backing table exists via the
// engine adapter, registers the store in repo when one is provided, and
// returns the Store handle.
func OpenStore(ctx context.Context, engine Engine, repo StoreRepository, options StoreOptions) (Store, error) {
	si, err := NewStoreInfo(options)
	if err != nil {
		return nil, err
	}
	if repo != nil {
		// Repository Add creates the backing table as part of registration.
		if err := repo.Add(ctx, si); err != nil {
			return nil, err
		}
	} else if err := engine.Open(ctx, si.Table); err != nil {
		return nil, err
	}
	return NewStore(engine, si), nil
}

// Read returns a new read transaction bound to the current engine reference.
func (s *store) Read() (ReadTransaction, error) {
	engine, err := s.engineRef()
	if err != nil {
		return nil, err
	}
	return newReadTransaction(engine, s.si.Table, false, s.marshaler), nil
}

// Write returns a new write transaction.
func (s *store) Write() (WriteTransaction, error) {
	engine, err := s.engineRef()
	if err != nil {
		return nil, err
	}
	return newWriteTransaction(engine, s.si.Table, s.marshaler), nil
}

// WithRead runs fn with a read transaction, releasing it on every exit path.
func (s *store) WithRead(ctx context.Context, fn func(ReadTransaction) error) error {
	t, err := s.Read()
	if err != nil {
		return err
	}
	defer t.Release(ctx)
	return fn(t)
}

// WithWrite runs fn with a write transaction, releasing it on every exit
// path. fn decides whether to Commit; releasing a committed transaction is a
// no-op, while an uncommitted one gets its staged writes discarded.
func (s *store) WithWrite(ctx context.Context, fn func(WriteTransaction) error) error {
	t, err := s.Write()
	if err != nil {
		return err
	}
	defer t.Release(ctx)
	return fn(t)
}

// Close marks the store closed and discards the engine reference. Idempotent.
// In-flight transactions keep their own engine reference and are neither
// flushed nor aborted; the shared engine connection itself is owned by the
// backend package singleton, not by this handle.
func (s *store) Close() error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.closed = true
	s.engine = nil
	return nil
}

// Closed reports whether Close has been called.
func (s *store) Closed() bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.closed
}

// Name returns the store's logical name.
func (s *store) Name() string {
	return s.si.Name
}

func (s *store) engineRef() (Engine, error) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.closed {
		return nil, errClosed("store " + s.si.Name)
	}
	return s.engine, nil
}
