// Package sqlite implements the kvsql backing engine adapter over an embedded
// SQLite database (modernc.org/sqlite, pure Go).
package sqlite

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Config contains configuration for opening the SQLite database that backs kvsql stores.
type Config struct {
	// Path is the database file path. An in-memory path is not supported:
	// the reader pool and the writer handle must observe one database.
	Path string
	// BusyTimeout bounds how long a statement waits on a locked database.
	BusyTimeout time.Duration
	// DisableWAL turns write-ahead logging off; WAL is on by default so
	// readers progress while a writer holds its transaction.
	DisableWAL bool
}

// Connection wraps the SQLite handles and the Config used to open them.
type Connection struct {
	// Readers is the pooled handle used for read-only (deferred) transactions.
	Readers *sql.DB
	// Writer is the single-connection handle used for writable transactions.
	// Its transactions take the write lock immediately, so the engine itself
	// serializes writers.
	Writer *sql.DB
	Config
}

var connection *Connection
var mux sync.Mutex

// IsConnectionInstantiated reports whether a global Connection has been created.
func IsConnectionInstantiated() bool {
	return connection != nil
}

// OpenConnection returns the existing global Connection or opens a new one using the provided config.
func OpenConnection(config Config) (*Connection, error) {
	if connection != nil {
		return connection, nil
	}
	mux.Lock()
	defer mux.Unlock()

	if connection != nil {
		return connection, nil
	}
	c, err := openConnection(config)
	if err != nil {
		return nil, err
	}
	connection = c
	return connection, nil
}

func openConnection(config Config) (*Connection, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("config.Path is required")
	}
	if config.BusyTimeout <= 0 {
		// Default to 5 seconds. You should set it to an appropriate value.
		config.BusyTimeout = time.Duration(5 * time.Second)
	}
	journalMode := "wal"
	if config.DisableWAL {
		journalMode = "delete"
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(%s)&_pragma=foreign_keys(0)",
		config.Path, config.BusyTimeout.Milliseconds(), journalMode)

	readers, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	writer, err := sql.Open("sqlite", dsn+"&_txlock=immediate")
	if err != nil {
		readers.Close()
		return nil, err
	}
	// One writer connection; SQLite allows a single write transaction at a time anyway.
	writer.SetMaxOpenConns(1)

	if err := writer.Ping(); err != nil {
		readers.Close()
		writer.Close()
		return nil, err
	}

	return &Connection{
		Readers: readers,
		Writer:  writer,
		Config:  config,
	}, nil
}

func closeConnection(c *Connection) error {
	if c == nil {
		return nil
	}
	err := c.Readers.Close()
	if err2 := c.Writer.Close(); err == nil {
		err = err2
	}
	return err
}

// CloseConnection closes and clears the global connection, if it exists.
func CloseConnection() error {
	if connection == nil {
		return nil
	}
	mux.Lock()
	defer mux.Unlock()
	if connection == nil {
		return nil
	}
	err := closeConnection(connection)
	connection = nil
	return err
}
