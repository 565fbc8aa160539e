// Package mocks provides map-backed test doubles for the kvsql backing
// engine and related interfaces.
package mocks

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/replisync/kvsql"
)

// Engine method identifiers usable with InduceErrorOnMethod.
const (
	MethodOpen = iota + 1
	MethodBegin
	MethodExecute
	MethodCommit
)

// Engine is an in-memory kvsql.Engine. Reads observe committed state
// only; statement effects are staged per transaction and applied atomically
// on Commit under one lock, mirroring the backing engine contract.
type Engine struct {
	mux    sync.Mutex
	tables map[string]map[string]string
	// induceErrorOnMethod makes the named method fail once, for failure-path tests.
	induceErrorOnMethod int
	// statementCount tallies statements executed across all transactions.
	statementCount int
}

// NewEngine instantiates a new (mocked) in-memory backing engine.
func NewEngine() *Engine {
	return &Engine{
		tables: make(map[string]map[string]string),
	}
}

// InduceErrorOnMethod makes the identified method return an induced error on
// its next call.
func (e *Engine) InduceErrorOnMethod(method int) {
	e.mux.Lock()
	defer e.mux.Unlock()
	e.induceErrorOnMethod = method
}

// StatementCount returns how many statements were executed so far.
func (e *Engine) StatementCount() int {
	e.mux.Lock()
	defer e.mux.Unlock()
	return e.statementCount
}

// TableCount returns the number of committed rows in table.
func (e *Engine) TableCount(table string) int {
	e.mux.Lock()
	defer e.mux.Unlock()
	return len(e.tables[table])
}

func (e *Engine) induced(method int) error {
	if e.induceErrorOnMethod == method {
		e.induceErrorOnMethod = 0
		return fmt.Errorf("induced error on method %d", method)
	}
	return nil
}

// Open ensures table exists, creating its map when absent.
func (e *Engine) Open(ctx context.Context, table string) error {
	e.mux.Lock()
	defer e.mux.Unlock()
	if err := e.induced(MethodOpen); err != nil {
		return kvsql.Error{Code: kvsql.SchemaError, Err: err, UserData: table}
	}
	if _, ok := e.tables[table]; !ok {
		e.tables[table] = make(map[string]string)
	}
	return nil
}

// Begin returns a new staged transaction handle.
func (e *Engine) Begin(ctx context.Context, writable bool) (kvsql.EngineTransaction, error) {
	e.mux.Lock()
	defer e.mux.Unlock()
	if err := e.induced(MethodBegin); err != nil {
		return nil, kvsql.Error{Code: kvsql.StatementError, Err: err}
	}
	return &mockTransaction{
		engine:   e,
		writable: writable,
	}, nil
}

// Close drops all tables.
func (e *Engine) Close() error {
	e.mux.Lock()
	defer e.mux.Unlock()
	e.tables = make(map[string]map[string]string)
	return nil
}

// stagedOp is one statement effect queued for atomic apply on Commit.
type stagedOp struct {
	table     string
	key       string
	value     string
	tombstone bool
}

type mockTransaction struct {
	engine   *Engine
	writable bool
	staged   []stagedOp
	ended    bool
}

// Execute recognizes the three statement shapes the transaction layer emits
// (point select, upsert, delete). Mutations are staged; the select reads
// committed state.
func (t *mockTransaction) Execute(ctx context.Context, statement string, args ...any) ([]kvsql.Row, error) {
	t.engine.mux.Lock()
	defer t.engine.mux.Unlock()
	if t.ended {
		return nil, kvsql.Error{Code: kvsql.ClosedError, Err: fmt.Errorf("transaction handle is closed")}
	}
	if err := t.engine.induced(MethodExecute); err != nil {
		return nil, kvsql.Error{Code: kvsql.StatementError, Err: err, UserData: statement}
	}
	t.engine.statementCount++

	table, verb, err := parseStatement(statement)
	if err != nil {
		return nil, err
	}
	rows, ok := t.engine.tables[table]
	if !ok {
		return nil, kvsql.Error{Code: kvsql.StatementError, Err: fmt.Errorf("no such table: %s", table), UserData: statement}
	}

	switch verb {
	case "SELECT":
		key, err := stringArg(statement, args, 0)
		if err != nil {
			return nil, err
		}
		v, ok := rows[key]
		if !ok {
			return nil, nil
		}
		return []kvsql.Row{{v}}, nil
	case "INSERT":
		if !t.writable {
			return nil, kvsql.Error{Code: kvsql.StatementError, Err: fmt.Errorf("mutation on read-only transaction"), UserData: statement}
		}
		key, err := stringArg(statement, args, 0)
		if err != nil {
			return nil, err
		}
		value, err := stringArg(statement, args, 1)
		if err != nil {
			return nil, err
		}
		t.staged = append(t.staged, stagedOp{table: table, key: key, value: value})
		return nil, nil
	case "DELETE":
		if !t.writable {
			return nil, kvsql.Error{Code: kvsql.StatementError, Err: fmt.Errorf("mutation on read-only transaction"), UserData: statement}
		}
		key, err := stringArg(statement, args, 0)
		if err != nil {
			return nil, err
		}
		t.staged = append(t.staged, stagedOp{table: table, key: key, tombstone: true})
		return nil, nil
	}
	return nil, kvsql.Error{Code: kvsql.StatementError, Err: fmt.Errorf("unrecognized statement"), UserData: statement}
}

// Commit applies all staged effects atomically under the engine lock.
func (t *mockTransaction) Commit(ctx context.Context) error {
	t.engine.mux.Lock()
	defer t.engine.mux.Unlock()
	if t.ended {
		return kvsql.Error{Code: kvsql.ClosedError, Err: fmt.Errorf("transaction handle is closed")}
	}
	if err := t.engine.induced(MethodCommit); err != nil {
		t.ended = true
		t.staged = nil
		return kvsql.Error{Code: kvsql.StatementError, Err: err}
	}
	for _, op := range t.staged {
		rows := t.engine.tables[op.table]
		if op.tombstone {
			delete(rows, op.key)
			continue
		}
		rows[op.key] = op.value
	}
	t.ended = true
	t.staged = nil
	return nil
}

// Rollback discards staged effects.
func (t *mockTransaction) Rollback(ctx context.Context) error {
	t.engine.mux.Lock()
	defer t.engine.mux.Unlock()
	t.ended = true
	t.staged = nil
	return nil
}

// parseStatement extracts the leading verb and the quoted table identifier
// following FROM or INTO.
func parseStatement(statement string) (table string, verb string, err error) {
	s := strings.TrimSpace(statement)
	verb = strings.ToUpper(firstWord(s))
	var anchor string
	switch verb {
	case "SELECT", "DELETE":
		anchor = " FROM "
	case "INSERT":
		anchor = " INTO "
	default:
		return "", "", kvsql.Error{Code: kvsql.StatementError, Err: fmt.Errorf("unrecognized statement verb %s", verb), UserData: statement}
	}
	i := strings.Index(strings.ToUpper(s), anchor)
	if i < 0 {
		return "", "", kvsql.Error{Code: kvsql.StatementError, Err: fmt.Errorf("malformed statement"), UserData: statement}
	}
	rest := strings.TrimSpace(s[i+len(anchor):])
	if len(rest) == 0 || rest[0] != '"' {
		return "", "", kvsql.Error{Code: kvsql.StatementError, Err: fmt.Errorf("table identifier is not quoted"), UserData: statement}
	}
	j := strings.IndexByte(rest[1:], '"')
	if j < 0 {
		return "", "", kvsql.Error{Code: kvsql.StatementError, Err: fmt.Errorf("table identifier is not terminated"), UserData: statement}
	}
	return rest[1 : 1+j], verb, nil
}

func firstWord(s string) string {
	if i := strings.IndexByte(s, ' '); i > 0 {
		return s[:i]
	}
	return s
}

func stringArg(statement string, args []any, i int) (string, error) {
	if i >= len(args) {
		return "", kvsql.Error{Code: kvsql.StatementError, Err: fmt.Errorf("missing statement argument %d", i), UserData: statement}
	}
	s, ok := args[i].(string)
	if !ok {
		return "", kvsql.Error{Code: kvsql.StatementError, Err: fmt.Errorf("statement argument %d is not a string", i), UserData: statement}
	}
	return s, nil
}
