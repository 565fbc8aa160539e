package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/replisync/kvsql"
)

type engine struct {
	conn    *Connection
	isOwner bool
}

// NewEngine returns the engine adapter over the singleton connection.
// Call OpenConnection before using the returned engine.
func NewEngine() (kvsql.Engine, error) {
	if connection == nil {
		return nil, fmt.Errorf("SQLite connection is not open, call OpenConnection(config) to open it")
	}
	return &engine{conn: connection}, nil
}

// NewConnectionEngine opens a dedicated connection and returns the engine
// adapter over it. The engine owns the connection and Close releases it.
func NewConnectionEngine(config Config) (kvsql.Engine, error) {
	c, err := openConnection(config)
	if err != nil {
		return nil, err
	}
	return &engine{conn: c, isOwner: true}, nil
}

// Open idempotently ensures table exists with the entry schema. SQLite's
// "create if not exists" is not relied upon: schema metadata is probed first
// and the table created only when absent, then its columns are verified.
func (e *engine) Open(ctx context.Context, table string) error {
	exists, err := e.tableExists(ctx, table)
	if err != nil {
		return err
	}
	if !exists {
		if _, err := e.conn.Writer.ExecContext(ctx, kvsql.CreateTableStatement(table)); err != nil {
			return kvsql.Error{Code: kvsql.SchemaError, Err: err, UserData: table}
		}
	}
	return e.verifySchema(ctx, table)
}

func (e *engine) tableExists(ctx context.Context, table string) (bool, error) {
	var name string
	err := e.conn.Writer.QueryRowContext(ctx,
		`SELECT "name" FROM sqlite_master WHERE "type" = 'table' AND "name" = ?;`, table).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, kvsql.Error{Code: kvsql.SchemaError, Err: err, UserData: table}
	}
	return true, nil
}

// verifySchema checks the opened table carries the key/value text columns.
func (e *engine) verifySchema(ctx context.Context, table string) error {
	rows, err := e.conn.Writer.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q);`, table))
	if err != nil {
		return kvsql.Error{Code: kvsql.SchemaError, Err: err, UserData: table}
	}
	defer rows.Close()
	columns := map[string]bool{}
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return kvsql.Error{Code: kvsql.SchemaError, Err: err, UserData: table}
		}
		columns[name] = true
	}
	if err := rows.Err(); err != nil {
		return kvsql.Error{Code: kvsql.SchemaError, Err: err, UserData: table}
	}
	if !columns["key"] || !columns["value"] {
		return kvsql.Error{
			Code:     kvsql.SchemaError,
			Err:      fmt.Errorf("table %s does not carry the key/value entry schema", table),
			UserData: table,
		}
	}
	return nil
}

// Begin opens a read-only (deferred, pooled) or writable (immediate,
// single-connection) transaction. Writable exclusivity is the engine's:
// the writer handle allows one open connection and takes the write lock up front.
func (e *engine) Begin(ctx context.Context, writable bool) (kvsql.EngineTransaction, error) {
	db := e.conn.Readers
	if writable {
		db = e.conn.Writer
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, kvsql.Error{Code: kvsql.StatementError, Err: fmt.Errorf("begin transaction: %w", err)}
	}
	return &engineTransaction{tx: tx, writable: writable}, nil
}

// Close releases the dedicated connection when this engine owns one.
// Engines over the singleton leave it to CloseConnection.
func (e *engine) Close() error {
	if !e.isOwner || e.conn == nil {
		return nil
	}
	err := closeConnection(e.conn)
	e.conn = nil
	return err
}

// engineTransaction wraps one database/sql transaction handle.
type engineTransaction struct {
	tx       *sql.Tx
	writable bool
}

// Execute runs one parameterized statement. Result rows come back with every
// column rendered as text, matching the TEXT entry schema.
func (t *engineTransaction) Execute(ctx context.Context, statement string, args ...any) ([]kvsql.Row, error) {
	if !t.writable && isMutation(statement) {
		return nil, kvsql.Error{
			Code:     kvsql.StatementError,
			Err:      fmt.Errorf("mutating statement on a read-only transaction"),
			UserData: statement,
		}
	}
	if !isQuery(statement) {
		if _, err := t.tx.ExecContext(ctx, statement, args...); err != nil {
			return nil, kvsql.Error{Code: kvsql.StatementError, Err: err, UserData: statement}
		}
		return nil, nil
	}

	rows, err := t.tx.QueryContext(ctx, statement, args...)
	if err != nil {
		return nil, kvsql.Error{Code: kvsql.StatementError, Err: err, UserData: statement}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, kvsql.Error{Code: kvsql.StatementError, Err: err, UserData: statement}
	}
	var result []kvsql.Row
	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, kvsql.Error{Code: kvsql.StatementError, Err: err, UserData: statement}
		}
		row := make(kvsql.Row, len(columns))
		for i := range values {
			row[i] = values[i].String
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, kvsql.Error{Code: kvsql.StatementError, Err: err, UserData: statement}
	}
	return result, nil
}

// Commit makes the transaction's statements durable as one atomic unit.
func (t *engineTransaction) Commit(ctx context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return kvsql.Error{Code: kvsql.StatementError, Err: fmt.Errorf("commit transaction: %w", err)}
	}
	return nil
}

// Rollback discards the transaction's statements.
func (t *engineTransaction) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return kvsql.Error{Code: kvsql.StatementError, Err: fmt.Errorf("rollback transaction: %w", err)}
	}
	return nil
}

func isQuery(statement string) bool {
	verb := statementVerb(statement)
	return verb == "SELECT" || verb == "PRAGMA"
}

func isMutation(statement string) bool {
	return !isQuery(statement)
}

func statementVerb(statement string) string {
	s := strings.TrimSpace(statement)
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	return strings.ToUpper(s)
}
