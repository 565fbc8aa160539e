package kvsql

import "fmt"

// Statement builders for the per-store entry table. Table names come from
// NewStoreInfo's validated identifiers; entry keys and values always bind as
// parameters.

// SelectStatement returns the point-lookup statement for table.
func SelectStatement(table string) string {
	return fmt.Sprintf(`SELECT "value" FROM %q WHERE "key" = ?;`, table)
}

// UpsertStatement returns the single-statement insert-or-replace for table.
func UpsertStatement(table string) string {
	return fmt.Sprintf(`INSERT INTO %q ("key", "value") VALUES (?, ?) ON CONFLICT ("key") DO UPDATE SET "value" = excluded."value";`, table)
}

// DeleteStatement returns the row delete statement for table.
func DeleteStatement(table string) string {
	return fmt.Sprintf(`DELETE FROM %q WHERE "key" = ?;`, table)
}

// CreateTableStatement returns the entry table DDL for table.
func CreateTableStatement(table string) string {
	return fmt.Sprintf(`CREATE TABLE %q ("key" TEXT PRIMARY KEY, "value" TEXT);`, table)
}

// DropTableStatement returns the entry table drop DDL for table.
func DropTableStatement(table string) string {
	return fmt.Sprintf(`DROP TABLE %q;`, table)
}
