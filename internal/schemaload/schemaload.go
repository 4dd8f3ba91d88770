// Package schemaload implements with_schema(): querying a table's column
// metadata from information_schema and translating it into the
// internal/reconcile.Schema the schema reconciler compares (spec.md §4.6
// "this step must run after with_schema() has populated both sides'
// schemas"). Grounded on internal/archiver/preflight.go's
// information_schema-querying shape (placeholder-built IN clause,
// QueryContext, row-by-row Scan).
package schemaload

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/GannettDigital/tablediff/internal/reconcile"
)

// Column is one table column as reported by information_schema, in
// ordinal position order.
type Column struct {
	Name      string
	DataType  string
	Precision int // DATETIME_PRECISION source column, 0 if n/a
	Scale     int
}

// Result is one table's loaded schema: the reconciler-facing Schema plus
// the ordered column name list GetValues/relevant-columns selection needs.
type Result struct {
	Schema  reconcile.Schema
	Columns []string // ordinal position order
}

// Load queries database.table's columns and returns its Result.
func Load(ctx context.Context, db *sql.DB, database, table string) (*Result, error) {
	const query = `
		SELECT COLUMN_NAME, DATA_TYPE,
		       COALESCE(DATETIME_PRECISION, 0),
		       COALESCE(NUMERIC_SCALE, 0)
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`

	rows, err := db.QueryContext(ctx, query, database, table)
	if err != nil {
		return nil, fmt.Errorf("schemaload: query columns for %s.%s: %w", database, table, err)
	}
	defer rows.Close()

	schema := make(reconcile.Schema)
	var columns []string
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DataType, &c.Precision, &c.Scale); err != nil {
			return nil, fmt.Errorf("schemaload: scan column: %w", err)
		}
		columns = append(columns, c.Name)
		schema[c.Name] = toColumnType(c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schemaload: iterate columns: %w", err)
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("schemaload: table %s.%s has no columns (does it exist?)", database, table)
	}

	return &Result{Schema: schema, Columns: columns}, nil
}

// toColumnType classifies a MySQL DATA_TYPE into reconcile's
// dialect-independent SemanticType.
func toColumnType(c Column) reconcile.ColumnType {
	ct := reconcile.ColumnType{Name: c.Name}

	switch {
	case isIntegerType(c.DataType):
		ct.Semantic = reconcile.IntegerType
	case isStringType(c.DataType):
		// UUIDs stored as CHAR(36)/BINARY(16) are still key-eligible under
		// StringType; information_schema's DATA_TYPE alone can't tell a
		// UUID column from any other fixed-width string column, so
		// reconcile.UUIDType is only ever produced by a caller that knows
		// its own schema out of band.
		ct.Semantic = reconcile.StringType
	case isTimestampType(c.DataType):
		ct.Semantic = reconcile.TimestampType
		ct.Precision = c.Precision
	case isDecimalType(c.DataType):
		ct.Semantic = reconcile.DecimalType
		ct.Scale = c.Scale
	default:
		ct.Semantic = reconcile.UnknownType
	}
	return ct
}

func isIntegerType(t string) bool {
	switch strings.ToLower(t) {
	case "tinyint", "smallint", "mediumint", "int", "bigint":
		return true
	default:
		return false
	}
}

func isStringType(t string) bool {
	switch strings.ToLower(t) {
	case "char", "varchar", "text", "tinytext", "mediumtext", "longtext":
		return true
	default:
		return false
	}
}

func isTimestampType(t string) bool {
	switch strings.ToLower(t) {
	case "timestamp", "datetime", "date":
		return true
	default:
		return false
	}
}

func isDecimalType(t string) bool {
	switch strings.ToLower(t) {
	case "decimal", "numeric":
		return true
	default:
		return false
	}
}
