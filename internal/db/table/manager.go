package table

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/tabload/internal/db"
	"github.com/vvka-141/tabload/pkg/tabload"
)

const queryColumns = `
	SELECT column_name
	FROM information_schema.columns
	WHERE table_schema = $1 AND table_name = $2
	ORDER BY ordinal_position
`

// Manager implements tabload.TableManager for one schema-qualified table.
type Manager struct {
	conn   tabload.DBConnection
	schema string
	table  string
}

// New creates a manager for schema.table. An empty schema means tabload.DefaultSchema.
// Panics if conn is nil or table is empty.
func New(conn tabload.DBConnection, schema, table string) *Manager {
	if conn == nil {
		panic("conn cannot be nil")
	}
	if table == "" {
		panic("table cannot be empty")
	}
	if schema == "" {
		schema = tabload.DefaultSchema
	}
	return &Manager{conn: conn, schema: schema, table: table}
}

// QualifiedName returns the quoted "schema"."table" identifier.
func (m *Manager) QualifiedName() string {
	return pgx.Identifier{m.schema, m.table}.Sanitize()
}

func (m *Manager) exec(ctx context.Context, statements ...string) error {
	pooledConn, err := m.conn.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to acquire connection: %v", tabload.ErrConnectionFailed, err)
	}
	defer pooledConn.Release()

	for _, sql := range statements {
		if _, err := pooledConn.Exec(ctx, sql); err != nil {
			return err
		}
	}
	return nil
}

// EnsureTable creates the table with the given columns if it does not exist.
// An existing table is left untouched.
func (m *Manager) EnsureTable(ctx context.Context, columns []tabload.ColumnDef) error {
	if len(columns) == 0 {
		return fmt.Errorf("%w: cannot create %s without columns", tabload.ErrSchema, m.QualifiedName())
	}

	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = columnDefinition(c)
	}

	var statements []string
	if m.schema != tabload.DefaultSchema {
		statements = append(statements, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{m.schema}.Sanitize())
	}
	statements = append(statements, fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", m.QualifiedName(), strings.Join(defs, ", ")))

	if err := m.exec(ctx, statements...); err != nil {
		return m.wrap("create", err)
	}
	return nil
}

// ClearTable removes every row. A missing table yields an error wrapping
// tabload.ErrTableMissing.
func (m *Manager) ClearTable(ctx context.Context) error {
	err := m.exec(ctx, "TRUNCATE TABLE "+m.QualifiedName())
	if err == nil {
		return nil
	}
	if db.IsUndefinedTable(err) {
		return fmt.Errorf("%w: %s: %v", tabload.ErrTableMissing, m.QualifiedName(), err)
	}
	return m.wrap("truncate", err)
}

// Columns returns the table's column names in ordinal order.
// A table that does not exist has no columns.
func (m *Manager) Columns(ctx context.Context) ([]string, error) {
	var columns []string
	err := m.query(ctx, queryColumns, []any{m.schema, m.table}, func(rows tabload.Rows) error {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		columns = append(columns, name)
		return nil
	})
	if err != nil {
		return nil, m.wrap("read columns of", err)
	}
	return columns, nil
}

// AddColumns adds each column that is not yet present.
func (m *Manager) AddColumns(ctx context.Context, columns []tabload.ColumnDef) error {
	if len(columns) == 0 {
		return nil
	}

	clauses := make([]string, len(columns))
	for i, c := range columns {
		clauses[i] = "ADD COLUMN IF NOT EXISTS " + columnDefinition(c)
	}
	sql := fmt.Sprintf("ALTER TABLE %s %s", m.QualifiedName(), strings.Join(clauses, ", "))

	if err := m.exec(ctx, sql); err != nil {
		return m.wrap("alter", err)
	}
	return nil
}

// ExistingKeys returns the composite key of every row, built from keyColumns
// joined by tabload.KeySeparator. NULL values contribute an empty string.
// Values are compared in their text rendering, so key columns are expected
// to be TEXT.
func (m *Manager) ExistingKeys(ctx context.Context, keyColumns []string) (map[string]struct{}, error) {
	if len(keyColumns) == 0 {
		return nil, fmt.Errorf("%w: no key columns given", tabload.ErrInvalidConfig)
	}

	parts := make([]string, len(keyColumns))
	for i, c := range keyColumns {
		parts[i] = fmt.Sprintf("COALESCE(%s::text, '')", pgx.Identifier{c}.Sanitize())
	}
	sql := fmt.Sprintf("SELECT concat_ws($1::text, %s) FROM %s", strings.Join(parts, ", "), m.QualifiedName())

	keys := make(map[string]struct{})
	err := m.query(ctx, sql, []any{tabload.KeySeparator}, func(rows tabload.Rows) error {
		var key string
		if err := rows.Scan(&key); err != nil {
			return err
		}
		keys[key] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, m.wrap("read keys of", err)
	}
	return keys, nil
}

// CountRows returns the number of rows in the table.
func (m *Manager) CountRows(ctx context.Context) (int64, error) {
	pooledConn, err := m.conn.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to acquire connection: %v", tabload.ErrConnectionFailed, err)
	}
	defer pooledConn.Release()

	var count int64
	if err := pooledConn.QueryRow(ctx, "SELECT COUNT(*) FROM "+m.QualifiedName()).Scan(&count); err != nil {
		return 0, m.wrap("count rows of", err)
	}
	return count, nil
}

func (m *Manager) query(ctx context.Context, sql string, args []any, each func(tabload.Rows) error) error {
	pooledConn, err := m.conn.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to acquire connection: %v", tabload.ErrConnectionFailed, err)
	}
	defer pooledConn.Release()

	rows, err := pooledConn.Query(ctx, sql, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := each(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// wrap classifies err as a connection failure or a schema error.
func (m *Manager) wrap(action string, err error) error {
	if errors.Is(err, tabload.ErrConnectionFailed) {
		return err
	}
	if db.IsConnectionLoss(err) {
		return fmt.Errorf("%w: failed to %s %s: %v", tabload.ErrConnectionFailed, action, m.QualifiedName(), err)
	}
	return fmt.Errorf("%w: failed to %s %s: %v", tabload.ErrSchema, action, m.QualifiedName(), err)
}

func columnDefinition(c tabload.ColumnDef) string {
	return pgx.Identifier{c.Name}.Sanitize() + " " + c.Type.SQL()
}

var _ tabload.TableManager = (*Manager)(nil)
