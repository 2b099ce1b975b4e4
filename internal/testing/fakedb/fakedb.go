// Package fakedb provides a scriptable in-memory tabload.DBConnection for unit tests.
package fakedb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vvka-141/tabload/pkg/tabload"
)

// DB records every statement and answers with the configured funcs.
// Unset funcs succeed with zero values.
type DB struct {
	mu sync.Mutex

	AcquireErr error
	BeginErr   error
	CommitErr  error

	ExecFunc     func(sql string, args ...any) (pgconn.CommandTag, error)
	QueryFunc    func(sql string, args ...any) (tabload.Rows, error)
	QueryRowFunc func(sql string, args ...any) tabload.Row

	// CopyFunc receives the COPY statement and everything read from the stream.
	CopyFunc func(sql string, data []byte) (int64, error)

	Statements []string
	Copied     [][]byte
	Acquired   int
	Released   int
	Committed  int
	RolledBack int
}

// Outstanding returns connections acquired but not released.
func (d *DB) Outstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.Acquired - d.Released
}

func (d *DB) record(sql string) {
	d.mu.Lock()
	d.Statements = append(d.Statements, sql)
	d.mu.Unlock()
}

func (d *DB) Acquire(ctx context.Context) (tabload.PooledConnection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.AcquireErr != nil {
		return nil, d.AcquireErr
	}
	d.mu.Lock()
	d.Acquired++
	d.mu.Unlock()
	return &conn{db: d}, nil
}

type conn struct {
	db       *DB
	released bool
}

func (c *conn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.db.record(sql)
	if c.db.ExecFunc != nil {
		return c.db.ExecFunc(sql, args...)
	}
	return pgconn.CommandTag{}, nil
}

func (c *conn) Query(ctx context.Context, sql string, args ...any) (tabload.Rows, error) {
	c.db.record(sql)
	if c.db.QueryFunc != nil {
		return c.db.QueryFunc(sql, args...)
	}
	return NewRows(), nil
}

func (c *conn) QueryRow(ctx context.Context, sql string, args ...any) tabload.Row {
	c.db.record(sql)
	if c.db.QueryRowFunc != nil {
		return c.db.QueryRowFunc(sql, args...)
	}
	return &Row{}
}

func (c *conn) Begin(ctx context.Context) (tabload.Tx, error) {
	c.db.record("BEGIN")
	if c.db.BeginErr != nil {
		return nil, c.db.BeginErr
	}
	return &tx{db: c.db}, nil
}

func (c *conn) Release() {
	if c.released {
		panic("connection released twice")
	}
	c.released = true
	c.db.mu.Lock()
	c.db.Released++
	c.db.mu.Unlock()
}

type tx struct {
	db   *DB
	done bool
}

func (t *tx) CopyFrom(ctx context.Context, r io.Reader, sql string) (int64, error) {
	t.db.record(sql)
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	t.db.mu.Lock()
	t.db.Copied = append(t.db.Copied, data)
	t.db.mu.Unlock()
	if t.db.CopyFunc != nil {
		return t.db.CopyFunc(sql, data)
	}
	return 0, nil
}

func (t *tx) Commit(ctx context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	if t.db.CommitErr != nil {
		return t.db.CommitErr
	}
	t.db.mu.Lock()
	t.db.Committed++
	t.db.mu.Unlock()
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	t.db.mu.Lock()
	t.db.RolledBack++
	t.db.mu.Unlock()
	return nil
}

// Row returns Values through Scan, or Err.
type Row struct {
	Values []any
	Err    error
}

func (r *Row) Scan(dest ...any) error {
	if r.Err != nil {
		return r.Err
	}
	return assign(r.Values, dest)
}

// Rows iterates over fixed values.
type Rows struct {
	values [][]any
	pos    int
	Error  error
	closed bool
}

// NewRows creates rows from values, one slice per row.
func NewRows(values ...[]any) *Rows {
	return &Rows{values: values, pos: -1}
}

func (r *Rows) Next() bool {
	if r.closed || r.pos+1 >= len(r.values) {
		return false
	}
	r.pos++
	return true
}

func (r *Rows) Scan(dest ...any) error {
	if r.pos < 0 || r.pos >= len(r.values) {
		return errors.New("scan called without a current row")
	}
	return assign(r.values[r.pos], dest)
}

func (r *Rows) Err() error { return r.Error }
func (r *Rows) Close()     { r.closed = true }

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return fmt.Errorf("scan: %d values into %d destinations", len(values), len(dest))
	}
	for i, v := range values {
		switch d := dest[i].(type) {
		case *string:
			s, ok := v.(string)
			if !ok {
				return fmt.Errorf("scan: value %d is %T, not string", i, v)
			}
			*d = s
		case *int64:
			n, ok := v.(int64)
			if !ok {
				return fmt.Errorf("scan: value %d is %T, not int64", i, v)
			}
			*d = n
		case *bool:
			b, ok := v.(bool)
			if !ok {
				return fmt.Errorf("scan: value %d is %T, not bool", i, v)
			}
			*d = b
		default:
			return fmt.Errorf("scan: unsupported destination %T", dest[i])
		}
	}
	return nil
}

var _ tabload.DBConnection = (*DB)(nil)
