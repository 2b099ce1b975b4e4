package tabload

import (
	"context"
	"io"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBConnection abstracts the connection pool so that table management and
// bulk transfer can be tested without a live database.
//
// Every operation acquires its own connection and must Release it on all
// exit paths.
type DBConnection interface {
	// Acquire obtains a dedicated connection from the pool.
	// Caller must call Release() on the returned PooledConnection when done.
	Acquire(ctx context.Context) (PooledConnection, error)
}

// PooledConnection represents a connection acquired from a pool.
// The caller must call Release() when done to return it to the pool.
type PooledConnection interface {
	// Exec executes a query on this specific connection.
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)

	// Query executes a query that returns rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a query that is expected to return at most one row.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// Begin starts a transaction on this connection.
	Begin(ctx context.Context) (Tx, error)

	// Release returns the connection to the pool.
	// After calling Release, the connection should not be used.
	Release()
}

// Tx is a transaction scope used by the bulk transfer engine.
type Tx interface {
	// CopyFrom streams r to the server using the given COPY ... FROM STDIN statement
	// and returns the number of rows copied.
	CopyFrom(ctx context.Context, r io.Reader, sql string) (int64, error)

	Commit(ctx context.Context) error

	// Rollback is safe to call after Commit; it then does nothing.
	Rollback(ctx context.Context) error
}

// Row represents a single row returned by QueryRow.
// This interface decouples from pgx.Row.
type Row interface {
	// Scan reads the values from the row into dest values.
	// Returns an error if no row was found or if the scan fails.
	Scan(dest ...any) error
}

// Rows is a forward-only cursor over query results.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close()
}
