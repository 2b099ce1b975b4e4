package db

import (
	"context"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vvka-141/tabload/pkg/tabload"
)

// PoolAdapter adapts *pgxpool.Pool to the tabload.DBConnection interface so
// that pgx types do not leak into table management and transfer code.
//
// Thread-Safety: Safe for concurrent use (pgxpool.Pool is thread-safe).
type PoolAdapter struct {
	pool *pgxpool.Pool
}

// NewPoolAdapter creates a new PoolAdapter wrapping the given pool.
func NewPoolAdapter(pool *pgxpool.Pool) *PoolAdapter {
	return &PoolAdapter{pool: pool}
}

// Acquire obtains a dedicated connection from the pool.
func (p *PoolAdapter) Acquire(ctx context.Context) (tabload.PooledConnection, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &pooledConnAdapter{conn: conn}, nil
}

type pooledConnAdapter struct {
	conn *pgxpool.Conn
}

func (p *pooledConnAdapter) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return p.conn.Exec(ctx, sql, args...)
}

func (p *pooledConnAdapter) Query(ctx context.Context, sql string, args ...any) (tabload.Rows, error) {
	return p.conn.Query(ctx, sql, args...)
}

func (p *pooledConnAdapter) QueryRow(ctx context.Context, sql string, args ...any) tabload.Row {
	return p.conn.QueryRow(ctx, sql, args...)
}

func (p *pooledConnAdapter) Begin(ctx context.Context) (tabload.Tx, error) {
	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &txAdapter{tx: tx}, nil
}

func (p *pooledConnAdapter) Release() {
	p.conn.Release()
}

// txAdapter runs COPY on the connection that owns the transaction.
type txAdapter struct {
	tx pgx.Tx
}

func (t *txAdapter) CopyFrom(ctx context.Context, r io.Reader, sql string) (int64, error) {
	tag, err := t.tx.Conn().PgConn().CopyFrom(ctx, r, sql)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txAdapter) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *txAdapter) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err == pgx.ErrTxClosed {
		return nil
	}
	return err
}

var _ tabload.DBConnection = (*PoolAdapter)(nil)
