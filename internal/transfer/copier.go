// Package transfer moves batches into PostgreSQL with COPY.
//
// Each batch is serialized to an in-memory CSV buffer and streamed with a
// single COPY ... FROM STDIN inside one transaction. A failure rolls the
// transaction back, so a file is either loaded completely or not at all.
package transfer

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/vvka-141/tabload/internal/db"
	"github.com/vvka-141/tabload/internal/logging"
	"github.com/vvka-141/tabload/pkg/tabload"
)

// Copier implements tabload.Uploader.
type Copier struct {
	conn   tabload.DBConnection
	schema string
	table  string
	logger tabload.Logger
}

// NewCopier creates a copier targeting schema.table. An empty schema means
// tabload.DefaultSchema; a nil logger discards output. Panics if conn is nil.
func NewCopier(conn tabload.DBConnection, schema, table string, logger tabload.Logger) *Copier {
	if conn == nil {
		panic("conn cannot be nil")
	}
	if schema == "" {
		schema = tabload.DefaultSchema
	}
	if logger == nil {
		logger = logging.NewNullLogger()
	}
	return &Copier{conn: conn, schema: schema, table: table, logger: logger}
}

// CopySQL returns the COPY statement for the given columns.
func (c *Copier) CopySQL(columns []string) string {
	quoted := make([]string, len(columns))
	for i, col := range columns {
		quoted[i] = pgx.Identifier{col}.Sanitize()
	}
	return fmt.Sprintf("COPY %s (%s) FROM STDIN WITH (FORMAT csv)",
		pgx.Identifier{c.schema, c.table}.Sanitize(), strings.Join(quoted, ", "))
}

// Upload copies every row of batch in one transaction and returns the number
// of rows the server reports. Empty cells arrive as NULL. A batch without rows
// is a successful no-op.
func (c *Copier) Upload(ctx context.Context, batch *tabload.Batch) (int64, error) {
	if batch.RowCount() == 0 {
		return 0, nil
	}

	payload, err := EncodeCSV(batch.Rows)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", tabload.ErrTransfer, batch.Source.RelativePath, err)
	}

	pooledConn, err := c.conn.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to acquire connection for %s: %v", tabload.ErrConnectionFailed, batch.Source.RelativePath, err)
	}
	defer pooledConn.Release()

	tx, err := pooledConn.Begin(ctx)
	if err != nil {
		return 0, c.classify(batch, "begin transaction", err)
	}
	defer func() {
		// no-op once committed
		_ = tx.Rollback(context.WithoutCancel(ctx))
	}()

	start := time.Now()
	copied, err := tx.CopyFrom(ctx, bytes.NewReader(payload), c.CopySQL(batch.Columns))
	if err != nil {
		return 0, c.classify(batch, "copy", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, c.classify(batch, "commit", err)
	}

	c.logger.Verbose("Copied %d rows (%d bytes) from %s in %v", copied, len(payload), batch.Source.RelativePath, time.Since(start).Round(time.Millisecond))
	return copied, nil
}

// classify wraps a failure as connection loss (run-level) or a transfer error (file-level).
func (c *Copier) classify(batch *tabload.Batch, step string, err error) error {
	if db.IsConnectionLoss(err) {
		return fmt.Errorf("%w: %s %s: %v", tabload.ErrConnectionFailed, step, batch.Source.RelativePath, err)
	}
	return fmt.Errorf("%w: %s %s: %v", tabload.ErrTransfer, step, batch.Source.RelativePath, err)
}

// EncodeCSV renders rows in the CSV dialect COPY expects. Empty cells are
// written unquoted, which COPY reads as NULL. A cell holding only \. is
// quoted so COPY does not take it for the end-of-data marker.
func EncodeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to encode rows: %w", err)
	}
	return buf.Bytes(), nil
}

var _ tabload.Uploader = (*Copier)(nil)
