// Package table manages the lifecycle of the destination table.
//
// The destination is a plain table with no keys or indexes. It is created
// from the first batch that parses, truncated once per run in replace mode,
// and widened with ADD COLUMN when a later file brings new columns.
//
// All identifiers go through pgx.Identifier.Sanitize(), so schema, table and
// column names may contain spaces, quotes or any other character a
// spreadsheet header can hold.
//
// # Example Usage
//
//	mgr := table.New(db.NewPoolAdapter(pool), "public", "inventory")
//	if err := mgr.EnsureTable(ctx, tabload.TextColumns(batch.Columns)); err != nil {
//	    return err
//	}
//	err := mgr.ClearTable(ctx)
//
// # Thread Safety
//
// Manager holds no mutable state and is safe for concurrent use as long as
// the injected DBConnection is.
package table
