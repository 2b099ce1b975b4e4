// Package services orchestrates a load run.
//
// LoadService discovers files, prepares the destination table once and then
// moves each file through read, column reconciliation and bulk copy,
// recording one result per file. File-level failures are recorded and the
// run continues; connection loss and schema failures abort the run.
package services
