// Package report renders load progress and the final summary.
//
// Status lines go to one writer (stderr in the CLI) so that the summary
// table on the other writer (stdout) can be redirected on its own.
package report
