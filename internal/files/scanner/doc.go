// Package scanner discovers loadable tabular files.
//
// The scanner walks a source directory recursively and returns a descriptor
// for every .csv and .xlsx file, in traversal order. Excel lock files
// ("~$report.xlsx") and dot-prefixed files and directories are skipped.
//
// The scanner is filesystem-agnostic through filesystem.FileSystemProvider,
// so tests run against an in-memory filesystem.
package scanner
