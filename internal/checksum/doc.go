// Package checksum provides file content hashing.
//
// Checksums identify source files with identical content so that a run can
// skip re-loading an export that was copied into several folders.
//
// # Example Usage
//
//	calculator := checksum.New()
//	sum := calculator.CalculateRaw(fileContent)
//
// # Thread Safety
//
// SHA256 is safe for concurrent use by multiple goroutines.
package checksum
