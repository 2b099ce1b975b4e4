// Package filesystem provides filesystem abstraction interfaces and implementations.
//
// Discovery and reading go through FileSystemProvider so that tests can run
// against MemoryFileSystem while production uses OSFileSystem.
package filesystem
