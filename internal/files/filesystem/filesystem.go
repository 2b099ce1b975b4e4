package filesystem

import (
	"io/fs"
)

// FileInfo is an alias for fs.FileInfo from the standard library.
type FileInfo = fs.FileInfo

// File is an entry visited while walking a directory tree.
type File interface {
	// Path returns the absolute path to the entry.
	Path() string

	// RelativePath returns the slash-separated path relative to the walk root.
	RelativePath() string

	// Info returns entry metadata.
	Info() FileInfo

	// ReadContent returns the entry's content.
	ReadContent() ([]byte, error)
}

// Directory is a directory that can be traversed to discover files.
type Directory interface {
	// Path returns the absolute path to the directory.
	Path() string

	// Walk visits every entry below the directory in lexical order.
	// Returning fs.SkipDir from fn for a directory entry skips its contents;
	// any other error stops the walk and is returned.
	Walk(fn func(File, error) error) error
}

// FileSystemProvider opens directories and reads individual files.
type FileSystemProvider interface {
	Open(path string) (Directory, error)
	ReadFile(path string) ([]byte, error)
	Stat(path string) (FileInfo, error)
}
