package scanner

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/vvka-141/tabload/internal/checksum"
	"github.com/vvka-141/tabload/internal/files/filesystem"
	"github.com/vvka-141/tabload/pkg/tabload"
)

// Scanner discovers .csv and .xlsx files in a directory tree.
// Scanner is safe for concurrent use by multiple goroutines as long as
// the provided calculator and fsProvider are also thread-safe.
type Scanner struct {
	calculator checksum.Calculator
	fsProvider filesystem.FileSystemProvider
}

// NewScanner creates a scanner over the OS filesystem.
// Panics if calculator is nil.
func NewScanner(calculator checksum.Calculator) *Scanner {
	return NewScannerWithFS(calculator, filesystem.NewOSFileSystem())
}

// NewScannerWithFS creates a scanner with a custom filesystem provider.
// Panics if calculator or fsProvider is nil.
func NewScannerWithFS(calculator checksum.Calculator, fsProvider filesystem.FileSystemProvider) *Scanner {
	if calculator == nil {
		panic("calculator cannot be nil")
	}
	if fsProvider == nil {
		panic("fsProvider cannot be nil")
	}
	return &Scanner{
		calculator: calculator,
		fsProvider: fsProvider,
	}
}

// Discover recursively lists loadable files under root.
// A root that cannot be opened yields an error wrapping tabload.ErrInvalidConfig;
// a root without loadable files yields one wrapping tabload.ErrNoFiles.
func (s *Scanner) Discover(root string) ([]tabload.FileDescriptor, error) {
	dir, err := s.fsProvider.Open(root)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot open source directory %q: %v", tabload.ErrInvalidConfig, root, err)
	}

	files := []tabload.FileDescriptor{}
	err = dir.Walk(func(file filesystem.File, err error) error {
		if err != nil {
			return fmt.Errorf("error walking %s: %w", root, err)
		}

		info := file.Info()
		if file.RelativePath() == "." {
			return nil
		}
		if isHidden(info.Name()) {
			if info.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		format := tabload.FormatForExtension(filepath.Ext(info.Name()))
		if format == tabload.FormatUnknown || isLockFile(info.Name()) {
			return nil
		}

		descriptor, err := s.describe(file, format)
		if err != nil {
			return fmt.Errorf("failed to process file %s: %w", file.RelativePath(), err)
		}
		files = append(files, descriptor)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no .csv or .xlsx files under %s", tabload.ErrNoFiles, root)
	}

	return files, nil
}

func (s *Scanner) describe(file filesystem.File, format tabload.FileFormat) (tabload.FileDescriptor, error) {
	content, err := file.ReadContent()
	if err != nil {
		return tabload.FileDescriptor{}, fmt.Errorf("failed to read file: %w", err)
	}

	info := file.Info()
	return tabload.FileDescriptor{
		Path:         file.Path(),
		RelativePath: filepath.ToSlash(file.RelativePath()),
		Name:         info.Name(),
		Format:       format,
		SizeBytes:    info.Size(),
		ModifiedAt:   info.ModTime(),
		Checksum:     s.calculator.CalculateRaw(content),
	}, nil
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Excel keeps "~$name.xlsx" owner files next to workbooks that are open.
func isLockFile(name string) bool {
	return strings.HasPrefix(name, "~$")
}

var _ tabload.FileScanner = (*Scanner)(nil)
