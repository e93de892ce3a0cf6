package source

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// ContentSource provides file content from a specific source.
type ContentSource interface {
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
}

// ContentSink stores rewritten file content.
type ContentSink interface {
	// Write stores data at path, creating parent directories as needed.
	Write(path string, data []byte) error
}

// FilesystemSource reads files from the local filesystem.
type FilesystemSource struct{}

// NewFilesystem creates a source that reads from the filesystem.
func NewFilesystem() *FilesystemSource {
	return &FilesystemSource{}
}

// Read implements ContentSource.
func (f *FilesystemSource) Read(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// Write implements ContentSink.
func (f *FilesystemSource) Write(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// BillySource reads and writes through a billy filesystem, such as an
// in-memory tree or a chrooted directory.
// It is safe for concurrent use by multiple goroutines.
type BillySource struct {
	fs billy.Filesystem
	mu sync.Mutex
}

// NewBilly creates a source backed by fs.
func NewBilly(fs billy.Filesystem) *BillySource {
	return &BillySource{fs: fs}
}

// Read implements ContentSource.
func (b *BillySource) Read(path string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f, err := b.fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Write implements ContentSink.
func (b *BillySource) Write(path string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.fs.MkdirAll(b.fs.Join(filepath.Dir(path)), 0o755); err != nil {
		return err
	}
	return util.WriteFile(b.fs, path, data, 0o644)
}
