// Package archive provides random-access zip archives opened from memory,
// a builder for producing them, and a Store of named open archive handles.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dghubble/trie"
	"github.com/klauspost/compress/zip"
)

// Suffix is the file extension of nested archives inside a bundle.
const Suffix = ".zip"

var (
	// ErrNotFound is returned when an entry does not exist in an archive.
	ErrNotFound = errors.New("archive entry not found")
	// ErrClosed is returned by reads against a closed archive.
	ErrClosed = errors.New("archive closed")
)

// Archive is an entry-addressable view over zip bytes held in memory.
type Archive struct {
	mu     sync.RWMutex
	closed bool
	// index maps entry names to *zip.File, segmented on '/'.
	index *trie.PathTrie
	// names is the sorted list of regular file entries.
	names []string
	size  int64
}

// Open parses data as a zip container.
func Open(data []byte) (*Archive, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if r == nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	// A reader returned alongside an error only carries insecure entry
	// names, which ExtractAll confines.

	a := &Archive{
		index: trie.NewPathTrie(),
		size:  int64(len(data)),
	}
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if a.index.Put(f.Name, f) {
			a.names = append(a.names, f.Name)
		}
	}
	sort.Strings(a.names)

	return a, nil
}

// Size is the number of bytes the archive was opened from.
func (a *Archive) Size() int64 {
	return a.size
}

// Len returns the number of file entries.
func (a *Archive) Len() int {
	return len(a.names)
}

// Names returns the sorted file entry names.
func (a *Archive) Names() []string {
	names := make([]string, len(a.names))
	copy(names, a.names)
	return names
}

// Has reports whether name is a file entry of the archive.
func (a *Archive) Has(name string) bool {
	_, ok := a.file(name)
	return ok
}

func (a *Archive) file(name string) (*zip.File, bool) {
	if name == "" {
		return nil, false
	}
	f, ok := a.index.Get(name).(*zip.File)
	return f, ok
}

// ReadFile returns the uncompressed content of the named entry.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return nil, ErrClosed
	}
	f, ok := a.file(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return readZipFile(f)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open entry %s: %w", f.Name, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read entry %s: %w", f.Name, err)
	}
	return data, nil
}

// Glob returns the sorted entry names matching a doublestar pattern
// (e.g. "**/*.py").
func (a *Archive) Glob(pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	var matches []string
	for _, name := range a.names {
		if ok, _ := doublestar.Match(pattern, name); ok {
			matches = append(matches, name)
		}
	}
	return matches, nil
}

// ExtractAll writes every entry beneath dir. Entry names are confined to dir:
// leading slashes and ".." segments cannot escape it. If visit is non-nil it
// is called after each entry is written.
func (a *Archive) ExtractAll(dir string, visit func(current, total int, name string)) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.closed {
		return ErrClosed
	}

	total := len(a.names)
	for i, name := range a.names {
		f, _ := a.file(name)
		dst := filepath.Join(dir, filepath.FromSlash(cleanEntryName(name)))
		if err := extractFile(f, dst); err != nil {
			return err
		}
		if visit != nil {
			visit(i+1, total, name)
		}
	}
	return nil
}

func extractFile(f *zip.File, dst string) error {
	data, err := readZipFile(f)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", f.Name, err)
	}
	mode := f.Mode().Perm()
	if mode == 0 {
		mode = 0o644
	}
	if err := os.WriteFile(dst, data, mode); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

// cleanEntryName normalizes a zip entry name to a slash-separated relative
// path that cannot climb above its root.
func cleanEntryName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}

// Close releases the archive. Subsequent reads fail with ErrClosed.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (a *Archive) Closed() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.closed
}
