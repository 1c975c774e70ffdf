package archive

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/stackb/bundleboot/pkg/collections"
)

// Dir exposes a filesystem directory through the same read surface as an
// Archive. It backs ordinary search-path resolution.
type Dir struct {
	root string
}

// OpenDir returns a Dir rooted at root. The directory need not exist yet.
func OpenDir(root string) *Dir {
	return &Dir{root: root}
}

// Root returns the directory this Dir reads from.
func (d *Dir) Root() string {
	return d.root
}

func (d *Dir) abs(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(cleanEntryName(name)))
}

// Has reports whether name is a regular file beneath the root.
func (d *Dir) Has(name string) bool {
	if name == "" {
		return false
	}
	info, err := os.Stat(d.abs(name))
	return err == nil && info.Mode().IsRegular()
}

// ReadFile reads the named file beneath the root.
func (d *Dir) ReadFile(name string) ([]byte, error) {
	if !d.Has(name) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return os.ReadFile(d.abs(name))
}

// Names lists the regular files beneath the root as slash-separated paths.
func (d *Dir) Names() []string {
	files, err := collections.CollectFiles(d.root)
	if err != nil {
		return nil
	}
	var names []string
	for _, rel := range files {
		if d.Has(filepath.ToSlash(rel)) {
			names = append(names, filepath.ToSlash(rel))
		}
	}
	sort.Strings(names)
	return names
}
