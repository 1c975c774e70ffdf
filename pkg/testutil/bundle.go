package testutil

import (
	"sort"
	"testing"

	"github.com/stackb/bundleboot/pkg/archive"
)

// Bundle describes a bundle archive for tests.
type Bundle struct {
	// Manifest is written to module.json when non-empty.
	Manifest string
	// Files are top-level entries, e.g. the entry script.
	Files map[string]string
	// Nested maps a dependency name to the entries of its <name>.zip.
	Nested map[string]map[string]string
}

// MustBundle builds the (unencoded) zip bytes of b.
func MustBundle(t *testing.T, b Bundle) []byte {
	t.Helper()
	files := make(map[string]string, len(b.Files)+len(b.Nested)+1)
	for name, content := range b.Files {
		files[name] = content
	}
	if b.Manifest != "" {
		files["module.json"] = b.Manifest
	}

	names := make([]string, 0, len(b.Nested))
	for name := range b.Nested {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		files[name+archive.Suffix] = string(MustZip(t, b.Nested[name]))
	}
	return MustZip(t, files)
}
