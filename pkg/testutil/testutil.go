package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stackb/bundleboot/pkg/archive"
	"github.com/stackb/bundleboot/pkg/xor"
)

// FileSpec describes a file to create for a test.
type FileSpec struct {
	// Path is slash-separated and relative to the test directory.
	Path string
	// Content is the file body.
	Content string
}

// MustWriteTestFiles writes files beneath dir and returns their absolute
// paths.
func MustWriteTestFiles(t *testing.T, dir string, files []FileSpec) []string {
	t.Helper()
	var filenames []string
	for _, file := range files {
		abs := filepath.Join(dir, filepath.FromSlash(file.Path))
		if err := os.MkdirAll(filepath.Dir(abs), os.ModePerm); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(file.Content), 0o644); err != nil {
			t.Fatal(err)
		}
		filenames = append(filenames, abs)
	}
	return filenames
}

// MustReadTestFile reads dir/filename, failing the test (after listing dir)
// if it cannot.
func MustReadTestFile(t *testing.T, dir string, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		ListFiles(t, dir)
		t.Fatal("reading", filename, ":", err)
	}
	return string(data)
}

// MustZip builds a zip archive from name -> content pairs. Entries are added
// in sorted name order.
func MustZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	b := archive.NewBuilder()
	for _, name := range names {
		if err := b.Add(name, []byte(files[name])); err != nil {
			t.Fatal(err)
		}
	}
	data, err := b.Bytes()
	if err != nil {
		t.Fatal(err)
	}
	return data
}

// MustOpenZip builds and opens a zip archive from name -> content pairs.
func MustOpenZip(t *testing.T, files map[string]string) *archive.Archive {
	t.Helper()
	a, err := archive.Open(MustZip(t, files))
	if err != nil {
		t.Fatal(err)
	}
	return a
}

// MustEncode XORs data with key.
func MustEncode(t *testing.T, data []byte, key string) []byte {
	t.Helper()
	if key == "" {
		t.Fatal("MustEncode: empty key")
	}
	return xor.String(data, key)
}

// EqualError reports whether errors a and b are considered equal.
// They're equal if both are nil, or both are not nil and a.Error() == b.Error().
func EqualError(a, b error) bool {
	return a == nil && b == nil || a != nil && b != nil && a.Error() == b.Error()
}

// ExpectError asserts that the errors are equal.  Return value is true
// if the "want" argument is non-nil.
func ExpectError(t *testing.T, want, got error) bool {
	t.Helper()
	if !EqualError(want, got) {
		t.Fatal("errors: want:", want, "got:", got)
	}
	return want != nil
}

// ListFiles is a convenience debugging function to log the files under a given dir.
func ListFiles(t *testing.T, dir string) {
	t.Log("Listing files under:", dir)
	if err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		t.Log(path)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
}
