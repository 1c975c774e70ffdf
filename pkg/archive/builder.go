package archive

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/zip"

	"github.com/stackb/bundleboot/pkg/collections"
)

// FixedZipTime is stamped on every entry so the same inputs always produce
// byte-identical archives (1980-01-01 UTC, the zip epoch).
var FixedZipTime = time.Unix(315532800, 0).UTC()

// Builder assembles a zip archive in memory.
type Builder struct {
	buf  bytes.Buffer
	zw   *zip.Writer
	used map[string]bool
	done bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	b := &Builder{used: make(map[string]bool)}
	b.zw = zip.NewWriter(&b.buf)
	return b
}

// Add writes a file entry. Names are normalized to clean relative slash
// paths; adding the same name twice is an error.
func (b *Builder) Add(name string, data []byte) error {
	if b.done {
		return fmt.Errorf("add %s: builder already finished", name)
	}
	name = cleanEntryName(name)
	if name == "" {
		return fmt.Errorf("add: empty entry name")
	}
	if b.used[name] {
		return fmt.Errorf("add %s: duplicate entry", name)
	}
	b.used[name] = true

	h := &zip.FileHeader{Name: name, Method: zip.Deflate}
	h.SetMode(0o644)
	h.Modified = FixedZipTime
	w, err := b.zw.CreateHeader(h)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// AddDir adds every regular file beneath root, named relative to root and
// placed under prefix (which may be empty).
func (b *Builder) AddDir(root, prefix string) error {
	files, err := collections.CollectFiles(root)
	if err != nil {
		return fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)
	for _, rel := range files {
		abs := filepath.Join(root, rel)
		info, err := os.Stat(abs)
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			continue
		}
		data, err := os.ReadFile(abs)
		if err != nil {
			return fmt.Errorf("read %s: %w", abs, err)
		}
		if err := b.Add(filepath.ToSlash(filepath.Join(prefix, rel)), data); err != nil {
			return err
		}
	}
	return nil
}

// Bytes finishes the archive and returns its encoding. The builder cannot be
// added to afterwards.
func (b *Builder) Bytes() ([]byte, error) {
	if !b.done {
		if err := b.zw.Close(); err != nil {
			return nil, fmt.Errorf("close zip writer: %w", err)
		}
		b.done = true
	}
	return b.buf.Bytes(), nil
}
