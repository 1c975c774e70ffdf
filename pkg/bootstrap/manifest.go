package bootstrap

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	// ManifestJSON is the well-known manifest entry of a bundle.
	ManifestJSON = "module.json"
	// ManifestTOML is read when a bundle carries no ManifestJSON.
	ManifestTOML = "module.toml"
)

// Manifest describes a bundle: the entry script and the nested archives to
// register or extract, in order.
type Manifest struct {
	EntryScriptPath    string   `json:"entry_script_path" toml:"entry_script_path"`
	LoadDependencies   []string `json:"load_dependencies" toml:"load_dependencies"`
	UnpackDependencies []string `json:"unpack_dependencies" toml:"unpack_dependencies"`
}

// manifestFile is the on-disk shape. Pointer fields tell a missing key from
// an empty value.
type manifestFile struct {
	EntryScriptPath    *string   `json:"entry_script_path" toml:"entry_script_path"`
	Pyfile             *string   `json:"pyfile" toml:"pyfile"`
	LoadDependencies   *[]string `json:"load_dependencies" toml:"load_dependencies"`
	UnpackDependencies *[]string `json:"unpack_dependencies" toml:"unpack_dependencies"`
}

// ManifestReader is the archive surface ReadManifest needs.
type ManifestReader interface {
	Has(name string) bool
	ReadFile(name string) ([]byte, error)
}

// ReadManifest reads ManifestJSON from a, falling back to ManifestTOML.
// Errors wrap ErrMissingManifest or ErrMalformedManifest.
func ReadManifest(a ManifestReader) (*Manifest, string, error) {
	for _, name := range []string{ManifestJSON, ManifestTOML} {
		if !a.Has(name) {
			continue
		}
		data, err := a.ReadFile(name)
		if err != nil {
			return nil, name, fmt.Errorf("%w: %v", ErrMissingManifest, err)
		}
		m, err := ParseManifest(name, data)
		return m, name, err
	}
	return nil, ManifestJSON, fmt.Errorf("%w: neither %s nor %s present", ErrMissingManifest, ManifestJSON, ManifestTOML)
}

// ParseManifest decodes data as TOML when filename ends in ".toml" and as
// JSON otherwise. All three fields are required; "pyfile" is accepted in
// place of "entry_script_path".
func ParseManifest(filename string, data []byte) (*Manifest, error) {
	var mf manifestFile
	if strings.HasSuffix(filename, ".toml") {
		if _, err := toml.Decode(string(data), &mf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
		}
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		if err := dec.Decode(&mf); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedManifest, err)
		}
	}

	entry := mf.EntryScriptPath
	if entry == nil {
		entry = mf.Pyfile
	}
	switch {
	case entry == nil:
		return nil, fmt.Errorf("%w: entry_script_path is required", ErrMalformedManifest)
	case *entry == "":
		return nil, fmt.Errorf("%w: entry_script_path is empty", ErrMalformedManifest)
	case mf.LoadDependencies == nil:
		return nil, fmt.Errorf("%w: load_dependencies is required", ErrMalformedManifest)
	case mf.UnpackDependencies == nil:
		return nil, fmt.Errorf("%w: unpack_dependencies is required", ErrMalformedManifest)
	}

	m := &Manifest{
		EntryScriptPath:    *entry,
		LoadDependencies:   *mf.LoadDependencies,
		UnpackDependencies: *mf.UnpackDependencies,
	}
	for _, deps := range [][]string{m.LoadDependencies, m.UnpackDependencies} {
		for _, name := range deps {
			if name == "" {
				return nil, fmt.Errorf("%w: empty dependency name", ErrMalformedManifest)
			}
		}
	}
	return m, nil
}

// JSON renders m in the ManifestJSON format.
func (m *Manifest) JSON() ([]byte, error) {
	load, unpack := m.LoadDependencies, m.UnpackDependencies
	if load == nil {
		load = []string{}
	}
	if unpack == nil {
		unpack = []string{}
	}
	return json.MarshalIndent(&Manifest{
		EntryScriptPath:    m.EntryScriptPath,
		LoadDependencies:   load,
		UnpackDependencies: unpack,
	}, "", "  ")
}
