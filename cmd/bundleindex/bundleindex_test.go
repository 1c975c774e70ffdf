package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/stackb/bundleboot/pkg/bootstrap"
	"github.com/stackb/bundleboot/pkg/testutil"
)

func TestIndex(t *testing.T) {
	dir := t.TempDir()
	libfoo := map[string]string{
		"libfoo/__init__.py":    "",
		"libfoo/helper.py":      "",
		"libfoo/data/info.json": "{}",
	}
	tools := map[string]string{
		"tools/run.py": "",
		"README.md":    "",
	}
	bundle := testutil.MustBundle(t, testutil.Bundle{
		Manifest: `{"entry_script_path": "main.py", "load_dependencies": ["libfoo"], "unpack_dependencies": ["tools"]}`,
		Files:    map[string]string{"main.py": ""},
		Nested: map[string]map[string]string{
			"libfoo": libfoo,
			"tools":  tools,
		},
	})
	bundleFile := filepath.Join(dir, "bundle.bin")
	outputFile := filepath.Join(dir, "index.json")
	require.NoError(t, os.WriteFile(bundleFile, testutil.MustEncode(t, bundle, "k"), 0o644))

	require.NoError(t, run(&config{
		bundleFile: bundleFile,
		key:        "k",
		outputFile: outputFile,
		globs:      []string{"**/*.json", "*.md"},
	}))

	var got Output
	require.NoError(t, json.Unmarshal([]byte(testutil.MustReadTestFile(t, dir, "index.json")), &got))

	want := Output{
		Manifest: &bootstrap.Manifest{
			EntryScriptPath:    "main.py",
			LoadDependencies:   []string{"libfoo"},
			UnpackDependencies: []string{"tools"},
		},
		Repositories: []*Repository{
			{
				Name:    "libfoo",
				Kind:    "load",
				Size:    int64(len(testutil.MustZip(t, libfoo))),
				Entries: 3,
				Modules: []string{"libfoo", "libfoo.helper"},
				Files:   []string{"libfoo/data/info.json"},
			},
			{
				Name:    "tools",
				Kind:    "unpack",
				Size:    int64(len(testutil.MustZip(t, tools))),
				Entries: 2,
				Modules: []string{"tools.run"},
				Files:   []string{"README.md"},
			},
		},
	}
	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(Output{}, "Sha256")); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if len(got.Sha256) != 64 {
		t.Errorf("want a sha256 hex digest, got %q", got.Sha256)
	}
}

func TestIndexErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		bundle  []byte
		wantErr error
	}{
		"malformed bundle": {
			bundle:  []byte("nope"),
			wantErr: bootstrap.ErrMalformedBundle,
		},
		"missing manifest": {
			bundle:  testutil.MustZip(t, map[string]string{"main.py": ""}),
			wantErr: bootstrap.ErrMissingManifest,
		},
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := index(tc.bundle, nil); !errors.Is(err, tc.wantErr) {
				t.Errorf("want %v, got %v", tc.wantErr, err)
			}
		})
	}
}
