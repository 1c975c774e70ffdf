package resolver

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/mock"

	"github.com/stackb/bundleboot/pkg/resolver/mocks"
	"github.com/stackb/bundleboot/pkg/testutil"
)

func TestLocate(t *testing.T) {
	for name, tc := range map[string]struct {
		files    map[string]string
		options  []Option
		fullname string
		want     *Location
		wantErr  error
	}{
		"degenerate": {
			wantErr: ErrNotFound,
		},
		"plain module": {
			files:    map[string]string{"libfoo/helper.py": ""},
			fullname: "libfoo.helper",
			want: &Location{
				Repository: "repo",
				Fullname:   "libfoo.helper",
				Leaf:       "helper",
				RelPath:    "libfoo/helper.py",
			},
		},
		"top-level module": {
			files:    map[string]string{"helper.py": ""},
			fullname: "helper",
			want: &Location{
				Repository: "repo",
				Fullname:   "helper",
				Leaf:       "helper",
				RelPath:    "helper.py",
			},
		},
		"package": {
			files:    map[string]string{"libfoo/__init__.py": ""},
			fullname: "libfoo",
			want: &Location{
				Repository: "repo",
				Fullname:   "libfoo",
				Leaf:       "libfoo",
				RelPath:    "libfoo/__init__.py",
				IsPackage:  true,
			},
		},
		"nested package": {
			files:    map[string]string{"a/b/c/__init__.py": ""},
			fullname: "a.b.c",
			want: &Location{
				Repository: "repo",
				Fullname:   "a.b.c",
				Leaf:       "c",
				RelPath:    "a/b/c/__init__.py",
				IsPackage:  true,
			},
		},
		"module wins over package": {
			files: map[string]string{
				"dual.py":          "",
				"dual/__init__.py": "",
			},
			fullname: "dual",
			want: &Location{
				Repository: "repo",
				Fullname:   "dual",
				Leaf:       "dual",
				RelPath:    "dual.py",
			},
		},
		"package first option": {
			files: map[string]string{
				"dual.py":          "",
				"dual/__init__.py": "",
			},
			options:  []Option{WithPackageFirst()},
			fullname: "dual",
			want: &Location{
				Repository: "repo",
				Fullname:   "dual",
				Leaf:       "dual",
				RelPath:    "dual/__init__.py",
				IsPackage:  true,
			},
		},
		"directory without init is not a package": {
			files:    map[string]string{"ns/mod.py": ""},
			fullname: "ns",
			wantErr:  ErrNotFound,
		},
		"other extensions are ignored": {
			files:    map[string]string{"native.so": "", "data.txt": ""},
			fullname: "native",
			wantErr:  ErrNotFound,
		},
		"empty segment": {
			files:    map[string]string{"a/b.py": ""},
			fullname: "a..b",
			wantErr:  ErrNotFound,
		},
	} {
		t.Run(name, func(t *testing.T) {
			r := New("repo", testutil.MustOpenZip(t, tc.files), tc.options...)
			got, err := r.Locate(tc.fullname)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want error %v, got %v (%s)", tc.wantErr, err, spew.Sdump(got))
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestLocateModulePaths(t *testing.T) {
	names := []string{"a", "a1.b2", "alpha.beta.gamma", "x.y.z.w", "_private.mod"}

	files := make(map[string]string)
	for _, name := range names {
		files[strings.ReplaceAll(name, ".", "/")+ModuleSuffix] = ""
	}
	r := New("repo", testutil.MustOpenZip(t, files))

	for _, name := range names {
		loc, err := r.Locate(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if loc.IsPackage {
			t.Errorf("%s: want module, got package", name)
		}
		want := strings.ReplaceAll(name, ".", "/") + ".py"
		if loc.RelPath != want {
			t.Errorf("%s: want relpath %q, got %q", name, want, loc.RelPath)
		}
		if loc.Path() != "repo/"+want {
			t.Errorf("%s: want path %q, got %q", name, "repo/"+want, loc.Path())
		}
	}
}

func TestLoadSourceCachesText(t *testing.T) {
	archive := mocks.NewArchive(t)
	archive.On("Has", "pkg/mod.py").Return(true)
	archive.On("ReadFile", "pkg/mod.py").Return([]byte("x = 1\r\ny = 2\r"), nil).Once()

	r := New("repo", archive)

	first, err := r.LoadSource("pkg.mod")
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.LoadSource("pkg.mod")
	if err != nil {
		t.Fatal(err)
	}

	if first.Text != "x = 1\ny = 2\n" {
		t.Errorf("text not normalized: %q", first.Text)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("(-first +second):\n%s", diff)
	}
	if first.Path() != "repo/pkg/mod.py" {
		t.Errorf("want synthetic path repo/pkg/mod.py, got %q", first.Path())
	}
	archive.AssertNumberOfCalls(t, "ReadFile", 1)
}

func TestNormalizeNewlines(t *testing.T) {
	for name, tc := range map[string]struct {
		in   string
		want string
	}{
		"degenerate":    {},
		"unix":          {in: "a\nb\n", want: "a\nb\n"},
		"windows":       {in: "a\r\nb\r\n", want: "a\nb\n"},
		"classic mac":   {in: "a\rb\r", want: "a\nb\n"},
		"mixed":         {in: "a\r\nb\rc\n", want: "a\nb\nc\n"},
		"blank windows": {in: "\r\n\r\n", want: "\n\n"},
		"lf then cr":    {in: "\n\r", want: "\n\n"},
	} {
		t.Run(name, func(t *testing.T) {
			got := NormalizeNewlines(tc.in)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
			if strings.Contains(got, "\r") {
				t.Errorf("carriage return survived: %q", got)
			}
		})
	}
}

func TestLoadSourceUnavailable(t *testing.T) {
	for name, tc := range map[string]struct {
		data []byte
		err  error
	}{
		"read error": {
			err: fmt.Errorf("checksum mismatch"),
		},
		"not utf-8": {
			data: []byte{0xff, 0xfe, 0x00},
		},
	} {
		t.Run(name, func(t *testing.T) {
			archive := mocks.NewArchive(t)
			archive.On("Has", "broken.py").Return(true)
			archive.On("ReadFile", "broken.py").Return(tc.data, tc.err)

			r := New("repo", archive)
			_, err := r.LoadSource("broken")
			if !errors.Is(err, ErrSourceUnavailable) {
				t.Fatalf("want ErrSourceUnavailable, got %v", err)
			}
			if !strings.Contains(err.Error(), "repo/broken.py") {
				t.Errorf("error should name the entry: %v", err)
			}
			if n := r.cached(); n != 0 {
				t.Errorf("want empty cache, got %d entries", n)
			}
		})
	}
}

func TestLoadSourceNotFoundLeavesCache(t *testing.T) {
	archive := mocks.NewArchive(t)
	archive.On("Has", "present.py").Return(true)
	archive.On("ReadFile", "present.py").Return([]byte("x = 1\n"), nil).Once()
	archive.On("Has", mock.AnythingOfType("string")).Return(false)

	r := New("repo", archive)
	if _, err := r.LoadSource("present"); err != nil {
		t.Fatal(err)
	}

	_, err := r.LoadSource("does.not.exist")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if n := r.cached(); n != 1 {
		t.Errorf("want 1 cached source, got %d", n)
	}
	archive.AssertNotCalled(t, "ReadFile", "does/not/exist.py")
}

func TestIsPackage(t *testing.T) {
	archive := mocks.NewArchive(t)
	archive.On("Has", "pkg.py").Return(false)
	archive.On("Has", "pkg/__init__.py").Return(true)

	r := New("repo", archive)
	got, err := r.IsPackage("pkg")
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Error("want package")
	}
	archive.AssertNotCalled(t, "ReadFile", mock.Anything)
	if n := r.cached(); n != 0 {
		t.Errorf("IsPackage must not populate the cache, got %d entries", n)
	}
}

func TestReadRaw(t *testing.T) {
	r := New("libfoo", testutil.MustOpenZip(t, map[string]string{
		"libfoo/helper.py": "X = 1\r\n",
		"data/blob.bin":    "\x00\x01",
	}))

	for name, tc := range map[string]struct {
		path    string
		want    string
		wantErr error
	}{
		"module source is returned raw": {
			path: "libfoo/libfoo/helper.py",
			want: "X = 1\r\n",
		},
		"data entry": {
			path: "libfoo/data/blob.bin",
			want: "\x00\x01",
		},
		"other repository": {
			path:    "libbar/helper.py",
			wantErr: ErrPathOutsideRepository,
		},
		"prefix without separator": {
			path:    "libfoohelper.py",
			wantErr: ErrPathOutsideRepository,
		},
		"missing entry": {
			path:    "libfoo/missing.py",
			wantErr: ErrNotFound,
		},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := r.ReadRaw(tc.path)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("want %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.want, string(got)); diff != "" {
				t.Errorf("(-want +got):\n%s", diff)
			}
		})
	}
}

func TestModules(t *testing.T) {
	r := New("repo", testutil.MustOpenZip(t, map[string]string{
		"__init__.py":          "",
		"top.py":               "",
		"pkg/__init__.py":      "",
		"pkg/sub.py":           "",
		"pkg/deep/__init__.py": "",
		"pkg/deep/leaf.py":     "",
		"ns/only.py":           "",
		"bad.name/mod.py":      "",
		"README.md":            "",
	}))

	want := []string{
		"ns.only",
		"pkg",
		"pkg.deep",
		"pkg.deep.leaf",
		"pkg.sub",
		"top",
	}
	if diff := cmp.Diff(want, r.Modules()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}
