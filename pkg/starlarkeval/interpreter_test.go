package starlarkeval

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"

	"github.com/stackb/bundleboot/pkg/resolver"
	"github.com/stackb/bundleboot/pkg/testutil"
)

func newTestInterpreter(t *testing.T, files map[string]string, options ...Option) (*Interpreter, *bytes.Buffer) {
	t.Helper()
	var stdout bytes.Buffer
	finder := resolver.New("repo", testutil.MustOpenZip(t, files))
	options = append([]Option{
		WithStdout(&stdout),
		WithLogger(testutil.NewTestLogger(t)),
	}, options...)
	return NewInterpreter(finder, options...), &stdout
}

func TestImportBindsIdentity(t *testing.T) {
	for name, tc := range map[string]struct {
		files     map[string]string
		fullname  string
		want      Module
		wantNames map[string]string
	}{
		"plain module": {
			files: map[string]string{
				"libfoo/helper.py": "NAME = __name__\nFILE = __file__\n",
			},
			fullname: "libfoo.helper",
			want: Module{
				Name: "libfoo.helper",
				File: "repo/libfoo/helper.py",
			},
			wantNames: map[string]string{
				"NAME": "libfoo.helper",
				"FILE": "repo/libfoo/helper.py",
			},
		},
		"package": {
			files: map[string]string{
				"libfoo/__init__.py": "NAME = __name__\nROOT = __path__[0]\n",
			},
			fullname: "libfoo",
			want: Module{
				Name:      "libfoo",
				File:      "repo/libfoo/__init__.py",
				Path:      []string{"repo/libfoo"},
				IsPackage: true,
			},
			wantNames: map[string]string{
				"NAME": "libfoo",
				"ROOT": "repo/libfoo",
			},
		},
	} {
		t.Run(name, func(t *testing.T) {
			interpreter, _ := newTestInterpreter(t, tc.files)

			got, err := interpreter.Import(tc.fullname)
			require.NoError(t, err)

			if diff := cmp.Diff(tc.want, *got, cmpopts.IgnoreFields(Module{}, "Globals")); diff != "" {
				t.Errorf("module (-want +got):\n%s", diff)
			}
			for k, want := range tc.wantNames {
				value, ok := got.Globals[k].(starlark.String)
				if !ok {
					t.Fatalf("global %s: want string, got %v", k, got.Globals[k])
				}
				if string(value) != want {
					t.Errorf("global %s: want %q, got %q", k, want, value)
				}
			}
		})
	}
}

func TestImportExecutesOnce(t *testing.T) {
	interpreter, stdout := newTestInterpreter(t, map[string]string{
		"counter.py": "print('executed')\nVALUE = 42\n",
		"a.py":       "load('counter', 'VALUE')\nA = VALUE\n",
		"b.py":       "load('counter', 'VALUE')\nB = VALUE\n",
	})

	for _, name := range []string{"a", "b", "counter"} {
		_, err := interpreter.Import(name)
		require.NoError(t, err)
	}

	if got := strings.Count(stdout.String(), "executed"); got != 1 {
		t.Errorf("want module executed once, got %d", got)
	}
	if diff := cmp.Diff([]string{"a", "b", "counter"}, interpreter.Loaded()); diff != "" {
		t.Errorf("loaded (-want +got):\n%s", diff)
	}
}

func TestImportCycle(t *testing.T) {
	interpreter, _ := newTestInterpreter(t, map[string]string{
		"ping.py": "load('pong', 'PONG')\nPING = 1\n",
		"pong.py": "load('ping', 'PING')\nPONG = 1\n",
	})

	_, err := interpreter.Import("ping")
	if err == nil {
		t.Fatal("want error")
	}
	if !strings.Contains(err.Error(), ErrImportCycle.Error()) {
		t.Errorf("want import cycle error, got %v", err)
	}
	if got := interpreter.Loaded(); len(got) != 0 {
		t.Errorf("failed modules must not stay loaded: %v", got)
	}
}

func TestImportErrorsAreNotWrapped(t *testing.T) {
	interpreter, _ := newTestInterpreter(t, map[string]string{
		"bad.py": "fail('boom')\n",
	})

	_, err := interpreter.Import("bad")
	evalErr, ok := err.(*starlark.EvalError)
	if !ok {
		t.Fatalf("want *starlark.EvalError, got %T: %v", err, err)
	}
	if !strings.Contains(evalErr.Msg, "boom") {
		t.Errorf("unexpected message: %s", evalErr.Msg)
	}
}

func TestImportNotFound(t *testing.T) {
	interpreter, _ := newTestInterpreter(t, map[string]string{})

	_, err := interpreter.Import("nowhere")
	if !errors.Is(err, resolver.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestExec(t *testing.T) {
	interpreter, stdout := newTestInterpreter(t,
		map[string]string{"libfoo/helper.py": "def greet(who):\n    return 'hello ' + who\n"},
		WithPredeclared(starlark.StringDict{"WHO": starlark.String("world")}),
	)

	err := interpreter.Exec("main.py", strings.NewReader(strings.Join([]string{
		"load('libfoo.helper', 'greet')",
		"MSG = greet(WHO)",
		"print(MSG, __name__)",
	}, "\n")))
	require.NoError(t, err)

	if diff := cmp.Diff("hello world __main__\n", stdout.String()); diff != "" {
		t.Errorf("stdout (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(starlark.String("hello world"), interpreter.GetGlobal("MSG")); diff != "" {
		t.Errorf("global (-want +got):\n%s", diff)
	}
}
