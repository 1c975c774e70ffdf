// Package starlarkeval hosts the Starlark interpreter that executes module
// and entry-script source. Imports are served by a resolver.Finder through
// the thread load hook.
package starlarkeval

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/stackb/bundleboot/pkg/resolver"
)

// MainModule is the __name__ of an entry script.
const MainModule = "__main__"

// ErrImportCycle is returned when a module is loaded while it is still
// executing.
var ErrImportCycle = errors.New("import cycle")

// fileOptions relax the Starlark dialect toward the one module authors expect.
var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

// Module is a loaded unit bound to its synthetic path identity.
type Module struct {
	// Name is the dotted module name.
	Name string
	// File is the synthetic path the source was compiled under.
	File string
	// Path is the package search root; empty for plain modules.
	Path []string
	// IsPackage is true for package init modules.
	IsPackage bool
	// Globals is the module namespace after execution.
	Globals starlark.StringDict
}

// Option configures an Interpreter.
type Option func(*Interpreter) *Interpreter

// WithLogger sets the interpreter logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(i *Interpreter) *Interpreter {
		i.logger = logger
		return i
	}
}

// WithStdout sets the destination of print().
func WithStdout(w io.Writer) Option {
	return func(i *Interpreter) *Interpreter {
		i.stdout = w
		return i
	}
}

// WithPredeclared adds names visible to every module and entry script.
func WithPredeclared(predeclared starlark.StringDict) Option {
	return func(i *Interpreter) *Interpreter {
		for k, v := range predeclared {
			i.predeclared[k] = v
		}
		return i
	}
}

// Interpreter executes Starlark modules and entry scripts. Each module is
// executed at most once and its globals are shared by every load of it.
type Interpreter struct {
	finder      resolver.Finder
	predeclared starlark.StringDict
	stdout      io.Writer
	logger      zerolog.Logger

	mu sync.Mutex
	// modules is keyed by dotted name. A nil entry marks a module whose
	// execution is in progress.
	modules map[string]*Module
	// globals of the last Exec
	globals starlark.StringDict
}

// NewInterpreter returns an Interpreter that resolves load() statements
// through finder.
func NewInterpreter(finder resolver.Finder, options ...Option) *Interpreter {
	interpreter := &Interpreter{
		finder:      finder,
		predeclared: make(starlark.StringDict),
		stdout:      io.Discard,
		logger:      zerolog.Nop(),
		modules:     make(map[string]*Module),
		globals:     make(starlark.StringDict),
	}
	for _, opt := range options {
		interpreter = opt(interpreter)
	}
	return interpreter
}

func (i *Interpreter) newThread(name string) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			fmt.Fprintln(i.stdout, msg)
		},
		Load: i.load,
	}
}

func (i *Interpreter) load(_ *starlark.Thread, module string) (starlark.StringDict, error) {
	m, err := i.Import(module)
	if err != nil {
		return nil, err
	}
	return m.Globals, nil
}

// Import returns the module for fullname, loading and executing it on first
// use. Later calls return the same module without re-executing it. Errors
// raised by the module's own code are returned as is.
func (i *Interpreter) Import(fullname string) (*Module, error) {
	i.mu.Lock()
	if m, ok := i.modules[fullname]; ok {
		i.mu.Unlock()
		if m == nil {
			return nil, fmt.Errorf("%w: %s is still loading", ErrImportCycle, fullname)
		}
		return m, nil
	}
	i.modules[fullname] = nil
	i.mu.Unlock()

	m, err := i.compileAndBind(fullname)

	i.mu.Lock()
	defer i.mu.Unlock()
	if err != nil {
		delete(i.modules, fullname)
		return nil, err
	}
	i.modules[fullname] = m
	return m, nil
}

func (i *Interpreter) compileAndBind(fullname string) (*Module, error) {
	src, err := i.finder.LoadSource(fullname)
	if err != nil {
		return nil, err
	}

	m := &Module{
		Name:      fullname,
		File:      src.Path(),
		IsPackage: src.IsPackage,
	}
	predeclared := i.Predeclared()
	predeclared["__name__"] = starlark.String(m.Name)
	predeclared["__file__"] = starlark.String(m.File)
	if m.IsPackage {
		m.Path = []string{path.Dir(m.File)}
		predeclared["__path__"] = starlark.NewList([]starlark.Value{starlark.String(m.Path[0])})
	}

	i.logger.Debug().
		Str("module", fullname).
		Str("file", m.File).
		Bool("package", m.IsPackage).
		Msg("executing module")

	globals, err := starlark.ExecFileOptions(fileOptions, i.newThread(fullname), m.File, src.Text, predeclared)
	if err != nil {
		return nil, err
	}
	m.Globals = globals
	return m, nil
}

// Predeclared returns a copy of the names visible to every module.
func (i *Interpreter) Predeclared() starlark.StringDict {
	predeclared := make(starlark.StringDict, len(i.predeclared)+3)
	for k, v := range i.predeclared {
		predeclared[k] = v
	}
	return predeclared
}

// Loaded returns the names of the modules loaded so far, sorted.
func (i *Interpreter) Loaded() []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	names := make([]string, 0, len(i.modules))
	for name, m := range i.modules {
		if m != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// GetGlobal returns a global of the last executed script.
func (i *Interpreter) GetGlobal(name string) starlark.Value {
	return i.globals[name]
}

// Exec runs src as the main script in a fresh namespace seeded with the
// predeclared names.
func (i *Interpreter) Exec(filename string, src io.Reader) error {
	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	predeclared := i.Predeclared()
	predeclared["__name__"] = starlark.String(MainModule)
	predeclared["__file__"] = starlark.String(filename)

	globals, err := starlark.ExecFileOptions(fileOptions, i.newThread(MainModule), filename, bytes.NewReader(data), predeclared)
	if globals != nil {
		i.globals = globals
	}
	if evalErr, ok := err.(*starlark.EvalError); ok {
		i.logger.Debug().Str("file", filename).Msg(evalErr.Backtrace())
	}
	return err
}
