// Package bootstrap opens a decoded bundle, wires its nested archives into a
// Host and runs the bundle's entry script.
package bootstrap

import (
	"errors"
	"io"
	"os"

	"github.com/pcj/mobyprogress"
	"github.com/rs/zerolog"

	"github.com/stackb/bundleboot/pkg/archive"
	"github.com/stackb/bundleboot/pkg/collections"
	"github.com/stackb/bundleboot/pkg/progress"
	"github.com/stackb/bundleboot/pkg/resolver"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator) *Orchestrator

// WithLogger sets the orchestrator logger. Resolvers and the entry runner
// log through it too.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.logger = logger
		return o
	}
}

// WithProgress sets where load and unpack progress is written.
func WithProgress(out mobyprogress.Output) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.progress = out
		return o
	}
}

// WithExit replaces os.Exit for the final step of Run.
func WithExit(exit func(code int)) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.exit = exit
		return o
	}
}

// WithRunner replaces the entry script runner.
func WithRunner(runner Runner) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.runner = runner
		return o
	}
}

// WithWorkDir sets the directory unpack dependencies are extracted into. It
// defaults to the process working directory.
func WithWorkDir(dir string) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.workDir = dir
		return o
	}
}

// WithStdout sets the entry script's standard output.
func WithStdout(w io.Writer) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.stdout = w
		return o
	}
}

// WithStderr sets the entry script's standard error.
func WithStderr(w io.Writer) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.stderr = w
		return o
	}
}

// WithResolverOptions passes options to every resolver the host creates.
func WithResolverOptions(options ...resolver.Option) Option {
	return func(o *Orchestrator) *Orchestrator {
		o.resolverOptions = append(o.resolverOptions, options...)
		return o
	}
}

// Orchestrator runs the bootstrap protocol against its Host.
type Orchestrator struct {
	host            *Host
	logger          zerolog.Logger
	progress        mobyprogress.Output
	exit            func(int)
	runner          Runner
	workDir         string
	stdout          io.Writer
	stderr          io.Writer
	resolverOptions []resolver.Option
}

// New returns an Orchestrator with a fresh Host.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{
		logger:   zerolog.Nop(),
		progress: progress.Discard(),
		exit:     os.Exit,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
	}
	for _, opt := range options {
		o = opt(o)
	}
	if o.workDir == "" {
		if wd, err := os.Getwd(); err == nil {
			o.workDir = wd
		} else {
			o.workDir = "."
		}
	}
	if o.runner == nil {
		o.runner = NewEntryRunner(o.logger)
	}

	o.host = NewHost(o.workDir, append([]resolver.Option{resolver.WithLogger(o.logger)}, o.resolverOptions...)...)
	o.host.Stdout = o.stdout
	o.host.Stderr = o.stderr
	return o
}

// Host returns the host the orchestrator populates.
func (o *Orchestrator) Host() *Host {
	return o.host
}

// Run bootstraps bundle, which must already be decoded:
//
//  1. open bundle as an archive
//  2. read the manifest
//  3. install and register each load dependency, in order
//  4. extract each unpack dependency into the working directory, in order
//  5. prepend the working directory to the module search path
//  6. read the entry script
//  7. run it with argv as the argument vector, restoring the previous one
//     afterwards
//  8. exit with status 0
//
// Failures in steps 1-6 are returned as *StageError. An error from the entry
// script is returned as is, and step 8 is skipped. A sys.exit(0) from the
// script counts as success.
func (o *Orchestrator) Run(bundle []byte, argv []string) error {
	a, err := archive.Open(bundle)
	if err != nil {
		return stageError(StageOpen, "bundle", ErrMalformedBundle, err)
	}
	defer a.Close()

	o.logger.Info().
		Str("sha256", collections.BytesSha256(bundle)).
		Int("entries", a.Len()).
		Msg("bundle opened")

	manifest, manifestName, err := ReadManifest(a)
	if err != nil {
		return &StageError{Stage: StageManifest, Name: manifestName, Kind: manifestKind(err), Err: err}
	}

	for _, name := range manifest.LoadDependencies {
		progress.Messagef(o.progress, "load", "Loading in memory module package: %s", name)
		if err := o.load(a, name); err != nil {
			return stageError(StageLoad, name, ErrDependencyLoadFailed, err)
		}
	}

	for _, name := range manifest.UnpackDependencies {
		progress.Messagef(o.progress, "unpack", "Unpacking module: %s", name)
		if err := o.unpack(a, name); err != nil {
			return stageError(StageUnpack, name, ErrDependencyUnpackFailed, err)
		}
	}

	o.host.SearchPath.Prepend(o.host.WorkDir)

	src, err := a.ReadFile(manifest.EntryScriptPath)
	if err != nil {
		return stageError(StageEntry, manifest.EntryScriptPath, ErrEntryScriptUnavailable, err)
	}

	previous := o.host.SetArgv(argv)
	err = o.runner.Run(o.host, manifest.EntryScriptPath, src)
	o.host.SetArgv(previous)

	var exitErr *ExitError
	if err != nil && !(errors.As(err, &exitErr) && exitErr.Code == 0) {
		return err
	}

	o.logger.Debug().Str("entry", manifest.EntryScriptPath).Msg("entry script finished")
	a.Close()
	o.exit(0)
	return nil
}

func manifestKind(err error) error {
	if errors.Is(err, ErrMalformedManifest) {
		return ErrMalformedManifest
	}
	return ErrMissingManifest
}

func (o *Orchestrator) openNested(a *archive.Archive, name string) (*archive.Archive, error) {
	data, err := a.ReadFile(name + archive.Suffix)
	if err != nil {
		return nil, err
	}
	return archive.Open(data)
}

func (o *Orchestrator) load(a *archive.Archive, name string) error {
	nested, err := o.openNested(a, name)
	if err != nil {
		return err
	}
	if !o.host.Store.Install(name, nested) {
		nested.Close()
		o.logger.Debug().Str("repository", name).Msg("repository already installed")
	}
	if err := o.host.Registry.Register(name); err != nil {
		return err
	}
	o.logger.Info().Str("repository", name).Int("entries", nested.Len()).Int64("bytes", nested.Size()).Msg("dependency loaded")
	return nil
}

func (o *Orchestrator) unpack(a *archive.Archive, name string) error {
	nested, err := o.openNested(a, name)
	if err != nil {
		return err
	}
	defer nested.Close()

	if err := nested.ExtractAll(o.host.WorkDir, func(current, total int, entry string) {
		progress.Update(o.progress, name, "unpacking", current, total)
	}); err != nil {
		return err
	}
	o.logger.Info().Str("dependency", name).Str("dir", o.host.WorkDir).Int("entries", nested.Len()).Msg("dependency unpacked")
	return nil
}
