package bootstrap

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedBundle means the decoded bundle is not a zip container.
	ErrMalformedBundle = errors.New("malformed bundle")
	// ErrMissingManifest means the bundle has neither module.json nor
	// module.toml.
	ErrMissingManifest = errors.New("missing manifest")
	// ErrMalformedManifest means the manifest does not parse or lacks a
	// required key.
	ErrMalformedManifest = errors.New("malformed manifest")
	// ErrDependencyLoadFailed means a load dependency could not be opened or
	// registered.
	ErrDependencyLoadFailed = errors.New("dependency load failed")
	// ErrDependencyUnpackFailed means an unpack dependency could not be
	// opened or extracted.
	ErrDependencyUnpackFailed = errors.New("dependency unpack failed")
	// ErrEntryScriptUnavailable means the manifest names an entry script the
	// bundle does not contain.
	ErrEntryScriptUnavailable = errors.New("entry script unavailable")
)

// Stage names used in StageError.
const (
	StageOpen     = "open"
	StageManifest = "manifest"
	StageLoad     = "load"
	StageUnpack   = "unpack"
	StageEntry    = "entry"
)

// StageError reports a fatal bootstrap failure together with the stage and
// the bundle, dependency or path it concerns. It matches both its Kind and
// its cause under errors.Is.
type StageError struct {
	Stage string
	Name  string
	Kind  error
	Err   error
}

func (e *StageError) Error() string {
	msg := e.Stage + " " + e.Name + ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StageError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func stageError(stage, name string, kind, err error) error {
	return &StageError{Stage: stage, Name: name, Kind: kind, Err: err}
}

// ExitError is an explicit exit status requested by an entry script.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}
