package resolver

import "errors"

var (
	// ErrNotFound means a finder does not own the requested module name. It is
	// never fatal: callers move on to the next finder.
	ErrNotFound = errors.New("module not found")

	// ErrSourceUnavailable means a module entry exists but its bytes could not
	// be read or decoded as text.
	ErrSourceUnavailable = errors.New("module source unavailable")

	// ErrPathOutsideRepository is returned by ReadRaw for a path that does not
	// carry the resolver's repository prefix.
	ErrPathOutsideRepository = errors.New("path outside repository")

	// ErrRepositoryNotOpen is returned when registering a repository that has
	// no archive installed in the store.
	ErrRepositoryNotOpen = errors.New("repository not open")
)
