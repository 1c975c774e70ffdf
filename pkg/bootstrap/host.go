package bootstrap

import (
	"io"
	"os"
	"sync"

	"github.com/stackb/bundleboot/pkg/archive"
	"github.com/stackb/bundleboot/pkg/resolver"
)

// Host is the state one bootstrap works against: the archive store, the
// ordered resolver registry, the ordinary module search path and the
// argument vector seen by the entry script. Separate hosts share nothing.
type Host struct {
	Store      *archive.Store
	Registry   *resolver.Registry
	SearchPath *resolver.PathFinder
	WorkDir    string
	Stdout     io.Writer
	Stderr     io.Writer

	mu   sync.Mutex
	argv []string
}

// NewHost returns a Host rooted at workDir whose argument vector starts out
// as a copy of os.Args.
func NewHost(workDir string, options ...resolver.Option) *Host {
	store := archive.NewStore()
	return &Host{
		Store:      store,
		Registry:   resolver.NewRegistry(store, options...),
		SearchPath: resolver.NewPathFinder(nil, options...),
		WorkDir:    workDir,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		argv:       append([]string(nil), os.Args...),
	}
}

// Argv returns a copy of the current argument vector.
func (h *Host) Argv() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.argv...)
}

// SetArgv replaces the argument vector and returns the previous one.
func (h *Host) SetArgv(argv []string) []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	previous := h.argv
	h.argv = append([]string(nil), argv...)
	return previous
}

// Finder resolves module names through the registry first and the search
// path second.
func (h *Host) Finder() resolver.Finder {
	return resolver.NewChain(h.Registry, h.SearchPath)
}

// Close unregisters every resolver and releases every archive.
func (h *Host) Close() error {
	h.Registry.Close()
	return h.Store.Close()
}
