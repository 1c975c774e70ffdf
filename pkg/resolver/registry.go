package resolver

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/stackb/bundleboot/pkg/archive"
	"github.com/stackb/bundleboot/pkg/collections"
)

// Registry is the ordered list of active resolvers, one per repository.
// Resolvers are consulted in registration order, so when two repositories
// define the same module name the one registered first wins.
type Registry struct {
	store   *archive.Store
	options []Option
	logger  zerolog.Logger

	mu      sync.RWMutex
	entries []*registryEntry
}

type registryEntry struct {
	resolver *Resolver
	release  func()
}

// NewRegistry returns an empty registry that binds resolvers to archives
// installed in store. The given options are applied to every resolver it
// creates.
func NewRegistry(store *archive.Store, options ...Option) *Registry {
	return &Registry{
		store:   store,
		options: options,
		// the registry logs through the same logger its resolvers get
		logger: New("", nil, options...).logger,
	}
}

// Name implements Finder.
func (r *Registry) Name() string {
	return "registry"
}

func (r *Registry) indexOf(name string) int {
	for i, e := range r.entries {
		if e.resolver.Name() == name {
			return i
		}
	}
	return -1
}

// Register activates a resolver for the named repository. Registering a name
// that is already active does nothing. The repository's archive must already
// be installed in the store.
func (r *Registry) Register(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(name) >= 0 {
		return nil
	}
	a, release, ok := r.store.Acquire(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrRepositoryNotOpen, name)
	}
	r.entries = append(r.entries, &registryEntry{
		resolver: New(name, a, r.options...),
		release:  release,
	})

	r.logger.Debug().Str("repository", name).Int("position", len(r.entries)).Msg("resolver registered")
	return nil
}

// Unregister removes the named resolver and releases its hold on the
// repository's archive. The store entry itself is left installed. It reports
// whether a resolver was removed.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	i := r.indexOf(name)
	if i < 0 {
		return false
	}
	entry := r.entries[i]
	r.entries = collections.SliceRemoveIndex(r.entries, i)
	entry.release()

	r.logger.Debug().Str("repository", name).Msg("resolver unregistered")
	return true
}

// Lookup returns the active resolver for a repository.
func (r *Registry) Lookup(name string) (*Resolver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if i := r.indexOf(name); i >= 0 {
		return r.entries[i].resolver, true
	}
	return nil, false
}

// Resolvers returns the active resolvers in registration order.
func (r *Registry) Resolvers() []*Resolver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	resolvers := make([]*Resolver, len(r.entries))
	for i, e := range r.entries {
		resolvers[i] = e.resolver
	}
	return resolvers
}

// Names returns the active repository names in registration order.
func (r *Registry) Names() []string {
	resolvers := r.Resolvers()
	names := make([]string, len(resolvers))
	for i, res := range resolvers {
		names[i] = res.Name()
	}
	return names
}

// Len returns the number of active resolvers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Find returns the first resolver, in registration order, that can locate
// fullname.
func (r *Registry) Find(fullname string) (*Resolver, *Location, error) {
	for _, res := range r.Resolvers() {
		loc, err := res.Locate(fullname)
		if err == nil {
			return res, loc, nil
		}
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return nil, nil, err
	}
	return nil, nil, fmt.Errorf("%w: %s in %d registered repositories", ErrNotFound, fullname, r.Len())
}

// Locate implements Finder.
func (r *Registry) Locate(fullname string) (*Location, error) {
	_, loc, err := r.Find(fullname)
	return loc, err
}

// LoadSource implements Finder using the first resolver that locates
// fullname.
func (r *Registry) LoadSource(fullname string) (*Source, error) {
	res, _, err := r.Find(fullname)
	if err != nil {
		return nil, err
	}
	return res.LoadSource(fullname)
}

// ReadRaw reads a synthetic path through the resolver whose repository
// prefix it carries.
func (r *Registry) ReadRaw(syntheticPath string) ([]byte, error) {
	for _, res := range r.Resolvers() {
		data, err := res.ReadRaw(syntheticPath)
		if errors.Is(err, ErrPathOutsideRepository) {
			continue
		}
		return data, err
	}
	return nil, fmt.Errorf("%w: %q matches no registered repository", ErrPathOutsideRepository, syntheticPath)
}

// Close unregisters every resolver.
func (r *Registry) Close() {
	for _, name := range r.Names() {
		r.Unregister(name)
	}
}
