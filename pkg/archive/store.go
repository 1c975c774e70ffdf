package archive

import (
	"sort"
	"sync"
)

// Store maps repository names to open archives.
//
// Handles are reference counted. Install takes the store's own reference and
// every Acquire takes one more; the archive is closed when the last reference
// is released. Remove drops the store's reference and frees the name.
type Store struct {
	mu      sync.RWMutex
	handles map[string]*handle
}

type handle struct {
	archive *Archive
	refs    int
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{handles: make(map[string]*handle)}
}

// Install records a under name. It is a no-op returning false if name is
// already installed; the caller keeps ownership of a in that case.
func (s *Store) Install(name string, a *Archive) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.handles[name]; ok {
		return false
	}
	s.handles[name] = &handle{archive: a, refs: 1}
	return true
}

// Get returns the archive installed under name.
func (s *Store) Get(name string) (*Archive, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.handles[name]
	if !ok {
		return nil, false
	}
	return h.archive, true
}

// Acquire returns the archive installed under name with an additional
// reference. The returned release func drops it and is safe to call more
// than once.
func (s *Store) Acquire(name string) (*Archive, func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[name]
	if !ok {
		return nil, nil, false
	}
	h.refs++

	var once sync.Once
	release := func() {
		once.Do(func() { s.release(h) })
	}
	return h.archive, release, true
}

func (s *Store) release(h *handle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h.refs--
	if h.refs == 0 {
		h.archive.Close()
	}
}

// Remove uninstalls name and drops the store's reference. It reports whether
// name was installed.
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	h, ok := s.handles[name]
	if ok {
		delete(s.handles, name)
	}
	s.mu.Unlock()

	if ok {
		s.release(h)
	}
	return ok
}

// Names returns the installed repository names, sorted.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.handles))
	for name := range s.handles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close removes every installed archive.
func (s *Store) Close() error {
	for _, name := range s.Names() {
		s.Remove(name)
	}
	return nil
}
