package resolver

import (
	"errors"
	"fmt"
	"sync"

	"github.com/stackb/bundleboot/pkg/archive"
	"github.com/stackb/bundleboot/pkg/collections"
)

// PathFinder is ordinary, non-archive resolution: an ordered search path of
// directories, each served by a Resolver over the directory tree. Synthetic
// paths produced here are real file paths.
type PathFinder struct {
	options []Option

	mu        sync.RWMutex
	dirs      []string
	resolvers map[string]*Resolver
}

// NewPathFinder returns a PathFinder searching dirs in order.
func NewPathFinder(dirs []string, options ...Option) *PathFinder {
	p := &PathFinder{
		options:   options,
		resolvers: make(map[string]*Resolver),
	}
	for _, dir := range dirs {
		p.Append(dir)
	}
	return p
}

// NewDirResolver returns a Resolver whose repository is the directory root.
func NewDirResolver(root string, options ...Option) *Resolver {
	return New(root, archive.OpenDir(root), options...)
}

// Name implements Finder.
func (p *PathFinder) Name() string {
	return "path"
}

// Prepend puts dir at the front of the search path.
func (p *PathFinder) Prepend(dir string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirs = collections.SliceInsertAt(p.dirs, 0, dir)
	p.bind(dir)
}

// Append puts dir at the end of the search path.
func (p *PathFinder) Append(dir string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dirs = append(p.dirs, dir)
	p.bind(dir)
}

func (p *PathFinder) bind(dir string) {
	if _, ok := p.resolvers[dir]; !ok {
		p.resolvers[dir] = NewDirResolver(dir, p.options...)
	}
}

// Dirs returns the search path.
func (p *PathFinder) Dirs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	dirs := make([]string, len(p.dirs))
	copy(dirs, p.dirs)
	return dirs
}

func (p *PathFinder) finders() []Finder {
	p.mu.RLock()
	defer p.mu.RUnlock()
	finders := make([]Finder, len(p.dirs))
	for i, dir := range p.dirs {
		finders[i] = p.resolvers[dir]
	}
	return finders
}

// Locate implements Finder.
func (p *PathFinder) Locate(fullname string) (*Location, error) {
	loc, err := NewChain(p.finders()...).Locate(fullname)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s on search path %v", ErrNotFound, fullname, p.Dirs())
	}
	return loc, err
}

// LoadSource implements Finder.
func (p *PathFinder) LoadSource(fullname string) (*Source, error) {
	src, err := NewChain(p.finders()...).LoadSource(fullname)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("%w: %s on search path %v", ErrNotFound, fullname, p.Dirs())
	}
	return src, err
}
