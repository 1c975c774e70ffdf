// Package resolver maps dotted module names onto entries of an archive (or a
// directory) and keeps the ordered set of resolvers consulted by the
// interpreter's load hook.
package resolver

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/rs/zerolog"
)

const (
	// ModuleSuffix is appended to a name's path to form a plain module entry.
	ModuleSuffix = ".py"
	// PackageInit is the entry that marks a directory as a package.
	PackageInit = "__init__.py"

	modulePattern = "**/*" + ModuleSuffix
)

// Archive is the read surface a Resolver needs from its repository.
type Archive interface {
	Has(name string) bool
	ReadFile(name string) ([]byte, error)
	Names() []string
}

// Location identifies the archive entry backing a module name.
type Location struct {
	// Repository is the name of the repository holding the entry.
	Repository string
	// Fullname is the dotted module name that was looked up.
	Fullname string
	// Leaf is the final segment of Fullname.
	Leaf string
	// RelPath is the entry path inside the repository.
	RelPath string
	// IsPackage is true when RelPath is a package init entry.
	IsPackage bool
}

// Path is the synthetic file identity of the module: repository/relpath.
// No filesystem entry need exist for it.
func (l *Location) Path() string {
	return l.Repository + "/" + l.RelPath
}

// Source is a located module together with its decoded text.
type Source struct {
	Location
	Text string
}

// Finder resolves dotted names to module sources.
type Finder interface {
	// Name identifies the finder in logs and errors.
	Name() string
	// Locate finds the entry for fullname or fails with ErrNotFound.
	Locate(fullname string) (*Location, error)
	// LoadSource locates fullname and returns its decoded text.
	LoadSource(fullname string) (*Source, error)
}

type candidate struct {
	suffix    string
	isPackage bool
}

var (
	moduleFirst  = []candidate{{ModuleSuffix, false}, {"/" + PackageInit, true}}
	packageFirst = []candidate{{"/" + PackageInit, true}, {ModuleSuffix, false}}
)

// Option configures a Resolver.
type Option func(*Resolver) *Resolver

// WithLogger sets the resolver logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Resolver) *Resolver {
		r.logger = logger
		return r
	}
}

// WithPackageFirst probes the package form of a name before the plain module
// form. By default a plain module wins when both exist.
func WithPackageFirst() Option {
	return func(r *Resolver) *Resolver {
		r.order = packageFirst
		return r
	}
}

// Resolver is the index over one repository. Apart from its source cache it
// holds no mutable state.
type Resolver struct {
	repo    string
	archive Archive
	order   []candidate
	logger  zerolog.Logger

	mu    sync.Mutex
	cache map[string]string
}

// New binds a Resolver to the archive of the named repository.
func New(repo string, archive Archive, options ...Option) *Resolver {
	r := &Resolver{
		repo:    repo,
		archive: archive,
		order:   moduleFirst,
		logger:  zerolog.Nop(),
		cache:   make(map[string]string),
	}
	for _, opt := range options {
		r = opt(r)
	}
	return r
}

// Name implements Finder; it is the repository name.
func (r *Resolver) Name() string {
	return r.repo
}

// Locate implements Finder. The dotted name is split on '.', the segments are
// joined with '/' and two entries are probed in order: base+".py" (a plain
// module) and base+"/__init__.py" (a package).
func (r *Resolver) Locate(fullname string) (*Location, error) {
	parts := strings.Split(fullname, ".")
	for _, part := range parts {
		if part == "" {
			return nil, fmt.Errorf("%w: invalid name %q in repository %q", ErrNotFound, fullname, r.repo)
		}
	}
	base := strings.Join(parts, "/")

	for _, c := range r.order {
		relpath := base + c.suffix
		if r.archive.Has(relpath) {
			return &Location{
				Repository: r.repo,
				Fullname:   fullname,
				Leaf:       parts[len(parts)-1],
				RelPath:    relpath,
				IsPackage:  c.isPackage,
			}, nil
		}
	}

	return nil, fmt.Errorf("%w: unable to locate module %s in the %s repository", ErrNotFound, fullname, r.repo)
}

// LoadSource implements Finder. Decoded text is memoized by entry path, so a
// given entry is read from the archive at most once.
func (r *Resolver) LoadSource(fullname string) (*Source, error) {
	loc, err := r.Locate(fullname)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if text, ok := r.cache[loc.RelPath]; ok {
		return &Source{Location: *loc, Text: text}, nil
	}

	data, err := r.archive.ReadFile(loc.RelPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, loc.Path(), err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("%w: %s: not valid UTF-8", ErrSourceUnavailable, loc.Path())
	}
	text := NormalizeNewlines(string(data))
	r.cache[loc.RelPath] = text

	r.logger.Debug().
		Str("repository", r.repo).
		Str("module", fullname).
		Str("path", loc.RelPath).
		Bool("package", loc.IsPackage).
		Msg("source loaded")

	return &Source{Location: *loc, Text: text}, nil
}

// NormalizeNewlines rewrites "\r\n" and bare "\r" line endings to "\n".
func NormalizeNewlines(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.ReplaceAll(text, "\r", "\n")
}

// IsPackage reports whether fullname resolves to a package. It re-derives
// the answer from the archive and ignores the source cache.
func (r *Resolver) IsPackage(fullname string) (bool, error) {
	loc, err := r.Locate(fullname)
	if err != nil {
		return false, err
	}
	return loc.IsPackage, nil
}

// ReadRaw returns the bytes backing a synthetic path produced by
// Location.Path.
func (r *Resolver) ReadRaw(syntheticPath string) ([]byte, error) {
	prefix := r.repo + "/"
	if !strings.HasPrefix(syntheticPath, prefix) {
		return nil, fmt.Errorf("%w: %q does not start with %q", ErrPathOutsideRepository, syntheticPath, prefix)
	}
	relpath := strings.TrimPrefix(syntheticPath, prefix)
	if !r.archive.Has(relpath) {
		return nil, fmt.Errorf("%w: path %q in repository %q", ErrNotFound, relpath, r.repo)
	}
	return r.archive.ReadFile(relpath)
}

// Modules lists the dotted names this resolver can serve, sorted.
func (r *Resolver) Modules() []string {
	seen := make(map[string]bool)
	for _, name := range r.archive.Names() {
		if ok, _ := doublestar.Match(modulePattern, name); !ok {
			continue
		}
		var modpath string
		if path.Base(name) == PackageInit {
			modpath = path.Dir(name)
			if modpath == "." {
				continue
			}
		} else {
			modpath = strings.TrimSuffix(name, ModuleSuffix)
		}
		fullname := strings.ReplaceAll(modpath, "/", ".")
		if _, err := r.Locate(fullname); err == nil {
			seen[fullname] = true
		}
	}

	modules := make([]string, 0, len(seen))
	for name := range seen {
		modules = append(modules, name)
	}
	sort.Strings(modules)
	return modules
}

// cached reports the number of memoized sources.
func (r *Resolver) cached() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cache)
}
