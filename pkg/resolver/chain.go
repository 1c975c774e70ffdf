package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// Chain implements Finder over a list of finders. A finder that reports
// ErrNotFound passes the request to the next one; any other error stops the
// search.
type Chain struct {
	chain []Finder
}

// NewChain returns a Chain consulting finders in the given order.
func NewChain(chain ...Finder) *Chain {
	return &Chain{chain: chain}
}

// Name implements Finder.
func (c *Chain) Name() string {
	names := make([]string, len(c.chain))
	for i, f := range c.chain {
		names[i] = f.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Locate implements Finder.
func (c *Chain) Locate(fullname string) (*Location, error) {
	for _, next := range c.chain {
		loc, err := next.Locate(fullname)
		if err == nil {
			return loc, nil
		}
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, fullname)
}

// LoadSource implements Finder.
func (c *Chain) LoadSource(fullname string) (*Source, error) {
	for _, next := range c.chain {
		src, err := next.LoadSource(fullname)
		if err == nil {
			return src, nil
		}
		if errors.Is(err, ErrNotFound) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, fullname)
}
