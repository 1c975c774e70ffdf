package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/stackb/bundleboot/pkg/xor"
)

// Fetcher retrieves bundle bytes from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// RunLocal decodes the bundle file at filename with key and runs it.
func RunLocal(filename, key string, argv []string, options ...Option) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading bundle %s: %w", filename, err)
	}
	return New(options...).Run(xor.String(data, key), argv)
}

// RunRemote fetches the bundle at url, decodes it with key and runs it.
func RunRemote(ctx context.Context, fetcher Fetcher, url, key string, argv []string, options ...Option) error {
	data, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("fetching bundle %s: %w", url, err)
	}
	return New(options...).Run(xor.String(data, key), argv)
}
