package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/stackb/bundleboot/pkg/archive"
	"github.com/stackb/bundleboot/pkg/bootstrap"
	"github.com/stackb/bundleboot/pkg/collections"
	"github.com/stackb/bundleboot/pkg/procutil"
	"github.com/stackb/bundleboot/pkg/resolver"
	"github.com/stackb/bundleboot/pkg/xor"
)

type config struct {
	bundleFile string
	key        string
	outputFile string
	globs      collections.StringSlice
}

// Output is the index of one bundle.
type Output struct {
	Sha256       string              `json:"sha256"`
	Manifest     *bootstrap.Manifest `json:"manifest"`
	Repositories []*Repository       `json:"repositories,omitempty"`
}

// Repository describes one nested archive of the bundle.
type Repository struct {
	Name string `json:"name"`
	// Kind is "load" or "unpack".
	Kind string `json:"kind"`
	// Size is the byte length of the nested archive.
	Size    int64    `json:"size"`
	Entries int      `json:"entries"`
	Modules []string `json:"modules,omitempty"`
	// Files are the entries matching any -glob pattern.
	Files []string `json:"files,omitempty"`
}

func main() {
	log.SetPrefix("bundleindex: ")
	log.SetFlags(0) // don't print timestamps

	conf := config{}
	fs := flag.NewFlagSet("bundleindex", flag.ContinueOnError)

	fs.StringVar(&conf.bundleFile, "bundle", "", "the encoded bundle to index")
	fs.StringVar(&conf.key, "key", procutil.LookupEnvDefault(procutil.BUNDLEBOOT_KEY, ""), "XOR key the bundle was encoded with")
	fs.StringVar(&conf.outputFile, "output_file", "", "the output file to write (default: stdout)")
	fs.Var(&conf.globs, "glob", "also list entries matching this doublestar pattern (repeatable)")

	if err := fs.Parse(os.Args[1:]); err != nil {
		log.Fatal(err)
	}

	if err := run(&conf); err != nil {
		log.Fatal(err)
	}
}

func run(conf *config) error {
	data, err := os.ReadFile(conf.bundleFile)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	out, err := index(xor.String(data, conf.key), conf.globs)
	if err != nil {
		return err
	}
	return writeOutputFile(conf.outputFile, out)
}

func index(bundle []byte, globs []string) (*Output, error) {
	a, err := archive.Open(bundle)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", bootstrap.ErrMalformedBundle, err)
	}
	defer a.Close()

	manifest, _, err := bootstrap.ReadManifest(a)
	if err != nil {
		return nil, err
	}
	out := &Output{
		Sha256:   collections.BytesSha256(bundle),
		Manifest: manifest,
	}

	for _, dep := range []struct {
		kind  string
		names []string
	}{
		{"load", manifest.LoadDependencies},
		{"unpack", manifest.UnpackDependencies},
	} {
		for _, name := range dep.names {
			repo, err := indexRepository(a, name, dep.kind, globs)
			if err != nil {
				return nil, fmt.Errorf("%s %s: %w", dep.kind, name, err)
			}
			out.Repositories = append(out.Repositories, repo)
		}
	}
	return out, nil
}

func indexRepository(a *archive.Archive, name, kind string, globs []string) (*Repository, error) {
	data, err := a.ReadFile(name + archive.Suffix)
	if err != nil {
		return nil, err
	}
	nested, err := archive.Open(data)
	if err != nil {
		return nil, err
	}
	defer nested.Close()

	repo := &Repository{
		Name:    name,
		Kind:    kind,
		Size:    nested.Size(),
		Entries: nested.Len(),
		Modules: resolver.New(name, nested).Modules(),
	}
	seen := make(map[string]bool)
	for _, pattern := range globs {
		matches, err := nested.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				repo.Files = append(repo.Files, m)
			}
		}
	}
	return repo, nil
}

func writeOutputFile(filename string, out *Output) error {
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	if filename == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(filename, data, 0o644)
}
