package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/rs/zerolog"

	"github.com/stackb/bundleboot/pkg/archive"
	"github.com/stackb/bundleboot/pkg/bootstrap"
	"github.com/stackb/bundleboot/pkg/collections"
	"github.com/stackb/bundleboot/pkg/procutil"
	"github.com/stackb/bundleboot/pkg/xor"
)

type config struct {
	dir          string
	entry        string
	manifestFile string
	key          string
	outputFile   string
	load         collections.NamedPathSlice
	unpack       collections.NamedPathSlice
	logger       zerolog.Logger
}

func main() {
	log.SetPrefix("bundlepack: ")
	log.SetFlags(0) // don't print timestamps

	conf, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}
	if procutil.LookupBoolEnv(procutil.BUNDLEBOOT_DEBUG, false) {
		conf.logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}

	if err := run(conf); err != nil {
		log.Fatal(err)
	}
}

func parseFlags(args []string) (*config, error) {
	conf := &config{logger: zerolog.Nop()}
	fs := flag.NewFlagSet("bundlepack", flag.ContinueOnError)

	fs.StringVar(&conf.dir, "dir", "", "directory whose files become top-level bundle entries")
	fs.StringVar(&conf.entry, "entry", "main.py", "entry script path inside the bundle")
	fs.StringVar(&conf.manifestFile, "manifest", "", "use this manifest file instead of generating one")
	fs.StringVar(&conf.key, "key", procutil.LookupEnvDefault(procutil.BUNDLEBOOT_KEY, ""), "XOR key used to encode the bundle")
	fs.StringVar(&conf.outputFile, "out", "", "the output file to write")
	fs.Var(&conf.load, "load", "NAME=DIR of a load dependency (repeatable)")
	fs.Var(&conf.unpack, "unpack", "NAME=DIR of an unpack dependency (repeatable)")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if conf.outputFile == "" {
		return nil, fmt.Errorf("-out is required")
	}
	return conf, nil
}

func run(conf *config) error {
	manifest, err := buildManifest(conf)
	if err != nil {
		return err
	}
	manifestData, err := manifest.JSON()
	if err != nil {
		return err
	}

	b := archive.NewBuilder()
	if err := b.Add(bootstrap.ManifestJSON, manifestData); err != nil {
		return err
	}
	if conf.dir != "" {
		if err := collections.LogFiles(conf.logger, conf.dir); err != nil {
			return err
		}
		if err := b.AddDir(conf.dir, ""); err != nil {
			return fmt.Errorf("adding %s: %w", conf.dir, err)
		}
	}
	for _, deps := range []collections.NamedPathSlice{conf.load, conf.unpack} {
		for _, dep := range deps {
			data, err := packDir(dep.Path)
			if err != nil {
				return fmt.Errorf("packing %s: %w", dep.Name, err)
			}
			if err := b.Add(dep.Name+archive.Suffix, data); err != nil {
				return err
			}
		}
	}

	data, err := b.Bytes()
	if err != nil {
		return err
	}
	if err := os.WriteFile(conf.outputFile, xor.String(data, conf.key), 0o644); err != nil {
		return err
	}

	sum, err := collections.FileSha256(conf.outputFile)
	if err != nil {
		return err
	}
	conf.logger.Info().
		Str("out", conf.outputFile).
		Str("sha256", sum).
		Str("entry", manifest.EntryScriptPath).
		Strs("load", manifest.LoadDependencies).
		Strs("unpack", manifest.UnpackDependencies).
		Msg("bundle written")
	return nil
}

func buildManifest(conf *config) (*bootstrap.Manifest, error) {
	if conf.manifestFile != "" {
		data, err := os.ReadFile(conf.manifestFile)
		if err != nil {
			return nil, fmt.Errorf("read manifest: %w", err)
		}
		return bootstrap.ParseManifest(conf.manifestFile, data)
	}
	m := &bootstrap.Manifest{
		EntryScriptPath:    conf.entry,
		LoadDependencies:   []string{},
		UnpackDependencies: []string{},
	}
	for _, dep := range conf.load {
		m.LoadDependencies = append(m.LoadDependencies, dep.Name)
	}
	for _, dep := range conf.unpack {
		m.UnpackDependencies = append(m.UnpackDependencies, dep.Name)
	}
	return m, nil
}

func packDir(dir string) ([]byte, error) {
	b := archive.NewBuilder()
	if err := b.AddDir(dir, ""); err != nil {
		return nil, err
	}
	return b.Bytes()
}
