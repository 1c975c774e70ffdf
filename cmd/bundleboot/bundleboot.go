package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/rs/zerolog"

	"github.com/stackb/bundleboot/pkg/bootstrap"
	"github.com/stackb/bundleboot/pkg/procutil"
	"github.com/stackb/bundleboot/pkg/progress"
	"github.com/stackb/bundleboot/pkg/resolver"
	"github.com/stackb/bundleboot/pkg/transport"
)

type config struct {
	bundleFile   string
	url          string
	key          string
	workDir      string
	logLevel     string
	insecure     bool
	maxRetries   int
	packageFirst bool
	// argv is handed to the entry script; argv[0] is the bundle source.
	argv []string
}

func main() {
	log.SetPrefix("bundleboot: ")
	log.SetFlags(0) // don't print timestamps

	conf, err := parseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	if err := run(conf); err != nil {
		var exitErr *bootstrap.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		log.Fatal(err)
	}
}

func parseFlags(args []string) (*config, error) {
	conf := &config{}
	fs := flag.NewFlagSet("bundleboot", flag.ContinueOnError)

	fs.StringVar(&conf.bundleFile, "bundle", "", "path of an encoded bundle")
	fs.StringVar(&conf.url, "url", "", "URL of an encoded bundle")
	fs.StringVar(&conf.key, "key", procutil.LookupEnvDefault(procutil.BUNDLEBOOT_KEY, ""), "XOR key the bundle was encoded with")
	fs.StringVar(&conf.workDir, "work_dir", "", "directory unpack dependencies are extracted into (default: current directory)")
	fs.StringVar(&conf.logLevel, "log_level", "warn", "zerolog level")
	fs.BoolVar(&conf.insecure, "insecure", false, "skip TLS certificate verification when fetching -url")
	fs.IntVar(&conf.maxRetries, "max_retries", 0, "retry a failed fetch this many times")
	fs.BoolVar(&conf.packageFirst, "package_first", false, "prefer pkg/__init__.py over pkg.py when both exist")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if (conf.bundleFile == "") == (conf.url == "") {
		return nil, fmt.Errorf("exactly one of -bundle or -url is required")
	}
	if procutil.LookupBoolEnv(procutil.BUNDLEBOOT_DEBUG, false) {
		conf.logLevel = zerolog.DebugLevel.String()
	}

	source := conf.bundleFile
	if source == "" {
		source = conf.url
	}
	conf.argv = append([]string{source}, fs.Args()...)
	return conf, nil
}

func newLogger(level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("bad -log_level: %w", err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger(), nil
}

func run(conf *config) error {
	logger, err := newLogger(conf.logLevel)
	if err != nil {
		return err
	}

	options := []bootstrap.Option{
		bootstrap.WithLogger(logger),
		bootstrap.WithWorkDir(conf.workDir),
	}
	if logger.GetLevel() <= zerolog.InfoLevel {
		options = append(options, bootstrap.WithProgress(progress.NewProgressOutput(os.Stderr)))
	}
	if conf.packageFirst {
		options = append(options, bootstrap.WithResolverOptions(resolver.WithPackageFirst()))
	}

	if conf.bundleFile != "" {
		return bootstrap.RunLocal(conf.bundleFile, conf.key, conf.argv, options...)
	}

	fetcher := transport.NewFetcher(
		transport.WithInsecureSkipVerify(conf.insecure),
		transport.WithMaxRetries(conf.maxRetries),
		transport.WithLogger(logger),
	)
	return bootstrap.RunRemote(context.Background(), fetcher, conf.url, conf.key, conf.argv, options...)
}
