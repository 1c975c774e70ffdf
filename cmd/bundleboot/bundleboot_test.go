package main

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stackb/bundleboot/pkg/testutil"
)

var errNoSource = errors.New("exactly one of -bundle or -url is required")

func TestParseFlags(t *testing.T) {
	for name, tc := range map[string]struct {
		args     []string
		env      map[string]string
		wantArgv []string
		wantKey  string
		wantLvl  string
		wantErr  error
	}{
		"degenerate": {
			wantErr: errNoSource,
		},
		"both sources": {
			args:    []string{"-bundle", "b.bin", "-url", "https://example.com/b.bin"},
			wantErr: errNoSource,
		},
		"local": {
			args:     []string{"-bundle", "b.bin", "-key", "123", "alpha", "beta"},
			wantArgv: []string{"b.bin", "alpha", "beta"},
			wantKey:  "123",
			wantLvl:  "warn",
		},
		"remote with env key": {
			args:     []string{"-url", "https://example.com/b.bin"},
			env:      map[string]string{"BUNDLEBOOT_KEY": "envkey", "BUNDLEBOOT_DEBUG": "1"},
			wantArgv: []string{"https://example.com/b.bin"},
			wantKey:  "envkey",
			wantLvl:  "debug",
		},
	} {
		t.Run(name, func(t *testing.T) {
			t.Setenv("BUNDLEBOOT_KEY", "")
			t.Setenv("BUNDLEBOOT_DEBUG", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}

			conf, err := parseFlags(tc.args)
			if testutil.ExpectError(t, tc.wantErr, err) {
				return
			}
			if diff := cmp.Diff(tc.wantArgv, conf.argv); diff != "" {
				t.Errorf("argv (-want +got):\n%s", diff)
			}
			if conf.key != tc.wantKey {
				t.Errorf("want key %q, got %q", tc.wantKey, conf.key)
			}
			if conf.logLevel != tc.wantLvl {
				t.Errorf("want log level %q, got %q", tc.wantLvl, conf.logLevel)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger("chatty"); err == nil {
		t.Error("want error for an unknown level")
	}
	logger, err := newLogger("info")
	if err != nil {
		t.Fatal(err)
	}
	if logger.GetLevel().String() != "info" {
		t.Errorf("want info, got %s", logger.GetLevel())
	}
}
