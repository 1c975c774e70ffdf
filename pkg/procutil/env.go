package procutil

import (
	"os"
	"strings"
)

// EnvVar names an environment variable read by the binaries.
type EnvVar string

const (
	// BUNDLEBOOT_KEY is the default bundle decode key.
	BUNDLEBOOT_KEY = EnvVar("BUNDLEBOOT_KEY")
	// BUNDLEBOOT_DEBUG turns on debug logging when truthy.
	BUNDLEBOOT_DEBUG = EnvVar("BUNDLEBOOT_DEBUG")
)

// LookupBoolEnv parses name as true/1 or false/0, returning defaultValue when
// it is unset or unparseable.
func LookupBoolEnv(name EnvVar, defaultValue bool) bool {
	if val, ok := os.LookupEnv(string(name)); ok {
		switch strings.ToLower(val) {
		case "true", "1":
			return true
		case "false", "0":
			return false
		}
	}
	return defaultValue
}

// LookupEnvDefault returns the value of name, or defaultValue when it is
// unset or empty.
func LookupEnvDefault(name EnvVar, defaultValue string) string {
	if val, ok := os.LookupEnv(string(name)); ok && val != "" {
		return val
	}
	return defaultValue
}
