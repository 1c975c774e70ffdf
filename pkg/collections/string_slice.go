package collections

import (
	"fmt"
	"strings"
)

// StringSlice is a repeatable string flag.
type StringSlice []string

func (i *StringSlice) String() string {
	return strings.Join(*i, ",")
}

// Set implements the flag.Value interface.
func (i *StringSlice) Set(value string) error {
	*i = append(*i, value)
	return nil
}

// NamedPath is a NAME=PATH pair given on the command line.
type NamedPath struct {
	Name string
	Path string
}

// NamedPathSlice is a repeatable NAME=PATH flag.
type NamedPathSlice []NamedPath

func (s *NamedPathSlice) String() string {
	parts := make([]string, len(*s))
	for i, np := range *s {
		parts[i] = np.Name + "=" + np.Path
	}
	return strings.Join(parts, ",")
}

// Set implements the flag.Value interface.
func (s *NamedPathSlice) Set(value string) error {
	name, path, ok := strings.Cut(value, "=")
	if !ok || name == "" || path == "" {
		return fmt.Errorf("want NAME=PATH, got %q", value)
	}
	*s = append(*s, NamedPath{Name: name, Path: path})
	return nil
}
