package bootstrap

import (
	"fmt"
	"os"
	"path/filepath"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/stackb/bundleboot/pkg/xor"
)

// Builtins returns the helpers predeclared for entry scripts and the modules
// they load:
//
//	sys.argv, sys.path  the host argument vector and search path
//	sys.exit([code])    stop the script with an exit status
//	getcwd()            the working directory
//	read_data(path)     raw bytes behind a synthetic module path
//	write_file(path, data)
//	xor(data, key)      the bundle transform
func Builtins(host *Host) starlark.StringDict {
	return starlark.StringDict{
		"sys":        sysModule(host),
		"getcwd":     starlark.NewBuiltin("getcwd", builtinGetcwd(host)),
		"read_data":  starlark.NewBuiltin("read_data", builtinReadData(host)),
		"write_file": starlark.NewBuiltin("write_file", builtinWriteFile(host)),
		"xor":        starlark.NewBuiltin("xor", builtinXor),
	}
}

func stringList(values []string) *starlark.List {
	elems := make([]starlark.Value, len(values))
	for i, v := range values {
		elems[i] = starlark.String(v)
	}
	return starlark.NewList(elems)
}

func sysModule(host *Host) *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "sys",
		Members: starlark.StringDict{
			"argv": stringList(host.Argv()),
			"path": stringList(host.SearchPath.Dirs()),
			"exit": starlark.NewBuiltin("sys.exit", builtinExit),
		},
	}
}

func builtinExit(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	code := 0
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0, &code); err != nil {
		return nil, err
	}
	return nil, &ExitError{Code: code}
}

func builtinGetcwd(host *Host) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 0); err != nil {
			return nil, err
		}
		return starlark.String(host.WorkDir), nil
	}
}

func builtinReadData(host *Host) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var path string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &path); err != nil {
			return nil, err
		}
		data, err := host.Registry.ReadRaw(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return starlark.Bytes(data), nil
	}
}

func builtinWriteFile(host *Host) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var path string
		var content starlark.Value
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &path, &content); err != nil {
			return nil, err
		}
		data, ok := starlark.AsString(content)
		if !ok {
			if bs, isBytes := content.(starlark.Bytes); isBytes {
				data = string(bs)
			} else {
				return nil, fmt.Errorf("%s: want string or bytes, got %s", b.Name(), content.Type())
			}
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(host.WorkDir, path)
		}
		if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		return starlark.None, nil
	}
}

func builtinXor(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var data starlark.Value
	var key string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &data, &key); err != nil {
		return nil, err
	}
	switch v := data.(type) {
	case starlark.String:
		return starlark.String(xor.String([]byte(v), key)), nil
	case starlark.Bytes:
		return starlark.Bytes(xor.String([]byte(v), key)), nil
	}
	return nil, fmt.Errorf("%s: want string or bytes, got %s", b.Name(), data.Type())
}
