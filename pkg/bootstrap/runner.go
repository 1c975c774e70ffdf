package bootstrap

import (
	"bytes"
	"encoding/binary"
	"os"

	"github.com/amenzhinsky/go-memexec"
	"github.com/rs/zerolog"

	"github.com/stackb/bundleboot/pkg/procutil"
	"github.com/stackb/bundleboot/pkg/starlarkeval"
)

// Runner executes an entry script against a host.
type Runner interface {
	Run(host *Host, filename string, src []byte) error
}

// EntryRunner runs Starlark entry scripts in a fresh interpreter seeded with
// Builtins. Native executables are run from memory instead, with the host
// argument vector (minus argv[0]) passed positionally.
type EntryRunner struct {
	logger zerolog.Logger
}

// NewEntryRunner returns an EntryRunner logging to logger.
func NewEntryRunner(logger zerolog.Logger) *EntryRunner {
	return &EntryRunner{logger: logger}
}

// Run implements Runner.
func (r *EntryRunner) Run(host *Host, filename string, src []byte) error {
	if IsNativeExecutable(src) {
		return r.runNative(host, filename, src)
	}
	return r.runStarlark(host, filename, src)
}

func (r *EntryRunner) runStarlark(host *Host, filename string, src []byte) error {
	interpreter := starlarkeval.NewInterpreter(host.Finder(),
		starlarkeval.WithLogger(r.logger),
		starlarkeval.WithStdout(host.Stdout),
		starlarkeval.WithPredeclared(Builtins(host)),
	)
	r.logger.Debug().Str("entry", filename).Strs("argv", host.Argv()).Msg("executing entry script")
	return interpreter.Exec(filename, bytes.NewReader(src))
}

func (r *EntryRunner) runNative(host *Host, filename string, src []byte) error {
	exe, err := memexec.New(src)
	if err != nil {
		return err
	}
	defer exe.Close()

	var args []string
	if argv := host.Argv(); len(argv) > 1 {
		args = argv[1:]
	}
	cmd := exe.Command(args...)
	cmd.Dir = host.WorkDir
	cmd.Stdin = os.Stdin
	cmd.Stdout = host.Stdout
	cmd.Stderr = host.Stderr

	r.logger.Debug().Str("entry", filename).Strs("args", args).Msg("executing native entry")
	err = cmd.Run()

	switch code := procutil.CmdExitCode(cmd, err); {
	case code == 0:
		return nil
	case code > 0:
		return &ExitError{Code: code}
	}
	return err
}

var nativeMagic = [][]byte{
	[]byte("\x7fELF"),
	{0xfe, 0xed, 0xfa, 0xce},
	{0xfe, 0xed, 0xfa, 0xcf},
	{0xce, 0xfa, 0xed, 0xfe},
	{0xcf, 0xfa, 0xed, 0xfe},
}

// peHeaderOffset is where an MZ stub records the offset of the PE header.
const peHeaderOffset = 0x3c

// IsNativeExecutable reports whether src is an image the operating system can
// run directly: ELF, Mach-O, or PE. A "#!" line is a comment to the
// interpreter, so shebang scripts are not native.
func IsNativeExecutable(src []byte) bool {
	for _, magic := range nativeMagic {
		if bytes.HasPrefix(src, magic) {
			return true
		}
	}
	return isPE(src)
}

// isPE requires the MZ stub and a "PE\0\0" signature at e_lfanew.
func isPE(src []byte) bool {
	if !bytes.HasPrefix(src, []byte("MZ")) || len(src) < peHeaderOffset+4 {
		return false
	}
	off := binary.LittleEndian.Uint32(src[peHeaderOffset:])
	if uint64(off)+4 > uint64(len(src)) {
		return false
	}
	return bytes.Equal(src[off:off+4], []byte("PE\x00\x00"))
}
