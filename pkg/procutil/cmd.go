package procutil

import (
	"errors"
	"os/exec"
	"syscall"
)

// CmdExitCode returns the exit status of a command that has been run. It is
// -1 when the command never started.
func CmdExitCode(cmd *exec.Cmd, err error) int {
	if err == nil {
		if cmd.ProcessState == nil {
			return -1
		}
		// success, exitCode should be 0 if go is ok
		ws := cmd.ProcessState.Sys().(syscall.WaitStatus)
		return ws.ExitStatus()
	}

	// try to get the exit code
	var exitError *exec.ExitError
	if errors.As(err, &exitError) {
		ws := exitError.Sys().(syscall.WaitStatus)
		return ws.ExitStatus()
	}

	// This will happen if the executable could not be started at all (not
	// found, not executable), so there is no status to report.
	return -1
}
