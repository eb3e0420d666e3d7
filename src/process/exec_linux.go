package process

import (
	"os/exec"
	"syscall"
)

// ExecCommand creates an external command.
// We set Pdeathsig to try to make sure commands don't outlive us if we die, and put each one
// in its own process group so mix and the BEAM it spawns can be signalled together.
// N.B. This does not start the command - the caller must handle that (or use
//      ExecWithTimeout which is the higher-level interface).
func (e *Executor) ExecCommand(command string, args ...string) *exec.Cmd {
	cmd := exec.Command(command, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Pdeathsig: syscall.SIGHUP,
		Setpgid:   true,
	}
	return cmd
}
