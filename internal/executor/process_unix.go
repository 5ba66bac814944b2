//go:build unix

package executor

import (
	"os/exec"

	"golang.org/x/sys/unix"
)

// setProcessGroup makes the child the leader of a new process group, so
// keyboard signals the shell forwards reach only that job.
func setProcessGroup(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &unix.SysProcAttr{}
	}
	cmd.SysProcAttr.Setpgid = true
}

// killProcessGroup sends sig to every process in the group led by pgid.
func killProcessGroup(pgid int, sig unix.Signal) error {
	return unix.Kill(-pgid, sig)
}
