//go:build !unix

package os

import (
	"os"
	"os/exec"
)

func setProcessGroup(cmd *exec.Cmd) {}

func terminate(p *os.Process) error {
	return p.Kill()
}
