package proc

import (
	"os"
	"os/exec"
	"syscall"

	"github.com/pkg/errors"
)

// Foreground is a handle on the not-yet-daemonized server command: the
// process we launched directly, which is expected to fork a detached master
// and then exit.
type Foreground interface {
	PID() int
	// Done is closed-over with the command's exit error once it exits.
	Done() <-chan error
	Terminate() error
}

type foreground struct {
	cmd  *exec.Cmd
	done chan error
}

var _ Foreground = (*foreground)(nil)

// Start launches argv as a foreground command with inherited stdio, so that
// the server's startup errors land on the operator's terminal.
func Start(argv []string) (Foreground, error) {
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	fg := &foreground{
		cmd:  cmd,
		done: make(chan error, 1),
	}

	go func() { fg.done <- cmd.Wait() }()

	return fg, nil
}

// IsNotFound reports whether err from Start means the executable could not be
// found on the PATH.
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound)
}

func (fg *foreground) PID() int {
	return fg.cmd.Process.Pid
}

func (fg *foreground) Done() <-chan error {
	return fg.done
}

func (fg *foreground) Terminate() error {
	return fg.cmd.Process.Signal(syscall.SIGTERM)
}
