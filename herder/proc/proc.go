// Package proc provides an abstraction around operating system process
// inspection for easier testing. The real implementation is backed by
// gopsutil, which can inspect and signal processes the herder did not itself
// spawn — the daemonized masters are never our children.
package proc

import (
	"syscall"

	"github.com/pkg/errors"
	"github.com/shirou/gopsutil/v4/process"
)

// Process describes a live system process tracked by its PID.
type Process interface {
	PID() int
	Alive() bool
	ChildCount() (int, error)
	Signal(sig syscall.Signal) error
	Kill() error
}

type gopsProcess struct {
	p *process.Process
}

var _ Process = gopsProcess{}

// Find resolves a PID to a Process. An error is returned if no process with
// that PID currently exists.
func Find(pid int) (Process, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, errors.Wrapf(err, "no process with PID %d", pid)
	}

	return gopsProcess{p}, nil
}

func (proc gopsProcess) PID() int {
	return int(proc.p.Pid)
}

// Alive reports whether the process still exists. Errors from the underlying
// inspection are treated as "not alive", since a process we cannot inspect is
// one we cannot herd either.
func (proc gopsProcess) Alive() bool {
	running, err := proc.p.IsRunning()
	return err == nil && running
}

// ChildCount returns the number of direct children. A process with no
// children is not an error.
func (proc gopsProcess) ChildCount() (int, error) {
	children, err := proc.p.Children()
	if err != nil {
		if errors.Is(err, process.ErrorNoChildren) {
			return 0, nil
		}

		return 0, errors.Wrapf(err, "failed to list children of PID %d", proc.p.Pid)
	}

	return len(children), nil
}

func (proc gopsProcess) Signal(sig syscall.Signal) error {
	return proc.p.SendSignal(sig)
}

func (proc gopsProcess) Kill() error {
	return proc.p.Kill()
}
