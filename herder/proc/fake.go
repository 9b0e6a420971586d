package proc

import (
	"sync"
	"syscall"
	"time"

	"github.com/pkg/errors"
)

// SignalRecord is a signal observed by a FakeProcess and when it arrived.
type SignalRecord struct {
	Sig syscall.Signal
	At  time.Time
}

// FakeProcess is a scriptable Process used for testing. A FakeProcess starts
// out alive with no children.
type FakeProcess struct {
	pid int

	mu       sync.Mutex
	alive    bool
	children int
	sigErr   error
	log      []SignalRecord
}

var _ Process = (*FakeProcess)(nil)

// NewFakeProcess creates an alive fake process with the given PID.
func NewFakeProcess(pid int) *FakeProcess {
	return &FakeProcess{pid: pid, alive: true}
}

func (fake *FakeProcess) PID() int { return fake.pid }

func (fake *FakeProcess) Alive() bool {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	return fake.alive
}

func (fake *FakeProcess) ChildCount() (int, error) {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	return fake.children, nil
}

func (fake *FakeProcess) Signal(sig syscall.Signal) error {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	if !fake.alive {
		return errors.New("process already finished")
	}

	fake.log = append(fake.log, SignalRecord{Sig: sig, At: time.Now()})
	return fake.sigErr
}

func (fake *FakeProcess) Kill() error {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	fake.log = append(fake.log, SignalRecord{Sig: syscall.SIGKILL, At: time.Now()})
	fake.alive = false
	return nil
}

// SetAlive overrides the liveness reported by Alive.
func (fake *FakeProcess) SetAlive(alive bool) {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	fake.alive = alive
}

// SetChildren overrides the child count reported by ChildCount.
func (fake *FakeProcess) SetChildren(n int) {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	fake.children = n
}

// FailSignals makes every subsequent Signal call return err.
func (fake *FakeProcess) FailSignals(err error) {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	fake.sigErr = err
}

// Signals returns the signals received so far, in order.
func (fake *FakeProcess) Signals() []syscall.Signal {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	sigs := make([]syscall.Signal, len(fake.log))
	for i, rec := range fake.log {
		sigs[i] = rec.Sig
	}

	return sigs
}

// SignalLog returns the full signal log, including arrival times.
func (fake *FakeProcess) SignalLog() []SignalRecord {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	log := make([]SignalRecord, len(fake.log))
	copy(log, fake.log)
	return log
}

// FakeForeground is a scriptable Foreground used for testing spawn behavior.
type FakeForeground struct {
	pid  int
	done chan error

	mu         sync.Mutex
	terminated bool
}

var _ Foreground = (*FakeForeground)(nil)

// NewFakeForeground creates a fake foreground command that has not exited.
func NewFakeForeground(pid int) *FakeForeground {
	return &FakeForeground{pid: pid, done: make(chan error, 1)}
}

func (fake *FakeForeground) PID() int { return fake.pid }

func (fake *FakeForeground) Done() <-chan error { return fake.done }

func (fake *FakeForeground) Terminate() error {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	fake.terminated = true
	return nil
}

// Exit makes the fake foreground command exit with the given error.
func (fake *FakeForeground) Exit(err error) {
	fake.done <- err
}

// Terminated reports whether Terminate was called.
func (fake *FakeForeground) Terminated() bool {
	fake.mu.Lock()
	defer fake.mu.Unlock()

	return fake.terminated
}
