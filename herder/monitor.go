package herder

import (
	"context"
	"time"

	"github.com/abretaud/unicornherder/herder/proc"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Loop is the monitor loop. It tracks the master through the pidfile,
// notices master replacements and runs the handover for requested reloads,
// and exits once the master is gone.
//
// The returned status is meant to become the process exit status: 0 when the
// shutdown was operator-initiated, 1 when the master died unexpectedly. A
// pidfile that stays unreadable past the pidfile timeout outside of a
// shutdown is returned as an error instead.
func (h *Herder) Loop(ctx context.Context) (int, error) {
	w := TryWatchPidfile(ctx, string(h.pidfile), h.j)

	for {
		ok, err := h.observe()
		if err != nil {
			return 0, err
		}

		if !ok {
			if h.terminating.Load() {
				return 0, nil
			}

			var pid int
			if m := h.currentMaster(); m != nil {
				pid = m.PID()
			}

			h.j.Write(&EventDied{PID: pid})
			return 1, nil
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(h.PollInterval):
		case <-w.Changed:
			// The pidfile just moved under us; re-read it right away.
		}
	}
}

// observe runs one monitor iteration. It reports false once the master is
// gone, which ends the loop.
func (h *Herder) observe() (bool, error) {
	old := h.currentMaster()

	pid, err := h.awaitPid()
	if err != nil {
		return false, err
	}
	if pid == 0 {
		return false, nil
	}

	master, err := h.findProc(pid)
	if err != nil || !master.Alive() {
		// The pidfile names a corpse.
		return false, nil
	}

	h.setMaster(master)

	if old == nil {
		h.registry.Add(master.PID())
		h.j.Write(&EventBooted{PID: master.PID()})
		return true, nil
	}

	if old.PID() != master.PID() {
		// The server has forked a new master.
		h.registry.Add(master.PID())
		h.j.Write(&EventMasterChanged{OldPID: old.PID(), NewPID: master.PID()})

		if h.reloading.Load() {
			h.waitForWorkers(master, old)
			h.killOldMaster(old)
			h.reloading.Store(false)
		}

		// Even an unrequested replacement transfers kill-responsibility;
		// the old master is no longer ours to reap.
		h.registry.Remove(old.PID())
	}

	return true, nil
}

// awaitPid reads the pidfile, retrying failed reads until the pidfile
// timeout. While terminating, a read failure is the master disappearing on
// purpose, reported as PID 0 rather than an error.
func (h *Herder) awaitPid() (int, error) {
	dl := DeadlineAfter(h.cfg.PidfileTimeout)

	for {
		pid, err := h.pidfile.Read()
		if err == nil {
			return pid, nil
		}

		if h.terminating.Load() {
			return 0, nil
		}

		if dl.Exceeded() {
			return 0, errors.Wrapf(err,
				"failed to read pidfile %s after %s, aborting", h.pidfile, dl.Elapsed().Round(time.Second))
		}

		time.Sleep(h.RetryInterval)
	}
}

// waitForWorkers blocks until the new master has as many children as the old
// one had workers, then holds for the overlap window with both masters
// serving. Timing out is not an error: fewer workers than before may be an
// intentional scale-down, and a stuck pool must not block the handover
// forever.
func (h *Herder) waitForWorkers(newMaster, oldMaster proc.Process) {
	current, err := oldMaster.ChildCount()
	if err != nil {
		h.j.Write(&EventWarning{
			Component: "monitor",
			Error:     errors.Wrap(err, "failed to count old master's children").Error(),
		})
	}

	// The new master is still counted among the old one's children, hence
	// the subtraction. We hope for the same number of workers; failing that
	// we will accept one.
	expected := current - 1
	if expected < 1 {
		expected = 1
	}

	dl := DeadlineAfter(h.cfg.MaxWorkerWait)

	for {
		n, err := newMaster.ChildCount()
		if err == nil && n >= expected {
			h.j.Write(&EventWorkersRecovered{PID: newMaster.PID(), Children: n})
			time.Sleep(h.cfg.Overlap)
			return
		}

		if dl.Exceeded() {
			h.j.Write(&EventWorkerWaitTimeout{PID: newMaster.PID(), Expected: expected})
			return
		}

		time.Sleep(h.WorkerPollInterval)
	}
}

// killOldMaster retires the old master. Unicorn treats QUIT as graceful and
// TERM as immediate; gunicorn swaps the two. Both drain their workers on
// WINCH, so WINCH goes first and the QUIT that follows lands on an
// already-drained master under either convention.
//
// Fire-and-forget: the old master may already be gone, and we do not wait
// for it to exit.
func (h *Herder) killOldMaster(old proc.Process) {
	old.Signal(unix.SIGWINCH)
	time.Sleep(h.WinchToQuitDelay)
	old.Signal(unix.SIGQUIT)

	h.j.Write(&EventOldMasterStopped{PID: old.PID()})
}
