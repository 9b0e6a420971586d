package herder

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/abretaud/unicornherder/herder/proc"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// procTable maps PIDs to fake processes for the findProc seam.
type procTable map[int]*proc.FakeProcess

func (tbl procTable) find(pid int) (proc.Process, error) {
	p, ok := tbl[pid]
	if !ok {
		return nil, errors.Errorf("no process with PID %d", pid)
	}
	return p, nil
}

func writePidfile(t *testing.T, path string, pid int) {
	t.Helper()

	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0600); err != nil {
		t.Fatal("failed to write pidfile:", err)
	}
}

// newMonitorHerder builds a herder with a real temporary pidfile, fast
// timings, and a fake process table.
func newMonitorHerder(t *testing.T, j Journaler, tbl procTable) *Herder {
	t.Helper()

	pidfile := filepath.Join(t.TempDir(), "server.pid")

	h := newTestHerder(t, Config{
		Flavor:         Gunicorn,
		Pidfile:        pidfile,
		PidfileTimeout: 200 * time.Millisecond,
		Overlap:        50 * time.Millisecond,
		MaxWorkerWait:  100 * time.Millisecond,
	}, j)

	h.PollInterval = 5 * time.Millisecond
	h.RetryInterval = 5 * time.Millisecond
	h.WorkerPollInterval = 5 * time.Millisecond
	h.WinchToQuitDelay = 30 * time.Millisecond
	h.findProc = tbl.find

	return h
}

func TestObserve(t *testing.T) {
	t.Run("boot", func(t *testing.T) {
		j := mockJournal{}
		tbl := procTable{42: proc.NewFakeProcess(42)}
		h := newMonitorHerder(t, &j, tbl)
		writePidfile(t, string(h.pidfile), 42)

		ok, err := h.observe()
		if err != nil || !ok {
			t.Fatalf("observe returned (%v, %v)", ok, err)
		}

		if m := h.currentMaster(); m == nil || m.PID() != 42 {
			t.Error("master not tracked after boot")
		}
		if !h.registry.Has(42) {
			t.Error("master PID not registered after boot")
		}

		j.Verify(t, true, []Event{
			&EventBooted{PID: 42},
		})
	})

	t.Run("steady", func(t *testing.T) {
		j := mockJournal{}
		tbl := procTable{42: proc.NewFakeProcess(42)}
		h := newMonitorHerder(t, &j, tbl)
		writePidfile(t, string(h.pidfile), 42)

		h.observe()
		ok, err := h.observe()
		if err != nil || !ok {
			t.Fatalf("observe returned (%v, %v)", ok, err)
		}

		// Only the boot event; an unchanged master is not news.
		j.Verify(t, true, []Event{
			&EventBooted{PID: 42},
		})
	})

	t.Run("unexpected master change", func(t *testing.T) {
		j := mockJournal{}
		old := proc.NewFakeProcess(42)
		tbl := procTable{42: old, 43: proc.NewFakeProcess(43)}
		h := newMonitorHerder(t, &j, tbl)

		writePidfile(t, string(h.pidfile), 42)
		h.observe()

		writePidfile(t, string(h.pidfile), 43)
		ok, err := h.observe()
		if err != nil || !ok {
			t.Fatalf("observe returned (%v, %v)", ok, err)
		}

		// No handover without a reload request, but responsibility still
		// transfers.
		if len(old.Signals()) != 0 {
			t.Errorf("old master signaled without a reload: %v", old.Signals())
		}
		if h.registry.Has(42) {
			t.Error("old master PID still registered")
		}
		if !h.registry.Has(43) {
			t.Error("new master PID not registered")
		}

		j.Verify(t, true, []Event{
			&EventBooted{PID: 42},
			&EventMasterChanged{OldPID: 42, NewPID: 43},
		})
	})

	t.Run("reload handover", func(t *testing.T) {
		j := mockJournal{}
		old := proc.NewFakeProcess(42)
		old.SetChildren(5) // 4 workers plus the freshly forked master
		newMaster := proc.NewFakeProcess(43)
		newMaster.SetChildren(4)
		tbl := procTable{42: old, 43: newMaster}
		h := newMonitorHerder(t, &j, tbl)

		writePidfile(t, string(h.pidfile), 42)
		h.observe()

		h.reloading.Store(true)
		writePidfile(t, string(h.pidfile), 43)

		start := time.Now()
		ok, err := h.observe()
		if err != nil || !ok {
			t.Fatalf("observe returned (%v, %v)", ok, err)
		}

		if elapsed := time.Since(start); elapsed < h.cfg.Overlap {
			t.Errorf("handover returned before the overlap window: %s", elapsed)
		}

		log := old.SignalLog()
		if len(log) != 2 || log[0].Sig != unix.SIGWINCH || log[1].Sig != unix.SIGQUIT {
			t.Fatalf("expected WINCH then QUIT, got %v", old.Signals())
		}
		if gap := log[1].At.Sub(log[0].At); gap < h.WinchToQuitDelay {
			t.Errorf("QUIT sent %s after WINCH, want at least %s", gap, h.WinchToQuitDelay)
		}

		if h.reloading.Load() {
			t.Error("reloading still set after the handover")
		}
		if h.registry.Has(42) || !h.registry.Has(43) {
			t.Error("registry not updated across the handover")
		}

		j.Verify(t, true, []Event{
			&EventBooted{PID: 42},
			&EventMasterChanged{OldPID: 42, NewPID: 43},
			&EventWorkersRecovered{PID: 43, Children: 4},
			&EventOldMasterStopped{PID: 42},
		})
	})

	t.Run("master gone", func(t *testing.T) {
		j := mockJournal{}
		h := newMonitorHerder(t, &j, procTable{})
		writePidfile(t, string(h.pidfile), 42)

		ok, err := h.observe()
		if err != nil {
			t.Fatal("observe errored:", err)
		}
		if ok {
			t.Error("observe reported a live master for an unresolvable PID")
		}
	})

	t.Run("master dead", func(t *testing.T) {
		j := mockJournal{}
		dead := proc.NewFakeProcess(42)
		dead.SetAlive(false)
		h := newMonitorHerder(t, &j, procTable{42: dead})
		writePidfile(t, string(h.pidfile), 42)

		ok, err := h.observe()
		if err != nil {
			t.Fatal("observe errored:", err)
		}
		if ok {
			t.Error("observe reported a live master for a dead PID")
		}
	})
}

func TestAwaitPid(t *testing.T) {
	t.Run("terminating tolerates a missing pidfile", func(t *testing.T) {
		j := mockJournal{}
		h := newMonitorHerder(t, &j, procTable{})
		h.terminating.Store(true)

		pid, err := h.awaitPid()
		if err != nil {
			t.Fatal("expected a clean result while terminating, got:", err)
		}
		if pid != 0 {
			t.Errorf("expected PID 0, got %d", pid)
		}
	})

	t.Run("timeout is fatal", func(t *testing.T) {
		j := mockJournal{}
		h := newMonitorHerder(t, &j, procTable{})

		start := time.Now()
		_, err := h.awaitPid()
		if err == nil {
			t.Fatal("expected an error from an unreadable pidfile")
		}
		if elapsed := time.Since(start); elapsed < h.cfg.PidfileTimeout {
			t.Errorf("gave up after %s, before the pidfile timeout %s", elapsed, h.cfg.PidfileTimeout)
		}
	})
}

func TestWaitForWorkers(t *testing.T) {
	t.Run("blocks until workers recover", func(t *testing.T) {
		j := mockJournal{}
		h := newMonitorHerder(t, &j, procTable{})

		old := proc.NewFakeProcess(42)
		old.SetChildren(5) // expect max(5-1, 1) = 4
		newMaster := proc.NewFakeProcess(43)

		recovery := 30 * time.Millisecond
		go func() {
			time.Sleep(recovery)
			newMaster.SetChildren(4)
		}()

		start := time.Now()
		h.waitForWorkers(newMaster, old)

		if elapsed := time.Since(start); elapsed < recovery {
			t.Errorf("returned after %s, before the workers came up", elapsed)
		}

		evs := j.OfType("workers recovered")
		if len(evs) != 1 {
			t.Fatalf("expected a recovery event, got %v", j.Journals())
		}
		if ev := evs[0].(*EventWorkersRecovered); ev.Children != 4 {
			t.Errorf("recovered with %d children, want 4", ev.Children)
		}
	})

	t.Run("expected count never drops below one", func(t *testing.T) {
		j := mockJournal{}
		h := newMonitorHerder(t, &j, procTable{})

		old := proc.NewFakeProcess(42)
		old.SetChildren(1) // only the forked master; still expect 1 worker
		newMaster := proc.NewFakeProcess(43)
		newMaster.SetChildren(1)

		h.waitForWorkers(newMaster, old)

		evs := j.OfType("workers recovered")
		if len(evs) != 1 {
			t.Fatalf("expected a recovery event, got %v", j.Journals())
		}
	})

	t.Run("timeout fails open without the overlap", func(t *testing.T) {
		j := mockJournal{}
		h := newMonitorHerder(t, &j, procTable{})
		h.cfg.Overlap = time.Second

		old := proc.NewFakeProcess(42)
		old.SetChildren(5)
		newMaster := proc.NewFakeProcess(43) // never recovers

		start := time.Now()
		h.waitForWorkers(newMaster, old)
		elapsed := time.Since(start)

		if elapsed < h.cfg.MaxWorkerWait {
			t.Errorf("gave up after %s, before the worker wait budget", elapsed)
		}
		if elapsed > h.cfg.MaxWorkerWait+h.cfg.Overlap {
			t.Errorf("took %s, longer than budget plus overlap", elapsed)
		}
		if elapsed >= h.cfg.Overlap {
			t.Errorf("slept the overlap (%s) despite the timeout", elapsed)
		}

		evs := j.OfType("worker wait timeout")
		if len(evs) != 1 {
			t.Fatalf("expected a timeout event, got %v", j.Journals())
		}
		if ev := evs[0].(*EventWorkerWaitTimeout); ev.Expected != 4 {
			t.Errorf("expected count %d, want 4", ev.Expected)
		}
	})
}

func TestLoop(t *testing.T) {
	t.Run("operator shutdown exits clean", func(t *testing.T) {
		j := mockJournal{}
		h := newMonitorHerder(t, &j, procTable{})
		h.terminating.Store(true) // as if INT/QUIT/TERM was relayed

		status, err := h.Loop(context.Background())
		if err != nil {
			t.Fatal("loop errored:", err)
		}
		if status != 0 {
			t.Errorf("expected clean status, got %d", status)
		}
		if len(j.OfType("master died")) != 0 {
			t.Error("clean shutdown journaled a death")
		}
	})

	t.Run("unexpected death exits nonzero", func(t *testing.T) {
		j := mockJournal{}
		master := proc.NewFakeProcess(42)
		h := newMonitorHerder(t, &j, procTable{42: master})
		writePidfile(t, string(h.pidfile), 42)

		go func() {
			time.Sleep(20 * time.Millisecond)
			master.SetAlive(false)
		}()

		status, err := h.Loop(context.Background())
		if err != nil {
			t.Fatal("loop errored:", err)
		}
		if status != 1 {
			t.Errorf("expected death status 1, got %d", status)
		}

		evs := j.OfType("master died")
		if len(evs) != 1 {
			t.Fatalf("expected a death event, got %v", j.Journals())
		}
		if ev := evs[0].(*EventDied); ev.PID != 42 {
			t.Errorf("death event names PID %d, want 42", ev.PID)
		}
	})

	t.Run("pidfile timeout aborts", func(t *testing.T) {
		j := mockJournal{}
		h := newMonitorHerder(t, &j, procTable{})

		_, err := h.Loop(context.Background())
		if err == nil {
			t.Fatal("expected the loop to abort on an unreadable pidfile")
		}
	})
}
