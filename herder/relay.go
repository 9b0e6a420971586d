package herder

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sys/unix"
)

// ReloadSignal triggers a graceful restart of the managed master.
const ReloadSignal = unix.SIGHUP

// GracefulRestartSignal is what the master receives to make it fork a
// replacement master while the old one keeps serving.
const GracefulRestartSignal = unix.SIGUSR2

// ForwardedSignals is the set relayed verbatim to the tracked master.
//
// SIGWINCH is deliberately absent: it fires on terminal resize, and both
// server flavors respond to it by killing their workers. Resize an xterm,
// lose your workers.
var ForwardedSignals = []os.Signal{
	unix.SIGINT,
	unix.SIGQUIT,
	unix.SIGTERM,
	unix.SIGTTIN,
	unix.SIGTTOU,
	unix.SIGUSR1,
	unix.SIGUSR2,
}

// startRelay subscribes to the reload trigger and the forwarded set and
// relays them to the tracked master for the rest of the herder's life. It is
// installed by Spawn only once the server is actually up; before that there
// is nothing to forward to.
//
// Signals are drained from a buffered channel on a dedicated goroutine, so
// the handling below may journal freely without holding up delivery.
func (h *Herder) startRelay() {
	ch := make(chan os.Signal, 8)
	signal.Notify(ch, append([]os.Signal{ReloadSignal}, ForwardedSignals...)...)

	go func() {
		for sig := range ch {
			h.handleSignal(sig)
		}
	}()
}

func (h *Herder) handleSignal(sig os.Signal) {
	num, ok := sig.(syscall.Signal)
	if !ok {
		return
	}

	master := h.currentMaster()
	if master == nil {
		h.j.Write(&EventWarning{
			Component: "relay",
			Error:     fmt.Sprintf("caught %s but have no tracked master", unix.SignalName(num)),
		})
		return
	}

	if num == ReloadSignal {
		// Flag first: the monitor loop must already know a reload is in
		// flight when it sees the master change.
		h.reloading.Store(true)
		master.Signal(GracefulRestartSignal)
		h.j.Write(&EventReloadRequested{PID: master.PID()})
		return
	}

	switch num {
	case unix.SIGINT, unix.SIGQUIT, unix.SIGTERM:
		// The master is about to go away on purpose; its disappearance must
		// not be treated as an error.
		h.terminating.Store(true)
	}

	if err := master.Signal(num); err != nil {
		h.j.Write(&EventWarning{
			Component: "relay",
			Error:     fmt.Sprintf("failed to forward %s to PID %d: %v", unix.SignalName(num), master.PID(), err),
		})
		return
	}

	h.j.Write(&EventSignalForwarded{
		Signal: unix.SignalName(num),
		PID:    master.PID(),
	})
}
