package herder

import (
	"time"

	"github.com/abretaud/unicornherder/herder/proc"
	"github.com/pkg/errors"
)

// Spawn launches the managed server in daemonizing mode and waits for it to
// detach. It returns false if the server failed to daemonize: either the
// executable was not found, or the foreground process outlived the boot
// timeout (in which case it is sent a best-effort TERM). Any other launch
// failure is returned as an error.
//
// On success the signal relay is installed, and the detached master — whose
// PID we do not know yet — is left for the monitor loop to pick up from the
// pidfile.
func (h *Herder) Spawn() (bool, error) {
	fg, err := h.startFg(h.argv)
	if err != nil {
		if proc.IsNotFound(err) {
			h.j.Write(&EventSpawnError{
				Server: h.name,
				Reason: errors.Wrapf(err, "command %q not found, is it installed?", h.argv[0]).Error(),
			})
			return false, nil
		}

		return false, errors.Wrapf(err, "failed to launch %s", h.name)
	}

	// The foreground PID is ours to kill until daemonization is confirmed.
	h.registry.Add(fg.PID())
	h.j.Write(&EventSpawned{Server: h.name, PID: fg.PID()})

	boot := time.NewTimer(h.cfg.BootTimeout)
	defer boot.Stop()

	select {
	case err := <-fg.Done():
		// The foreground half exiting means the detached master has forked.
		h.registry.Remove(fg.PID())

		if err != nil {
			h.j.Write(&EventWarning{
				Component: "spawner",
				Error:     errors.Wrap(err, "foreground process exited uncleanly").Error(),
			})
		}

		h.j.Write(&EventDaemonized{Server: h.name, PID: fg.PID()})
		h.installRelay()
		return true, nil

	case <-boot.C:
		fg.Terminate()
		h.registry.Remove(fg.PID())
		h.j.Write(&EventBootTimeout{Server: h.name, PID: fg.PID()})
		return false, nil
	}
}
