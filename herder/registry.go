package herder

import (
	"sync"

	"github.com/abretaud/unicornherder/herder/proc"
)

// Registry is the set of PIDs the herder has accepted kill-responsibility
// for. If the herder exits while entries remain, Reap slaughters the
// survivors so a dead herder never leaves an unmanaged server behind.
//
// The registry is mutated by the spawner and the monitor loop and read by the
// exit path, which may run concurrently with either.
type Registry struct {
	pids sync.Map // pid -> struct{}

	find func(pid int) (proc.Process, error)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{find: proc.Find}
}

// Add records a PID the herder is now responsible for.
func (r *Registry) Add(pid int) {
	r.pids.Store(pid, struct{}{})
}

// Remove releases responsibility for a PID.
func (r *Registry) Remove(pid int) {
	r.pids.Delete(pid)
}

// Has reports whether the PID is currently tracked.
func (r *Registry) Has(pid int) bool {
	_, ok := r.pids.Load(pid)
	return ok
}

// PIDs returns a snapshot of the tracked PIDs.
func (r *Registry) PIDs() []int {
	var pids []int
	r.pids.Range(func(k, _ interface{}) bool {
		pids = append(pids, k.(int))
		return true
	})

	return pids
}

// Reap kills every tracked process, best-effort. Entries naming processes
// that are already gone are skipped without complaint.
func (r *Registry) Reap() {
	r.pids.Range(func(k, _ interface{}) bool {
		p, err := r.find(k.(int))
		if err != nil {
			return true
		}

		p.Kill()
		return true
	})
}
