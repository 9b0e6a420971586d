// Package herder is the core of the unicornherder application. It supervises
// a single self-daemonizing unicorn or gunicorn server and performs
// zero-downtime reloads of it.
//
// Mechanism of Operation
//
// The herder spawns the server in daemonizing mode and waits for the
// foreground half of the command to exit, which is the server telling us the
// detached master has forked off. From then on the master is tracked through
// the pidfile the server itself maintains: the monitor loop re-reads it every
// couple of seconds and resolves the recorded PID to a live process.
//
// Operator signals arriving at the herder are forwarded to the tracked
// master, with one exception: SIGHUP triggers a graceful restart by sending
// SIGUSR2 to the master, which makes it fork a replacement master while the
// old one keeps serving. The monitor loop notices the pidfile now naming a
// different PID and runs the handover: wait for the new master's workers to
// come up, keep both masters serving for an overlap window, then retire the
// old master.
//
// Retiring is done by sending SIGWINCH, waiting a beat, then SIGQUIT. The
// two flavors assign opposite meanings to QUIT and TERM, but both drain
// their workers on WINCH, so the WINCH-first sequence works under either
// convention.
package herder

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/abretaud/unicornherder/herder/proc"
)

// Default durations matching the command-line defaults.
var (
	DefaultBootTimeout    = 180 * time.Second
	DefaultPidfileTimeout = 180 * time.Second
	DefaultOverlap        = 180 * time.Second
	DefaultMaxWorkerWait  = 180 * time.Second
)

// Timing of the monitor loop's internal waits. These are variables so tests
// can shrink them.
var (
	PollInterval       = 2 * time.Second
	RetryInterval      = time.Second
	WorkerPollInterval = time.Second
	WinchToQuitDelay   = time.Second
)

// Config configures a Herder.
type Config struct {
	// Flavor is the server flavor to herd. Defaults to Gunicorn.
	Flavor Flavor
	// UnicornBin, if set, runs this binary with unicorn-style flags instead
	// of a named flavor. GunicornBin is its gunicorn-flags counterpart.
	UnicornBin  string
	GunicornBin string
	// Pidfile is where the server writes its master PID. Defaults to
	// "<server>.pid".
	Pidfile string
	// Args are extra arguments passed through to the server command line.
	Args string

	BootTimeout    time.Duration
	PidfileTimeout time.Duration
	Overlap        time.Duration
	MaxWorkerWait  time.Duration
}

func (cfg Config) withDefaults() Config {
	if cfg.Flavor == "" && cfg.UnicornBin == "" && cfg.GunicornBin == "" {
		cfg.Flavor = Gunicorn
	}
	if cfg.Pidfile == "" {
		cfg.Pidfile = cfg.ServerName() + ".pid"
	}
	if cfg.BootTimeout == 0 {
		cfg.BootTimeout = DefaultBootTimeout
	}
	if cfg.PidfileTimeout == 0 {
		cfg.PidfileTimeout = DefaultPidfileTimeout
	}
	if cfg.Overlap == 0 {
		cfg.Overlap = DefaultOverlap
	}
	if cfg.MaxWorkerWait == 0 {
		cfg.MaxWorkerWait = DefaultMaxWorkerWait
	}

	return cfg
}

// Herder manages a single server instance and its worker children. Spawn the
// server with Spawn, then enter the monitor loop with Loop; Loop's return
// value is meant to become the process exit status.
type Herder struct {
	// Timing knobs, copied from the package variables at construction.
	PollInterval       time.Duration
	RetryInterval      time.Duration
	WorkerPollInterval time.Duration
	WinchToQuitDelay   time.Duration

	cfg      Config
	name     string
	argv     []string
	pidfile  Pidfile
	j        Journaler
	registry *Registry

	// reloading and terminating are set by the signal relay and read by the
	// monitor loop, which runs on a different goroutine.
	reloading   atomic.Bool
	terminating atomic.Bool

	// master is written only by the monitor loop; the relay reads it.
	masterMu sync.Mutex
	master   proc.Process

	// Seams for tests.
	findProc     func(pid int) (proc.Process, error)
	startFg      func(argv []string) (proc.Foreground, error)
	installRelay func()
}

// New creates a Herder for the configured flavor. An unknown flavor with no
// custom binary is a configuration error, reported here and never at spawn
// time.
func New(cfg Config, j Journaler) (*Herder, error) {
	cfg = cfg.withDefaults()

	argv, err := commandArgv(cfg)
	if err != nil {
		return nil, err
	}

	h := &Herder{
		PollInterval:       PollInterval,
		RetryInterval:      RetryInterval,
		WorkerPollInterval: WorkerPollInterval,
		WinchToQuitDelay:   WinchToQuitDelay,

		cfg:      cfg,
		name:     cfg.ServerName(),
		argv:     argv,
		pidfile:  Pidfile(cfg.Pidfile),
		j:        j,
		registry: NewRegistry(),

		findProc: proc.Find,
		startFg:  proc.Start,
	}
	h.installRelay = h.startRelay

	return h, nil
}

// Registry exposes the managed-PID registry, so the caller can reap
// leftovers on its way out.
func (h *Herder) Registry() *Registry {
	return h.registry
}

// Pidfile returns the resolved pidfile path.
func (h *Herder) Pidfile() string {
	return string(h.pidfile)
}

func (h *Herder) currentMaster() proc.Process {
	h.masterMu.Lock()
	defer h.masterMu.Unlock()

	return h.master
}

func (h *Herder) setMaster(p proc.Process) {
	h.masterMu.Lock()
	defer h.masterMu.Unlock()

	h.master = p
}
