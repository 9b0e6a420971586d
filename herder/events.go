package herder

// eventType describes an event type.
type eventType = string

const (
	eventWarning           eventType = "warning"
	eventAcquired          eventType = "acquired lock"
	eventSpawned           eventType = "server spawned"
	eventSpawnError        eventType = "server spawn error"
	eventBootTimeout       eventType = "boot timeout"
	eventDaemonized        eventType = "server daemonized"
	eventBooted            eventType = "master booted"
	eventMasterChanged     eventType = "master changed"
	eventReloadRequested   eventType = "reload requested"
	eventSignalForwarded   eventType = "signal forwarded"
	eventWorkersRecovered  eventType = "workers recovered"
	eventWorkerWaitTimeout eventType = "worker wait timeout"
	eventOldMasterStopped  eventType = "old master stopped"
	eventDied              eventType = "master died"
)

// Event is an interface describing known events.
type Event interface {
	Type() string
	event()
}

// NewEvent creates a new event from the given event type. It is used
// primarily for decoding events from its type. Nil is returned if the event
// type is unknown.
func NewEvent(eventType string) Event {
	switch eventType {
	case eventWarning:
		return &EventWarning{}
	case eventAcquired:
		return &EventAcquired{}
	case eventSpawned:
		return &EventSpawned{}
	case eventSpawnError:
		return &EventSpawnError{}
	case eventBootTimeout:
		return &EventBootTimeout{}
	case eventDaemonized:
		return &EventDaemonized{}
	case eventBooted:
		return &EventBooted{}
	case eventMasterChanged:
		return &EventMasterChanged{}
	case eventReloadRequested:
		return &EventReloadRequested{}
	case eventSignalForwarded:
		return &EventSignalForwarded{}
	case eventWorkersRecovered:
		return &EventWorkersRecovered{}
	case eventWorkerWaitTimeout:
		return &EventWorkerWaitTimeout{}
	case eventOldMasterStopped:
		return &EventOldMasterStopped{}
	case eventDied:
		return &EventDied{}
	default:
		return nil
	}
}

// EventWarning is emitted when a non-fatal error occurs.
type EventWarning struct {
	Component string `json:"component"`
	Error     string `json:"error"`
}

func (ev *EventWarning) Type() string { return eventWarning }
func (ev *EventWarning) event()       {}

// EventAcquired is emitted when the flock (i.e. write lock on the journal) is
// acquired, which is on startup.
type EventAcquired struct{}

func (ev *EventAcquired) Type() string { return eventAcquired }
func (ev *EventAcquired) event()       {}

// EventSpawned is emitted when the server command has been launched and has
// not yet daemonized.
type EventSpawned struct {
	Server string `json:"server"`
	PID    int    `json:"pid"`
}

func (ev *EventSpawned) Type() string { return eventSpawned }
func (ev *EventSpawned) event()       {}

// EventSpawnError is emitted when the server command fails to launch.
type EventSpawnError struct {
	Server string `json:"server"`
	Reason string `json:"reason"`
}

func (ev *EventSpawnError) Type() string { return eventSpawnError }
func (ev *EventSpawnError) event()       {}

// EventBootTimeout is emitted when the launched server fails to daemonize
// within the boot timeout. The foreground process is sent a TERM beforehand.
type EventBootTimeout struct {
	Server string `json:"server"`
	PID    int    `json:"pid"`
}

func (ev *EventBootTimeout) Type() string { return eventBootTimeout }
func (ev *EventBootTimeout) event()       {}

// EventDaemonized is emitted once the foreground process exits, meaning the
// detached master has forked off. The master's own PID is discovered later
// through the pidfile.
type EventDaemonized struct {
	Server string `json:"server"`
	PID    int    `json:"pid"`
}

func (ev *EventDaemonized) Type() string { return eventDaemonized }
func (ev *EventDaemonized) event()       {}

// EventBooted is emitted when the master PID is read from the pidfile for the
// first time.
type EventBooted struct {
	PID int `json:"pid"`
}

func (ev *EventBooted) Type() string { return eventBooted }
func (ev *EventBooted) event()       {}

// EventMasterChanged is emitted when the pidfile names a different master
// than the tracked one, i.e. the server has forked a new master.
type EventMasterChanged struct {
	OldPID int `json:"old_pid"`
	NewPID int `json:"new_pid"`
}

func (ev *EventMasterChanged) Type() string { return eventMasterChanged }
func (ev *EventMasterChanged) event()       {}

// EventReloadRequested is emitted when the reload trigger signal arrives and
// the graceful restart signal has been sent to the master.
type EventReloadRequested struct {
	PID int `json:"pid"`
}

func (ev *EventReloadRequested) Type() string { return eventReloadRequested }
func (ev *EventReloadRequested) event()       {}

// EventSignalForwarded is emitted when an operator signal is relayed to the
// tracked master.
type EventSignalForwarded struct {
	Signal string `json:"signal"`
	PID    int    `json:"pid"`
}

func (ev *EventSignalForwarded) Type() string { return eventSignalForwarded }
func (ev *EventSignalForwarded) event()       {}

// EventWorkersRecovered is emitted during a handover once the new master has
// at least the expected number of workers.
type EventWorkersRecovered struct {
	PID      int `json:"pid"`
	Children int `json:"children"`
}

func (ev *EventWorkersRecovered) Type() string { return eventWorkersRecovered }
func (ev *EventWorkersRecovered) event()       {}

// EventWorkerWaitTimeout is emitted when the new master fails to reach the
// expected worker count in time. The handover proceeds regardless; fewer
// workers than before may simply be an intentional scale-down.
type EventWorkerWaitTimeout struct {
	PID      int `json:"pid"`
	Expected int `json:"expected"`
}

func (ev *EventWorkerWaitTimeout) Type() string { return eventWorkerWaitTimeout }
func (ev *EventWorkerWaitTimeout) event()       {}

// EventOldMasterStopped is emitted after the WINCH/QUIT sequence has been
// sent to the retiring master. The master is not waited on.
type EventOldMasterStopped struct {
	PID int `json:"pid"`
}

func (ev *EventOldMasterStopped) Type() string { return eventOldMasterStopped }
func (ev *EventOldMasterStopped) event()       {}

// EventDied is emitted when the master disappears outside of an
// operator-initiated shutdown.
type EventDied struct {
	PID int `json:"pid"`
}

func (ev *EventDied) Type() string { return eventDied }
func (ev *EventDied) event()       {}
