package herder

import (
	"time"

	"github.com/pkg/errors"
)

// Journaler describes an event logger.
type Journaler interface {
	Write(Event) error
}

// EventReader describes a source of journaled events read newest-first.
type EventReader interface {
	Read() (Event, time.Time, error)
}

// PreviousState is the last known herder state recovered from a journal.
type PreviousState struct {
	// MasterPID is the last tracked master, or 0 if it was seen dying.
	MasterPID int
	// Reloading is true if a reload was requested and no master change was
	// recorded afterwards.
	Reloading bool
}

// ErrNoPreviousState is returned when the journal holds no master-tracking
// events at all.
var ErrNoPreviousState = errors.New("no previous state in journal")

// ReadPreviousState scans events newest-first until it can determine the last
// tracked master.
func ReadPreviousState(r EventReader) (*PreviousState, error) {
	state := PreviousState{}

	for {
		ev, _, err := r.Read()
		if err != nil {
			return nil, errors.Wrap(ErrNoPreviousState, err.Error())
		}

		switch ev := ev.(type) {
		case *EventDied:
			return &state, nil
		case *EventBooted:
			state.MasterPID = ev.PID
			return &state, nil
		case *EventMasterChanged:
			state.MasterPID = ev.NewPID
			return &state, nil
		case *EventReloadRequested:
			// A reload was in flight unless a newer master change already
			// consumed it, in which case we would have returned above.
			state.Reloading = true
		}
	}
}
