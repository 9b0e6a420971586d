package journal

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/abretaud/unicornherder/herder"
)

// HumanWriter is a journaler that writes one human-readable line per event,
// meant for a terminal rather than for parsing back.
type HumanWriter struct {
	name string
	w    io.Writer
}

var _ herder.Journaler = HumanWriter{}

// NewHumanWriter creates a journaler writing human-readable lines into w.
// The name identifies the destination in errors only.
func NewHumanWriter(name string, w io.Writer) HumanWriter {
	return HumanWriter{name, w}
}

// Write writes a single line describing the event.
func (h HumanWriter) Write(ev herder.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(h.w, "%s %s %s\n", time.Now().Format("2006-01-02 15:04:05"), ev.Type(), data)
	if err != nil {
		return fmt.Errorf("failed to write to %s: %w", h.name, err)
	}

	return nil
}

type multiWriter struct {
	writers []herder.Journaler
}

// MultiWriter creates a journaler that writes to every given journaler. The
// first write error is returned, but every journaler is written regardless.
func MultiWriter(ws ...herder.Journaler) herder.Journaler {
	return &multiWriter{ws}
}

func (w *multiWriter) Write(event herder.Event) error {
	var firstErr error
	for _, writer := range w.writers {
		if err := writer.Write(event); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
