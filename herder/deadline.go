package herder

import "time"

// Deadline is a passive single-shot deadline. It never fires anything on its
// own; callers poll Exceeded between bounded waits. Proceeding after the
// deadline elapsed is a modeled outcome, not a swallowed error.
type Deadline struct {
	start time.Time
	limit time.Duration
}

// DeadlineAfter starts a deadline that elapses after d.
func DeadlineAfter(d time.Duration) Deadline {
	return Deadline{start: time.Now(), limit: d}
}

// Exceeded reports whether the deadline has elapsed.
func (d Deadline) Exceeded() bool {
	return time.Since(d.start) > d.limit
}

// Elapsed returns the time spent since the deadline started.
func (d Deadline) Elapsed() time.Duration {
	return time.Since(d.start)
}

// Remaining returns the time left before the deadline elapses, or zero once
// it has.
func (d Deadline) Remaining() time.Duration {
	r := d.limit - time.Since(d.start)
	if r < 0 {
		return 0
	}

	return r
}
