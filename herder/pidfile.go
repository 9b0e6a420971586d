package herder

import (
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Read failure classes for a pidfile. Callers retry on both: a partial write
// is indistinguishable from corruption without a second read.
var (
	// ErrPidfileNotReady means the pidfile is absent or momentarily empty.
	ErrPidfileNotReady = errors.New("pidfile not ready")
	// ErrPidfileMalformed means the pidfile exists but does not contain a PID.
	ErrPidfileMalformed = errors.New("pidfile malformed")
)

// Pidfile reads the PID that the managed server wrote upon daemonizing.
type Pidfile string

// Read returns the PID currently recorded in the pidfile.
func (p Pidfile) Read() (int, error) {
	b, err := os.ReadFile(string(p))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.Wrapf(ErrPidfileNotReady, "no pidfile at %s", p)
		}

		return 0, errors.Wrapf(err, "failed to read pidfile %s", p)
	}

	content := strings.TrimSpace(string(b))
	if content == "" {
		return 0, errors.Wrapf(ErrPidfileNotReady, "empty pidfile at %s", p)
	}

	pid, err := strconv.Atoi(content)
	if err != nil || pid <= 0 {
		return 0, errors.Wrapf(ErrPidfileMalformed, "pidfile %s contains %q", p, content)
	}

	return pid, nil
}
