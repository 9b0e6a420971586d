package herder

import (
	"strings"

	"github.com/google/shlex"
	"github.com/pkg/errors"
)

// Flavor identifies a supported server flavor. The set is closed: anything
// outside it must come with a custom binary path instead.
type Flavor string

const (
	Unicorn        Flavor = "unicorn"
	UnicornRails   Flavor = "unicorn_rails"
	Gunicorn       Flavor = "gunicorn"
	GunicornDjango Flavor = "gunicorn_django"
)

// ErrUnknownFlavor is returned at construction when the configured flavor is
// not in the supported set and no custom binary is given.
var ErrUnknownFlavor = errors.New("unknown server flavor")

// Command templates per flavor. {args} may substitute to nothing; the quotes
// around {pidfile} survive shlex splitting, so paths with spaces work.
const (
	unicornTemplate        = `unicorn -D -P "{pidfile}" {args}`
	unicornRailsTemplate   = `unicorn_rails -D {args}`
	unicornBinTemplate     = `{unicorn_bin} -D -P "{pidfile}" {args}`
	gunicornTemplate       = `gunicorn -D -p "{pidfile}" {args}`
	gunicornDjangoTemplate = `gunicorn_django -D -p "{pidfile}" {args}`
	gunicornBinTemplate    = `{gunicorn_bin} -D -p "{pidfile}" {args}`
)

func (f Flavor) template() (string, bool) {
	switch f {
	case Unicorn:
		return unicornTemplate, true
	case UnicornRails:
		return unicornRailsTemplate, true
	case Gunicorn:
		return gunicornTemplate, true
	case GunicornDjango:
		return gunicornDjangoTemplate, true
	default:
		return "", false
	}
}

// ServerName returns the name the herder refers to the managed server by: the
// custom binary path if one is set, the flavor name otherwise.
func (cfg Config) ServerName() string {
	switch {
	case cfg.UnicornBin != "":
		return cfg.UnicornBin
	case cfg.GunicornBin != "":
		return cfg.GunicornBin
	default:
		return string(cfg.Flavor)
	}
}

// commandArgv resolves the configured flavor into the argv used to spawn the
// server in daemonizing mode. A custom binary overrides the flavor name.
func commandArgv(cfg Config) ([]string, error) {
	var template string

	switch {
	case cfg.UnicornBin != "":
		template = unicornBinTemplate
	case cfg.GunicornBin != "":
		template = gunicornBinTemplate
	default:
		t, ok := cfg.Flavor.template()
		if !ok {
			return nil, errors.Wrapf(ErrUnknownFlavor, "%q", cfg.Flavor)
		}
		template = t
	}

	line := strings.NewReplacer(
		"{pidfile}", cfg.Pidfile,
		"{args}", cfg.Args,
		"{unicorn_bin}", cfg.UnicornBin,
		"{gunicorn_bin}", cfg.GunicornBin,
	).Replace(template)

	argv, err := shlex.Split(line)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to split command %q", line)
	}

	return argv, nil
}
