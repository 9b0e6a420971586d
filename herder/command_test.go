package herder

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandArgv(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		argv []string
	}{
		{
			name: "unicorn",
			cfg:  Config{Flavor: Unicorn, Pidfile: "unicorn.pid"},
			argv: []string{"unicorn", "-D", "-P", "unicorn.pid"},
		},
		{
			name: "unicorn_rails",
			cfg:  Config{Flavor: UnicornRails, Pidfile: "unicorn_rails.pid", Args: "-c config.rb"},
			argv: []string{"unicorn_rails", "-D", "-c", "config.rb"},
		},
		{
			name: "gunicorn",
			cfg:  Config{Flavor: Gunicorn, Pidfile: "gunicorn.pid", Args: "app:application"},
			argv: []string{"gunicorn", "-D", "-p", "gunicorn.pid", "app:application"},
		},
		{
			name: "gunicorn_django",
			cfg:  Config{Flavor: GunicornDjango, Pidfile: "gunicorn_django.pid"},
			argv: []string{"gunicorn_django", "-D", "-p", "gunicorn_django.pid"},
		},
		{
			name: "pidfile with spaces",
			cfg:  Config{Flavor: Gunicorn, Pidfile: "/var/run/my app/master.pid"},
			argv: []string{"gunicorn", "-D", "-p", "/var/run/my app/master.pid"},
		},
		{
			name: "custom unicorn binary overrides flavor",
			cfg:  Config{Flavor: "mystery", UnicornBin: "/opt/unicorn", Pidfile: "u.pid"},
			argv: []string{"/opt/unicorn", "-D", "-P", "u.pid"},
		},
		{
			name: "custom gunicorn binary overrides flavor",
			cfg:  Config{Flavor: "mystery", GunicornBin: "/opt/gunicorn", Pidfile: "g.pid", Args: "app:app"},
			argv: []string{"/opt/gunicorn", "-D", "-p", "g.pid", "app:app"},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			argv, err := commandArgv(test.cfg)
			require.NoError(t, err)
			assert.Equal(t, test.argv, argv)
		})
	}
}

func TestNewFlavors(t *testing.T) {
	j := mockJournal{}

	for _, flavor := range []Flavor{Unicorn, UnicornRails, Gunicorn, GunicornDjango} {
		_, err := New(Config{Flavor: flavor}, &j)
		assert.NoError(t, err, "flavor %q", flavor)
	}

	_, err := New(Config{Flavor: "nginx"}, &j)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownFlavor))

	// A custom binary makes any flavor name irrelevant.
	_, err = New(Config{Flavor: "nginx", GunicornBin: "/opt/gunicorn"}, &j)
	assert.NoError(t, err)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, Gunicorn, cfg.Flavor)
	assert.Equal(t, "gunicorn.pid", cfg.Pidfile)
	assert.Equal(t, DefaultBootTimeout, cfg.BootTimeout)
	assert.Equal(t, DefaultPidfileTimeout, cfg.PidfileTimeout)
	assert.Equal(t, DefaultOverlap, cfg.Overlap)
	assert.Equal(t, DefaultMaxWorkerWait, cfg.MaxWorkerWait)

	cfg = Config{UnicornBin: "/opt/unicorn"}.withDefaults()
	assert.Equal(t, "/opt/unicorn.pid", cfg.Pidfile)
	assert.Equal(t, "/opt/unicorn", cfg.ServerName())
}
