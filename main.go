package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/abretaud/unicornherder/herder"
	"github.com/abretaud/unicornherder/herder/journal"
	"github.com/pkg/errors"
)

var (
	flavor         string
	unicornBin     string
	gunicornBin    string
	pidfile        string
	journalFile    string
	serverArgs     string
	bootTimeout    time.Duration
	pidfileTimeout time.Duration
	overlap        time.Duration
	maxWorkerWait  time.Duration
)

func init() {
	flag.StringVar(&flavor, "u", "gunicorn", "server flavor to herd (unicorn, unicorn_rails, gunicorn, gunicorn_django)")
	flag.StringVar(&unicornBin, "unicorn-bin", "", "custom unicorn binary to run instead of a named flavor")
	flag.StringVar(&gunicornBin, "gunicorn-bin", "", "custom gunicorn binary to run instead of a named flavor")
	flag.StringVar(&pidfile, "p", "", "pidfile path (default <server>.pid)")
	flag.StringVar(&journalFile, "j", "", "journal file path (default <pidfile>.journal)")
	flag.StringVar(&serverArgs, "args", "", "extra arguments to pass to the server")
	flag.DurationVar(&bootTimeout, "boot-timeout", herder.DefaultBootTimeout, "how long to wait for the server to daemonize")
	flag.DurationVar(&pidfileTimeout, "pidfile-timeout", herder.DefaultPidfileTimeout, "how long to wait for a readable pidfile")
	flag.DurationVar(&overlap, "overlap", herder.DefaultOverlap, "how long both masters keep serving during a reload")
	flag.DurationVar(&maxWorkerWait, "max-worker-wait", herder.DefaultMaxWorkerWait, "how long to wait for the new master's workers")
	flag.Usage = func() {
		f := func(f string, v ...interface{}) {
			fmt.Fprintf(flag.CommandLine.Output(), f, v...)
		}

		f("Usage:\n")
		f("  %s [flags] [status]\n", filepath.Base(os.Args[0]))
		f("\n")
		f("Flags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()
}

func main() {
	var code int
	var err error

	switch flag.Arg(0) {
	case "status":
		err = status()
	case "":
		code, err = run()
	default:
		log.Fatalf("unknown subcommand %q\n", flag.Arg(0))
	}

	if err != nil {
		log.Fatalln(err)
	}

	os.Exit(code)
}

func config() herder.Config {
	return herder.Config{
		Flavor:         herder.Flavor(flavor),
		UnicornBin:     unicornBin,
		GunicornBin:    gunicornBin,
		Pidfile:        pidfile,
		Args:           serverArgs,
		BootTimeout:    bootTimeout,
		PidfileTimeout: pidfileTimeout,
		Overlap:        overlap,
		MaxWorkerWait:  maxWorkerWait,
	}
}

func run() (int, error) {
	cfg := config()

	j, err := journal.NewFileLockJournaler(journalPath(cfg))
	if err != nil {
		if errors.Is(err, journal.ErrLockedElsewhere) {
			return 0, errors.New("unicornherder is already running for this pidfile")
		}

		return 0, errors.Wrap(err, "failed to acquire journal lock")
	}
	defer j.Close()

	journaler := journal.MultiWriter(j, journal.NewHumanWriter("stderr", os.Stderr))
	journaler.Write(&herder.EventAcquired{})

	h, err := herder.New(cfg, journaler)
	if err != nil {
		return 0, err
	}

	// If the herder exits for any reason, whatever it is still responsible
	// for must die with it.
	defer h.Registry().Reap()

	ok, err := h.Spawn()
	if err != nil {
		return 0, err
	}
	if !ok {
		return 1, nil
	}

	return h.Loop(context.Background())
}

func status() error {
	state, err := journal.ReadPreviousStateFromFile(journalPath(config()))
	if err != nil {
		if errors.Is(err, herder.ErrNoPreviousState) || os.IsNotExist(err) {
			fmt.Println("no master has been tracked")
			return nil
		}

		return errors.Wrap(err, "failed to read journal")
	}

	if state.MasterPID == 0 {
		fmt.Println("last tracked master has died")
		return nil
	}

	fmt.Printf("last tracked master: PID %d\n", state.MasterPID)
	if state.Reloading {
		fmt.Println("a reload was in flight")
	}

	return nil
}

func journalPath(cfg herder.Config) string {
	if journalFile != "" {
		return journalFile
	}

	p := cfg.Pidfile
	if p == "" {
		p = cfg.ServerName() + ".pid"
	}

	return p + ".journal"
}
