// Package state groups the demo CLI's process-external dependencies
// (filesystem, stdio, signals, logger) behind one struct, the same split
// the teacher CLI uses to keep the rest of the codebase from reaching for
// the os package directly and to make the CLI testable without a real
// terminal.
package state

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// GlobalState is the root of the demo CLI's process-external state.
type GlobalState struct {
	Ctx context.Context

	FS    afero.Fs
	Getwd func() (string, error)
	Args  []string

	OutMutex       *sync.Mutex
	Stdout, Stderr *os.File

	SignalNotify func(chan<- os.Signal, ...os.Signal)
	SignalStop   func(chan<- os.Signal)

	Logger *logrus.Logger
}

// New builds a GlobalState wired to the real OS. Ideally this is the only
// function in the module that touches the os package directly.
func New(ctx context.Context) *GlobalState {
	isDumbTerm := os.Getenv("TERM") == "dumb"
	stderrTTY := !isDumbTerm && (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()))

	logger := &logrus.Logger{
		Out: colorable.NewColorable(os.Stderr),
		Formatter: &logrus.TextFormatter{
			ForceColors:   stderrTTY,
			DisableColors: !stderrTTY || os.Getenv("NO_COLOR") != "",
		},
		Hooks: make(logrus.LevelHooks),
		Level: logrus.InfoLevel,
	}

	return &GlobalState{
		Ctx:          ctx,
		FS:           afero.NewOsFs(),
		Getwd:        os.Getwd,
		Args:         append(make([]string, 0, len(os.Args)), os.Args...),
		OutMutex:     &sync.Mutex{},
		Stdout:       os.Stdout,
		Stderr:       os.Stderr,
		SignalNotify: signal.Notify,
		SignalStop:   signal.Stop,
		Logger:       logger,
	}
}

// NewTest builds a GlobalState with an in-memory filesystem and a logger
// that discards output, for use in tests that need a *GlobalState without
// touching the real terminal.
func NewTest(ctx context.Context) *GlobalState {
	logger := logrus.New()
	logger.Out = discard{}
	return &GlobalState{
		Ctx:      ctx,
		FS:       afero.NewMemMapFs(),
		Getwd:    os.Getwd,
		Args:     []string{"trajplan"},
		OutMutex: &sync.Mutex{},
		Logger:   logger,
	}
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }
