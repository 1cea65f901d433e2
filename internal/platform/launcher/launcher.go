// Package launcher runs named background applications concurrently under
// one process and waits for all of them to finish. Generalized from the
// teacher's common.Launcher/common.App pattern.
package launcher

import (
	"sync"

	"github.com/kohakuhub/hub/internal/logging"
)

// App is anything that can be launched and run until it decides to stop.
type App interface {
	Run(l *Launcher) error
}

// Option configures a Launcher.
type Option func(l *Launcher)

// WithLogger attaches a logger to the launcher.
func WithLogger(logger logging.Logger) Option {
	return func(l *Launcher) { l.Logger = logger }
}

// RunApp registers an App under name.
func RunApp(name string, app App) Option {
	return func(l *Launcher) { l.Add(name, app) }
}

// Launcher owns a set of named Apps and runs them concurrently.
type Launcher struct {
	Logger logging.Logger
	apps   map[string]App
	wg     *sync.WaitGroup
}

// Add registers an App under name. Returns the Launcher for chaining.
func (l *Launcher) Add(name string, app App) *Launcher {
	l.apps[name] = app
	return l
}

// Run starts every registered App in its own goroutine and blocks until
// all of them return. An App's error is logged, never fatal to the others.
func (l *Launcher) Run() {
	count := len(l.apps)
	l.wg.Add(count)

	l.Logger.Infof("launcher: starting %d app(s)", count)

	for name, app := range l.apps {
		go func(name string, app App) {
			defer l.wg.Done()

			l.Logger.Infof("launcher: app %q starting", name)

			if err := app.Run(l); err != nil {
				l.Logger.Errorf("launcher: app %q error: %s", name, err)
			}

			l.Logger.Infof("launcher: app %q finished", name)
		}(name, app)
	}

	l.wg.Wait()

	l.Logger.Info("launcher: terminated")
}

// New builds a Launcher with the given options applied.
func New(opts ...Option) *Launcher {
	l := &Launcher{
		apps: make(map[string]App),
		wg:   new(sync.WaitGroup),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}
