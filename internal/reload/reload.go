// Package reload hot-reloads the one surface of configuration that can
// safely change while the agent is running: whether DEBUG descriptor
// dumps are on, and which fields are tracked. Everything else (server
// port, tracing exporter, and so on) requires a restart, same as the
// teacher's own reloader treats its own non-reloadable surfaces.
package reload

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"fieldwatch-agent/internal/config"
)

// AgentSettings is the reloadable subset of config.AgentConfig.
type AgentSettings struct {
	Debug         bool
	TrackedFields []config.FieldLocatorConfig
}

// Reloader watches a config file and invokes onChange with the newly
// loaded AgentSettings whenever the file changes and reparses cleanly.
type Reloader struct {
	path     string
	log      *logrus.Logger
	onChange func(AgentSettings)
	debounce time.Duration

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Reloader for the given YAML config file. It does not
// start watching until Start is called.
func New(path string, log *logrus.Logger, onChange func(AgentSettings)) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("reload: create watcher: %w", err)
	}
	return &Reloader{path: path, log: log, onChange: onChange, debounce: 500 * time.Millisecond, watcher: watcher}, nil
}

// Start begins watching the config file's directory in a background
// goroutine (watching the directory, not the file itself, survives
// editors that replace the file via rename-on-save).
func (r *Reloader) Start(ctx context.Context) error {
	dir := filepath.Dir(r.path)
	if err := r.watcher.Add(dir); err != nil {
		return fmt.Errorf("reload: watch %s: %w", dir, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.loop(ctx)
	return nil
}

// Stop stops watching and waits for the background goroutine to exit.
func (r *Reloader) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.watcher.Close()
	r.wg.Wait()
}

func (r *Reloader) loop(ctx context.Context) {
	defer r.wg.Done()

	var debounceTimer *time.Timer
	pending := false

	for {
		var fireC <-chan time.Time
		if debounceTimer != nil {
			fireC = debounceTimer.C
		}

		select {
		case <-ctx.Done():
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if !r.isRelevant(event) {
				continue
			}
			pending = true
			debounceTimer = time.NewTimer(r.debounce)

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.log.WithError(err).Warn("reload: file watcher error")

		case <-fireC:
			if pending {
				pending = false
				r.reload()
			}
		}
	}
}

func (r *Reloader) isRelevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	wantAbs, err := filepath.Abs(r.path)
	if err != nil {
		return false
	}
	return abs == wantAbs
}

func (r *Reloader) reload() {
	cfg, err := config.LoadConfig(r.path)
	if err != nil {
		r.log.WithError(err).Warn("reload: failed to reload config, keeping previous settings")
		return
	}

	settings := AgentSettings{Debug: cfg.Agent.Debug, TrackedFields: cfg.Agent.TrackedFields}
	r.log.WithFields(logrus.Fields{
		"debug":          settings.Debug,
		"tracked_fields": len(settings.TrackedFields),
	}).Info("reload: agent settings reloaded")
	r.onChange(settings)
}
