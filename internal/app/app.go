// Package app wires together every component of the field-watching agent:
// the Catalog, HistoryStore, AgentRuntime, the debugger-facing HTTP API,
// and the optional Kafka export, tracer, resource monitor and config
// reloader around them. The App struct is the main entry point that:
//   - Initializes and coordinates all components
//   - Manages the application lifecycle (start, stop, graceful shutdown)
//   - Applies hot-reloaded agent settings as they arrive
//
// Example usage:
//
//	app, err := app.New("/path/to/config.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if err := app.Run(); err != nil {
//		log.Fatal(err)
//	}
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"fieldwatch-agent/internal/config"
	"fieldwatch-agent/internal/metrics"
	"fieldwatch-agent/internal/reload"
	"fieldwatch-agent/internal/resourcemonitor"
	"fieldwatch-agent/internal/server"
	"fieldwatch-agent/internal/tracing"
	"fieldwatch-agent/pkg/agentruntime"
	"fieldwatch-agent/pkg/catalog"
	"fieldwatch-agent/pkg/export"
	"fieldwatch-agent/pkg/historystore"
)

// App represents the main application instance that coordinates the
// engine's core components and the optional services layered on top of
// them.
type App struct {
	config *config.Config
	logger *logrus.Logger

	catalog *catalog.Catalog
	history *historystore.Store
	runtime *agentruntime.Runtime

	httpServer      *server.Server
	metricsServer   *metrics.Server
	tracingProvider *tracing.Provider
	resourceMonitor *resourcemonitor.Monitor
	reloader        *reload.Reloader
	exporter        *export.Publisher

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New loads configuration from configFile, validates it, and constructs
// every component of the application, ready to Start.
func New(configFile string) (*App, error) {
	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.App.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.App.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	if err := app.initializeComponents(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize components: %w", err)
	}
	return app, nil
}

// initializeComponents builds the Catalog/HistoryStore/AgentRuntime core,
// then the optional services around it, in dependency order: the
// exporter has to exist before AgentRuntime is constructed (AgentRuntime
// takes it as an Option); the tracer is built afterwards and handed only
// to the HTTP server, and everything else only needs AgentRuntime itself.
func (app *App) initializeComponents() error {
	app.catalog = catalog.New()
	app.history = historystore.New()

	exporter, err := export.NewPublisher(app.config.Export, app.logger)
	if err != nil {
		return fmt.Errorf("failed to build export publisher: %w", err)
	}
	app.exporter = exporter

	opts := []agentruntime.Option{
		agentruntime.WithLogger(app.logger),
		agentruntime.WithMetrics(metrics.NewRecorder()),
		agentruntime.WithStackCaptureDefault(app.config.Agent.StackCaptureDefault),
	}
	if app.exporter != nil {
		opts = append(opts, agentruntime.WithExporter(app.exporter))
	}
	app.runtime = agentruntime.New(app.catalog, app.history, opts...)

	for _, locator := range app.config.Agent.TrackedFields {
		app.history.SetTrackingEnabled(historystore.FieldLocator{Class: locator.Class, Field: locator.Field}, true)
	}

	tracingProvider, err := tracing.NewProvider(app.config.Tracing, app.logger)
	if err != nil {
		return fmt.Errorf("failed to build tracing provider: %w", err)
	}
	app.tracingProvider = tracingProvider

	app.httpServer = server.New(app.config.Server, app.runtime, app.logger, tracingProvider.Tracer())

	if app.config.Metrics.Enabled {
		app.metricsServer = metrics.NewServer(addrString("", app.config.Metrics.Port), app.logger)
	}

	if app.config.ResourceMonitor.Enabled {
		pollInterval, err := time.ParseDuration(app.config.ResourceMonitor.PollInterval)
		if err != nil {
			return fmt.Errorf("invalid resource monitor poll interval: %w", err)
		}
		monitor, err := resourcemonitor.New(resourcemonitor.Config{
			PollInterval:      pollInterval,
			MaxRSSBytes:       app.config.ResourceMonitor.MaxRSSBytes,
			MaxGoroutines:     app.config.ResourceMonitor.MaxGoroutines,
			MaxHistoryEntries: app.config.ResourceMonitor.MaxHistoryEntries,
		}, app.logger, app.history.Size)
		if err != nil {
			return fmt.Errorf("failed to build resource monitor: %w", err)
		}
		app.resourceMonitor = monitor
	}

	if app.config.Reload.Enabled {
		reloader, err := reload.New(app.config.Reload.Path, app.logger, app.applyAgentSettings)
		if err != nil {
			return fmt.Errorf("failed to build config reloader: %w", err)
		}
		app.reloader = reloader
	}

	return nil
}

// applyAgentSettings is the reload.Reloader onChange callback: it turns
// on every locator the reloaded config lists. Locators the config no
// longer lists keep their current tracking state, and the reloaded Debug
// flag is not acted on: only the tracked-field set is reapplied.
func (app *App) applyAgentSettings(settings reload.AgentSettings) {
	wanted := make(map[historystore.FieldLocator]bool, len(settings.TrackedFields))
	for _, f := range settings.TrackedFields {
		wanted[historystore.FieldLocator{Class: f.Class, Field: f.Field}] = true
	}
	for locator := range wanted {
		app.history.SetTrackingEnabled(locator, true)
	}
	app.logger.WithField("tracked_fields", len(wanted)).Info("app: reapplied reloaded agent settings")
}

// Start begins the application lifecycle: metrics server, HTTP API,
// resource monitor, and config reloader, in the order that lets an
// earlier failure abort before a later component is left dangling.
func (app *App) Start() error {
	app.logger.Info("starting fieldwatch agent")

	if app.metricsServer != nil {
		app.metricsServer.Start()
	}
	app.httpServer.Start()

	if app.resourceMonitor != nil {
		app.resourceMonitor.Start(app.ctx)
	}
	if app.reloader != nil {
		if err := app.reloader.Start(app.ctx); err != nil {
			return fmt.Errorf("failed to start config reloader: %w", err)
		}
	}

	app.logger.Info("fieldwatch agent started")
	return nil
}

// Stop performs graceful shutdown of every component, in reverse order
// of Start, logging (but not propagating) any individual component's
// shutdown error.
func (app *App) Stop() error {
	app.logger.Info("stopping fieldwatch agent")
	app.cancel()

	if app.reloader != nil {
		app.reloader.Stop()
	}
	if app.resourceMonitor != nil {
		app.resourceMonitor.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		app.logger.WithError(err).Error("failed to shut down HTTP server")
	}
	if app.metricsServer != nil {
		if err := app.metricsServer.Stop(); err != nil {
			app.logger.WithError(err).Error("failed to stop metrics server")
		}
	}

	if app.tracingProvider != nil {
		tracingCtx, tracingCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer tracingCancel()
		if err := app.tracingProvider.Shutdown(tracingCtx); err != nil {
			app.logger.WithError(err).Error("failed to shut down tracing provider")
		}
	}

	if app.exporter != nil {
		exportCtx, exportCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer exportCancel()
		if err := app.exporter.Shutdown(exportCtx); err != nil {
			app.logger.WithError(err).Error("failed to shut down export publisher")
		}
	}

	app.wg.Wait()
	app.logger.Info("fieldwatch agent stopped")
	return nil
}

// Run starts the application and blocks until a shutdown signal is
// received, then stops it gracefully — the main entry point for running
// the agent as a long-lived process.
func (app *App) Run() error {
	if err := app.Start(); err != nil {
		return err
	}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	app.logger.Info("shutdown signal received")
	return app.Stop()
}

func addrString(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
