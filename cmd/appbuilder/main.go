package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/appbuilder/internal/builder"
	"git.home.luguber.info/inful/appbuilder/internal/config"
	"git.home.luguber.info/inful/appbuilder/internal/events"
	"git.home.luguber.info/inful/appbuilder/internal/forge"
	"git.home.luguber.info/inful/appbuilder/internal/generate"
	"git.home.luguber.info/inful/appbuilder/internal/history"
	"git.home.luguber.info/inful/appbuilder/internal/maintenance"
	"git.home.luguber.info/inful/appbuilder/internal/metrics"
	"git.home.luguber.info/inful/appbuilder/internal/notify"
	"git.home.luguber.info/inful/appbuilder/internal/server/handlers"
	"git.home.luguber.info/inful/appbuilder/internal/server/httpserver"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct{} `cmd:"" help:"Run the build service"`

	Build struct {
		RequestFile string `arg:"" help:"JSON file containing one build request"`
		Keep        bool   `help:"Do not delete the request file afterwards"`
	} `cmd:"" help:"Execute a single build request from a file and exit"`

	InitConfig struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Write a starter configuration file"`
}

func main() {
	ctx := kong.Parse(&CLI)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	switch ctx.Command() {
	case "serve":
		if err := runServe(logger); err != nil {
			slog.Error("Serve failed", "error", err)
			os.Exit(1)
		}
	case "build <request-file>":
		if err := runBuild(logger, CLI.Build.RequestFile, CLI.Build.Keep); err != nil {
			slog.Error("Build failed", "error", err)
			os.Exit(1)
		}
	case "init-config":
		if err := config.WriteStarter(CLI.Config, CLI.InitConfig.Force); err != nil {
			slog.Error("Init failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Configuration written", "path", CLI.Config)
	}
}

// wiring holds the assembled service collaborators. The publisher and
// generator are kept by their concrete types so reloaded credentials can
// be pushed into them.
type wiring struct {
	cfg       *config.Config
	store     *history.Store
	orch      *builder.Orchestrator
	emitter   events.Emitter
	registry  *prom.Registry
	publisher *forge.GitHubClient
	generator *generate.Client
}

func buildWiring(logger *slog.Logger) (*wiring, error) {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}

	store, err := history.NewStore(cfg.History.Path)
	if err != nil {
		return nil, fmt.Errorf("open history store: %w", err)
	}

	publisher, err := forge.NewGitHubClient(cfg.Forge)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("create publisher: %w", err)
	}

	var emitter events.Emitter = events.NoopEmitter{}
	if cfg.Events.Enabled {
		natsEmitter, err := events.NewNATSEmitter(cfg.Events)
		if err != nil {
			logger.Warn("event publishing unavailable, continuing without it", "error", err)
		} else {
			emitter = natsEmitter
		}
	}

	registry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	generator := generate.NewClient(cfg.Generator)
	orch := builder.NewOrchestrator(
		generator,
		publisher,
		store,
		notify.NewNotifier(cfg.Notify.MaxAttempts, cfg.Notify.TimeoutDuration(), logger),
		logger,
		builder.WithEmitter(emitter),
		builder.WithRecorder(recorder),
	)

	return &wiring{
		cfg: cfg, store: store, orch: orch, emitter: emitter,
		registry: registry, publisher: publisher, generator: generator,
	}, nil
}

func runServe(logger *slog.Logger) error {
	w, err := buildWiring(logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = w.emitter.Close()
		_ = w.store.Close()
	}()

	tracker := handlers.NewStatusTracker()
	buildHandlers := handlers.NewBuildHandlers(w.cfg.Secret, w.orch, tracker, w.emitter, logger)
	srv := httpserver.New(
		w.cfg.Server,
		buildHandlers,
		handlers.NewMonitoringHandlers(tracker, logger),
		metrics.HTTPHandler(w.registry),
		logger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		return err
	}

	var maint *maintenance.Scheduler
	if w.cfg.Maintenance.Enabled {
		maint, err = maintenance.NewScheduler(w.store, logger)
		if err != nil {
			return err
		}
		if err := maint.Start(w.cfg.Maintenance.IntervalDuration()); err != nil {
			return err
		}
	}

	// Hot reload rotates the shared secret and provider tokens in place.
	// Ports, store path, and event wiring still need a restart.
	watcher, err := config.NewWatcher(CLI.Config, func(updated *config.Config) {
		buildHandlers.SetSecret(updated.Secret)
		w.publisher.SetToken(updated.Forge.Token)
		w.generator.SetToken(updated.Generator.Token)
		logger.Info("credentials rotated from reloaded configuration")
	})
	if err == nil {
		if werr := watcher.Start(ctx); werr != nil {
			logger.Warn("config watcher not started", "error", werr)
		}
		defer func() { _ = watcher.Stop() }()
	} else {
		logger.Warn("config watcher unavailable", "error", err)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer cancel()
	if maint != nil {
		_ = maint.Stop()
	}
	return srv.Stop(shutdownCtx)
}

// runBuild executes one request from a file, mirroring the service's
// background path, and removes the file once processed.
func runBuild(logger *slog.Logger, requestFile string, keep bool) error {
	data, err := os.ReadFile(requestFile)
	if err != nil {
		return fmt.Errorf("read request file: %w", err)
	}

	var req builder.BuildRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parse request file: %w", err)
	}

	w, err := buildWiring(logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = w.emitter.Close()
		_ = w.store.Close()
	}()

	if !keep {
		defer func() {
			if err := os.Remove(requestFile); err != nil {
				logger.Warn("could not remove request file", "path", requestFile, "error", err)
			}
		}()
	}

	res := w.orch.Run(context.Background(), uuid.NewString(), &req)
	if !res.OK {
		return fmt.Errorf("build failed for task %s round %d", req.Task, req.Round)
	}
	logger.Info("build completed",
		"outcome", string(res.Outcome),
		"repo_url", res.RepoURL,
		"pages_url", res.PagesURL)
	return nil
}

const httpShutdownTimeout = 15 * time.Second
