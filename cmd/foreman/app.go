package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360studio/foreman/agent"
	"github.com/c360studio/foreman/config"
	"github.com/c360studio/foreman/engine"
	"github.com/c360studio/foreman/event"
	"github.com/c360studio/foreman/storage"
	"github.com/c360studio/foreman/task"
)

// App wires together the engine and its collaborators.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	// NATS
	embeddedServer *server.Server
	natsConn       *nats.Conn
	js             jetstream.JetStream

	// Storage
	store *storage.Store

	// Engine
	engine *engine.Engine
}

// NewApp creates a new application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) *App {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{cfg: cfg, logger: logger}
}

// Start initializes and starts all components.
func (a *App) Start(ctx context.Context) error {
	// Start NATS (embedded or connect to external)
	if err := a.startNATS(ctx); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	// Initialize storage
	store, err := storage.NewStore(ctx, a.js)
	if err != nil {
		return fmt.Errorf("initialize storage: %w", err)
	}
	a.store = store

	emitter, err := event.NewNATSEmitter(ctx, a.js, a.logger)
	if err != nil {
		return fmt.Errorf("initialize event emitter: %w", err)
	}

	tasks := task.NewStore(task.Options{
		ConsensusEnabled: a.cfg.Quality.ConsensusRequired,
		Logger:           a.logger,
	})

	temperature := a.cfg.Model.Temperature
	generator := agent.NewClient(agent.Config{
		Endpoint:    a.cfg.Model.Endpoint,
		Model:       a.cfg.Model.Name,
		Temperature: &temperature,
	}, agent.WithLogger(a.logger))

	eng, err := engine.New(engine.Options{
		Config: engine.Config{
			QualityThreshold:   a.cfg.Quality.Threshold,
			ConsensusThreshold: a.cfg.Quality.ConsensusThreshold,
			AutoValidation:     a.cfg.Quality.AutoValidation,
			SpecsDriven:        a.cfg.Engine.SpecsDriven,
			MaxConcurrent:      a.cfg.Engine.MaxConcurrent,
			GenerateTimeout:    a.cfg.Engine.GenerateTimeout,
			MaxRetries:         a.cfg.Engine.MaxRetries,
			BackoffBase:        a.cfg.Engine.BackoffBase,
			BackoffMultiplier:  a.cfg.Engine.BackoffMultiplier,
		},
		Tasks:     tasks,
		Generator: generator,
		Emitter:   emitter,
		Persister: store,
		Logger:    a.logger,
	})
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	a.engine = eng

	a.logger.Info("Components initialized")
	return nil
}

func (a *App) startNATS(ctx context.Context) error {
	if a.cfg.NATS.URL != "" && !a.cfg.NATS.Embedded {
		// Connect to external NATS
		a.logger.Info("Connecting to NATS", "url", a.cfg.NATS.URL)
		conn, err := nats.Connect(a.cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn
	} else {
		// Start embedded NATS server
		a.logger.Info("Starting embedded NATS server")
		opts := &server.Options{
			Port:      -1, // Random available port
			JetStream: true,
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}

		go ns.Start()

		// Wait for server to be ready
		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return fmt.Errorf("embedded NATS server failed to start")
		}

		a.embeddedServer = ns

		// Connect to embedded server
		conn, err := nats.Connect(ns.ClientURL())
		if err != nil {
			ns.Shutdown()
			return fmt.Errorf("connect to embedded NATS: %w", err)
		}
		a.natsConn = conn
	}

	// Get JetStream context
	js, err := jetstream.New(a.natsConn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.js = js

	return nil
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() {
	// Close NATS connection
	if a.natsConn != nil {
		_ = a.natsConn.Drain()
		a.natsConn.Close()
	}

	// Shutdown embedded server
	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}

	a.logger.Info("Shutdown complete")
}
