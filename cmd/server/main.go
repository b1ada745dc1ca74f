// Package main is the entry point of the application
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tecu23/arena-server/internal/auth"
	"github.com/tecu23/arena-server/pkg/agent"
	"github.com/tecu23/arena-server/pkg/chess"
	"github.com/tecu23/arena-server/pkg/config"
	"github.com/tecu23/arena-server/pkg/engine"
	"github.com/tecu23/arena-server/pkg/events"
	"github.com/tecu23/arena-server/pkg/manager"
	"github.com/tecu23/arena-server/pkg/metrics"
	"github.com/tecu23/arena-server/pkg/repository"
	"github.com/tecu23/arena-server/pkg/server"
)

// App encapsulates global dependencies
type application struct {
	Auth       *auth.APIKeyAuth
	Logger     *zap.Logger
	Config     *config.Config
	Publisher  *events.Publisher
	Hub        *server.Hub
	Manager    *manager.Manager
	EnginePool *engine.Pool
	Registry   *prometheus.Registry
	Upgrader   websocket.Upgrader
	Server     *http.Server

	StartTime time.Time
}

//	@title						Arena Server API
//	@version					1.0
//	@description				Bootstrap REST surface of the multiplayer chess server. Play happens over /ws.
//	@BasePath					/
//	@securityDefinitions.apikey	ApiKeyAuth
//	@in							header
//	@name						X-Api-Key
func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	port := flag.String("port", "", "server port (overrides PORT)")
	flag.Parse()

	// A missing .env is fine, the environment may already be set
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	if *debug {
		cfg.Debug = true
	}
	if *port != "" {
		cfg.Port = *port
	}

	// Initialize logger
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	if envErr != nil {
		logger.Debug("no .env file loaded", zap.Error(envErr))
	}

	app, err := newApplication(cfg, logger)
	if err != nil {
		logger.Fatal("initialize application error", zap.Error(err))
	}

	err = app.serve()
	if err != nil {
		logger.Fatal("error serving", zap.Error(err))
	}
}

// newApplication wires every component from the configuration.
func newApplication(cfg *config.Config, logger *zap.Logger) (*application, error) {
	// Initialize event publisher
	publisher := events.NewPublisher()
	if cfg.Debug {
		publisher.SubscribeAll(func(e events.Event) {
			logger.Debug("event", zap.String("type", string(e.Type)), zap.String("game_id", e.GameID))
		})
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	// Initialize repository
	repo := repository.NewInMemoryRepository(logger.Named("repository"))

	hub := server.NewHub(publisher, m, logger.Named("hub"))

	var (
		policy     agent.Policy = agent.RandomPolicy{}
		enginePool *engine.Pool
	)
	if cfg.EnginePath != "" {
		// Initialize engine pool
		enginePool = engine.NewEnginePool(cfg.EnginePath, cfg.EnginePoolSize, logger.Named("engine"))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := enginePool.Initialize(ctx); err != nil {
			enginePool.Shutdown()
			return nil, fmt.Errorf("initialize engine pool: %w", err)
		}
		policy = agent.NewEnginePolicy(enginePool, cfg.EngineMoveTime, logger.Named("policy"))
	}

	// Initialize game manager
	gm := manager.NewManager(
		repo,
		chess.StandardRules{},
		hub,
		policy,
		agent.Config{
			MinDelay:      cfg.AIMinDelay,
			MaxDelay:      cfg.AIMaxDelay,
			ChooseTimeout: cfg.EngineMoveTime + 5*time.Second,
		},
		publisher,
		m,
		manager.Options{
			Retention:    cfg.SessionRetention,
			AbandonAfter: cfg.AbandonAfter,
		},
		logger.Named("manager"),
	)
	hub.SetRouter(gm)

	app := &application{
		Auth:       auth.NewAPIKeyAuth(cfg.APIKeys),
		Logger:     logger,
		Config:     cfg,
		Publisher:  publisher,
		Hub:        hub,
		Manager:    gm,
		EnginePool: enginePool,
		Registry:   registry,
		StartTime:  time.Now(),
	}
	app.Upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     app.checkOrigin,
	}

	return app, nil
}

func initLogger(debug bool) *zap.Logger {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	return logger
}

// Shutdown cleans up resources
func (app *application) Shutdown() {
	// Shut down hub
	if app.Hub != nil {
		app.Hub.Shutdown()
	}
	if app.Manager != nil {
		app.Manager.Shutdown()
	}
	if app.EnginePool != nil {
		app.EnginePool.Shutdown()
	}

	app.Logger.Info("All components shut down successfully")
}
