package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/moviesage/moviesage-api/internal/config"
	"github.com/moviesage/moviesage-api/internal/database/bunstore"
	"github.com/moviesage/moviesage-api/internal/database/sqlite"
	"github.com/moviesage/moviesage-api/internal/domain/repository"
	"github.com/moviesage/moviesage-api/internal/infrastructure/llm"
	"github.com/moviesage/moviesage-api/internal/infrastructure/resilience"
	"github.com/moviesage/moviesage-api/internal/infrastructure/sqlagent"
	httpserver "github.com/moviesage/moviesage-api/internal/interface/http"
	"github.com/moviesage/moviesage-api/internal/logging"
	"github.com/moviesage/moviesage-api/internal/usecase/query"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

const (
	narrationTemperature = 0.7
	narrationMaxTokens   = 150

	breakerFailThreshold = 3
	breakerOpenTimeout   = 30 * time.Second

	shutdownTimeout = 10 * time.Second
)

// OpenStore opens the SQLite file and ensures the movie schema exists.
func OpenStore(path string) (*bunstore.BunStore, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, err
	}
	store, err := bunstore.NewBunStore(db, sqlitedialect.New())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// App holds every long-lived dependency. Build it once at startup and Close it on exit.
type App struct {
	Service *query.Service

	store  *bunstore.BunStore
	ollama *llm.LocalOllamaClient
	gemini *llm.GeminiClient
	agent  *sqlagent.Agent
}

// NewApp constructs the dependency graph. An agent that fails to initialise is logged
// and left out; the autonomous endpoint then reports it as unavailable.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.For("server")

	store, err := OpenStore(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}
	app := &App{store: store}

	app.ollama = llm.NewLocalOllamaClient(cfg.OllamaBaseURL, cfg.OllamaModel,
		llm.WithTemperature(narrationTemperature),
		llm.WithMaxTokens(narrationMaxTokens),
		llm.WithTimeout(cfg.LLMTimeout()),
	)

	if cfg.PullModel {
		logger.Info().Str("model", cfg.OllamaModel).Msg("Ensuring local model is available")
		if err := app.ollama.PullModel(ctx); err != nil {
			logger.Warn().Err(err).Str("model", cfg.OllamaModel).Msg("Failed to pull model")
		}
	}

	var cloud repository.LLMClient
	if cfg.NarratorBackend == config.NarratorGemini {
		app.gemini, err = llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, narrationTemperature, narrationMaxTokens)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		cloud = app.gemini
	}

	router := resilience.NewGuardRouter(
		llm.NewRouter(app.ollama, cloud),
		resilience.NewCircuitBreaker(breakerFailThreshold, breakerOpenTimeout),
	)
	narrator := query.NewNarrator(router, cfg.LLMTimeout())

	var adapter *query.AgentAdapter
	app.agent, err = sqlagent.New(sqlagent.Options{
		DatabasePath:  cfg.DatabasePath,
		OllamaURL:     cfg.OllamaBaseURL,
		Model:         cfg.OllamaModel,
		MaxIterations: cfg.AgentMaxIterations,
		Timeout:       cfg.AgentTimeout(),
	})
	if err != nil {
		logger.Warn().Err(err).Msg("SQL agent unavailable")
		app.agent = nil
	} else {
		adapter = query.NewAgentAdapter(app.agent)
	}

	app.Service = query.NewService(store, narrator, adapter, cfg.TopRatedMinVotes)

	narratorName := app.ollama.Name()
	if app.gemini != nil {
		narratorName = app.gemini.Name()
	}
	logger.Info().
		Str("database", cfg.DatabasePath).
		Str("ollama", app.ollama.Host()).
		Str("narrator", narratorName).
		Bool("agent", adapter != nil).
		Msg("Application initialized")

	return app, nil
}

// Close releases the database handles and the cloud client.
func (a *App) Close() error {
	var errs []error
	if a.agent != nil {
		errs = append(errs, a.agent.Close())
	}
	if a.gemini != nil {
		errs = append(errs, a.gemini.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

type Server struct {
	cfg        *config.Config
	httpServer *http.Server
}

func New(cfg *config.Config) *Server {
	return &Server{
		cfg: cfg,
	}
}

// Run serves the API until SIGINT or SIGTERM, then drains connections.
func (s *Server) Run() error {
	ctx := context.Background()
	logger := logging.For("server")

	app, err := NewApp(ctx, s.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			logger.Warn().Err(closeErr).Msg("Failed to release resources")
		}
	}()

	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           httpserver.NewServer(app.Service).RegisterRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", s.cfg.HTTPAddr).Msg("Starting REST API server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-stop:
		logger.Info().Msg("Shutdown signal received, draining connections")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP shutdown error")
	}

	logger.Info().Msg("Server stopped gracefully")
	return nil
}
