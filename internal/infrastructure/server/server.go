package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/Orbit/backend/internal/api/http"
	"github.com/GriffinCanCode/Orbit/backend/internal/api/middleware"
	"github.com/GriffinCanCode/Orbit/backend/internal/api/ws"
	"github.com/GriffinCanCode/Orbit/backend/internal/docstore"
	"github.com/GriffinCanCode/Orbit/backend/internal/docstore/badgerstore"
	"github.com/GriffinCanCode/Orbit/backend/internal/docstore/memstore"
	"github.com/GriffinCanCode/Orbit/backend/internal/docstore/pgstore"
	"github.com/GriffinCanCode/Orbit/backend/internal/domain/assistant"
	"github.com/GriffinCanCode/Orbit/backend/internal/domain/automation"
	"github.com/GriffinCanCode/Orbit/backend/internal/domain/session"
	"github.com/GriffinCanCode/Orbit/backend/internal/domain/user"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/config"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/Orbit/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/Orbit/backend/internal/providers/ai"
	"github.com/GriffinCanCode/Orbit/backend/internal/providers/fetch"
	"github.com/GriffinCanCode/Orbit/backend/internal/providers/playback"
	"github.com/GriffinCanCode/Orbit/backend/internal/shared/utils"
)

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	handler http.Handler
	store   docstore.Store
	runner  *playback.Runner
	hub     *ws.Hub
	tracer  *tracing.Tracer
	metrics *monitoring.Metrics
	logger  *logging.Logger
	config  *config.Config
}

// NewServer creates a new server instance
func NewServer(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*Server, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger.Info("Initializing Orbit server",
		zap.String("addr", cfg.Server.Address()),
		zap.String("store", cfg.Store.Driver),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("automation_engine", cfg.Automation.Engine),
	)

	// Initialize metrics first (needed by other components)
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("orbit-backend", logger.Component("tracing"))
	onBreaker := breakerHook(metrics, logger.Component("resilience"))

	raw, err := openStore(ctx, cfg.Store, logger.Component("docstore"))
	if err != nil {
		tracer.Close()
		return nil, err
	}
	store := docstore.Observed(raw, metrics)
	logger.Info("Document store ready", zap.String("driver", cfg.Store.Driver))

	fetcher := fetch.NewClient(fetch.Options{
		Timeout:           cfg.Fetch.Timeout,
		MaxBytes:          cfg.Fetch.MaxBytes,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Retries:           2,
		Logger:            logger.Component("fetch"),
		OnBreakerChange:   onBreaker,
	})

	provider, providerBreaker := newProvider(cfg.AI, metrics, logger)
	runner := playback.NewRunner(newEngine(cfg.Automation, fetcher, logger), playback.Options{OnBreakerChange: onBreaker}, logger.Component("playback"))

	// Domain services
	hub := ws.NewHub(metrics, logger.Component("ws"))
	users := user.NewService(store, user.Options{
		TokenTTL:   cfg.Auth.TokenTTL,
		BcryptCost: cfg.Auth.BcryptCost,
	}, logger.Component("user"))
	sessions := session.NewManager(store, session.Options{
		StrictNotFound: cfg.Store.StrictNotFound,
		Metrics:        metrics,
	}, logger.Component("session"))
	workflows := automation.NewManager(store, runner, automation.Options{
		RunTimeout: cfg.Automation.Timeout,
		Notifier:   hub,
		Metrics:    metrics,
	}, logger.Component("automation"))
	users.AddDeactivator(sessions)
	users.AddDeactivator(workflows)
	asst := assistant.NewService(provider, fetcher, sessions, assistant.Options{}, logger.Component("assistant"))

	seeded, err := workflows.SeedTemplates(ctx, cfg.Automation.TemplatesDir)
	if err != nil {
		logger.Warn("Failed to seed workflow templates", zap.Error(err))
	} else {
		logger.Info("Workflow templates seeded", zap.Int("count", seeded))
	}

	// Create router
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.CORS(middleware.CORSOptions{Origins: cfg.CORS.Origins}))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}
	router.Use(middleware.BodyLimit(utils.MaxJSONSize))

	summary := apihttp.NewMetricsSummary(metrics, fetcher.Breaker, runner.Breaker(), providerBreaker)
	handlers := apihttp.NewHandlers(users, sessions, workflows, asst, store, summary, logger.Component("http"))
	auth := middleware.Auth(users, logger.Component("auth"))
	wsHandler := ws.NewHandler(hub, cfg.CORS.Origins, logger.Component("ws"))

	apihttp.RegisterRoutes(router, handlers, auth)
	router.GET("/ws", auth, wsHandler.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	var handler http.Handler = router
	if cfg.Server.Compression {
		handler = compress(router)
	}

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		handler: handler,
		store:   store,
		runner:  runner,
		hub:     hub,
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
		config:  cfg,
	}, nil
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is canceled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Server.Address(),
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server", zap.Duration("timeout", s.config.Server.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	return nil
}

// Close releases the browser, the store and the tracer
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	var errs []error
	if err := s.runner.Close(); err != nil {
		s.logger.Error("Failed to close playback engine", zap.Error(err))
		errs = append(errs, err)
	}
	if err := s.store.Close(); err != nil {
		s.logger.Error("Failed to close document store", zap.Error(err))
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}
	s.tracer.Close()

	// Sync logger before exit
	_ = s.logger.Sync()
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg config.StoreConfig, log *zap.Logger) (docstore.Store, error) {
	switch cfg.Driver {
	case "memory":
		return memstore.New(), nil
	case "badger":
		s, err := badgerstore.Open(badgerstore.Options{Path: cfg.Path, Logger: log})
		if err != nil {
			return nil, fmt.Errorf("failed to open badger store: %w", err)
		}
		return s, nil
	case "postgres":
		s, err := pgstore.Open(ctx, pgstore.Options{DSN: cfg.DSN, Retries: 5, Logger: log})
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
}

// newProvider returns the configured AI provider and its breaker, if any.
func newProvider(cfg config.AIConfig, metrics *monitoring.Metrics, logger *logging.Logger) (ai.Provider, *resilience.Breaker) {
	if strings.ToLower(cfg.Provider) != "openai" {
		logger.Info("AI provider disabled")
		return ai.Disabled{}, nil
	}
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		logger.Warn("OPENAI_API_KEY is not set; AI endpoints will answer 502")
		return ai.Disabled{}, nil
	}
	p := ai.NewOpenAI(ai.OpenAIConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
		Timeout:     cfg.Timeout,
	}, metrics, logger.Component("ai"))
	return p, p.Breaker()
}

func newEngine(cfg config.AutomationConfig, fetcher *fetch.Client, logger *logging.Logger) playback.Engine {
	if cfg.Engine == "playwright" {
		return playback.NewPlaywright(playback.PlaywrightOptions{
			Headless: cfg.Headless,
			Timeout:  cfg.Timeout,
			Install:  cfg.Install,
		}, logger.Component("playwright"))
	}
	return playback.NewStatic(fetcher)
}

// breakerHook logs breaker transitions and exports them as a gauge.
func breakerHook(metrics *monitoring.Metrics, log *zap.Logger) func(name string, from, to resilience.State) {
	return func(name string, from, to resilience.State) {
		log.Warn("Circuit breaker changed state",
			zap.String("breaker", name),
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
		metrics.SetBreakerState(name, int(to))
	}
}

// compress gzips responses except websocket upgrades, which need the raw
// connection.
func compress(next http.Handler) http.Handler {
	gz := gzhttp.GzipHandler(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if websocket.IsWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}
		gz.ServeHTTP(w, r)
	})
}
