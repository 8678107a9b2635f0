// callcoach - sales call practice server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/callcoach/internal/api"
	"github.com/ashureev/callcoach/internal/call"
	"github.com/ashureev/callcoach/internal/config"
	"github.com/ashureev/callcoach/internal/dialogue"
	"github.com/ashureev/callcoach/internal/health"
	"github.com/ashureev/callcoach/internal/identity"
	"github.com/ashureev/callcoach/internal/llm"
	"github.com/ashureev/callcoach/internal/middleware"
	"github.com/ashureev/callcoach/internal/retention"
	"github.com/ashureev/callcoach/internal/runner"
	"github.com/ashureev/callcoach/internal/shared"
	"github.com/ashureev/callcoach/internal/speech"
	"github.com/ashureev/callcoach/internal/store"
)

func main() {
	dotenvPath := os.Getenv("DOTENV_PATH")
	if dotenvPath == "" {
		dotenvPath = ".env"
	}
	envErr := godotenv.Load(dotenvPath)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv("LOG_LEVEL")),
	}))
	slog.SetDefault(logger)

	if envErr != nil {
		slog.Info("No .env file found, using environment variables", "path", dotenvPath)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server",
		"port", cfg.Port,
		"dev", cfg.IsDevelopment(),
		"store", cfg.Store.Driver,
		"llm_provider", cfg.LLM.Provider)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize session store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected")

	backend, closeBackend, err := llm.NewBackend(cfg.LLM, cfg.Timeout.LLM, logger)
	if err != nil {
		slog.Warn("Failed to initialize LLM backend, prospect replies will use the rule table",
			"provider", cfg.LLM.Provider,
			"error", err)
		backend = nil
	}
	defer closeBackend()

	var gen dialogue.Generator
	if backend != nil {
		gen = backend
		slog.Info("LLM backend ready", "provider", cfg.LLM.Provider)
	} else {
		slog.Info("LLM augmentation disabled")
	}
	engine := dialogue.NewEngine(gen, cfg.Timeout.LLM, logger)

	run, probe := newRunner(cfg)
	stt, tts := newSpeech(cfg, run)

	var checker health.Checker
	if backend != nil {
		checker = backend
	}
	runtimeDeps := health.Deps{
		Provider:        cfg.LLM.Provider,
		Generator:       checker,
		WhisperTemplate: cfg.Speech.WhisperCmdTemplate,
		PiperTemplate:   cfg.Speech.PiperCmdTemplate,
		PiperVoicePath:  cfg.Speech.PiperVoicePath,
		Runner:          run,
		Container:       probe,
	}

	limiter := api.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	defer limiter.Stop()

	calls := call.NewManager()
	defer calls.CloseAll()

	// Initialize handlers.
	baseHandler := api.NewHandler(repo, cfg)
	healthHandler := api.NewHealthHandler(repo, cfg.Timeout.HealthCheck, func(ctx context.Context) health.Report {
		return health.CheckRuntime(ctx, runtimeDeps)
	})
	sessionHandler := api.NewSessionHandler(baseHandler)
	dialogueHandler := api.NewDialogueHandler(engine, limiter)
	speechHandler := api.NewSpeechHandler(stt, tts, cfg.MaxAudioBytes, cfg.Timeout.Speech, limiter)
	callHandler := call.NewHandler(repo, engine, stt, tts, calls, call.Options{
		AllowedOrigins:  cfg.AllowedOrigins,
		IsDev:           cfg.IsDevelopment(),
		MaxMessageBytes: cfg.MaxAudioBytes*4/3 + 4096,
		Retry:           shared.RetryPolicy{MaxRetries: cfg.Retry.MaxRetries, BaseDelay: cfg.Retry.BaseDelay},
	}, logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	healthHandler.RegisterRoutes(r)
	sessionHandler.RegisterRoutes(r)
	dialogueHandler.RegisterRoutes(r)
	speechHandler.RegisterRoutes(r)

	// WebSocket endpoint.
	r.Get("/ws/call", callHandler.ServeHTTP)

	// WebSocket calls are long lived, so there is no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	if cfg.Retention.Max > 0 {
		sweeper := &retention.Sweeper{
			Repo:   repo,
			MaxAge: cfg.Retention.Max,
			IODir:  cfg.Speech.RuntimeIODir,
			Retry:  shared.RetryPolicy{MaxRetries: cfg.Retry.MaxRetries, BaseDelay: cfg.Retry.BaseDelay},
		}
		sweeper.Start(ctx, cfg.Retention.SweepInterval)
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openStore(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	switch cfg.Store.Driver {
	case config.StoreRedis:
		return store.NewRedis(ctx, store.RedisConfig{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
			Prefix:   cfg.Store.RedisPrefix,
		})
	case config.StoreSQLite:
		return store.NewSQLite(cfg.Store.DBPath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// newRunner picks where speech tools execute. The probe is nil when they run
// on the host.
func newRunner(cfg *config.Config) (runner.Runner, health.ContainerProbe) {
	if cfg.Speech.Container == "" {
		return runner.NewShell(), nil
	}
	d, err := runner.NewDocker(cfg.Speech.Container, cfg.Speech.ContainerUser)
	if err != nil {
		slog.Warn("Failed to initialize Docker speech runner, falling back to host shell", "error", err)
		return runner.NewShell(), nil
	}
	return d, d
}

func newSpeech(cfg *config.Config, run runner.Runner) (speech.Transcriber, speech.Synthesizer) {
	var stt speech.Transcriber = speech.PlaceholderTranscriber{}
	if cfg.Speech.WhisperCmdTemplate != "" {
		stt = speech.NewWhisperCLI(cfg.Speech.WhisperCmdTemplate, cfg.Speech.RuntimeIODir, run)
		slog.Info("Whisper transcription enabled")
	}

	var tts speech.Synthesizer = speech.PlaceholderSynthesizer{}
	if cfg.Speech.PiperCmdTemplate != "" && cfg.Speech.PiperVoicePath != "" {
		tts = speech.NewPiperCLI(cfg.Speech.PiperCmdTemplate, cfg.Speech.PiperVoicePath, cfg.Speech.RuntimeIODir, run)
		slog.Info("Piper synthesis enabled", "voice", cfg.Speech.PiperVoicePath)
	}
	return stt, tts
}
