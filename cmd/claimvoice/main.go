// Command claimvoice runs the ClaimVoice phone intake server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"

	"github.com/ganalabs/claimvoice/internal/config"
	"github.com/ganalabs/claimvoice/internal/health"
	"github.com/ganalabs/claimvoice/internal/observe"
	"github.com/ganalabs/claimvoice/internal/resilience"
	"github.com/ganalabs/claimvoice/internal/routing"
	"github.com/ganalabs/claimvoice/internal/server"
	"github.com/ganalabs/claimvoice/internal/store"
	"github.com/ganalabs/claimvoice/pkg/provider/extract"
	extractoai "github.com/ganalabs/claimvoice/pkg/provider/extract/openai"
	modeloai "github.com/ganalabs/claimvoice/pkg/provider/model/openai"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "claimvoice: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "claimvoice: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("claimvoice starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"public_host", cfg.Server.PublicHost,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	telemetryShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Claim store (optional) ────────────────────────────────────────────────
	var (
		opts     []server.Option
		checkers []health.Checker
	)
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			slog.Error("failed to open postgres pool", "err", err)
			return 1
		}
		defer pool.Close()

		st := store.New(pool)
		if err := st.Migrate(ctx); err != nil {
			slog.Error("failed to migrate claim store", "err", err)
			return 1
		}
		opts = append(opts, server.WithStore(st))
		checkers = append(checkers, health.PingChecker("postgres", pool))
		slog.Info("claim store ready")
	} else {
		slog.Warn("no postgres_dsn configured — claims will not be persisted")
	}

	// ── Providers ─────────────────────────────────────────────────────────────
	provider := buildModelProvider(cfg.Providers.Model)

	extractor, err := buildExtractor(cfg.Providers.Extractor)
	if err != nil {
		slog.Error("failed to create extractor", "err", err)
		return 1
	}

	processor, err := buildProcessor(cfg.Providers.Fraud, logger)
	if err != nil {
		slog.Error("failed to create fraud analyzer", "err", err)
		return 1
	}
	opts = append(opts,
		server.WithLogger(logger),
		server.WithMetrics(metrics),
		server.WithProcessor(processor),
		server.WithHealthCheckers(checkers...),
	)

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	// ── Server ────────────────────────────────────────────────────────────────
	srv := server.New(cfg, provider, extractor, opts...)
	go srv.Supervise(ctx)

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server ready — press Ctrl+C to shut down")
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("listen error", "err", err)
			return 1
		}
	case <-ctx.Done():
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildModelProvider constructs the realtime speech-to-speech provider that
// drives live calls.
func buildModelProvider(entry config.ProviderEntry) *modeloai.Provider {
	var mopts []modeloai.Option
	if entry.Model != "" {
		mopts = append(mopts, modeloai.WithModel(entry.Model))
	}
	if entry.BaseURL != "" {
		mopts = append(mopts, modeloai.WithBaseURL(entry.BaseURL))
	}
	slog.Info("provider created", "kind", "model", "name", entry.Name, "model", entry.Model)
	return modeloai.New(entry.APIKey, mopts...)
}

// buildExtractor constructs the chat-completion extractor that turns caller
// speech into claim fields, behind a circuit breaker so a flapping backend
// cannot stall every conversation turn.
func buildExtractor(entry config.ProviderEntry) (extract.Extractor, error) {
	var eopts []extractoai.Option
	if entry.BaseURL != "" {
		eopts = append(eopts, extractoai.WithBaseURL(entry.BaseURL))
	}
	ex, err := extractoai.New(entry.APIKey, entry.Model, eopts...)
	if err != nil {
		return nil, fmt.Errorf("create extractor %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "extractor", "name", entry.Name, "model", entry.Model)
	return resilience.NewExtractorFallback(ex, entry.Name, resilience.FallbackConfig{}), nil
}

// buildProcessor constructs the post-call workflow, with fraud analysis only
// when a fraud provider is configured.
func buildProcessor(entry config.ProviderEntry, logger *slog.Logger) (*routing.Processor, error) {
	if entry.Name == "" {
		slog.Info("fraud analysis disabled — claims score neutral")
		return routing.NewProcessor(nil, routing.WithLogger(logger)), nil
	}

	var fopts []routing.FraudAnalyzerOption
	if entry.BaseURL != "" {
		fopts = append(fopts, routing.WithFraudBaseURL(entry.BaseURL))
	}
	analyzer, err := routing.NewFraudAnalyzer(entry.APIKey, entry.Model, fopts...)
	if err != nil {
		return nil, fmt.Errorf("create fraud analyzer %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "fraud", "name", entry.Name, "model", entry.Model)
	guarded := resilience.NewFraudFallback(analyzer, entry.Name, resilience.FallbackConfig{})
	return routing.NewProcessor(guarded, routing.WithLogger(logger)), nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║       ClaimVoice — startup summary    ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Model", cfg.Providers.Model.Name, cfg.Providers.Model.Model)
	printProvider("Extractor", cfg.Providers.Extractor.Name, cfg.Providers.Extractor.Model)
	printProvider("Fraud", cfg.Providers.Fraud.Name, cfg.Providers.Fraud.Model)
	if cfg.Storage.PostgresDSN != "" {
		fmt.Printf("║  Claim store     : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Claim store     : %-19s ║\n", "(disabled)")
	}
	if cfg.Server.PublicHost != "" {
		fmt.Printf("║  Public host     : %-19s ║\n", trim(cfg.Server.PublicHost))
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, trim(value))
}

func trim(value string) string {
	if len(value) > 19 {
		return value[:16] + "…"
	}
	return value
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
