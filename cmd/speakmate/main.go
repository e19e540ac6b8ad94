// Command speakmate is the voice chess move server: it resolves speech
// recognizer transcripts into legal moves and UI commands over a WebSocket
// session endpoint.
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
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/speakmate/speakmate/internal/config"
	"github.com/speakmate/speakmate/internal/history"
	"github.com/speakmate/speakmate/internal/lexicon"
	"github.com/speakmate/speakmate/internal/observe"
	"github.com/speakmate/speakmate/internal/server"
	"github.com/speakmate/speakmate/internal/voice"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "speakmate: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "speakmate: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("speakmate starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"language", cfg.Grammar.Language,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────
	shutdownObserve, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName: "speakmate",
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownObserve(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	metrics, err := observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Lexicon ───────────────────────────────────────────────────────────
	lexOpts := []lexicon.Option{}
	if cfg.Grammar.PhoneticThreshold > 0 {
		lexOpts = append(lexOpts, lexicon.WithPhoneticThreshold(cfg.Grammar.PhoneticThreshold))
	}
	if cfg.Grammar.FuzzyThreshold > 0 {
		lexOpts = append(lexOpts, lexicon.WithFuzzyThreshold(cfg.Grammar.FuzzyThreshold))
	}
	lex := lexicon.New(lexOpts...)

	grammarPath := filepath.Join(cfg.Grammar.Dir, cfg.Grammar.Language+".yaml")
	err = lex.Load(grammarPath)
	metrics.RecordGrammarReload(ctx, cfg.Grammar.Language, err)
	if err != nil {
		slog.Error("failed to load grammar", "path", grammarPath, "err", err)
		return 1
	}
	slog.Info("grammar loaded", "path", grammarPath, "language", lex.Language())

	// ── Utterance history (optional) ──────────────────────────────────────
	var store history.Store
	if dsn := cfg.History.PostgresDSN; dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pool.Close()

		pg := history.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("failed to migrate history schema", "err", err)
			return 1
		}
		store = pg
		slog.Info("utterance history enabled")
	}

	// ── Server ────────────────────────────────────────────────────────────
	checkers := []server.Checker{
		{
			Name: "lexicon",
			Check: func(context.Context) error {
				if lex.Language() == "" {
					return errors.New("no grammar loaded")
				}
				return nil
			},
		},
	}

	srv := server.New(server.Config{
		Controller: voice.ControllerConfig{
			Lexicon:       lex,
			Metrics:       metrics,
			Clarity:       cfg.Match.Clarity.Level(),
			Tuning:        cfg.Match.Tuning(),
			ForbiddenCost: cfg.Match.ForbiddenCost,
			Labels:        cfg.Match.Labels,
			RoleCap:       cfg.Match.RoleCap,
			IdleTimeout:   cfg.Match.IdleTimeout(),
		},
		History:  store,
		Checkers: checkers,
	})

	httpSrv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready", "listen_addr", cfg.Server.ListenAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}

	slog.Info("speakmate stopped")
	return 0
}

// newLogger builds the default slog logger at the configured level.
func newLogger(level config.LogLevel) *slog.Logger {
	var l slog.Level
	switch level {
	case config.LogDebug:
		l = slog.LevelDebug
	case config.LogWarn:
		l = slog.LevelWarn
	case config.LogError:
		l = slog.LevelError
	default:
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
