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
	"strings"
	"syscall"
	"time"

	"solation/cmd/internal/passphrase"
	"solation/config"
	"solation/core/events"
	"solation/core/state"
	"solation/journal"
	"solation/native/bank"
	"solation/native/oracle"
	"solation/native/rfq"
	"solation/observability/logging"
	"solation/observability/metrics"
	telemetry "solation/observability/otel"
	"solation/rpc"
	"solation/storage"
)

const serviceName = "solationd"

func main() {
	configFile := flag.String("config", "./solation.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides GenesisFile in the config)")
	exportFlag := flag.String("export-journal", "", "Write the event journal to this Parquet file and exit")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if path := strings.TrimSpace(*genesisFlag); path != "" {
		cfg.GenesisFile = path
	}

	logger := logging.Setup(serviceName, cfg.Environment, logging.Options{
		Level:      logging.ParseLevel(cfg.Log.Level),
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	})

	if path := strings.TrimSpace(*exportFlag); path != "" {
		if err := exportJournal(context.Background(), cfg, path, logger); err != nil {
			logger.Error("journal export failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("solationd exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	shutdownTelemetry, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName: serviceName,
		Environment: cfg.Environment,
		Endpoint:    cfg.Telemetry.Endpoint,
		Insecure:    cfg.Telemetry.Insecure,
		Headers:     telemetry.ParseHeaders(cfg.Telemetry.Headers),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(flushCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}
	db, err := storage.NewLevelDB(cfg.StateDir())
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()
	mgr := state.NewManager(db)

	feed := oracle.NewFeed(mgr)
	if path := strings.TrimSpace(cfg.GenesisFile); path != "" {
		genesis, err := config.LoadGenesis(path)
		if err != nil {
			return err
		}
		applied, err := genesis.Apply(mgr)
		if err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		logger.Info("genesis loaded",
			slog.String("path", path),
			slog.Bool("applied", applied),
			slog.Int("assets", len(genesis.Assets)),
			slog.Int("publishers", len(genesis.Publishers)))
		for _, publisher := range genesis.Publishers {
			feed.AddPublisher(publisher)
		}
	}

	engine := rfq.NewEngine(mgr, bank.Custody{}, feed)
	engine.SetMetrics(metrics.RFQ())
	engine.SetLogger(logger.With(slog.String("component", "rfq")))
	if err := engine.SetFillWindow(cfg.Engine.FillWindow()); err != nil {
		return err
	}
	if err := engine.SetStalenessThreshold(cfg.Engine.StalenessThreshold()); err != nil {
		return err
	}

	hub := rpc.NewHub()
	emitters := []events.Emitter{hub}
	var journalReader rpc.JournalReader
	if !cfg.Journal.Disabled {
		jnl, err := journal.Open(journal.Config{Driver: cfg.Journal.Driver, DSN: cfg.Journal.DSN})
		if err != nil {
			return err
		}
		defer jnl.Close()
		jnl.SetLogger(logger.With(slog.String("component", "journal")))
		if err := jnl.Verify(ctx); err != nil {
			return fmt.Errorf("journal integrity: %w", err)
		}
		seq, head := jnl.Head()
		logger.Info("journal ready",
			slog.String("driver", cfg.Journal.Driver),
			slog.Uint64("sequence", seq),
			slog.String("head", head))
		emitters = append([]events.Emitter{jnl}, emitters...)
		journalReader = jnl
	}
	engine.SetEmitter(events.Multi(emitters...))

	secret, err := passphrase.NewSource(cfg.RPC.JWTSecretEnv, "JWT secret").Get()
	if err != nil {
		return err
	}
	auth, err := rpc.NewAuthenticator(rpc.AuthConfig{HMACSecret: secret, Issuer: cfg.RPC.JWTIssuer}, logger)
	if err != nil {
		return err
	}

	srv, err := rpc.New(rpc.Config{
		Engine:  engine,
		State:   mgr,
		Oracle:  feed,
		Journal: journalReader,
		Hub:     hub,
		Auth:    auth,
		RateLimit: rpc.RateLimit{
			PerSecond: cfg.RPC.RateLimitPerSecond,
			Burst:     cfg.RPC.RateLimitBurst,
		},
		MaxBodyBytes: cfg.RPC.MaxBodyBytes,
		ServiceName:  serviceName,
		Logger:       logger.With(slog.String("component", "rpc")),
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(cfg.RPC.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(cfg.RPC.WriteTimeoutSeconds) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("api listening", slog.String("address", cfg.ListenAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

func exportJournal(ctx context.Context, cfg *config.Config, path string, logger *slog.Logger) error {
	if cfg.Journal.Disabled {
		return errors.New("journal is disabled in the configuration")
	}
	jnl, err := journal.Open(journal.Config{Driver: cfg.Journal.Driver, DSN: cfg.Journal.DSN})
	if err != nil {
		return err
	}
	defer jnl.Close()
	if err := jnl.Verify(ctx); err != nil {
		return fmt.Errorf("journal integrity: %w", err)
	}
	n, err := jnl.ExportParquet(ctx, path)
	if err != nil {
		return err
	}
	logger.Info("journal exported", slog.String("path", path), slog.Int("records", n))
	return nil
}
