// Package main runs the full revenue pipeline: accumulate on-chain activity,
// refresh price caches and derive cumulative-USD ledgers for every configured
// network and category.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/adapters/outbound/coingecko"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/adapters/outbound/csvstore"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/adapters/outbound/evmrpc"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/adapters/outbound/postgres"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/config"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/pkg/env"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/services/pipeline"
)

// Build-time variables - can be set via ldflags, otherwise populated from Go's build info.
var (
	GitCommit string
	BuildTime string
)

func init() {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			switch setting.Key {
			case "vcs.revision":
				if GitCommit == "" {
					GitCommit = setting.Value
				}
			case "vcs.time":
				if BuildTime == "" {
					BuildTime = setting.Value
				}
			}
		}
	}
}

func main() {
	configPath := flag.String("config", "config.json", "Path to the pipeline configuration file")
	showVersion := flag.Bool("version", false, "Show version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("revenue-pipeline\n")
		fmt.Printf("  Commit:     %s\n", GitCommit)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	_ = godotenv.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: env.ParseLogLevel(slog.LevelInfo),
	}))
	slog.SetDefault(logger)

	logger.Info("starting revenue-pipeline", "commit", GitCommit, "config", *configPath)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, logger, *configPath); err != nil {
		logger.Error("failed", "error", err)
		os.Exit(1)
	}

	logger.Info("completed successfully")
}

func run(ctx context.Context, logger *slog.Logger, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ledgers, err := csvstore.NewFactory(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("creating ledger factory: %w", err)
	}

	geckoCfg := coingecko.ClientConfigDefaults()
	geckoCfg.APIKey = env.Get("COINGECKO_API_KEY", "")
	geckoCfg.Logger = logger
	prices, err := coingecko.NewClient(geckoCfg)
	if err != nil {
		return fmt.Errorf("creating price client: %w", err)
	}

	mirror, closeMirror, err := openMirror(ctx, logger)
	if err != nil {
		return fmt.Errorf("opening ledger mirror: %w", err)
	}
	if closeMirror != nil {
		defer closeMirror()
	}

	driver, err := pipeline.NewService(pipeline.ServiceConfig{
		Config: cfg,
		Logger: logger,
	}, pipeline.Dependencies{
		Dial:    dialNetwork(logger),
		Ledgers: ledgers,
		Caches:  ledgers,
		Prices:  prices,
		Mirror:  mirror,
	})
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	report, err := driver.Run(ctx)
	if err != nil {
		return err
	}
	for _, o := range report.Outcomes {
		logger.Info("stream result", "outcome", o.String())
	}
	return report.Err()
}

func dialNetwork(logger *slog.Logger) pipeline.DialFunc {
	return func(ctx context.Context, network string, netCfg config.NetworkConfig) (outbound.ChainReader, func(), error) {
		clientCfg := evmrpc.ClientConfigDefaults()
		clientCfg.RPCURL = netCfg.RPCURL
		clientCfg.RequestsPerSecond = netCfg.RequestsPerSecond
		clientCfg.Logger = logger.With("network", network)

		client, err := evmrpc.Dial(ctx, clientCfg)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	}
}

// openMirror connects the optional Postgres ledger mirror. An unset
// DATABASE_URL disables mirroring entirely.
func openMirror(ctx context.Context, logger *slog.Logger) (outbound.LedgerMirror, func(), error) {
	url := env.Get("DATABASE_URL", "")
	if url == "" {
		return nil, nil, nil
	}

	pool, err := postgres.OpenPool(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	mirror, err := postgres.NewLedgerMirror(pool, logger, 0)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	if err := mirror.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return mirror, pool.Close, nil
}
