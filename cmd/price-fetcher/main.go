// Package main refreshes the local daily price caches without running the
// chain pipeline.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/adapters/outbound/coingecko"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/adapters/outbound/csvstore"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/pkg/env"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/services/priceoracle"
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
	dataDir := flag.String("data-dir", "csv", "Root directory of the price cache files")
	coins := flag.String("coins", "", "Comma-separated coin identifiers, e.g. 'telos,fuse-network-token'")
	fromDate := flag.String("from", "", "Start date (YYYY-MM-DD), default: 730 days ago")
	toDate := flag.String("to", "", "End date (YYYY-MM-DD), default: today")
	showVersion := flag.Bool("version", false, "Show version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("price-fetcher\n")
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

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, logger, *dataDir, *coins, *fromDate, *toDate); err != nil {
		logger.Error("failed", "error", err)
		os.Exit(1)
	}

	logger.Info("completed successfully")
}

func run(ctx context.Context, logger *slog.Logger, dataDir, coins, fromDate, toDate string) error {
	if coins == "" {
		return fmt.Errorf("no coins specified, use -coins")
	}

	from, to, err := parseRange(fromDate, toDate)
	if err != nil {
		return err
	}

	caches, err := csvstore.NewFactory(dataDir)
	if err != nil {
		return fmt.Errorf("creating cache factory: %w", err)
	}

	geckoCfg := coingecko.ClientConfigDefaults()
	geckoCfg.APIKey = env.Get("COINGECKO_API_KEY", "")
	geckoCfg.Logger = logger
	provider, err := coingecko.NewClient(geckoCfg)
	if err != nil {
		return fmt.Errorf("creating price client: %w", err)
	}

	oracle, err := priceoracle.NewService(priceoracle.ServiceConfig{Logger: logger}, provider, caches)
	if err != nil {
		return fmt.Errorf("creating price oracle: %w", err)
	}

	for _, coin := range strings.Split(coins, ",") {
		coin = strings.TrimSpace(coin)
		if coin == "" {
			continue
		}
		logger.Info("refreshing price cache", "coin", coin,
			"from", from.Format(time.DateOnly), "to", to.Format(time.DateOnly))
		if err := oracle.EnsureCoverage(ctx, coin, from, to); err != nil {
			return fmt.Errorf("refreshing %s: %w", coin, err)
		}
	}
	return nil
}

func parseRange(fromDate, toDate string) (time.Time, time.Time, error) {
	to := time.Now().UTC()
	if toDate != "" {
		parsed, err := time.Parse(time.DateOnly, toDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing -to: %w", err)
		}
		to = parsed
	}

	from := to.AddDate(0, 0, -730)
	if fromDate != "" {
		parsed, err := time.Parse(time.DateOnly, fromDate)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("parsing -from: %w", err)
		}
		from = parsed
	}

	if from.After(to) {
		return time.Time{}, time.Time{}, fmt.Errorf("-from %s is after -to %s", fromDate, toDate)
	}
	return from, to, nil
}
