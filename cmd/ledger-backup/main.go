// Package main uploads the ledger and price cache CSV files to S3.
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

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/joho/godotenv"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/adapters/outbound/s3"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/pkg/env"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/services/backup"
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
	dataDir := flag.String("data-dir", "csv", "Root directory of the ledger CSV files")
	bucket := flag.String("bucket", "", "Target S3 bucket (default: BACKUP_BUCKET)")
	prefix := flag.String("prefix", "ledgers", "Key prefix inside the bucket")
	showVersion := flag.Bool("version", false, "Show version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ledger-backup\n")
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

	if err := run(ctx, logger, *dataDir, *bucket, *prefix); err != nil {
		logger.Error("failed", "error", err)
		os.Exit(1)
	}

	logger.Info("completed successfully")
}

func run(ctx context.Context, logger *slog.Logger, dataDir, bucket, prefix string) error {
	if bucket == "" {
		bucket = env.Get("BACKUP_BUCKET", "")
	}
	if bucket == "" {
		return fmt.Errorf("no bucket specified, use -bucket or BACKUP_BUCKET")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("loading AWS config: %w", err)
	}

	writer, err := s3.NewWriter(awsCfg, bucket, prefix, logger)
	if err != nil {
		return fmt.Errorf("creating S3 writer: %w", err)
	}

	svc, err := backup.NewService(backup.ServiceConfig{DataDir: dataDir, Logger: logger}, writer)
	if err != nil {
		return fmt.Errorf("creating backup service: %w", err)
	}

	uploaded, err := svc.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("backup finished", "files", uploaded, "bucket", bucket, "prefix", prefix)
	return nil
}
