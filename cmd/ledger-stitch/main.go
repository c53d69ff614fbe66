// Package main merges two cumulative-USD ledgers across a network migration,
// or combines several raw ledgers into one cross-network cumulative series.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/adapters/outbound/csvstore"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/pkg/env"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/ports/outbound"
	"github.com/MeridianDollar/meridian-revenue-dashboard/internal/services/stitch"
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
	first := flag.String("first", "", "Path to the predecessor USD ledger CSV (stitch mode)")
	second := flag.String("second", "", "Path to the successor USD ledger CSV (stitch mode)")
	combine := flag.String("combine", "", "Comma-separated raw ledger CSV paths (combine mode)")
	out := flag.String("out", "", "Output CSV path")
	rawColumn := flag.String("raw-column", "lqty_amount", "Raw amount column header for USD ledgers")
	usdColumn := flag.String("usd-column", "usd_issued", "Cumulative USD column header for USD ledgers")
	showVersion := flag.Bool("version", false, "Show version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("ledger-stitch\n")
		fmt.Printf("  Commit:     %s\n", GitCommit)
		fmt.Printf("  Build Time: %s\n", BuildTime)
		os.Exit(0)
	}

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: env.ParseLogLevel(slog.LevelInfo),
	}))
	slog.SetDefault(logger)

	if err := run(context.Background(), logger, *first, *second, *combine, *out, *rawColumn, *usdColumn); err != nil {
		logger.Error("failed", "error", err)
		os.Exit(1)
	}

	logger.Info("completed successfully")
}

func run(ctx context.Context, logger *slog.Logger, first, second, combine, out, rawColumn, usdColumn string) error {
	if out == "" {
		return fmt.Errorf("-out is required")
	}

	svc := stitch.NewService(stitch.ServiceConfig{Logger: logger})

	switch {
	case combine != "":
		return runCombine(ctx, svc, combine, out)
	case first != "" && second != "":
		return runStitch(ctx, svc, first, second, out, rawColumn, usdColumn)
	default:
		return fmt.Errorf("either -combine, or both -first and -second, must be set")
	}
}

func runStitch(ctx context.Context, svc *stitch.Service, first, second, out, rawColumn, usdColumn string) error {
	firstLedger, err := csvstore.NewUSDLedger(first, rawColumn, usdColumn)
	if err != nil {
		return fmt.Errorf("opening first ledger: %w", err)
	}
	secondLedger, err := csvstore.NewUSDLedger(second, rawColumn, usdColumn)
	if err != nil {
		return fmt.Errorf("opening second ledger: %w", err)
	}
	outLedger, err := csvstore.NewUSDLedger(out, rawColumn, usdColumn)
	if err != nil {
		return fmt.Errorf("opening output ledger: %w", err)
	}
	return svc.StitchUSD(ctx, firstLedger, secondLedger, outLedger)
}

func runCombine(ctx context.Context, svc *stitch.Service, combine, out string) error {
	var ledgers []outbound.RawLedger
	for _, path := range strings.Split(combine, ",") {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		ledger, err := csvstore.NewRawLedger(path)
		if err != nil {
			return fmt.Errorf("opening raw ledger %s: %w", path, err)
		}
		ledgers = append(ledgers, ledger)
	}

	points, err := svc.Combine(ctx, ledgers)
	if err != nil {
		return err
	}
	return writeCombined(out, points)
}

func writeCombined(path string, points []stitch.CombinedPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"date_time", "cumulative"}); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, p := range points {
		record := []string{
			p.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			strconv.FormatFloat(p.Cumulative, 'f', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}
