// Command ingest loads a saved provider export into the store:
//
//	ingest -file funds.json -timestamp 2025-09
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fundtrack/internal/clock"
	"github.com/smallbiznis/fundtrack/internal/config"
	"github.com/smallbiznis/fundtrack/internal/fund"
	"github.com/smallbiznis/fundtrack/internal/fund/domain"
	"github.com/smallbiznis/fundtrack/internal/ingestion"
	"github.com/smallbiznis/fundtrack/internal/migration"
	"github.com/smallbiznis/fundtrack/internal/observability"
	obsmetrics "github.com/smallbiznis/fundtrack/internal/observability/metrics"
	"github.com/smallbiznis/fundtrack/internal/runlock"
	"github.com/smallbiznis/fundtrack/internal/source"
	"github.com/smallbiznis/fundtrack/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type options struct {
	file      string
	timestamp string
	envelope  string
}

func main() {
	var opts options
	flag.StringVar(&opts.file, "file", "", "path to a JSON export (array or envelope object)")
	flag.StringVar(&opts.timestamp, "timestamp", "", "month to ingest as, YYYY-MM or YYYY-MM-DD (default: current month)")
	flag.StringVar(&opts.envelope, "envelope", "", "JSONPath of the record array inside an envelope object")
	flag.Parse()

	if strings.TrimSpace(opts.file) == "" {
		fmt.Fprintln(os.Stderr, "ingest: -file is required")
		flag.Usage()
		os.Exit(2)
	}

	var exitCode int
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,
		runlock.Module,

		fund.Module,
		source.Module,
		ingestion.Module,

		fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, runner *ingestion.Runner, pusher *obsmetrics.Pusher, clk clock.Clock, log *zap.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						ctx := context.Background()
						exitCode = ingestFile(ctx, opts, runner, clk, log)
						if err := pusher.Push(ctx); err != nil {
							log.Warn("pushgateway push failed", zap.Error(err))
						}
						_ = sd.Shutdown(fx.ExitCode(exitCode))
					}()
					return nil
				},
			})
		}),
	)
	app.Run()
	os.Exit(exitCode)
}

func ingestFile(ctx context.Context, opts options, runner *ingestion.Runner, clk clock.Clock, log *zap.Logger) int {
	log = log.Named("ingest.file").With(zap.String("file", opts.file))

	month, err := parseMonth(opts.timestamp, clk.Now())
	if err != nil {
		log.Error("invalid timestamp", zap.String("timestamp", opts.timestamp), zap.Error(err))
		return 2
	}

	batch, err := source.ReadFile(opts.file, opts.envelope)
	if err != nil {
		log.Error("read export failed", zap.Error(err))
		return 1
	}
	for _, w := range batch.Warnings {
		log.Warn("export record skipped", zap.String("warning", w))
	}

	report, err := runner.RunRecords(ctx, ingestion.TriggerCLI, batch.Records, month)
	if err != nil {
		log.Error("ingestion failed", zap.String("run_id", report.RunID), zap.Error(err))
		return 1
	}

	log.Info("ingestion complete",
		zap.String("run_id", report.RunID),
		zap.Time("month", report.Month),
		zap.Int("processed", report.Result.Processed),
		zap.Int("added", report.Result.Added),
		zap.Int("updated", report.Result.Updated),
		zap.Int("errors", len(report.Result.Errors)),
		zap.Bool("success", report.Result.Success),
	)
	if !report.Result.Success {
		return 1
	}
	return 0
}

func parseMonth(raw string, now time.Time) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.NormalizeMonth(now), nil
	}
	for _, layout := range []string{"2006-01", "2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, raw); err == nil {
			return domain.NormalizeMonth(t), nil
		}
	}
	return time.Time{}, errors.New("expected YYYY-MM, YYYY-MM-DD or RFC 3339")
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(4)
	if err != nil {
		panic(err)
	}
	return node
}
