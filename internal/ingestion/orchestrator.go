// Package ingestion folds validated fund records into storage and drives
// complete fetch-to-store runs.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fundtrack/internal/clock"
	"github.com/smallbiznis/fundtrack/internal/fund/domain"
	"github.com/smallbiznis/fundtrack/internal/fund/validation"
	obslogger "github.com/smallbiznis/fundtrack/internal/observability/logger"
	"github.com/smallbiznis/fundtrack/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultRecordTimeout = 30 * time.Second

type outcome int

const (
	outcomeAdded outcome = iota + 1
	outcomeUpdated
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	Validator *validation.Validator
	Clock     clock.Clock
	Metrics   *metrics.Metrics          `optional:"true"`
	Counters  *metrics.IngestionMetrics `optional:"true"`
}

type Orchestrator struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	validator     *validation.Validator
	clock         clock.Clock
	metrics       *metrics.Metrics
	counters      *metrics.IngestionMetrics
	recordTimeout time.Duration
}

func NewOrchestrator(p Params) *Orchestrator {
	clk := p.Clock
	if clk == nil {
		clk = clock.System{}
	}
	validator := p.Validator
	if validator == nil {
		validator = validation.New(p.Log, nil)
	}
	return &Orchestrator{
		db:            p.DB,
		log:           p.Log.Named("ingestion.orchestrator"),
		genID:         p.GenID,
		repo:          p.Repo,
		validator:     validator,
		clock:         clk,
		metrics:       p.Metrics,
		counters:      p.Counters,
		recordTimeout: defaultRecordTimeout,
	}
}

// Ingest stores already validated records as the snapshot for asOf's month.
// Records are processed in order; one failing record never stops the rest.
func (o *Orchestrator) Ingest(ctx context.Context, records []validation.Validated, asOf time.Time) (BatchResult, error) {
	month := domain.NormalizeMonth(asOf)
	result := newResult(len(records), month)
	err := o.fold(ctx, records, &result)
	return result, err
}

// IngestRaw validates provider records first. Rejected records are reported
// in Errors and still count toward the batch size.
func (o *Orchestrator) IngestRaw(ctx context.Context, records []domain.FundRecord, asOf time.Time) (BatchResult, error) {
	result, _, err := o.ingestRaw(ctx, records, asOf)
	return result, err
}

func (o *Orchestrator) ingestRaw(ctx context.Context, records []domain.FundRecord, asOf time.Time) (BatchResult, int, error) {
	month := domain.NormalizeMonth(asOf)
	result := newResult(len(records), month)

	valid := make([]validation.Validated, 0, len(records))
	rejected := 0
	for i, rec := range records {
		validated, report := o.validator.Validate(ctx, rec)
		label := recordLabel(rec, i)
		if !report.Valid {
			rejected++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", label, report.Reason()))
			o.metrics.RecordOutcome(ctx, metrics.OutcomeRejected, "")
			continue
		}
		for _, w := range report.Warnings {
			result.Warnings = append(result.Warnings, fmt.Sprintf("%s: %s", label, w))
		}
		o.metrics.RecordWarnings(ctx, len(report.Warnings))
		valid = append(valid, validated)
	}
	o.counters.AddRecords(metrics.OutcomeRejected, rejected)

	err := o.fold(ctx, valid, &result)
	return result, rejected, err
}

func (o *Orchestrator) fold(ctx context.Context, records []validation.Validated, result *BatchResult) error {
	ctx, span := otel.Tracer("fundtrack/ingestion").Start(ctx, "ingestion.ingest")
	defer span.End()
	span.SetAttributes(
		attribute.Int("ingestion.records", len(records)),
		attribute.String("ingestion.month", result.Timestamp.Format("2006-01")),
	)

	log := obslogger.WithContext(ctx, o.log)
	var runErr error

	for _, v := range records {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		rec := v.Record()
		out, err := o.persist(ctx, rec, result.Timestamp)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", rec.FundName, err))
			o.metrics.RecordOutcome(ctx, metrics.OutcomeFailed, rec.Category)
			o.counters.AddRecords(metrics.OutcomeFailed, 1)
			log.Warn("ingestion.record.failed",
				zap.String("fund_id", rec.FundID),
				zap.String("fund_name", rec.FundName),
				zap.String("reason", metrics.ClassifySchedulerJobReason(err)),
				zap.Error(err),
			)
			if pingErr := o.storeHealthy(ctx); pingErr != nil {
				runErr = fmt.Errorf("%w: %v", ErrStoreUnavailable, pingErr)
				break
			}
			continue
		}

		result.Processed++
		switch out {
		case outcomeAdded:
			result.Added++
			o.metrics.RecordOutcome(ctx, metrics.OutcomeAdded, rec.Category)
			o.counters.AddRecords(metrics.OutcomeAdded, 1)
		case outcomeUpdated:
			result.Updated++
			o.metrics.RecordOutcome(ctx, metrics.OutcomeUpdated, rec.Category)
			o.counters.AddRecords(metrics.OutcomeUpdated, 1)
		}
	}

	result.Success = runErr == nil && succeeded(len(result.Errors), result.Total)
	span.SetAttributes(
		attribute.Int("ingestion.processed", result.Processed),
		attribute.Int("ingestion.errors", len(result.Errors)),
	)
	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, "ingest aborted")
		log.Error("ingestion.batch.aborted", zap.Int("processed", result.Processed), zap.Error(runErr))
	}
	return runErr
}

// persist writes one record: master upsert, snapshot create-or-update, and
// the month back-reference. A record that has started always finishes, so
// its store calls run detached from ctx's cancellation, bounded by the
// record timeout.
func (o *Orchestrator) persist(ctx context.Context, rec domain.FundRecord, month time.Time) (outcome, error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.recordTimeout)
	defer cancel()

	rctx, span := otel.Tracer("fundtrack/ingestion").Start(rctx, "ingestion.persist")
	defer span.End()
	span.SetAttributes(attribute.String("fund_id", rec.FundID))

	now := o.clock.Now().UTC()
	var out outcome

	err := o.db.WithContext(rctx).Transaction(func(tx *gorm.DB) error {
		master, err := o.repo.UpsertMaster(rctx, tx, &domain.FundMaster{
			ID:        o.genID.Generate(),
			FundID:    rec.FundID,
			FundName:  rec.FundName,
			Category:  rec.Category,
			Status:    domain.FundStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return fmt.Errorf("upsert master: %w", err)
		}

		snapshotID, added, err := o.storeSnapshot(rctx, tx, master.ID, rec, month, now)
		if err != nil {
			return err
		}
		out = outcomeUpdated
		if added {
			out = outcomeAdded
		}

		if err := o.repo.UpsertMonthTrack(rctx, tx, domain.MonthTrack{
			FundMasterID: master.ID,
			Timestamp:    month,
			SnapshotID:   snapshotID,
		}); err != nil {
			return fmt.Errorf("track month: %w", err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return 0, err
	}
	return out, nil
}

func (o *Orchestrator) storeSnapshot(ctx context.Context, tx *gorm.DB, masterID snowflake.ID, rec domain.FundRecord, month, now time.Time) (snowflake.ID, bool, error) {
	existing, err := o.repo.FindSnapshot(ctx, tx, masterID, month)
	if err != nil {
		return 0, false, fmt.Errorf("find snapshot: %w", err)
	}
	if existing != nil {
		return o.refreshSnapshot(ctx, tx, existing, rec, now)
	}

	snapshot := &domain.MonthlySnapshot{
		ID:           o.genID.Generate(),
		FundMasterID: masterID,
		Timestamp:    month,
		FundID:       rec.FundID,
		FundName:     rec.FundName,
		Category:     rec.Category,
		Payload:      datatypes.NewJSONType(rec),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// The savepoint keeps the outer transaction usable if a concurrent run
	// created the same snapshot first.
	err = tx.Transaction(func(sp *gorm.DB) error {
		return o.repo.InsertSnapshot(ctx, sp, snapshot)
	})
	switch {
	case err == nil:
		return snapshot.ID, true, nil
	case errors.Is(err, domain.ErrSnapshotExists):
		existing, err = o.repo.FindSnapshot(ctx, tx, masterID, month)
		if err != nil {
			return 0, false, fmt.Errorf("find snapshot: %w", err)
		}
		if existing == nil {
			return 0, false, fmt.Errorf("create snapshot: %w", domain.ErrSnapshotExists)
		}
		return o.refreshSnapshot(ctx, tx, existing, rec, now)
	default:
		return 0, false, fmt.Errorf("create snapshot: %w", err)
	}
}

func (o *Orchestrator) refreshSnapshot(ctx context.Context, tx *gorm.DB, existing *domain.MonthlySnapshot, rec domain.FundRecord, now time.Time) (snowflake.ID, bool, error) {
	existing.FundID = rec.FundID
	existing.FundName = rec.FundName
	existing.Category = rec.Category
	existing.Payload = datatypes.NewJSONType(rec)
	existing.UpdatedAt = now
	if err := o.repo.UpdateSnapshot(ctx, tx, existing); err != nil {
		return 0, false, fmt.Errorf("update snapshot: %w", err)
	}
	return existing.ID, false, nil
}

// storeHealthy pings the database. A failing ping after a record error means
// the remaining records would fail the same way.
func (o *Orchestrator) storeHealthy(ctx context.Context) error {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	sqlDB, err := o.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(pctx)
}

func recordLabel(rec domain.FundRecord, index int) string {
	if label := rec.Label(); label != "" {
		return label
	}
	return fmt.Sprintf("#%d", index)
}
