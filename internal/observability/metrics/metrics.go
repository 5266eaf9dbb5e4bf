package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

func (c Config) serviceName() string {
	if name := strings.TrimSpace(c.ServiceName); name != "" {
		return name
	}
	return "fundtrack"
}

func (c Config) environment() string {
	if env := strings.TrimSpace(c.Environment); env != "" {
		return env
	}
	return "unknown"
}

// Record outcomes shared by the OTLP and Prometheus instruments.
const (
	OutcomeAdded    = "added"
	OutcomeUpdated  = "updated"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
)

// Metrics exposes OTLP-exported ingestion instruments.
type Metrics struct {
	records        metric.Int64Counter
	warnings       metric.Int64Counter
	sourceAttempts metric.Int64Counter
	runDuration    metric.Float64Histogram
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(30*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New creates the ingestion instruments on provider.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		provider = noop.NewMeterProvider()
	}
	meter := provider.Meter(cfg.serviceName())

	records, err := meter.Int64Counter("fundtrack_records_total",
		metric.WithDescription("Fund records handled by ingestion, by outcome and category."))
	if err != nil {
		return nil, err
	}
	warnings, err := meter.Int64Counter("fundtrack_record_warnings_total",
		metric.WithDescription("Non-blocking validation warnings."))
	if err != nil {
		return nil, err
	}
	sourceAttempts, err := meter.Int64Counter("fundtrack_source_attempts_total",
		metric.WithDescription("Requests made to the fund data provider."))
	if err != nil {
		return nil, err
	}
	runDuration, err := meter.Float64Histogram("fundtrack_ingest_duration_seconds",
		metric.WithDescription("Wall time of a full fetch and ingest run."),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		records:        records,
		warnings:       warnings,
		sourceAttempts: sourceAttempts,
		runDuration:    runDuration,
	}, nil
}

func (m *Metrics) RecordOutcome(ctx context.Context, outcome, category string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("outcome", strings.TrimSpace(outcome)),
		attribute.String("category", strings.TrimSpace(category)),
	)
	m.records.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordWarnings(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.warnings.Add(ctx, int64(count))
}

// RecordSourceAttempt counts one provider request. statusCode is 0 when no
// response was received.
func (m *Metrics) RecordSourceAttempt(ctx context.Context, statusCode int, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.Int("status_code", statusCode),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.sourceAttempts.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordRunDuration(ctx context.Context, trigger string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("trigger", strings.TrimSpace(trigger)))
	m.runDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{otlpmetrichttp.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"outcome":     {},
	"category":    {},
	"trigger":     {},
	"status_code": {},
	"reason":      {},
	"endpoint":    {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
