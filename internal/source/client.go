// Package source fetches monthly fund records from the upstream data
// provider.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/smallbiznis/fundtrack/internal/clock"
	"github.com/smallbiznis/fundtrack/internal/config"
	"github.com/smallbiznis/fundtrack/internal/fund/domain"
	obslogger "github.com/smallbiznis/fundtrack/internal/observability/logger"
	"github.com/smallbiznis/fundtrack/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const maxErrorBody = 512

// envelopePaths are tried in order when the provider wraps the record array
// in an object and no explicit path is configured.
var envelopePaths = []string{"$.data", "$.funds", "$.results", "$.items"}

// Batch is one successful fetch.
type Batch struct {
	Records  []domain.FundRecord
	Warnings []string
	Attempts int
	Skipped  int
}

type HealthStatus struct {
	Reachable  bool          `json:"reachable"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency"`
	Error      string        `json:"error,omitempty"`
	CheckedAt  time.Time     `json:"checked_at"`
}

type Params struct {
	fx.In

	Config           config.Config
	Clock            clock.Clock
	Log              *zap.Logger
	HTTPClient       *http.Client              `optional:"true"`
	Metrics          *metrics.Metrics          `optional:"true"`
	IngestionMetrics *metrics.IngestionMetrics `optional:"true"`
}

type Client struct {
	cfg     config.SourceConfig
	http    *http.Client
	clock   clock.Clock
	log     *zap.Logger
	metrics *metrics.Metrics
	runs    *metrics.IngestionMetrics
}

func New(p Params) *Client {
	httpClient := p.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	clk := p.Clock
	if clk == nil {
		clk = clock.System{}
	}
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}

	cfg := p.Config.Source
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		cfg:     cfg,
		http:    httpClient,
		clock:   clk,
		log:     log.Named("source.client"),
		metrics: p.Metrics,
		runs:    p.IngestionMetrics,
	}
}

func (c *Client) configured() bool {
	return strings.TrimSpace(c.cfg.BaseURL) != "" && strings.TrimSpace(c.cfg.APIKey) != ""
}

// FetchBatch downloads the provider's current fund list. Server errors,
// timeouts and connection failures are retried with exponential backoff; 4xx
// answers and unclassified errors fail immediately.
func (c *Client) FetchBatch(ctx context.Context) (Batch, error) {
	if !c.configured() {
		return Batch{}, ErrNotConfigured
	}

	ctx, span := otel.Tracer("fundtrack/source").Start(ctx, "source.fetch")
	defer span.End()

	log := obslogger.WithContext(ctx, c.log)
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		body, err := c.fetchOnce(ctx)
		if err == nil {
			batch, decodeErr := c.decode(body)
			if decodeErr != nil {
				span.RecordError(decodeErr)
				span.SetStatus(codes.Error, "decode failed")
				return Batch{}, decodeErr
			}
			batch.Attempts = attempt
			if len(batch.Records) == 0 {
				batch.Warnings = append(batch.Warnings, "source returned zero records")
			}
			span.SetAttributes(
				attribute.Int("source.attempts", attempt),
				attribute.Int("source.records", len(batch.Records)),
			)
			log.Info("source.fetch.ok",
				zap.Int("attempt", attempt),
				zap.Int("records", len(batch.Records)),
				zap.Int("skipped", batch.Skipped),
			)
			return batch, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			span.SetStatus(codes.Error, "cancelled")
			return Batch{}, ctxErr
		}

		var rejected *RejectedError
		if errors.As(err, &rejected) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "rejected")
			log.Warn("source.fetch.rejected", zap.Int("attempt", attempt), zap.Int("status_code", rejected.StatusCode))
			return Batch{}, err
		}
		if !retryable(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed")
			return Batch{}, err
		}

		lastErr = err
		if attempt == c.cfg.MaxAttempts {
			break
		}

		delay := c.backoff(attempt)
		log.Warn("source.fetch.retry",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := c.clock.Sleep(ctx, delay); err != nil {
			return Batch{}, err
		}
	}

	unavailable := &UnavailableError{Attempts: c.cfg.MaxAttempts, Cause: lastErr}
	span.RecordError(unavailable)
	span.SetStatus(codes.Error, "unavailable")
	log.Error("source.fetch.unavailable", zap.Int("attempts", c.cfg.MaxAttempts), zap.Error(lastErr))
	return Batch{}, unavailable
}

// backoff returns the wait after the given failed attempt: BaseDelay doubled
// for each earlier attempt.
func (c *Client) backoff(attempt int) time.Duration {
	return c.cfg.BaseDelay << (attempt - 1)
}

func (c *Client) fetchOnce(ctx context.Context) ([]byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.do(attemptCtx, c.cfg.FundsPath)
	if err != nil {
		c.recordAttempt(ctx, 0, "transport")
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		c.recordAttempt(ctx, resp.StatusCode, "retryable")
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &serverError{StatusCode: resp.StatusCode}
	case resp.StatusCode >= http.StatusBadRequest:
		c.recordAttempt(ctx, resp.StatusCode, "rejected")
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &RejectedError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.recordAttempt(ctx, resp.StatusCode, "transport")
		return nil, fmt.Errorf("read body: %w", err)
	}
	c.recordAttempt(ctx, resp.StatusCode, "ok")
	return body, nil
}

func (c *Client) do(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return c.http.Do(req)
}

func (c *Client) recordAttempt(ctx context.Context, status int, result string) {
	c.metrics.RecordSourceAttempt(ctx, status, result)
	c.runs.IncFetchAttempt(result)
}

// retryable reports whether err is a server answer, a timeout or a dropped
// connection. Everything else (TLS verification, malformed URLs, unknown
// transport failures) is not retried.
func retryable(err error) bool {
	var server *serverError
	if errors.As(err, &server) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial" || opErr.Op == "read" || opErr.Op == "write"
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}
	return false
}

// HealthCheck calls the provider health endpoint once. It never returns an error; failures
// are described in the status.
func (c *Client) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{CheckedAt: c.clock.Now()}
	if !c.configured() {
		status.Error = ErrNotConfigured.Error()
		return status
	}

	checkCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	resp, err := c.do(checkCtx, c.cfg.HealthPath)
	status.Latency = c.clock.Now().Sub(status.CheckedAt)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	status.StatusCode = resp.StatusCode
	status.Reachable = resp.StatusCode >= 200 && resp.StatusCode < 300
	if !status.Reachable {
		status.Error = http.StatusText(resp.StatusCode)
	}
	return status
}
