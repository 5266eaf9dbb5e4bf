package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/fundtrack/internal/fund/domain"
	"github.com/smallbiznis/fundtrack/internal/ingestion"
	"github.com/smallbiznis/fundtrack/internal/observability/tracing"
	"github.com/smallbiznis/fundtrack/internal/scheduler"
	"github.com/smallbiznis/fundtrack/internal/source"
	"go.uber.org/zap"
)

const healthCheckTimeout = 5 * time.Second

type ingestFundsRequest struct {
	Funds     []domain.FundRecord `json:"funds"`
	Timestamp string              `json:"timestamp"`
}

// IngestFunds stores a caller-supplied batch. The month defaults to the
// current one.
func (s *Server) IngestFunds(c *gin.Context) {
	var req ingestFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if len(req.Funds) == 0 {
		AbortWithError(c, newValidationError("funds", "required", "funds must be a non-empty array"))
		return
	}

	month, err := parseOptionalMonth(req.Timestamp)
	if err != nil {
		AbortWithError(c, newValidationError("timestamp", "invalid_timestamp", "invalid timestamp"))
		return
	}
	target := domain.NormalizeMonth(s.clock.Now())
	if month != nil {
		target = *month
	}

	report, err := s.runner.RunRecords(c.Request.Context(), ingestion.TriggerHTTP, req.Funds, target)
	c.Set(tracing.RunIDKey, report.RunID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if report.Rejected == len(req.Funds) {
		details := make([]ValidationError, 0, len(report.Result.Errors))
		for _, msg := range report.Result.Errors {
			details = append(details, ValidationError{Field: "funds", Code: "invalid_fund", Message: msg})
		}
		c.JSON(http.StatusBadRequest, errorResponse{Error: errorPayload{
			Type:    "validation_error",
			Message: "All funds failed validation",
			Errors:  details,
		}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report.Result, "run_id": report.RunID})
}

// RunIngestion fetches from the provider now. Without a timestamp it targets
// the month the scheduler would.
func (s *Server) RunIngestion(c *gin.Context) {
	month, err := parseOptionalMonth(c.Query("timestamp"))
	if err != nil {
		AbortWithError(c, newValidationError("timestamp", "invalid_timestamp", "invalid timestamp"))
		return
	}
	target := domain.PreviousMonth(s.clock.Now(), s.cronLoc)
	if month != nil {
		target = *month
	}

	report, err := s.runner.Run(c.Request.Context(), ingestion.TriggerHTTP, target)
	c.Set(tracing.RunIDKey, report.RunID)
	if err != nil {
		s.log.Warn("manual ingestion failed",
			zap.String("run_id", report.RunID),
			zap.Time("month", target),
			zap.Error(err),
		)
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": report})
}

type ingestionStatus struct {
	Scheduler *scheduler.Status    `json:"scheduler,omitempty"`
	Source    *source.HealthStatus `json:"source,omitempty"`
	LastRun   *ingestion.Report    `json:"last_run,omitempty"`
}

func (s *Server) IngestionStatus(c *gin.Context) {
	var resp ingestionStatus

	if s.scheduler != nil {
		status := s.scheduler.Status()
		resp.Scheduler = &status
	}
	if s.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
		health := s.health.HealthCheck(ctx)
		cancel()
		resp.Source = &health
	}
	if s.runner != nil {
		if last, ok := s.runner.LastReport(); ok {
			resp.LastRun = &last
		}
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
