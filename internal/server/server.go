package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/fundtrack/internal/clock"
	"github.com/smallbiznis/fundtrack/internal/config"
	"github.com/smallbiznis/fundtrack/internal/fund/domain"
	"github.com/smallbiznis/fundtrack/internal/ingestion"
	"github.com/smallbiznis/fundtrack/internal/observability"
	obsmiddleware "github.com/smallbiznis/fundtrack/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/fundtrack/internal/observability/metrics"
	obstracing "github.com/smallbiznis/fundtrack/internal/observability/tracing"
	"github.com/smallbiznis/fundtrack/internal/ratelimit"
	"github.com/smallbiznis/fundtrack/internal/scheduler"
	"github.com/smallbiznis/fundtrack/internal/source"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// IngestionRunner is the subset of ingestion.Runner the handlers use.
type IngestionRunner interface {
	Run(ctx context.Context, trigger ingestion.Trigger, month time.Time) (ingestion.Report, error)
	RunRecords(ctx context.Context, trigger ingestion.Trigger, records []domain.FundRecord, month time.Time) (ingestion.Report, error)
	LastReport() (ingestion.Report, bool)
}

type HealthChecker interface {
	HealthCheck(ctx context.Context) source.HealthStatus
}

type SchedulerStatus interface {
	Status() scheduler.Status
}

type Server struct {
	engine    *gin.Engine
	cfg       config.Config
	funds     domain.Service
	runner    IngestionRunner
	health    HealthChecker
	scheduler SchedulerStatus
	limiter   *ratelimit.TriggerLimiter
	clock     clock.Clock
	cronLoc   *time.Location
	log       *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin       *gin.Engine
	Cfg       config.Config
	Funds     domain.Service
	Runner    *ingestion.Runner
	Source    *source.Client
	Clock     clock.Clock
	Log       *zap.Logger
	Scheduler *scheduler.Scheduler      `optional:"true"`
	Limiter   *ratelimit.TriggerLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	deps := Deps{
		Config: p.Cfg,
		Funds:  p.Funds,
		Runner: p.Runner,
		Health: p.Source,
		Clock:  p.Clock,
		Log:    p.Log,
	}
	if p.Scheduler != nil {
		deps.Scheduler = p.Scheduler
	}
	if p.Limiter != nil {
		deps.Limiter = p.Limiter
	}
	return New(p.Gin, deps)
}

// Deps are the collaborators behind the HTTP handlers. Scheduler and
// Limiter may be nil.
type Deps struct {
	Config    config.Config
	Funds     domain.Service
	Runner    IngestionRunner
	Health    HealthChecker
	Scheduler SchedulerStatus
	Limiter   *ratelimit.TriggerLimiter
	Clock     clock.Clock
	Log       *zap.Logger
}

// New registers the API routes on engine.
func New(engine *gin.Engine, d Deps) *Server {
	clk := d.Clock
	if clk == nil {
		clk = clock.System{}
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	loc, err := time.LoadLocation(d.Config.Cron.Timezone)
	if err != nil || d.Config.Cron.Timezone == "" {
		loc = time.UTC
	}

	svc := &Server{
		engine:    engine,
		cfg:       d.Config,
		funds:     d.Funds,
		runner:    d.Runner,
		health:    d.Health,
		scheduler: d.Scheduler,
		limiter:   d.Limiter,
		clock:     clk,
		cronLoc:   loc,
		log:       log.Named("http.server"),
	}

	svc.registerAPIRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	funds := api.Group("/mutual-funds")
	{
		funds.GET("", s.ListFunds)
		funds.GET("/stats", s.GetStats)
		funds.GET("/categories", s.ListCategories)
		funds.GET("/category/:category", s.ListCategorySnapshots)
		funds.GET("/:id", s.GetFund)
		funds.GET("/:id/history", s.GetFundHistory)
		funds.POST("/ingest", s.TriggerRateLimit(), s.IngestFunds)
	}

	ingest := api.Group("/ingestion")
	{
		ingest.POST("/run", s.TriggerRateLimit(), s.RunIngestion)
		ingest.GET("/status", s.IngestionStatus)
	}
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
