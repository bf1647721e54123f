package adminServer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lpstake/lpstake/internal/metrics"
	"github.com/lpstake/lpstake/pkg/gasTopUp"
	"github.com/lpstake/lpstake/pkg/rewards"
	"github.com/lpstake/lpstake/pkg/scheduler"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

const requestTimeout = 30 * time.Second

// JobController is the subset of the scheduler exposed over HTTP.
type JobController interface {
	List() []*scheduler.JobInfo
	Status(name string) scheduler.JobStatus
	Start(name string) error
	Stop(name string) error
	RunNow(ctx context.Context, name string) *scheduler.RunResult
}

type RewardsTrigger interface {
	RunManual(ctx context.Context, period rewards.PeriodType) *rewards.ManualRunResult
}

type TopUpTrigger interface {
	TopUpAll(ctx context.Context, amount string) *gasTopUp.TopUpSummary
}

type AdminServerConfig struct {
	Port      int
	ApiKey    string
	JwtSecret string

	// TopUpAmount is used when a top-up request omits the amount.
	TopUpAmount string
}

type AdminServer struct {
	config     *AdminServerConfig
	jobs       JobController
	rewards    RewardsTrigger
	topUp      TopUpTrigger
	metrics    *metrics.MetricsSink
	logger     *zap.Logger
	router     chi.Router
	httpServer *http.Server
}

func NewAdminServer(
	cfg *AdminServerConfig,
	jobs JobController,
	rt RewardsTrigger,
	tt TopUpTrigger,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *AdminServer {
	if ms == nil {
		ms = metrics.NewNoopMetricsSink()
	}
	s := &AdminServer{
		config:  cfg,
		jobs:    jobs,
		rewards: rt,
		topUp:   tt,
		metrics: ms,
		logger:  l,
	}
	s.router = s.routes()
	return s
}

func (s *AdminServer) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", apiKeyHeader},
	}).Handler)
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(s.recoverer)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Get("/health", s.HealthCheck)
		r.Get("/ready", s.ReadyCheck)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(AdminAuthMiddleware(s.config.ApiKey, s.config.JwtSecret, s.logger))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(requestTimeout))
			r.Get("/jobs", s.ListJobs)
			r.Get("/jobs/{name}", s.GetJobStatus)
			r.Post("/jobs/{name}/start", s.StartJob)
			r.Post("/jobs/{name}/stop", s.StopJob)
		})

		// manual runs last as long as the job does
		r.Post("/jobs/{name}/run", s.RunJob)
		r.Post("/rewards/run", s.RunRewards)
		r.Post("/gas/top-up", s.RunGasTopUp)
	})
	return r
}

func (s *AdminServer) Handler() http.Handler {
	return s.router
}

func (s *AdminServer) Start() {
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Sugar().Infow("Starting admin server", zap.Int("port", s.config.Port))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Sugar().Errorw("Admin server stopped", zap.Error(err))
		}
	}()
}

func (s *AdminServer) Shutdown(ctx context.Context) {
	if s.httpServer == nil {
		return
	}
	s.logger.Sugar().Info("Shutting down admin server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Sugar().Errorw("Failed to shutdown admin server", zap.Error(err))
	}
}
