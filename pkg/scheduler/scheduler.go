package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lpstake/lpstake/internal/logger"
	"github.com/lpstake/lpstake/internal/metrics"
	"github.com/lpstake/lpstake/internal/metrics/metricsTypes"
	"github.com/robfig/cron/v3"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrJobAlreadyRunning = errors.New("job is already running")
)

type JobStatus string

const (
	JobStatus_Running  JobStatus = "running"
	JobStatus_NotFound JobStatus = "not-found"
)

type JobFunc func(ctx context.Context) error

type JobDefinition struct {
	Name     string
	Schedule string
	Run      JobFunc
}

type JobInfo struct {
	Name       string     `json:"name"`
	Schedule   string     `json:"schedule"`
	Status     JobStatus  `json:"status"`
	InProgress bool       `json:"inProgress"`
	NextRun    *time.Time `json:"nextRun,omitempty"`
	PrevRun    *time.Time `json:"prevRun,omitempty"`
}

type RunResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type SchedulerConfig struct {
	Location       *time.Location
	PreventOverlap bool
}

type scheduledJob struct {
	definition *JobDefinition
	inProgress atomic.Int32
	entryId    cron.EntryID
	registered bool
}

// Scheduler owns the cron instance and the registry of known jobs. Jobs are looked up
// by name; a job is "running" while it has a cron entry.
type Scheduler struct {
	cron           *cron.Cron
	jobs           *orderedmap.OrderedMap[string, *scheduledJob]
	preventOverlap bool
	metrics        *metrics.MetricsSink
	logger         *zap.Logger

	mu      sync.Mutex
	baseCtx context.Context
}

func NewScheduler(definitions []*JobDefinition, cfg *SchedulerConfig, ms *metrics.MetricsSink, l *zap.Logger) *Scheduler {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}
	if ms == nil {
		ms = metrics.NewNoopMetricsSink()
	}
	cronLogger := logger.NewCronLogger(l)

	jobs := orderedmap.New[string, *scheduledJob]()
	for _, def := range definitions {
		jobs.Set(def.Name, &scheduledJob{definition: def})
	}

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		jobs:           jobs,
		preventOverlap: cfg.PreventOverlap,
		metrics:        ms,
		logger:         l,
		baseCtx:        context.Background(),
	}
}

// StartAll registers every known job and starts the cron loop. A job with a malformed
// schedule is logged and left unregistered.
func (s *Scheduler) StartAll(ctx context.Context) {
	s.mu.Lock()
	s.baseCtx = ctx
	for pair := s.jobs.Oldest(); pair != nil; pair = pair.Next() {
		if err := s.register(pair.Value); err != nil {
			s.logger.Sugar().Errorw("Failed to schedule job",
				zap.String("job", pair.Key),
				zap.String("schedule", pair.Value.definition.Schedule),
				zap.Error(err),
			)
		}
	}
	s.mu.Unlock()

	s.cron.Start()
}

// register expects s.mu to be held.
func (s *Scheduler) register(job *scheduledJob) error {
	if job.registered {
		return nil
	}
	def := job.definition
	entryId, err := s.cron.AddFunc(def.Schedule, func() {
		if _, err := s.execute(s.jobContext(), job, "schedule"); err != nil && !errors.Is(err, ErrJobAlreadyRunning) {
			s.logger.Sugar().Errorw("Scheduled job failed", zap.String("job", def.Name), zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	job.entryId = entryId
	job.registered = true
	s.logger.Sugar().Infow("Scheduled job",
		zap.String("job", def.Name),
		zap.String("schedule", def.Schedule),
	)
	return nil
}

func (s *Scheduler) jobContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

// Start registers a single job and makes sure the cron loop is running, so it also
// works when StartAll was skipped or after StopAll.
func (s *Scheduler) Start(name string) error {
	s.mu.Lock()
	job, ok := s.jobs.Get(name)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: '%s'", ErrJobNotFound, name)
	}
	err := s.register(job)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs.Get(name)
	if !ok || !job.registered {
		return fmt.Errorf("%w: '%s'", ErrJobNotFound, name)
	}
	s.cron.Remove(job.entryId)
	job.registered = false
	s.logger.Sugar().Infow("Stopped job", zap.String("job", name))
	return nil
}

// StopAll unregisters every job and stops the cron loop. The returned context is done
// once in-flight jobs have finished.
func (s *Scheduler) StopAll() context.Context {
	s.mu.Lock()
	for pair := s.jobs.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.registered {
			s.cron.Remove(pair.Value.entryId)
			pair.Value.registered = false
		}
	}
	s.mu.Unlock()

	s.logger.Sugar().Infow("Stopping scheduler")
	return s.cron.Stop()
}

func (s *Scheduler) Status(name string) JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, ok := s.jobs.Get(name); ok && job.registered {
		return JobStatus_Running
	}
	return JobStatus_NotFound
}

func (s *Scheduler) List() []*JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	infos := make([]*JobInfo, 0, s.jobs.Len())
	for pair := s.jobs.Oldest(); pair != nil; pair = pair.Next() {
		job := pair.Value
		info := &JobInfo{
			Name:       job.definition.Name,
			Schedule:   job.definition.Schedule,
			Status:     JobStatus_NotFound,
			InProgress: job.inProgress.Load() > 0,
		}
		if job.registered {
			info.Status = JobStatus_Running
			entry := s.cron.Entry(job.entryId)
			if !entry.Next.IsZero() {
				next := entry.Next
				info.NextRun = &next
			}
			if !entry.Prev.IsZero() {
				prev := entry.Prev
				info.PrevRun = &prev
			}
		}
		infos = append(infos, info)
	}
	return infos
}

// RunNow runs a known job immediately, whether or not it is scheduled. It never
// returns an error or panics; the outcome is described by the result.
func (s *Scheduler) RunNow(ctx context.Context, name string) (result *RunResult) {
	s.mu.Lock()
	job, ok := s.jobs.Get(name)
	s.mu.Unlock()
	if !ok {
		return &RunResult{Success: false, Message: fmt.Sprintf("unknown job '%s'", name)}
	}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Sugar().Errorw("Job panicked", zap.String("job", name), zap.Any("panic", r))
			result = &RunResult{Success: false, Message: fmt.Sprintf("job '%s' panicked: %v", name, r)}
		}
	}()

	duration, err := s.execute(ctx, job, "manual")
	if err != nil {
		return &RunResult{Success: false, Message: fmt.Sprintf("job '%s' failed: %s", name, err.Error())}
	}
	return &RunResult{Success: true, Message: fmt.Sprintf("job '%s' completed in %s", name, duration.Round(time.Millisecond))}
}

func (s *Scheduler) execute(ctx context.Context, job *scheduledJob, trigger string) (time.Duration, error) {
	name := job.definition.Name
	if s.preventOverlap {
		if !job.inProgress.CompareAndSwap(0, 1) {
			s.logger.Sugar().Warnw("Skipping job, previous run still in progress",
				zap.String("job", name),
				zap.String("trigger", trigger),
			)
			s.metrics.Incr(metricsTypes.Metric_Incr_SchedulerJobSkipped, []metricsTypes.MetricsLabel{
				{Name: "job", Value: name},
			}, 1)
			return 0, ErrJobAlreadyRunning
		}
	} else {
		job.inProgress.Add(1)
	}
	defer job.inProgress.Add(-1)

	s.logger.Sugar().Infow("Running job", zap.String("job", name), zap.String("trigger", trigger))
	start := time.Now()
	err := job.definition.Run(ctx)
	duration := time.Since(start)
	if err != nil {
		s.logger.Sugar().Errorw("Job failed",
			zap.String("job", name),
			zap.String("trigger", trigger),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return duration, err
	}
	s.logger.Sugar().Infow("Job completed",
		zap.String("job", name),
		zap.String("trigger", trigger),
		zap.Duration("duration", duration),
	)
	return duration, nil
}
