package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lpstake/lpstake/internal/config"
	"github.com/lpstake/lpstake/internal/logger"
	"github.com/lpstake/lpstake/pkg/gasTopUp"
	"github.com/lpstake/lpstake/pkg/rewards"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	return l
}

func noop(ctx context.Context) error {
	return nil
}

func Test_Scheduler(t *testing.T) {
	l := testLogger()

	t.Run("Registers valid jobs and skips malformed schedules", func(t *testing.T) {
		s := NewScheduler([]*JobDefinition{
			{Name: "a", Schedule: "0 9 * * *", Run: noop},
			{Name: "broken", Schedule: "not a cron", Run: noop},
			{Name: "b", Schedule: "0 9 * * 1", Run: noop},
		}, &SchedulerConfig{PreventOverlap: true}, nil, l)
		s.StartAll(context.Background())
		defer s.StopAll()

		assert.Equal(t, JobStatus_Running, s.Status("a"))
		assert.Equal(t, JobStatus_NotFound, s.Status("broken"))
		assert.Equal(t, JobStatus_Running, s.Status("b"))
		assert.Equal(t, JobStatus_NotFound, s.Status("unknown"))

		jobs := s.List()
		assert.Equal(t, 3, len(jobs))
		assert.Equal(t, "a", jobs[0].Name)
		assert.NotNil(t, jobs[0].NextRun)
		assert.Nil(t, jobs[1].NextRun)
	})
	t.Run("Stops and restarts a job by name", func(t *testing.T) {
		s := NewScheduler([]*JobDefinition{
			{Name: "a", Schedule: "0 9 * * *", Run: noop},
		}, &SchedulerConfig{}, nil, l)
		s.StartAll(context.Background())
		defer s.StopAll()

		assert.Nil(t, s.Stop("a"))
		assert.Equal(t, JobStatus_NotFound, s.Status("a"))
		assert.True(t, errors.Is(s.Stop("a"), ErrJobNotFound))

		assert.Nil(t, s.Start("a"))
		assert.Equal(t, JobStatus_Running, s.Status("a"))
		assert.Nil(t, s.Start("a"))

		assert.True(t, errors.Is(s.Start("missing"), ErrJobNotFound))
	})
	t.Run("StopAll unregisters every job", func(t *testing.T) {
		s := NewScheduler([]*JobDefinition{
			{Name: "a", Schedule: "0 9 * * *", Run: noop},
			{Name: "b", Schedule: "0 10 * * *", Run: noop},
		}, &SchedulerConfig{}, nil, l)
		s.StartAll(context.Background())

		<-s.StopAll().Done()
		assert.Equal(t, JobStatus_NotFound, s.Status("a"))
		assert.Equal(t, JobStatus_NotFound, s.Status("b"))
	})
	t.Run("RunNow runs a job regardless of its schedule", func(t *testing.T) {
		calls := atomic.Int64{}
		s := NewScheduler([]*JobDefinition{
			{Name: "a", Schedule: "0 9 * * *", Run: func(ctx context.Context) error {
				calls.Add(1)
				return nil
			}},
		}, &SchedulerConfig{}, nil, l)

		res := s.RunNow(context.Background(), "a")
		assert.True(t, res.Success)
		assert.Equal(t, int64(1), calls.Load())
	})
	t.Run("RunNow reports failures, panics and unknown jobs", func(t *testing.T) {
		s := NewScheduler([]*JobDefinition{
			{Name: "fails", Schedule: "0 9 * * *", Run: func(ctx context.Context) error {
				return errors.New("subgraph down")
			}},
			{Name: "panics", Schedule: "0 9 * * *", Run: func(ctx context.Context) error {
				panic("boom")
			}},
		}, &SchedulerConfig{PreventOverlap: true}, nil, l)

		res := s.RunNow(context.Background(), "fails")
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "subgraph down")

		res = s.RunNow(context.Background(), "panics")
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "boom")

		// the panic must not leave the job marked as in progress
		res = s.RunNow(context.Background(), "panics")
		assert.Contains(t, res.Message, "boom")

		res = s.RunNow(context.Background(), "nope")
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "unknown job")
	})
	t.Run("Skips a run while the previous one is in progress", func(t *testing.T) {
		release := make(chan struct{})
		started := make(chan struct{})
		s := NewScheduler([]*JobDefinition{
			{Name: "slow", Schedule: "0 9 * * *", Run: func(ctx context.Context) error {
				close(started)
				<-release
				return nil
			}},
		}, &SchedulerConfig{PreventOverlap: true}, nil, l)

		done := make(chan *RunResult)
		go func() {
			done <- s.RunNow(context.Background(), "slow")
		}()
		<-started

		res := s.RunNow(context.Background(), "slow")
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, ErrJobAlreadyRunning.Error())

		close(release)
		assert.True(t, (<-done).Success)
	})
	t.Run("Allows overlapping runs when the guard is disabled", func(t *testing.T) {
		release := make(chan struct{})
		running := atomic.Int64{}
		s := NewScheduler([]*JobDefinition{
			{Name: "slow", Schedule: "0 9 * * *", Run: func(ctx context.Context) error {
				running.Add(1)
				<-release
				return nil
			}},
		}, &SchedulerConfig{PreventOverlap: false}, nil, l)

		done := make(chan *RunResult, 2)
		for i := 0; i < 2; i++ {
			go func() {
				done <- s.RunNow(context.Background(), "slow")
			}()
		}
		assert.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 5*time.Millisecond)
		close(release)
		assert.True(t, (<-done).Success)
		assert.True(t, (<-done).Success)
	})
	t.Run("Reports in progress until the last overlapping run finishes", func(t *testing.T) {
		release := make(chan struct{})
		running := atomic.Int64{}
		s := NewScheduler([]*JobDefinition{
			{Name: "slow", Schedule: "0 9 * * *", Run: func(ctx context.Context) error {
				running.Add(1)
				<-release
				return nil
			}},
		}, &SchedulerConfig{PreventOverlap: false}, nil, l)

		done := make(chan *RunResult, 2)
		for i := 0; i < 2; i++ {
			go func() {
				done <- s.RunNow(context.Background(), "slow")
			}()
		}
		assert.Eventually(t, func() bool { return running.Load() == 2 }, time.Second, 5*time.Millisecond)

		release <- struct{}{}
		<-done
		assert.True(t, s.List()[0].InProgress)

		release <- struct{}{}
		<-done
		assert.False(t, s.List()[0].InProgress)
	})
	t.Run("Start fires a job when StartAll was never called", func(t *testing.T) {
		calls := atomic.Int64{}
		s := NewScheduler([]*JobDefinition{
			{Name: "a", Schedule: "@every 1s", Run: func(ctx context.Context) error {
				calls.Add(1)
				return nil
			}},
		}, &SchedulerConfig{PreventOverlap: true}, nil, l)
		defer s.StopAll()

		assert.Nil(t, s.Start("a"))
		assert.Equal(t, JobStatus_Running, s.Status("a"))
		assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	})
	t.Run("Start fires a job again after StopAll", func(t *testing.T) {
		calls := atomic.Int64{}
		s := NewScheduler([]*JobDefinition{
			{Name: "a", Schedule: "@every 1s", Run: func(ctx context.Context) error {
				calls.Add(1)
				return nil
			}},
		}, &SchedulerConfig{PreventOverlap: true}, nil, l)
		s.StartAll(context.Background())
		<-s.StopAll().Done()
		calls.Store(0)

		assert.Nil(t, s.Start("a"))
		defer s.StopAll()
		assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	})
}

type fakeRewardsRunner struct {
	periods []rewards.PeriodType
	err     error
}

func (f *fakeRewardsRunner) Execute(ctx context.Context, period rewards.PeriodType) (*rewards.ExecutionSummary, error) {
	f.periods = append(f.periods, period)
	return &rewards.ExecutionSummary{Period: period}, f.err
}

type fakeTopUpRunner struct {
	amounts []string
	summary *gasTopUp.TopUpSummary
}

func (f *fakeTopUpRunner) TopUpAll(ctx context.Context, amount string) *gasTopUp.TopUpSummary {
	f.amounts = append(f.amounts, amount)
	return f.summary
}

func Test_BuildJobDefinitions(t *testing.T) {
	cfg := &config.Config{
		SchedulerConfig: config.SchedulerConfig{
			DailySchedule:   "0 9 * * *",
			WeeklySchedule:  "0 9 * * 1",
			MonthlySchedule: "0 9 1 * *",
		},
	}

	t.Run("Registers the three reward jobs", func(t *testing.T) {
		runner := &fakeRewardsRunner{}
		jobs := BuildJobDefinitions(cfg, runner, nil)
		assert.Equal(t, 3, len(jobs))

		for _, job := range jobs {
			assert.Nil(t, job.Run(context.Background()))
		}
		assert.Equal(t, []rewards.PeriodType{rewards.PeriodType_Daily, rewards.PeriodType_Weekly, rewards.PeriodType_Monthly}, runner.periods)
	})
	t.Run("Adds the gas top-up job when configured", func(t *testing.T) {
		withTopUp := *cfg
		withTopUp.GasTopUpConfig = config.GasTopUpConfig{Schedule: "0 */6 * * *", Amount: "0.01"}
		topUp := &fakeTopUpRunner{summary: &gasTopUp.TopUpSummary{Success: false, Error: "no custody signer configured"}}

		jobs := BuildJobDefinitions(&withTopUp, &fakeRewardsRunner{}, topUp)
		assert.Equal(t, 4, len(jobs))
		assert.Equal(t, JobName_GasTopUp, jobs[3].Name)

		err := jobs[3].Run(context.Background())
		assert.NotNil(t, err)
		assert.Equal(t, []string{"0.01"}, topUp.amounts)
	})
	t.Run("Propagates reward job failures to the scheduler", func(t *testing.T) {
		jobs := BuildJobDefinitions(cfg, &fakeRewardsRunner{err: errors.New("enumeration failed")}, nil)
		s := NewScheduler(jobs, &SchedulerConfig{}, nil, testLogger())

		res := s.RunNow(context.Background(), JobName_DailyRewards)
		assert.False(t, res.Success)
		assert.Contains(t, res.Message, "enumeration failed")
	})
}
