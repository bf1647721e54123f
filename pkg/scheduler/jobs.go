package scheduler

import (
	"context"
	"errors"

	"github.com/lpstake/lpstake/internal/config"
	"github.com/lpstake/lpstake/pkg/gasTopUp"
	"github.com/lpstake/lpstake/pkg/rewards"
)

const (
	JobName_DailyRewards   = "daily-rewards"
	JobName_WeeklyRewards  = "weekly-rewards"
	JobName_MonthlyRewards = "monthly-rewards"
	JobName_GasTopUp       = "gas-top-up"
)

type RewardsRunner interface {
	Execute(ctx context.Context, period rewards.PeriodType) (*rewards.ExecutionSummary, error)
}

type TopUpRunner interface {
	TopUpAll(ctx context.Context, amount string) *gasTopUp.TopUpSummary
}

func rewardsJob(runner RewardsRunner, period rewards.PeriodType) JobFunc {
	return func(ctx context.Context) error {
		_, err := runner.Execute(ctx, period)
		return err
	}
}

func gasTopUpJob(runner TopUpRunner, amount string) JobFunc {
	return func(ctx context.Context) error {
		summary := runner.TopUpAll(ctx, amount)
		if !summary.Success {
			return errors.New(summary.Error)
		}
		return nil
	}
}

// BuildJobDefinitions returns the jobs known to the scheduler. The gas top-up job is
// only included when a top-up runner, schedule and amount are all configured.
func BuildJobDefinitions(cfg *config.Config, rewardsRunner RewardsRunner, topUpRunner TopUpRunner) []*JobDefinition {
	jobs := []*JobDefinition{
		{
			Name:     JobName_DailyRewards,
			Schedule: cfg.SchedulerConfig.DailySchedule,
			Run:      rewardsJob(rewardsRunner, rewards.PeriodType_Daily),
		},
		{
			Name:     JobName_WeeklyRewards,
			Schedule: cfg.SchedulerConfig.WeeklySchedule,
			Run:      rewardsJob(rewardsRunner, rewards.PeriodType_Weekly),
		},
		{
			Name:     JobName_MonthlyRewards,
			Schedule: cfg.SchedulerConfig.MonthlySchedule,
			Run:      rewardsJob(rewardsRunner, rewards.PeriodType_Monthly),
		},
	}
	if topUpRunner != nil && cfg.GasTopUpConfig.Schedule != "" && cfg.GasTopUpConfig.Amount != "" {
		jobs = append(jobs, &JobDefinition{
			Name:     JobName_GasTopUp,
			Schedule: cfg.GasTopUpConfig.Schedule,
			Run:      gasTopUpJob(topUpRunner, cfg.GasTopUpConfig.Amount),
		})
	}
	return jobs
}
