package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lpstake/lpstake/internal/metrics"
	"github.com/lpstake/lpstake/internal/metrics/metricsTypes"
	"github.com/lpstake/lpstake/pkg/clients/subgraph"
	"github.com/lpstake/lpstake/pkg/storage"
	"github.com/lpstake/lpstake/pkg/utils"
	"go.uber.org/zap"
)

const rewardCurrency = "LPT"

type RewardEventSource interface {
	FetchRewardEvents(ctx context.Context, delegator string, startUnix int64, endUnix int64) ([]*subgraph.RewardEvent, error)
}

type NotificationEmitter interface {
	Emit(ctx context.Context, notification *storage.Notification) error
}

type ExecutionSummary struct {
	Period     PeriodType `json:"period"`
	Recipients int        `json:"recipients"`
	Processed  int        `json:"processed"`
	Notified   int        `json:"notified"`
	Skipped    int        `json:"skipped"`
	Errors     int        `json:"errors"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt time.Time  `json:"finishedAt"`
}

type ManualRunResult struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Summary *ExecutionSummary `json:"summary,omitempty"`
}

type RewardsJob struct {
	recipients storage.RecipientStore
	events     RewardEventSource
	emitter    NotificationEmitter
	metrics    *metrics.MetricsSink
	logger     *zap.Logger
	now        func() time.Time
}

func NewRewardsJob(
	recipients storage.RecipientStore,
	events RewardEventSource,
	emitter NotificationEmitter,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *RewardsJob {
	if ms == nil {
		ms = metrics.NewNoopMetricsSink()
	}
	return &RewardsJob{
		recipients: recipients,
		events:     events,
		emitter:    emitter,
		metrics:    ms,
		logger:     l,
		now:        time.Now,
	}
}

// SetClock overrides the source of "now" used to compute reward windows.
func (rj *RewardsJob) SetClock(now func() time.Time) {
	rj.now = now
}

// Execute sends a reward summary to every recipient that earned rewards in the period.
// It only fails when the period is invalid or recipients cannot be listed; failures for
// a single recipient are logged and counted.
func (rj *RewardsJob) Execute(ctx context.Context, period PeriodType) (*ExecutionSummary, error) {
	summary := &ExecutionSummary{
		Period:    period,
		StartedAt: rj.now(),
	}
	if _, err := ParsePeriodType(string(period)); err != nil {
		return nil, err
	}
	periodLabel := []metricsTypes.MetricsLabel{{Name: "period", Value: string(period)}}

	rj.logger.Sugar().Infow("Starting rewards job", zap.String("period", string(period)))

	recipients, err := rj.recipients.ListRecipients(ctx)
	if err != nil {
		rj.logger.Sugar().Errorw("Failed to list recipients", zap.String("period", string(period)), zap.Error(err))
		rj.recordRun(summary, "error")
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}
	summary.Recipients = len(recipients)
	rj.metrics.Gauge(metricsTypes.Metric_Gauge_RewardsRecipients, float64(len(recipients)), periodLabel)

	for _, recipient := range recipients {
		if err := ctx.Err(); err != nil {
			rj.logger.Sugar().Warnw("Rewards job cancelled",
				zap.String("period", string(period)),
				zap.Int("processed", summary.Processed),
				zap.Error(err),
			)
			break
		}
		if utils.IsEmptyAddress(recipient.WalletAddress) {
			summary.Skipped++
			continue
		}

		summary.Processed++
		notified, err := rj.processRecipient(ctx, period, recipient)
		if err != nil {
			summary.Errors++
			rj.metrics.Incr(metricsTypes.Metric_Incr_RewardsRecipientError, periodLabel, 1)
			rj.logger.Sugar().Errorw("Failed to process recipient",
				zap.String("period", string(period)),
				zap.String("userId", recipient.UserId),
				zap.String("walletAddress", recipient.WalletAddress),
				zap.Error(err),
			)
			continue
		}
		if notified {
			summary.Notified++
			rj.metrics.Incr(metricsTypes.Metric_Incr_RewardsNotification, periodLabel, 1)
		} else {
			summary.Skipped++
		}
	}

	summary.FinishedAt = rj.now()
	rj.recordRun(summary, "success")
	rj.logger.Sugar().Infow("Completed rewards job",
		zap.String("period", string(period)),
		zap.Int("recipients", summary.Recipients),
		zap.Int("notified", summary.Notified),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", summary.Errors),
		zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, nil
}

func (rj *RewardsJob) recordRun(summary *ExecutionSummary, status string) {
	rj.metrics.Incr(metricsTypes.Metric_Incr_RewardsJobRun, []metricsTypes.MetricsLabel{
		{Name: "period", Value: string(summary.Period)},
		{Name: "status", Value: status},
	}, 1)
	rj.metrics.Timing(metricsTypes.Metric_Timing_RewardsJobDuration, rj.now().Sub(summary.StartedAt), []metricsTypes.MetricsLabel{
		{Name: "period", Value: string(summary.Period)},
	})
}

// processRecipient returns true when a notification was emitted.
func (rj *RewardsJob) processRecipient(ctx context.Context, period PeriodType, recipient *storage.Recipient) (bool, error) {
	window, err := CalculateTimePeriod(period, rj.now())
	if err != nil {
		return false, err
	}

	events, err := rj.events.FetchRewardEvents(ctx, recipient.WalletAddress, window.Start.Unix(), window.End.Unix())
	if err != nil {
		return false, fmt.Errorf("failed to fetch reward events: %w", err)
	}

	reward, err := AggregateRewards(events, rj.logger)
	if err != nil {
		return false, err
	}
	if reward == nil {
		rj.logger.Sugar().Debugw("No rewards for recipient",
			zap.String("period", string(period)),
			zap.String("userId", recipient.UserId),
		)
		return false, nil
	}

	notification := buildRewardNotification(period, recipient, window, reward)
	if err := rj.emitter.Emit(ctx, notification); err != nil {
		return false, fmt.Errorf("failed to emit notification: %w", err)
	}
	return true, nil
}

func buildRewardNotification(period PeriodType, recipient *storage.Recipient, window *TimePeriod, reward *AggregatedReward) *storage.Notification {
	return &storage.Notification{
		UserId: recipient.UserId,
		Title:  fmt.Sprintf("%s Staking Rewards Summary", period.Title()),
		Message: fmt.Sprintf("You earned %s %s in staking rewards over the past %s from %d reward events.",
			reward.TotalRewards,
			rewardCurrency,
			period.noun(),
			reward.RewardEventsCount,
		),
		Type: storage.NotificationType_Reward,
		Metadata: storage.NotificationMetadata{
			Period:        string(period),
			Amount:        reward.TotalRewards,
			Currency:      rewardCurrency,
			StartDate:     window.Start,
			EndDate:       window.End,
			RewardEvents:  reward.RewardEventsCount,
			WalletAddress: recipient.WalletAddress,
		},
	}
}

// RunManual runs Execute for admin triggers and always returns a result.
func (rj *RewardsJob) RunManual(ctx context.Context, period PeriodType) (result *ManualRunResult) {
	defer func() {
		if r := recover(); r != nil {
			rj.logger.Sugar().Errorw("Rewards job panicked", zap.String("period", string(period)), zap.Any("panic", r))
			result = &ManualRunResult{
				Success: false,
				Message: fmt.Sprintf("%s rewards job failed: %v", period, r),
			}
		}
	}()

	summary, err := rj.Execute(ctx, period)
	if err != nil {
		msg := fmt.Sprintf("%s rewards job failed: %s", period, err.Error())
		if errors.Is(err, ErrInvalidPeriod) {
			msg = err.Error()
		}
		return &ManualRunResult{
			Success: false,
			Message: msg,
		}
	}
	return &ManualRunResult{
		Success: true,
		Message: fmt.Sprintf("%s rewards job completed: %d notified, %d skipped, %d errors",
			period.Title(), summary.Notified, summary.Skipped, summary.Errors),
		Summary: summary,
	}
}
