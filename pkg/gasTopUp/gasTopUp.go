package gasTopUp

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/lpstake/lpstake/internal/metrics"
	"github.com/lpstake/lpstake/internal/metrics/metricsTypes"
	"github.com/lpstake/lpstake/pkg/eventBus/eventBusTypes"
	"github.com/lpstake/lpstake/pkg/storage"
	"github.com/lpstake/lpstake/pkg/utils"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	nativeDecimals = 18

	DefaultPageSize            = 500
	DefaultConcurrency         = 20
	DefaultConfirmationTimeout = 2 * time.Minute
)

var (
	ErrNoFunder      = errors.New("no custody signer configured")
	ErrNoStore       = errors.New("no recipient store configured")
	ErrInvalidAmount = errors.New("invalid top-up amount")
)

// Funder reads balances and sends native-token transfers from the custody account.
type Funder interface {
	BalanceAt(ctx context.Context, address string) (*big.Int, error)
	SendValue(ctx context.Context, to string, wei *big.Int) (common.Hash, error)
	WaitForConfirmation(ctx context.Context, txHash common.Hash, timeout time.Duration) (*types.Receipt, error)
}

type TopUpResult struct {
	UserId         string `csv:"user_id" json:"userId"`
	WalletId       string `csv:"wallet_id" json:"walletId"`
	WalletAddress  string `csv:"wallet_address" json:"walletAddress"`
	BalanceWei     string `csv:"balance_wei" json:"balanceWei"`
	NeededWei      string `csv:"needed_wei" json:"neededWei"`
	TopUpPerformed bool   `csv:"top_up_performed" json:"topUpPerformed"`
	TxHash         string `csv:"tx_hash" json:"txHash,omitempty"`
	Error          string `csv:"error" json:"error,omitempty"`
}

type TopUpSummary struct {
	Success       bool           `json:"success"`
	Error         string         `json:"error,omitempty"`
	RunId         string         `json:"runId"`
	TotalChecked  int            `json:"totalChecked"`
	TotalToppedUp int            `json:"totalToppedUp"`
	TotalErrors   int            `json:"totalErrors"`
	Details       []*TopUpResult `json:"details"`
}

type Options struct {
	PageSize            int
	Concurrency         int
	Max                 int
	ConfirmationTimeout time.Duration

	// OnProgress is called after each wallet is processed with the running total.
	OnProgress func(processed int)
}

type GasTopUp struct {
	recipients storage.RecipientStore
	audits     storage.GasTopUpAuditStore
	funder     Funder
	eventBus   eventBusTypes.IEventBus
	metrics    *metrics.MetricsSink
	logger     *zap.Logger
	opts       Options
}

func NewGasTopUp(
	recipients storage.RecipientStore,
	audits storage.GasTopUpAuditStore,
	funder Funder,
	eb eventBusTypes.IEventBus,
	opts Options,
	ms *metrics.MetricsSink,
	l *zap.Logger,
) *GasTopUp {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Max < 0 {
		opts.Max = 0
	}
	if opts.ConfirmationTimeout <= 0 {
		opts.ConfirmationTimeout = DefaultConfirmationTimeout
	}
	if ms == nil {
		ms = metrics.NewNoopMetricsSink()
	}
	return &GasTopUp{
		recipients: recipients,
		audits:     audits,
		funder:     funder,
		eventBus:   eb,
		metrics:    ms,
		logger:     l,
		opts:       opts,
	}
}

// ParseAmountToWei converts a decimal native-token amount to wei.
func ParseAmountToWei(amount string) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: '%s' is not a decimal", ErrInvalidAmount, amount)
	}
	if !d.IsPositive() {
		return nil, fmt.Errorf("%w: '%s' must be positive", ErrInvalidAmount, amount)
	}
	shifted := d.Shift(nativeDecimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("%w: '%s' has more than %d decimals", ErrInvalidAmount, amount, nativeDecimals)
	}
	return shifted.BigInt(), nil
}

// TopUpAll funds every wallet whose balance is below amount. Only configuration
// problems and recipient page failures fail the run; wallet failures are reported per row.
func (g *GasTopUp) TopUpAll(ctx context.Context, amount string) *TopUpSummary {
	summary := &TopUpSummary{
		RunId:   uuid.NewString(),
		Details: make([]*TopUpResult, 0),
	}
	start := time.Now()

	target, err := ParseAmountToWei(amount)
	if err != nil {
		summary.Error = err.Error()
		return summary
	}
	if g.funder == nil {
		summary.Error = ErrNoFunder.Error()
		return summary
	}
	if g.recipients == nil {
		summary.Error = ErrNoStore.Error()
		return summary
	}

	g.logger.Sugar().Infow("Starting gas top-up",
		zap.String("runId", summary.RunId),
		zap.String("amount", amount),
		zap.Int("pageSize", g.opts.PageSize),
		zap.Int("concurrency", g.opts.Concurrency),
		zap.Int("max", g.opts.Max),
	)

	processed := &atomic.Int64{}
	for offset := 0; ; offset += g.opts.PageSize {
		limit := g.opts.PageSize
		if g.opts.Max > 0 {
			left := g.opts.Max - len(summary.Details)
			if left <= 0 {
				break
			}
			if left < limit {
				limit = left
			}
		}

		page, err := g.recipients.ListRecipientsPage(ctx, offset, limit)
		if err != nil {
			g.logger.Sugar().Errorw("Failed to fetch recipient page",
				zap.String("runId", summary.RunId),
				zap.Int("offset", offset),
				zap.Error(err),
			)
			summary.Error = fmt.Sprintf("failed to fetch recipients at offset %d: %s", offset, err.Error())
			// rows from earlier pages are only kept in the audit table
			g.finish(ctx, summary, start)
			summary.Details = make([]*TopUpResult, 0)
			return summary
		}
		if len(page) == 0 {
			break
		}

		summary.Details = append(summary.Details, g.processPage(ctx, page, target, processed)...)

		if len(page) < limit {
			break
		}
	}

	summary.Success = true
	g.finish(ctx, summary, start)
	return summary
}

// processPage runs one task per wallet with at most Concurrency in flight. Workers
// claim the next index from a shared counter so results keep the page order.
func (g *GasTopUp) processPage(ctx context.Context, page []*storage.Recipient, target *big.Int, processed *atomic.Int64) []*TopUpResult {
	results := make([]*TopUpResult, len(page))
	next := &atomic.Int64{}

	workers := g.opts.Concurrency
	if workers > len(page) {
		workers = len(page)
	}

	var eg errgroup.Group
	for w := 0; w < workers; w++ {
		eg.Go(func() error {
			for {
				i := int(next.Add(1)) - 1
				if i >= len(page) {
					return nil
				}
				results[i] = g.checkAndFund(ctx, page[i], target)
				done := processed.Add(1)
				if g.opts.OnProgress != nil {
					g.opts.OnProgress(int(done))
				}
			}
		})
	}
	_ = eg.Wait()
	return results
}

func (g *GasTopUp) checkAndFund(ctx context.Context, recipient *storage.Recipient, target *big.Int) (result *TopUpResult) {
	result = &TopUpResult{
		UserId:        recipient.UserId,
		WalletId:      recipient.WalletId,
		WalletAddress: recipient.WalletAddress,
		BalanceWei:    "0",
		NeededWei:     "0",
	}
	defer func() {
		if r := recover(); r != nil {
			result.Error = fmt.Sprintf("panic: %v", r)
		}
		g.metrics.Incr(metricsTypes.Metric_Incr_GasTopUpWalletChecked, nil, 1)
		if result.Error != "" {
			g.metrics.Incr(metricsTypes.Metric_Incr_GasTopUpWalletError, nil, 1)
			g.logger.Sugar().Warnw("Gas top-up failed for wallet",
				zap.String("userId", recipient.UserId),
				zap.String("walletAddress", recipient.WalletAddress),
				zap.String("error", result.Error),
			)
		}
	}()

	if utils.IsEmptyAddress(recipient.WalletAddress) {
		result.Error = "wallet has no address"
		return result
	}

	balance, err := g.funder.BalanceAt(ctx, recipient.WalletAddress)
	if err != nil {
		result.Error = fmt.Sprintf("failed to read balance: %s", err.Error())
		return result
	}
	result.BalanceWei = balance.String()

	if balance.Cmp(target) >= 0 {
		return result
	}
	result.NeededWei = target.String()

	txHash, err := g.funder.SendValue(ctx, recipient.WalletAddress, target)
	if err != nil {
		result.Error = fmt.Sprintf("failed to send top-up: %s", err.Error())
		return result
	}
	result.TopUpPerformed = true
	result.TxHash = txHash.Hex()
	g.metrics.Incr(metricsTypes.Metric_Incr_GasTopUpWalletFunded, nil, 1)

	// The transfer is already submitted; a slow or failed wait does not change the row.
	if _, err := g.funder.WaitForConfirmation(ctx, txHash, g.opts.ConfirmationTimeout); err != nil {
		g.logger.Sugar().Debugw("Top-up not confirmed within timeout",
			zap.String("walletAddress", recipient.WalletAddress),
			zap.String("txHash", result.TxHash),
			zap.Error(err),
		)
	}
	return result
}

func (g *GasTopUp) finish(ctx context.Context, summary *TopUpSummary, start time.Time) {
	summary.TotalChecked = len(summary.Details)
	for _, d := range summary.Details {
		if d.TopUpPerformed {
			summary.TotalToppedUp++
		}
		if d.Error != "" {
			summary.TotalErrors++
		}
	}
	g.metrics.Timing(metricsTypes.Metric_Timing_GasTopUpDuration, time.Since(start), nil)

	g.persistAudits(ctx, summary)

	if g.eventBus != nil {
		g.eventBus.Publish(&eventBusTypes.Event{
			Name: eventBusTypes.Event_GasTopUpCompleted,
			Data: &eventBusTypes.GasTopUpCompletedData{
				RunId:         summary.RunId,
				Success:       summary.Success,
				Error:         summary.Error,
				TotalChecked:  summary.TotalChecked,
				TotalToppedUp: summary.TotalToppedUp,
				TotalErrors:   summary.TotalErrors,
				CompletedAt:   time.Now().UTC(),
			},
		})
	}

	g.logger.Sugar().Infow("Completed gas top-up",
		zap.String("runId", summary.RunId),
		zap.Bool("success", summary.Success),
		zap.Int("checked", summary.TotalChecked),
		zap.Int("toppedUp", summary.TotalToppedUp),
		zap.Int("errors", summary.TotalErrors),
		zap.Duration("duration", time.Since(start)),
	)
}

func (g *GasTopUp) persistAudits(ctx context.Context, summary *TopUpSummary) {
	if g.audits == nil || len(summary.Details) == 0 {
		return
	}
	audits := make([]*storage.GasTopUpAudit, 0, len(summary.Details))
	for _, d := range summary.Details {
		audit := &storage.GasTopUpAudit{
			RunId:          summary.RunId,
			UserId:         d.UserId,
			WalletId:       d.WalletId,
			WalletAddress:  d.WalletAddress,
			BalanceWei:     d.BalanceWei,
			NeededWei:      d.NeededWei,
			TopUpPerformed: d.TopUpPerformed,
		}
		if d.TxHash != "" {
			txHash := d.TxHash
			audit.TxHash = &txHash
		}
		if d.Error != "" {
			msg := d.Error
			audit.Error = &msg
		}
		audits = append(audits, audit)
	}
	if err := g.audits.InsertGasTopUpAudits(ctx, audits); err != nil {
		g.logger.Sugar().Warnw("Failed to persist gas top-up audit",
			zap.String("runId", summary.RunId),
			zap.Error(err),
		)
	}
}
