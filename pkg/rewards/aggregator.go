package rewards

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/lpstake/lpstake/pkg/clients/subgraph"
	"github.com/shopspring/decimal"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"go.uber.org/zap"
)

const (
	tokenDecimals    = 18
	displayDecimals  = 6
	roundBreakdownTo = 5
)

type AggregatedReward struct {
	TotalRewards      string
	RewardEventsCount int
}

type roundTotal struct {
	RoundId string
	Amount  *big.Int
}

// AggregateRewards sums the reward tokens of the events and converts the total to LPT.
// A nil result means there is nothing worth notifying about.
func AggregateRewards(events []*subgraph.RewardEvent, l *zap.Logger) (*AggregatedReward, error) {
	if len(events) == 0 {
		return nil, nil
	}

	total := new(big.Int)
	byRound := orderedmap.New[string, *big.Int]()
	for _, e := range events {
		amount, ok := new(big.Int).SetString(e.RewardTokens, 10)
		if !ok {
			return nil, fmt.Errorf("malformed reward amount '%s' in event '%s'", e.RewardTokens, e.Id)
		}
		total.Add(total, amount)

		if existing, found := byRound.Get(e.Round.Id); found {
			existing.Add(existing, amount)
		} else {
			byRound.Set(e.Round.Id, new(big.Int).Set(amount))
		}
	}

	if total.Sign() <= 0 {
		return nil, nil
	}

	totalLpt := decimal.NewFromBigInt(total, -tokenDecimals).Round(displayDecimals)
	if totalLpt.IsZero() {
		return nil, nil
	}

	if l != nil {
		logRoundBreakdown(byRound, l)
	}

	return &AggregatedReward{
		TotalRewards:      totalLpt.StringFixed(displayDecimals),
		RewardEventsCount: len(events),
	}, nil
}

func logRoundBreakdown(byRound *orderedmap.OrderedMap[string, *big.Int], l *zap.Logger) {
	rounds := make([]*roundTotal, 0, byRound.Len())
	for pair := byRound.Oldest(); pair != nil; pair = pair.Next() {
		rounds = append(rounds, &roundTotal{RoundId: pair.Key, Amount: pair.Value})
	}
	sort.SliceStable(rounds, func(i, j int) bool {
		return rounds[i].Amount.Cmp(rounds[j].Amount) > 0
	})
	if len(rounds) > roundBreakdownTo {
		rounds = rounds[:roundBreakdownTo]
	}

	top := make([]string, 0, len(rounds))
	for _, r := range rounds {
		top = append(top, fmt.Sprintf("%s=%s", r.RoundId, decimal.NewFromBigInt(r.Amount, -tokenDecimals).StringFixed(displayDecimals)))
	}
	l.Sugar().Debugw("Reward breakdown by round",
		zap.Int("rounds", byRound.Len()),
		zap.Strings("topRounds", top),
	)
}
