package rewards

import (
	"fmt"
	"testing"

	"github.com/lpstake/lpstake/internal/logger"
	"github.com/lpstake/lpstake/pkg/clients/subgraph"
	"github.com/stretchr/testify/assert"
)

func event(id string, round string, amount string) *subgraph.RewardEvent {
	return &subgraph.RewardEvent{
		Id:           id,
		RewardTokens: amount,
		Round:        subgraph.Round{Id: round},
	}
}

func Test_AggregateRewards(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: true})

	t.Run("Empty input yields nothing", func(t *testing.T) {
		res, err := AggregateRewards([]*subgraph.RewardEvent{}, l)
		assert.Nil(t, err)
		assert.Nil(t, res)

		res, err = AggregateRewards(nil, l)
		assert.Nil(t, err)
		assert.Nil(t, res)
	})
	t.Run("Zero total yields nothing", func(t *testing.T) {
		res, err := AggregateRewards([]*subgraph.RewardEvent{
			event("1", "100", "0"),
			event("2", "101", "0"),
		}, l)
		assert.Nil(t, err)
		assert.Nil(t, res)
	})
	t.Run("Negative total yields nothing", func(t *testing.T) {
		res, err := AggregateRewards([]*subgraph.RewardEvent{
			event("1", "100", "-1000000000000000000"),
		}, l)
		assert.Nil(t, err)
		assert.Nil(t, res)
	})
	t.Run("Sums to six decimal places", func(t *testing.T) {
		res, err := AggregateRewards([]*subgraph.RewardEvent{
			event("1", "100", "1000000000000000000"),
			event("2", "101", "2500000000000000000"),
		}, l)
		assert.Nil(t, err)
		assert.Equal(t, "3.500000", res.TotalRewards)
		assert.Equal(t, 2, res.RewardEventsCount)
	})
	t.Run("Sums beyond uint64 without losing precision", func(t *testing.T) {
		res, err := AggregateRewards([]*subgraph.RewardEvent{
			event("1", "100", "18446744073709551616000"),
			event("2", "100", "1"),
		}, l)
		assert.Nil(t, err)
		assert.Equal(t, "18446.744074", res.TotalRewards)
	})
	t.Run("Dust that rounds to zero yields nothing", func(t *testing.T) {
		res, err := AggregateRewards([]*subgraph.RewardEvent{
			event("1", "100", "400000000000"),
		}, l)
		assert.Nil(t, err)
		assert.Nil(t, res)
	})
	t.Run("Half a micro-LPT rounds up", func(t *testing.T) {
		res, err := AggregateRewards([]*subgraph.RewardEvent{
			event("1", "100", "500000000000"),
		}, l)
		assert.Nil(t, err)
		assert.Equal(t, "0.000001", res.TotalRewards)
	})
	t.Run("Malformed amounts are an error", func(t *testing.T) {
		res, err := AggregateRewards([]*subgraph.RewardEvent{
			event("1", "100", "1.5"),
		}, l)
		assert.Nil(t, res)
		assert.NotNil(t, err)
	})
	t.Run("Handles many rounds", func(t *testing.T) {
		events := make([]*subgraph.RewardEvent, 0)
		for i := 0; i < 12; i++ {
			events = append(events, event(fmt.Sprintf("%d", i), fmt.Sprintf("%d", 100+i%8), "1000000000000000000"))
		}
		res, err := AggregateRewards(events, l)
		assert.Nil(t, err)
		assert.Equal(t, "12.000000", res.TotalRewards)
		assert.Equal(t, 12, res.RewardEventsCount)
	})
}
