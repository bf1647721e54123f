package rewards

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_CalculateTimePeriod(t *testing.T) {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	t.Run("Daily window is 24 hours", func(t *testing.T) {
		p, err := CalculateTimePeriod(PeriodType_Daily, now)
		assert.Nil(t, err)
		assert.Equal(t, now, p.End)
		assert.Equal(t, 24*time.Hour, p.End.Sub(p.Start))
	})
	t.Run("Weekly window is 7 days", func(t *testing.T) {
		p, err := CalculateTimePeriod(PeriodType_Weekly, now)
		assert.Nil(t, err)
		assert.Equal(t, now, p.End)
		assert.Equal(t, 7*24*time.Hour, p.End.Sub(p.Start))
	})
	t.Run("Monthly window is one calendar month", func(t *testing.T) {
		p, err := CalculateTimePeriod(PeriodType_Monthly, now)
		assert.Nil(t, err)
		assert.Equal(t, time.Date(2026, 9, 18, 9, 0, 0, 0, time.UTC), p.Start)
	})
	t.Run("Monthly window clamps to the end of February", func(t *testing.T) {
		p, err := CalculateTimePeriod(PeriodType_Monthly, time.Date(2027, 3, 31, 9, 0, 0, 0, time.UTC))
		assert.Nil(t, err)
		assert.Equal(t, time.Date(2027, 2, 28, 9, 0, 0, 0, time.UTC), p.Start)

		p, err = CalculateTimePeriod(PeriodType_Monthly, time.Date(2028, 3, 31, 9, 0, 0, 0, time.UTC))
		assert.Nil(t, err)
		assert.Equal(t, time.Date(2028, 2, 29, 9, 0, 0, 0, time.UTC), p.Start)
	})
	t.Run("Monthly window crosses the year boundary", func(t *testing.T) {
		p, err := CalculateTimePeriod(PeriodType_Monthly, time.Date(2027, 1, 15, 0, 0, 0, 0, time.UTC))
		assert.Nil(t, err)
		assert.Equal(t, time.Date(2026, 12, 15, 0, 0, 0, 0, time.UTC), p.Start)
	})
	t.Run("Unknown period is rejected", func(t *testing.T) {
		p, err := CalculateTimePeriod(PeriodType("hourly"), now)
		assert.Nil(t, p)
		assert.True(t, errors.Is(err, ErrInvalidPeriod))
	})
}

func Test_ParsePeriodType(t *testing.T) {
	for _, s := range []string{"daily", "Weekly", " MONTHLY "} {
		p, err := ParsePeriodType(s)
		assert.Nil(t, err)
		assert.Contains(t, PeriodTypes, p)
	}
	_, err := ParsePeriodType("yearly")
	assert.True(t, errors.Is(err, ErrInvalidPeriod))

	assert.Equal(t, "Weekly", PeriodType_Weekly.Title())
}
