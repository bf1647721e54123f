package rewards

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type PeriodType string

const (
	PeriodType_Daily   PeriodType = "daily"
	PeriodType_Weekly  PeriodType = "weekly"
	PeriodType_Monthly PeriodType = "monthly"
)

var ErrInvalidPeriod = errors.New("invalid period type")

var PeriodTypes = []PeriodType{PeriodType_Daily, PeriodType_Weekly, PeriodType_Monthly}

func ParsePeriodType(s string) (PeriodType, error) {
	p := PeriodType(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PeriodType_Daily, PeriodType_Weekly, PeriodType_Monthly:
		return p, nil
	}
	return "", fmt.Errorf("%w: '%s'", ErrInvalidPeriod, s)
}

// Title returns the capitalized period name, e.g. "Weekly".
func (p PeriodType) Title() string {
	if p == "" {
		return ""
	}
	return strings.ToUpper(string(p[:1])) + string(p[1:])
}

func (p PeriodType) noun() string {
	switch p {
	case PeriodType_Daily:
		return "day"
	case PeriodType_Weekly:
		return "week"
	case PeriodType_Monthly:
		return "month"
	}
	return string(p)
}

type TimePeriod struct {
	Start time.Time
	End   time.Time
}

// CalculateTimePeriod returns the window ending at now that a reward summary covers.
// Consecutive windows share their boundary instant.
func CalculateTimePeriod(period PeriodType, now time.Time) (*TimePeriod, error) {
	var start time.Time
	switch period {
	case PeriodType_Daily:
		start = now.AddDate(0, 0, -1)
	case PeriodType_Weekly:
		start = now.AddDate(0, 0, -7)
	case PeriodType_Monthly:
		start = subtractMonth(now)
	default:
		return nil, fmt.Errorf("%w: '%s'", ErrInvalidPeriod, period)
	}
	return &TimePeriod{
		Start: start,
		End:   now,
	}, nil
}

// subtractMonth moves back one calendar month, clamping the day to the end of the
// previous month (Mar 31 -> Feb 28/29). time.AddDate would normalize into March instead.
func subtractMonth(t time.Time) time.Time {
	year, month, day := t.Date()
	month--
	if month < time.January {
		month = time.December
		year--
	}
	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
