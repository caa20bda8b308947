package market

import (
	"fmt"
	"time"
)

// Schedule discretizes wall-clock time into trading-cycle boundaries. All
// signals and ledger rows produced by one reconciliation run share a single
// batch time, which is what makes re-running a batch idempotent.
//
// Times are expressed in a fixed-offset zone (no DST): the exchange reports
// kline timestamps in UTC and the bot historically kept its books at UTC+7.
type Schedule struct {
	// ZoneOffsetHours shifts UTC into book time.
	ZoneOffsetHours int

	// Hours are the batch boundaries within a day, ascending (e.g. 7, 15, 23).
	Hours []int

	// Lag holds a run back from the most recent boundary so the candle that
	// closes at the boundary has settled before we trade on it.
	Lag time.Duration
}

// DefaultSchedule matches the 8h-candle production setup: boundaries at
// 07:00, 15:00 and 23:00 book time (UTC+7) with one full candle of lag.
func DefaultSchedule() Schedule {
	return Schedule{
		ZoneOffsetHours: 7,
		Hours:           []int{7, 15, 23},
		Lag:             8 * time.Hour,
	}
}

// Location returns the fixed-offset book-time zone.
func (s Schedule) Location() *time.Location {
	name := fmt.Sprintf("UTC+%d", s.ZoneOffsetHours)
	if s.ZoneOffsetHours < 0 {
		name = fmt.Sprintf("UTC%d", s.ZoneOffsetHours)
	}
	return time.FixedZone(name, s.ZoneOffsetHours*3600)
}

// Interval is the candle interval implied by the batch hours — the gap
// between consecutive boundaries.
func (s Schedule) Interval() time.Duration {
	if len(s.Hours) < 2 {
		return 24 * time.Hour
	}
	return time.Duration(s.Hours[1]-s.Hours[0]) * time.Hour
}

// LatestBatch returns the most recent batch boundary at or before now−lag.
// Before the first boundary of the day it rolls back to the previous day's
// last boundary.
func (s Schedule) LatestBatch(now time.Time) time.Time {
	t := now.In(s.Location()).Add(-s.Lag)

	if t.Hour() < s.Hours[0] {
		prev := t.AddDate(0, 0, -1)
		return time.Date(prev.Year(), prev.Month(), prev.Day(),
			s.Hours[len(s.Hours)-1], 0, 0, 0, s.Location())
	}

	h := s.Hours[0]
	for _, bh := range s.Hours {
		if bh <= t.Hour() {
			h = bh
		}
	}
	return time.Date(t.Year(), t.Month(), t.Day(), h, 0, 0, 0, s.Location())
}

// Validate rejects schedules the batch driver cannot work with.
func (s Schedule) Validate() error {
	if len(s.Hours) == 0 {
		return fmt.Errorf("schedule: at least one batch hour is required")
	}
	for i, h := range s.Hours {
		if h < 0 || h > 23 {
			return fmt.Errorf("schedule: hour %d out of range", h)
		}
		if i > 0 && h <= s.Hours[i-1] {
			return fmt.Errorf("schedule: hours must be strictly ascending")
		}
	}
	if s.Lag < 0 {
		return fmt.Errorf("schedule: lag must not be negative")
	}
	return nil
}
