package service

import (
	"time"

	"github.com/stemsi/untis-notifier/internal/model"
)

// ISO weekdays, Monday = 1 ... Sunday = 7.
const (
	monday = 1
	friday = 5
	sunday = 7
)

// ISOWeekday converts t's weekday to 1 (Monday) ... 7 (Sunday).
func ISOWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return sunday
	}
	return wd
}

// ResolveMode decides which digest, if any, is due at the given ISO weekday
// and hour. Branches are checked in order; the first match wins, so 07:00 on
// a school day is always "today".
func ResolveMode(weekday, hour int) model.Mode {
	schoolDay := weekday >= monday && weekday <= friday

	switch {
	case schoolDay && hour == 7:
		return model.ModeToday
	case schoolDay && hour >= 7 && hour <= 20, weekday == sunday && hour == 20:
		return model.ModeTomorrow
	default:
		return model.ModeNone
	}
}

// ModeAt is ResolveMode for a local time.
func ModeAt(t time.Time) model.Mode {
	return ResolveMode(ISOWeekday(t), t.Hour())
}

// SleepDuration is how long the scheduled loop waits before the next cycle.
// Only the hour is considered, minutes are ignored, so a wake-up lands
// somewhere inside the target hour. Each cycle recomputes from the clock.
func SleepDuration(weekday, hour int) time.Duration {
	switch {
	case weekday == friday && hour > 7:
		// Nothing to announce over the weekend.
		return 2 * 24 * time.Hour
	case weekday == sunday && hour < 20:
		return time.Duration(20-hour) * time.Hour
	case weekday == sunday:
		return 6 * 24 * time.Hour
	case hour < 7:
		return time.Duration(7-hour) * time.Hour
	case hour >= 20:
		return time.Duration(31-hour) * time.Hour
	default:
		return 13 * time.Hour
	}
}

// SleepAt is SleepDuration for a local time.
func SleepAt(t time.Time) time.Duration {
	return SleepDuration(ISOWeekday(t), t.Hour())
}
