package recurrence

import (
	"time"

	"github.com/garyjia/biller/internal/domain/entity"
)

// NextRun returns the occurrence after date for the given schedule.
// Unknown frequencies fall back to monthly.
func NextRun(date time.Time, cfg entity.RecurringConfig) time.Time {
	switch cfg.Frequency {
	case entity.FrequencyDaily:
		return AddDays(date, 1)
	case entity.FrequencyWeekly:
		return AddDays(date, 7)
	case entity.FrequencyEveryNDays:
		return AddDays(date, IntervalDays(cfg.IntervalDays))
	default:
		return AddMonthsClamped(date, 1)
	}
}

// FirstRun schedules the first occurrence one period after the issue date
func FirstRun(issueDate string, cfg entity.RecurringConfig) (time.Time, bool) {
	date, ok := ParseDate(issueDate)
	if !ok {
		return time.Time{}, false
	}
	return NextRun(date, cfg), true
}

// IntervalDays clamps an every_n_days interval to at least one day
func IntervalDays(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
