package domain

import (
	"errors"
	"iter"
	"time"
)

// DefaultOccurrenceCount is the number of occurrences a recurring request books,
// including the first one.
const DefaultOccurrenceCount = 4

// ExpandRecurrence yields the start instants of a series. The first instant is start itself;
// later ones keep the wall-clock time of start in loc so a series stays at 10:00 across DST.
// MONTHLY clamps to the last day of shorter months and returns to the original day afterwards.
func ExpandRecurrence(start time.Time, pattern RecurrencePattern, n int, loc *time.Location) (iter.Seq[time.Time], error) {
	if n < 1 {
		return nil, errors.New("occurrence count must be at least 1")
	}
	if loc == nil {
		loc = time.UTC
	}
	switch pattern {
	case RecurrenceNone:
		n = 1
	case RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly:
	default:
		return nil, errors.New("unsupported recurrence pattern")
	}

	local := start.In(loc)
	return func(yield func(time.Time) bool) {
		for k := 0; k < n; k++ {
			if !yield(occurrenceAt(local, pattern, k).UTC()) {
				return
			}
		}
	}, nil
}

// Occurrences materializes ExpandRecurrence.
func Occurrences(start time.Time, pattern RecurrencePattern, n int, loc *time.Location) ([]time.Time, error) {
	seq, err := ExpandRecurrence(start, pattern, n, loc)
	if err != nil {
		return nil, err
	}
	out := make([]time.Time, 0, n)
	for t := range seq {
		out = append(out, t)
	}
	return out, nil
}

func occurrenceAt(local time.Time, pattern RecurrencePattern, k int) time.Time {
	if k == 0 {
		return local
	}
	switch pattern {
	case RecurrenceWeekly:
		return local.AddDate(0, 0, 7*k)
	case RecurrenceBiweekly:
		return local.AddDate(0, 0, 14*k)
	case RecurrenceMonthly:
		return addMonthsClamped(local, k)
	}
	return local
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(first.Year(), first.Month()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
