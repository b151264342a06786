package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronobook/backend/internal/domain"
)

// 2026-03-02 is a Monday.
var monday = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func clock(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func span(sh, sm, eh, em int) domain.Interval {
	return domain.Interval{Start: clock(sh, sm), End: clock(eh, em)}
}

func mondayRule(start, end string) domain.AvailabilityRule {
	return domain.AvailabilityRule{ID: start + "-" + end, StaffID: "st1", LocationID: "l1", DayOfWeek: 1, StartTime: start, EndTime: end}
}

func service(id string, duration, buffer, capacity int) domain.Service {
	return domain.Service{
		ID:                id,
		DurationMinutes:   duration,
		BufferMinutes:     buffer,
		MaxCapacity:       capacity,
		AllowedRecurrence: []domain.RecurrencePattern{domain.RecurrenceNone},
		LocationIDs:       []string{"l1"},
		IsActive:          true,
	}
}

func existing(svc domain.Service, start time.Time) domain.Booking {
	return domain.Booking{
		ID:         uuid.New(),
		StaffID:    "st1",
		LocationID: "l1",
		ServiceID:  svc.ID,
		StartTime:  start,
		EndTime:    start.Add(svc.Duration()),
		Status:     domain.StatusConfirmed,
	}
}

func input(svc domain.Service, rules []domain.AvailabilityRule, bookings []domain.Booking, others ...domain.Service) Input {
	services := map[string]domain.Service{svc.ID: svc}
	for _, o := range others {
		services[o.ID] = o
	}
	return Input{
		Date:       monday,
		Location:   time.UTC,
		LocationID: "l1",
		Service:    svc,
		Rules:      rules,
		Bookings:   bookings,
		Services:   services,
	}
}

func TestCompute_UndersizedGapsAreDiscarded(t *testing.T) {
	svc := service("x", 60, 15, 1)
	in := input(svc, []domain.AvailabilityRule{mondayRule("09:00", "12:00")}, []domain.Booking{existing(svc, clock(10, 0))})

	cal, err := Compute(in)
	require.NoError(t, err)

	require.Len(t, cal.Occupied, 1)
	assert.Equal(t, span(9, 45, 11, 15), cal.Occupied[0])
	assert.Empty(t, cal.Free, "45 minute gaps cannot host 60+2*15")
}

func TestCompute_NoRulesFailsClosed(t *testing.T) {
	svc := service("x", 30, 0, 1)
	cal, err := Compute(input(svc, nil, nil))
	require.NoError(t, err)
	assert.Empty(t, cal.Free)
	assert.False(t, cal.Fits(clock(10, 0)))
}

func TestCompute_OtherWeekdayRulesIgnored(t *testing.T) {
	svc := service("x", 30, 0, 1)
	tuesday := mondayRule("09:00", "17:00")
	tuesday.DayOfWeek = 2

	cal, err := Compute(input(svc, []domain.AvailabilityRule{tuesday}, nil))
	require.NoError(t, err)
	assert.Empty(t, cal.Free)
}

func TestCompute_SplitShiftsAreUnioned(t *testing.T) {
	svc := service("x", 30, 0, 1)
	rules := []domain.AvailabilityRule{
		mondayRule("13:00", "17:00"),
		mondayRule("09:00", "12:00"),
		mondayRule("11:00", "13:00"),
	}

	cal, err := Compute(input(svc, rules, nil))
	require.NoError(t, err)
	require.Len(t, cal.Free, 1)
	assert.Equal(t, span(9, 0, 17, 0), cal.Free[0])
}

func TestCompute_EndOfDayRule(t *testing.T) {
	svc := service("x", 60, 0, 1)
	cal, err := Compute(input(svc, []domain.AvailabilityRule{mondayRule("22:00", "24:00")}, nil))
	require.NoError(t, err)
	require.Len(t, cal.Free, 1)
	assert.True(t, cal.Free[0].End.Equal(monday.Add(24*time.Hour)))
}

func TestCompute_LocationTimezoneGovernsRules(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("tzdata not available: %v", err)
	}
	svc := service("x", 30, 0, 1)
	in := input(svc, []domain.AvailabilityRule{mondayRule("09:00", "17:00")}, nil)
	in.Location = ny
	in.Date = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	cal, err := Compute(in)
	require.NoError(t, err)
	require.Len(t, cal.Free, 1)
	assert.True(t, cal.Free[0].Start.Equal(time.Date(2026, 1, 5, 14, 0, 0, 0, time.UTC)))
	assert.True(t, cal.Free[0].End.Equal(time.Date(2026, 1, 5, 22, 0, 0, 0, time.UTC)))
}

func TestCompute_ExistingBookingUsesItsOwnBuffer(t *testing.T) {
	requested := service("short", 30, 0, 1)
	other := service("long", 60, 30, 1)
	in := input(requested, []domain.AvailabilityRule{mondayRule("09:00", "17:00")}, []domain.Booking{existing(other, clock(12, 0))}, other)

	cal, err := Compute(in)
	require.NoError(t, err)
	require.Len(t, cal.Free, 2)
	assert.Equal(t, span(9, 0, 11, 30), cal.Free[0])
	assert.Equal(t, span(13, 30, 17, 0), cal.Free[1])
}

func TestCompute_CancelledAndExcludedBookingsDoNotOccupy(t *testing.T) {
	svc := service("x", 60, 0, 1)
	cancelled := existing(svc, clock(10, 0))
	cancelled.Status = domain.StatusCancelled
	moving := existing(svc, clock(14, 0))

	in := input(svc, []domain.AvailabilityRule{mondayRule("09:00", "17:00")}, []domain.Booking{cancelled, moving})
	in.Exclude = moving.ID

	cal, err := Compute(in)
	require.NoError(t, err)
	require.Len(t, cal.Free, 1)
	assert.Equal(t, span(9, 0, 17, 0), cal.Free[0])
}

func TestCompute_FreeSlotsNeverShorterThanSpan(t *testing.T) {
	svc := service("x", 45, 10, 1)
	var bookings []domain.Booking
	for _, h := range []int{9, 11, 12, 15} {
		bookings = append(bookings, existing(svc, clock(h, 20)))
	}
	cal, err := Compute(input(svc, []domain.AvailabilityRule{mondayRule("08:00", "18:00")}, bookings))
	require.NoError(t, err)
	require.NotEmpty(t, cal.Free)
	for _, f := range cal.Free {
		assert.GreaterOrEqual(t, f.Duration(), svc.Span())
	}
}

func TestCompute_Idempotent(t *testing.T) {
	svc := service("x", 30, 5, 1)
	in := input(svc, []domain.AvailabilityRule{mondayRule("09:00", "17:00")}, []domain.Booking{existing(svc, clock(11, 0))})

	a, err := Compute(in)
	require.NoError(t, err)
	b, err := Compute(in)
	require.NoError(t, err)
	assert.Equal(t, a.Free, b.Free)
}

func TestCompute_CapacityGroups(t *testing.T) {
	class := service("yoga", 60, 15, 3)
	rules := []domain.AvailabilityRule{mondayRule("09:00", "17:00")}

	t.Run("partially filled group does not occupy", func(t *testing.T) {
		bookings := []domain.Booking{existing(class, clock(10, 0)), existing(class, clock(10, 0))}
		cal, err := Compute(input(class, rules, bookings))
		require.NoError(t, err)

		assert.Empty(t, cal.Occupied)
		require.Len(t, cal.Open, 1)
		assert.Equal(t, 2, cal.Open[0].Count)
		require.Len(t, cal.Free, 1)
		assert.Equal(t, span(9, 0, 17, 0), cal.Free[0])

		assert.True(t, cal.Fits(clock(10, 0)), "joining the exact window is allowed")
		assert.False(t, cal.Fits(clock(10, 30)), "a shifted class would overlap the open group")
		assert.True(t, cal.Fits(clock(11, 30)))
	})

	t.Run("full group occupies", func(t *testing.T) {
		bookings := []domain.Booking{existing(class, clock(10, 0)), existing(class, clock(10, 0)), existing(class, clock(10, 0))}
		cal, err := Compute(input(class, rules, bookings))
		require.NoError(t, err)

		require.Len(t, cal.Occupied, 1)
		assert.Equal(t, span(9, 45, 11, 15), cal.Occupied[0])
		assert.False(t, cal.Fits(clock(10, 0)))
	})

	t.Run("other services always occupy", func(t *testing.T) {
		solo := service("solo", 60, 0, 1)
		bookings := []domain.Booking{existing(solo, clock(10, 0))}
		cal, err := Compute(input(class, rules, bookings, solo))
		require.NoError(t, err)
		require.Len(t, cal.Occupied, 1)
		assert.False(t, cal.Fits(clock(10, 0)))
	})
}

func TestCalendarFits(t *testing.T) {
	svc := service("x", 60, 15, 1)
	rules := []domain.AvailabilityRule{mondayRule("09:00", "17:00")}
	cal, err := Compute(input(svc, rules, []domain.Booking{existing(svc, clock(12, 0))}))
	require.NoError(t, err)

	tests := []struct {
		name  string
		start time.Time
		want  bool
	}{
		{name: "opening slot with buffer before shift", start: clock(9, 0), want: true},
		{name: "closing slot with buffer after shift", start: clock(16, 0), want: true},
		{name: "buffers touch", start: clock(10, 30), want: true},
		{name: "buffers overlap", start: clock(10, 31), want: false},
		{name: "overlaps booking", start: clock(11, 30), want: false},
		{name: "right after buffers", start: clock(13, 30), want: true},
		{name: "runs past shift end", start: clock(16, 30), want: false},
		{name: "before shift", start: clock(8, 30), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.Fits(tt.start))
		})
	}
}
