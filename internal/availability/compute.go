package availability

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"chronobook/backend/internal/domain"
)

// Input is everything needed to lay out one staff member's day at one location.
type Input struct {
	Date       time.Time
	Location   *time.Location
	LocationID string
	Service    domain.Service
	Rules      []domain.AvailabilityRule
	Bookings   []domain.Booking
	// Services resolves the buffer of existing bookings. Missing entries count as zero buffer.
	Services map[string]domain.Service
	// Exclude drops one booking from the calendar, e.g. the booking being rescheduled.
	Exclude uuid.UUID
}

// Group is a set of bookings of a multi-capacity service sharing the exact same window.
type Group struct {
	Window   domain.Interval
	Expanded domain.Interval
	Count    int
}

type Calendar struct {
	Service  domain.Service
	Windows  []domain.Interval
	Occupied []domain.Interval
	// Open holds groups that still have seats; they do not block the calendar.
	Open []Group
	Free []domain.Interval
}

// Compute derives the free slots of a day. Rule windows come from the location's timezone,
// existing bookings are widened by their own service buffer, and bookings of a
// multi-capacity service only occupy once their group is full.
func Compute(in Input) (Calendar, error) {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := in.Date.Date()
	weekday := time.Date(y, m, d, 0, 0, 0, 0, loc).Weekday()

	windows := make([]domain.Interval, 0, len(in.Rules))
	for _, r := range in.Rules {
		if r.DayOfWeek != int(weekday) {
			continue
		}
		w, err := r.Window(in.Date, loc)
		if err != nil {
			return Calendar{}, err
		}
		windows = append(windows, w)
	}
	windows = domain.Union(windows)

	cal := Calendar{Service: in.Service, Windows: windows}
	capacity := in.Service.Capacity()

	groups := make(map[[2]int64]*Group)
	for _, b := range in.Bookings {
		if !b.Occupies() || (in.Exclude != uuid.Nil && b.ID == in.Exclude) {
			continue
		}
		buf := in.Services[b.ServiceID].Buffer()
		win := b.Interval()
		exp := domain.Expand(win, buf, buf)

		if capacity > 1 && b.ServiceID == in.Service.ID && b.LocationID == in.LocationID {
			key := [2]int64{win.Start.UnixNano(), win.End.UnixNano()}
			g, ok := groups[key]
			if !ok {
				g = &Group{Window: win, Expanded: exp}
				groups[key] = g
			}
			g.Count++
			continue
		}
		cal.Occupied = append(cal.Occupied, exp)
	}

	for _, g := range groups {
		if g.Count >= capacity {
			cal.Occupied = append(cal.Occupied, g.Expanded)
			continue
		}
		cal.Open = append(cal.Open, *g)
	}
	sort.Slice(cal.Open, func(i, j int) bool {
		return cal.Open[i].Window.Start.Before(cal.Open[j].Window.Start)
	})
	cal.Occupied = domain.Union(cal.Occupied)

	span := in.Service.Span()
	for _, w := range windows {
		for _, f := range domain.Subtract(w, cal.Occupied) {
			if f.Duration() >= span {
				cal.Free = append(cal.Free, f)
			}
		}
	}
	return cal, nil
}

// Fits reports whether a new booking of the calendar's service may start at start.
// The appointment itself must lie inside a free slot. Its buffered span must stay clear of
// occupied time and of open groups, unless it joins an open group's exact window.
// Buffers may run past the shift edges.
func (c Calendar) Fits(start time.Time) bool {
	req := domain.NewInterval(start, c.Service.Duration())
	if req.IsEmpty() {
		return false
	}

	inside := false
	for _, f := range c.Free {
		if domain.Contains(f, req) {
			inside = true
			break
		}
	}
	if !inside {
		return false
	}

	buf := c.Service.Buffer()
	exp := domain.Expand(req, buf, buf)
	for _, o := range c.Occupied {
		if domain.Overlaps(exp, o) {
			return false
		}
	}
	for _, g := range c.Open {
		if g.Window.Start.Equal(req.Start) && g.Window.End.Equal(req.End) {
			continue
		}
		if domain.Overlaps(exp, g.Expanded) {
			return false
		}
	}
	return true
}
