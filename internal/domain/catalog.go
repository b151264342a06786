package domain

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

type RecurrencePattern string

const (
	RecurrenceNone     RecurrencePattern = "NONE"
	RecurrenceWeekly   RecurrencePattern = "WEEKLY"
	RecurrenceBiweekly RecurrencePattern = "BIWEEKLY"
	RecurrenceMonthly  RecurrencePattern = "MONTHLY"
)

func ParseRecurrencePattern(s string) (RecurrencePattern, bool) {
	p := RecurrencePattern(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case "":
		return RecurrenceNone, true
	case RecurrenceNone, RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly:
		return p, true
	}
	return "", false
}

type Location struct {
	bun.BaseModel `bun:"table:locations"`

	ID       string `bun:"id,pk" yaml:"id"`
	Name     string `bun:"name,notnull" yaml:"name"`
	Address  string `bun:"address" yaml:"address"`
	Timezone string `bun:"timezone,notnull" yaml:"timezone"`
	IsActive bool   `bun:"is_active,notnull" yaml:"isActive"`
}

func (l Location) TimeLocation() (*time.Location, error) {
	tz := strings.TrimSpace(l.Timezone)
	if tz == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("location %s: invalid timezone %q: %w", l.ID, tz, err)
	}
	return loc, nil
}

type Service struct {
	bun.BaseModel `bun:"table:services"`

	ID                string              `bun:"id,pk" yaml:"id"`
	Name              string              `bun:"name,notnull" yaml:"name"`
	DurationMinutes   int                 `bun:"duration_minutes,notnull" yaml:"durationMinutes"`
	BufferMinutes     int                 `bun:"buffer_minutes,notnull" yaml:"bufferMinutes"`
	MaxCapacity       int                 `bun:"max_capacity,notnull" yaml:"maxCapacity"`
	Price             float64             `bun:"price,notnull" yaml:"price"`
	DepositAmount     float64             `bun:"deposit_amount,notnull" yaml:"depositAmount"`
	AllowedRecurrence []RecurrencePattern `bun:"allowed_recurrence,array" yaml:"allowedRecurrence"`
	LocationIDs       []string            `bun:"location_ids,array" yaml:"locationIds"`
	IsActive          bool                `bun:"is_active,notnull" yaml:"isActive"`
}

func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}

func (s Service) Buffer() time.Duration {
	return time.Duration(s.BufferMinutes) * time.Minute
}

// Span is the minimum free window able to host one occurrence including both buffers.
func (s Service) Span() time.Duration {
	return s.Duration() + 2*s.Buffer()
}

func (s Service) Capacity() int {
	if s.MaxCapacity < 1 {
		return 1
	}
	return s.MaxCapacity
}

func (s Service) OfferedAt(locationID string) bool {
	return slices.Contains(s.LocationIDs, locationID)
}

func (s Service) AllowsRecurrence(p RecurrencePattern) bool {
	if p == RecurrenceNone {
		return true
	}
	return slices.Contains(s.AllowedRecurrence, p)
}

func (s Service) Validate() error {
	switch {
	case s.ID == "":
		return errors.New("service id is required")
	case s.DurationMinutes <= 0:
		return fmt.Errorf("service %s: duration must be positive", s.ID)
	case s.DurationMinutes > 24*60:
		return fmt.Errorf("service %s: duration too long", s.ID)
	case s.BufferMinutes < 0:
		return fmt.Errorf("service %s: buffer must not be negative", s.ID)
	case s.BufferMinutes > 24*60:
		return fmt.Errorf("service %s: buffer too long", s.ID)
	case s.MaxCapacity < 1:
		return fmt.Errorf("service %s: max capacity must be at least 1", s.ID)
	case !slices.Contains(s.AllowedRecurrence, RecurrenceNone):
		return fmt.Errorf("service %s: allowed recurrence must include NONE", s.ID)
	}
	return nil
}

type Staff struct {
	bun.BaseModel `bun:"table:staff"`

	ID               string   `bun:"id,pk" yaml:"id"`
	UserID           string   `bun:"user_id" yaml:"userId"`
	FullName         string   `bun:"full_name,notnull" yaml:"fullName"`
	Specialties      []string `bun:"specialties,array" yaml:"specialties"`
	AssignedServices []string `bun:"assigned_services,array" yaml:"assignedServices"`
	LocationIDs      []string `bun:"location_ids,array" yaml:"locationIds"`
}

func (s Staff) CanPerform(serviceID string) bool {
	return slices.Contains(s.AssignedServices, serviceID)
}

func (s Staff) WorksAt(locationID string) bool {
	return slices.Contains(s.LocationIDs, locationID)
}

// AvailabilityRule declares a wall-clock shift in the location's timezone.
type AvailabilityRule struct {
	bun.BaseModel `bun:"table:availability_rules"`

	ID         string `bun:"id,pk" yaml:"id"`
	StaffID    string `bun:"staff_id,notnull" yaml:"staffId"`
	LocationID string `bun:"location_id,notnull" yaml:"locationId"`
	DayOfWeek  int    `bun:"day_of_week,notnull" yaml:"dayOfWeek"`
	StartTime  string `bun:"start_time,notnull" yaml:"startTime"`
	EndTime    string `bun:"end_time,notnull" yaml:"endTime"`
}

// Window converts the rule into absolute instants for the given calendar day in loc.
// The day's year, month and day are taken as-is; its clock and zone are ignored.
func (r AvailabilityRule) Window(day time.Time, loc *time.Location) (Interval, error) {
	sh, sm, err := parseClock(r.StartTime)
	if err != nil {
		return Interval{}, fmt.Errorf("rule %s: start_time: %w", r.ID, err)
	}
	eh, em, err := parseClock(r.EndTime)
	if err != nil {
		return Interval{}, fmt.Errorf("rule %s: end_time: %w", r.ID, err)
	}
	y, m, d := day.Date()
	start := time.Date(y, m, d, sh, sm, 0, 0, loc)
	end := time.Date(y, m, d, eh, em, 0, 0, loc)
	return Interval{Start: start.UTC(), End: end.UTC()}, nil
}

// parseClock accepts "HH:mm" with 24:00 meaning the end of the day.
func parseClock(s string) (int, int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid clock %q", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, 0, fmt.Errorf("invalid clock %q", s)
	}
	return h, m, nil
}
