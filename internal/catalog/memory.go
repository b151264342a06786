package catalog

import (
	"context"
	"time"

	"chronobook/backend/internal/domain"
)

// Memory is an in-process catalog built from a Seed.
type Memory struct {
	locations map[string]domain.Location
	services  map[string]domain.Service
	staff     map[string]domain.Staff
	rules     []domain.AvailabilityRule
}

func NewMemory(seed Seed) (*Memory, error) {
	if err := seed.Validate(); err != nil {
		return nil, err
	}
	m := &Memory{
		locations: make(map[string]domain.Location, len(seed.Locations)),
		services:  make(map[string]domain.Service, len(seed.Services)),
		staff:     make(map[string]domain.Staff, len(seed.Staff)),
		rules:     append([]domain.AvailabilityRule(nil), seed.Rules...),
	}
	for _, l := range seed.Locations {
		m.locations[l.ID] = l
	}
	for _, s := range seed.Services {
		m.services[s.ID] = s
	}
	for _, s := range seed.Staff {
		m.staff[s.ID] = s
	}
	return m, nil
}

func (m *Memory) GetService(ctx context.Context, id string) (domain.Service, error) {
	s, ok := m.services[id]
	if !ok {
		return domain.Service{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) GetStaff(ctx context.Context, id string) (domain.Staff, error) {
	s, ok := m.staff[id]
	if !ok {
		return domain.Staff{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) GetLocation(ctx context.Context, id string) (domain.Location, error) {
	l, ok := m.locations[id]
	if !ok {
		return domain.Location{}, ErrNotFound
	}
	return l, nil
}

func (m *Memory) ListRules(ctx context.Context, staffID, locationID string, weekday time.Weekday) ([]domain.AvailabilityRule, error) {
	var out []domain.AvailabilityRule
	for _, r := range m.rules {
		if r.StaffID == staffID && r.LocationID == locationID && r.DayOfWeek == int(weekday) {
			out = append(out, r)
		}
	}
	return out, nil
}
