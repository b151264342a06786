package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"chronobook/backend/internal/domain"
)

var ErrNotFound = errors.New("catalog: not found")

// Reader is the read-only view of the catalog the booking core depends on.
type Reader interface {
	GetService(ctx context.Context, id string) (domain.Service, error)
	GetStaff(ctx context.Context, id string) (domain.Staff, error)
	GetLocation(ctx context.Context, id string) (domain.Location, error)
	ListRules(ctx context.Context, staffID, locationID string, weekday time.Weekday) ([]domain.AvailabilityRule, error)
}

type Seed struct {
	Locations []domain.Location         `yaml:"locations"`
	Services  []domain.Service          `yaml:"services"`
	Staff     []domain.Staff            `yaml:"staff"`
	Rules     []domain.AvailabilityRule `yaml:"availabilityRules"`
}

func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read catalog seed: %w", err)
	}
	return ParseSeed(data)
}

func ParseSeed(data []byte) (Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("parse catalog seed: %w", err)
	}
	if err := seed.Validate(); err != nil {
		return Seed{}, err
	}
	return seed, nil
}

func (s Seed) Validate() error {
	for _, l := range s.Locations {
		if _, err := l.TimeLocation(); err != nil {
			return err
		}
	}
	for _, svc := range s.Services {
		if err := svc.Validate(); err != nil {
			return err
		}
	}
	for _, r := range s.Rules {
		if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
			return fmt.Errorf("rule %s: day_of_week must be 0-6", r.ID)
		}
		w, err := r.Window(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC), time.UTC)
		if err != nil {
			return err
		}
		if w.IsEmpty() {
			return fmt.Errorf("rule %s: end_time must be after start_time", r.ID)
		}
	}
	return nil
}
