package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"

	"chronobook/backend/internal/catalog"
	"chronobook/backend/internal/domain"
)

// CatalogRepo serves catalog.Reader from the catalog tables.
type CatalogRepo struct {
	db *bun.DB
}

func NewCatalogRepo(db *bun.DB) *CatalogRepo {
	return &CatalogRepo{db: db}
}

func (r *CatalogRepo) GetService(ctx context.Context, id string) (domain.Service, error) {
	var s domain.Service
	if err := r.db.NewSelect().Model(&s).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return domain.Service{}, catalogError(err)
	}
	return s, nil
}

func (r *CatalogRepo) GetStaff(ctx context.Context, id string) (domain.Staff, error) {
	var s domain.Staff
	if err := r.db.NewSelect().Model(&s).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return domain.Staff{}, catalogError(err)
	}
	return s, nil
}

func (r *CatalogRepo) GetLocation(ctx context.Context, id string) (domain.Location, error) {
	var l domain.Location
	if err := r.db.NewSelect().Model(&l).Where("id = ?", id).Limit(1).Scan(ctx); err != nil {
		return domain.Location{}, catalogError(err)
	}
	return l, nil
}

func (r *CatalogRepo) ListRules(ctx context.Context, staffID, locationID string, weekday time.Weekday) ([]domain.AvailabilityRule, error) {
	var rows []domain.AvailabilityRule
	err := r.db.NewSelect().
		Model(&rows).
		Where("staff_id = ?", staffID).
		Where("location_id = ?", locationID).
		Where("day_of_week = ?", int(weekday)).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ImportSeed inserts catalog records that do not exist yet. Existing rows are left untouched.
func (r *CatalogRepo) ImportSeed(ctx context.Context, seed catalog.Seed) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i := range seed.Locations {
			if _, err := tx.NewInsert().Model(&seed.Locations[i]).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
				return err
			}
		}
		for i := range seed.Services {
			if _, err := tx.NewInsert().Model(&seed.Services[i]).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
				return err
			}
		}
		for i := range seed.Staff {
			if _, err := tx.NewInsert().Model(&seed.Staff[i]).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
				return err
			}
		}
		for i := range seed.Rules {
			if _, err := tx.NewInsert().Model(&seed.Rules[i]).On("CONFLICT (id) DO NOTHING").Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
}

func catalogError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return catalog.ErrNotFound
	}
	return err
}
