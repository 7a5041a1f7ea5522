package repository

import (
	"context"
	"errors"

	"github.com/waste3d/cardvault-api/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CollectibleRepository struct {
	db *gorm.DB
}

func NewCollectibleRepository(db *gorm.DB) *CollectibleRepository {
	return &CollectibleRepository{db: db}
}

func (r *CollectibleRepository) GetByCode(ctx context.Context, code string) (*domain.Collectible, error) {
	var c domain.Collectible
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrCollectibleNotFound
		}
		return nil, err
	}
	return &c, nil
}

// ListActive returns the active catalog in evaluation order.
func (r *CollectibleRepository) ListActive(ctx context.Context) ([]domain.Collectible, error) {
	var items []domain.Collectible
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("series asc").Order("series_number asc").Order("code asc").
		Find(&items).Error
	return items, err
}

// ClaimNextInstance bumps current_supply by one if the cap allows it and
// returns the new value, which is the instance number of the claimed copy.
// The check and the increment are one statement so concurrent claims cannot
// both take the last slot.
func (r *CollectibleRepository) ClaimNextInstance(ctx context.Context, id uuid.UUID) (int, error) {
	result := r.db.WithContext(ctx).Model(&domain.Collectible{}).
		Where("id = ? AND (max_supply IS NULL OR current_supply < max_supply)", id).
		Update("current_supply", gorm.Expr("current_supply + 1"))
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected == 0 {
		return 0, domain.ErrSupplyExhausted
	}

	var supply int
	err := r.db.WithContext(ctx).Model(&domain.Collectible{}).
		Where("id = ?", id).
		Select("current_supply").
		Scan(&supply).Error
	return supply, err
}

func (r *CollectibleRepository) CountActiveInSeries(ctx context.Context, series string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Collectible{}).
		Where("series = ? AND is_active = ?", series, true).
		Count(&count).Error
	return count, err
}

// Upsert writes catalog definitions keyed by code. Existing rows keep their
// id and current_supply.
func (r *CollectibleRepository) Upsert(ctx context.Context, items []domain.Collectible) error {
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		if items[i].ID == uuid.Nil {
			items[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "description", "image_url", "series", "series_number",
				"rarity", "is_active", "max_supply", "discovery_trigger", "updated_at",
			}),
		}).
		Omit("current_supply").
		Create(&items).Error
}
