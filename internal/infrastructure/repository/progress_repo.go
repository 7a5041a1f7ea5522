package repository

import (
	"context"
	"errors"

	"github.com/waste3d/cardvault-api/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProgressRepository struct {
	db *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// Get returns the stored snapshot or an empty one when the user has none yet.
// It never creates a row.
func (r *ProgressRepository) Get(ctx context.Context, userID uuid.UUID) (*domain.Progress, error) {
	var p domain.Progress
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NewProgress(userID), nil
		}
		return nil, err
	}
	p.Normalize()
	return &p, nil
}

// LockForUpdate creates the snapshot row if needed and reads it back with a
// row lock. Must run inside a transaction; the lock is what serializes
// concurrent events for the same user.
func (r *ProgressRepository) LockForUpdate(ctx context.Context, userID uuid.UUID) (*domain.Progress, error) {
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(domain.NewProgress(userID)).Error
	if err != nil {
		return nil, err
	}

	var p domain.Progress
	err = r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	p.Normalize()
	return &p, nil
}

func (r *ProgressRepository) Save(ctx context.Context, p *domain.Progress) error {
	return r.db.WithContext(ctx).Save(p).Error
}

// ResetWeekly zeroes the rolling weekly counter for every user.
func (r *ProgressRepository) ResetWeekly(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Model(&domain.Progress{}).
		Where("weekly_discoveries <> ?", 0).
		Update("weekly_discoveries", 0)
	return result.RowsAffected, result.Error
}
