package repository

import (
	"context"

	"github.com/waste3d/cardvault-api/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DiscoveryLogRepository struct {
	db *gorm.DB
}

func NewDiscoveryLogRepository(db *gorm.DB) *DiscoveryLogRepository {
	return &DiscoveryLogRepository{db: db}
}

func (r *DiscoveryLogRepository) Append(ctx context.Context, entry *domain.DiscoveryLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}
