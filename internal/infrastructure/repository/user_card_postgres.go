package repository

import (
	"context"
	"errors"

	"github.com/waste3d/cardvault-api/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserCardRepository struct {
	db *gorm.DB
}

func NewUserCardRepository(db *gorm.DB) *UserCardRepository {
	return &UserCardRepository{db: db}
}

func (r *UserCardRepository) Exists(ctx context.Context, userID, collectibleID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.UserCard{}).
		Where("user_id = ? AND collectible_id = ?", userID, collectibleID).
		Count(&count).Error
	return count > 0, err
}

// Create inserts an ownership record. The unique index on (user, collectible)
// turns a lost race into ErrAlreadyOwned.
func (r *UserCardRepository) Create(ctx context.Context, card *domain.UserCard) error {
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).Omit("Collectible").Create(card).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrAlreadyOwned
	}
	return err
}

func (r *UserCardRepository) OwnedCollectibleIDs(ctx context.Context, userID uuid.UUID) (map[uuid.UUID]struct{}, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&domain.UserCard{}).
		Where("user_id = ?", userID).
		Pluck("collectible_id", &ids).Error
	if err != nil {
		return nil, err
	}

	owned := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		owned[id] = struct{}{}
	}
	return owned, nil
}

// CountOwnedInSeries counts the user's cards among the active members of series.
func (r *UserCardRepository) CountOwnedInSeries(ctx context.Context, userID uuid.UUID, series string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.UserCard{}).
		Joins("JOIN collectibles ON collectibles.id = user_cards.collectible_id").
		Where("user_cards.user_id = ? AND collectibles.series = ? AND collectibles.is_active = ?", userID, series, true).
		Count(&count).Error
	return count, err
}

func (r *UserCardRepository) ListByUser(ctx context.Context, userID uuid.UUID, favoritesOnly bool) ([]domain.UserCard, error) {
	query := r.db.WithContext(ctx).
		Preload("Collectible").
		Where("user_id = ?", userID)
	if favoritesOnly {
		query = query.Where("is_favorite = ?", true)
	}

	var cards []domain.UserCard
	err := query.Order("discovered_at desc").Find(&cards).Error
	return cards, err
}

// SetFavorite only touches rows that belong to userID.
func (r *UserCardRepository) SetFavorite(ctx context.Context, id, userID uuid.UUID, favorite bool) error {
	result := r.db.WithContext(ctx).Model(&domain.UserCard{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_favorite", favorite)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrOwnershipNotFound
	}
	return nil
}
