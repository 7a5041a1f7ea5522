package repository

import (
	"context"

	"gorm.io/gorm"
)

// Store groups the repositories over one connection or transaction.
type Store struct {
	db           *gorm.DB
	Collectibles *CollectibleRepository
	Cards        *UserCardRepository
	Progress     *ProgressRepository
	Logs         *DiscoveryLogRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		Collectibles: NewCollectibleRepository(db),
		Cards:        NewUserCardRepository(db),
		Progress:     NewProgressRepository(db),
		Logs:         NewDiscoveryLogRepository(db),
	}
}

// Transaction runs fn against a Store bound to one transaction. Calling it on
// a Store that is already inside a transaction opens a savepoint, so an error
// from fn only undoes the work fn did.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
