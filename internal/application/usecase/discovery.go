package usecase

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/waste3d/cardvault-api/internal/domain"
	"github.com/waste3d/cardvault-api/internal/infrastructure/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// FoilChance is the probability that an awarded instance is foil.
const FoilChance = 0.05

type CatalogCache interface {
	GetCatalog(ctx context.Context) ([]domain.Collectible, bool)
	SetCatalog(ctx context.Context, items []domain.Collectible) error
}

type DiscoveryUseCase struct {
	store    *repository.Store
	cache    CatalogCache
	log      *zap.Logger
	now      func() time.Time
	rollFoil func() bool
}

type Option func(*DiscoveryUseCase)

func WithCatalogCache(c CatalogCache) Option {
	return func(uc *DiscoveryUseCase) { uc.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(uc *DiscoveryUseCase) { uc.now = now }
}

func WithFoilRoll(roll func() bool) Option {
	return func(uc *DiscoveryUseCase) { uc.rollFoil = roll }
}

func NewDiscoveryUseCase(store *repository.Store, log *zap.Logger, opts ...Option) *DiscoveryUseCase {
	uc := &DiscoveryUseCase{
		store:    store,
		log:      log.Named("discovery"),
		now:      time.Now,
		rollFoil: func() bool { return rand.Float64() < FoilChance },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

type DiscoverRequest struct {
	UserID     uuid.UUID
	Code       string
	Provenance domain.Provenance
}

type DiscoverResult struct {
	Card        domain.UserCard
	Collectible domain.Collectible
}

// Discover grants one collectible to one user. Refusals come back as
// domain.ErrCollectibleNotFound, domain.ErrAlreadyOwned or
// domain.ErrSupplyExhausted; nothing is written in those cases.
func (uc *DiscoveryUseCase) Discover(ctx context.Context, req DiscoverRequest) (*DiscoverResult, error) {
	var result *DiscoverResult

	err := uc.store.Transaction(ctx, func(tx *repository.Store) error {
		c, err := tx.Collectibles.GetByCode(ctx, req.Code)
		if err != nil {
			return err
		}
		if !c.IsActive {
			return domain.ErrCollectibleNotFound
		}

		owned, err := tx.Cards.Exists(ctx, req.UserID, c.ID)
		if err != nil {
			return err
		}
		if owned {
			return domain.ErrAlreadyOwned
		}

		instance, err := tx.Collectibles.ClaimNextInstance(ctx, c.ID)
		if err != nil {
			return err
		}
		c.CurrentSupply = instance

		card := &domain.UserCard{
			ID:                uuid.New(),
			UserID:            req.UserID,
			CollectibleID:     c.ID,
			InstanceNumber:    instance,
			IsFirstEdition:    domain.IsFirstEdition(instance),
			IsFoil:            uc.rollFoil(),
			DiscoveryMethod:   req.Provenance.TriggerType,
			DiscoveryLocation: req.Provenance.Location,
			DiscoveredAt:      uc.now().UTC(),
		}
		if err := tx.Cards.Create(ctx, card); err != nil {
			return err
		}

		uc.appendLog(ctx, tx, card, req.Provenance)

		if err := uc.recordAward(ctx, tx, req.UserID, c); err != nil {
			return err
		}

		result = &DiscoverResult{Card: *card, Collectible: *c}
		return nil
	})
	if err != nil {
		uc.logFailure("discover", err, zap.String("user_id", req.UserID.String()), zap.String("code", req.Code))
		return nil, err
	}

	uc.log.Info("collectible awarded",
		zap.String("user_id", req.UserID.String()),
		zap.String("code", result.Collectible.Code),
		zap.Int("instance", result.Card.InstanceNumber),
		zap.Bool("foil", result.Card.IsFoil),
	)
	return result, nil
}

// appendLog writes the audit row inside a savepoint. A failure here is logged
// and leaves the award in place.
func (uc *DiscoveryUseCase) appendLog(ctx context.Context, tx *repository.Store, card *domain.UserCard, prov domain.Provenance) {
	err := tx.Transaction(ctx, func(tx *repository.Store) error {
		return tx.Logs.Append(ctx, &domain.DiscoveryLog{
			UserID:        card.UserID,
			CollectibleID: card.CollectibleID,
			TriggerType:   prov.TriggerType,
			TriggerData:   prov.TriggerData,
			Location:      prov.Location,
			CreatedAt:     card.DiscoveredAt,
		})
	})
	if err != nil {
		uc.log.Error("discovery log append failed",
			zap.String("user_id", card.UserID.String()),
			zap.String("collectible_id", card.CollectibleID.String()),
			zap.Error(err),
		)
	}
}

// recordAward takes the progress lock before counting the series. A
// concurrent award for the same user has committed its ownership row by the
// time the lock is granted, so the counts below include it.
func (uc *DiscoveryUseCase) recordAward(ctx context.Context, tx *repository.Store, userID uuid.UUID, c *domain.Collectible) error {
	p, err := tx.Progress.LockForUpdate(ctx, userID)
	if err != nil {
		return err
	}

	owned, err := tx.Cards.CountOwnedInSeries(ctx, userID, c.Series)
	if err != nil {
		return err
	}
	total, err := tx.Collectibles.CountActiveInSeries(ctx, c.Series)
	if err != nil {
		return err
	}

	completed := ""
	if total > 0 && owned >= total {
		completed = c.Series
	}
	p.RecordAward(c.Rarity, completed)
	return tx.Progress.Save(ctx, p)
}

type ProgressUpdate struct {
	Progress *domain.Progress
	Match    *domain.Match
}

// UpdateProgress applies one event to the user's snapshot and then checks
// whether a new collectible qualifies. Claiming it is left to Discover.
func (uc *DiscoveryUseCase) UpdateProgress(ctx context.Context, userID uuid.UUID, event domain.ProgressEvent) (*ProgressUpdate, error) {
	if err := event.Validate(); err != nil {
		return nil, err
	}

	var progress *domain.Progress
	err := uc.store.Transaction(ctx, func(tx *repository.Store) error {
		p, err := tx.Progress.LockForUpdate(ctx, userID)
		if err != nil {
			return err
		}
		changed, err := p.Apply(event, uc.now())
		if err != nil {
			return err
		}
		if changed {
			if err := tx.Progress.Save(ctx, p); err != nil {
				return err
			}
		}
		progress = p
		return nil
	})
	if err != nil {
		uc.logFailure("update progress", err, zap.String("user_id", userID.String()), zap.String("event", string(event.Type)))
		return nil, err
	}

	match, err := uc.evaluate(ctx, userID, progress)
	if err != nil {
		uc.logFailure("trigger check", err, zap.String("user_id", userID.String()))
		return nil, err
	}
	return &ProgressUpdate{Progress: progress, Match: match}, nil
}

// CheckTriggers re-evaluates the user's snapshot without writing anything.
func (uc *DiscoveryUseCase) CheckTriggers(ctx context.Context, userID uuid.UUID) (*domain.Match, error) {
	p, err := uc.store.Progress.Get(ctx, userID)
	if err != nil {
		uc.logFailure("trigger check", err, zap.String("user_id", userID.String()))
		return nil, err
	}
	match, err := uc.evaluate(ctx, userID, p)
	if err != nil {
		uc.logFailure("trigger check", err, zap.String("user_id", userID.String()))
	}
	return match, err
}

// evaluate reads candidates from the database rather than the catalog cache:
// a card deactivated since the cache was filled must not shadow an active one.
func (uc *DiscoveryUseCase) evaluate(ctx context.Context, userID uuid.UUID, p *domain.Progress) (*domain.Match, error) {
	catalog, err := uc.store.Collectibles.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	owned, err := uc.store.Cards.OwnedCollectibleIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.Collectible, 0, len(catalog))
	for _, c := range catalog {
		if _, ok := owned[c.ID]; ok {
			continue
		}
		if _, err := domain.ParseTrigger(c.Trigger); err != nil {
			uc.log.Warn("skipping collectible with malformed trigger",
				zap.String("code", c.Code),
				zap.Error(err),
			)
			continue
		}
		candidates = append(candidates, c)
	}

	match, ok := domain.Evaluate(p, candidates)
	if !ok {
		return nil, nil
	}
	return &match, nil
}

// Catalog returns the active collectibles in evaluation order, from the
// cache when it is warm.
func (uc *DiscoveryUseCase) Catalog(ctx context.Context) ([]domain.Collectible, error) {
	if uc.cache != nil {
		if items, ok := uc.cache.GetCatalog(ctx); ok {
			domain.SortCatalog(items)
			return items, nil
		}
	}

	items, err := uc.store.Collectibles.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if err := uc.cache.SetCatalog(ctx, items); err != nil {
			uc.log.Warn("catalog cache write failed", zap.Error(err))
		}
	}
	return items, nil
}

func (uc *DiscoveryUseCase) Collection(ctx context.Context, userID uuid.UUID, favoritesOnly bool) ([]domain.UserCard, error) {
	return uc.store.Cards.ListByUser(ctx, userID, favoritesOnly)
}

func (uc *DiscoveryUseCase) Progress(ctx context.Context, userID uuid.UUID) (*domain.Progress, error) {
	return uc.store.Progress.Get(ctx, userID)
}

func (uc *DiscoveryUseCase) ToggleFavorite(ctx context.Context, userID, cardID uuid.UUID, favorite bool) error {
	err := uc.store.Cards.SetFavorite(ctx, cardID, userID, favorite)
	if err != nil {
		uc.logFailure("toggle favorite", err, zap.String("user_id", userID.String()), zap.String("card_id", cardID.String()))
	}
	return err
}

// ResetWeeklyDiscoveries zeroes every user's weekly counter.
func (uc *DiscoveryUseCase) ResetWeeklyDiscoveries(ctx context.Context) (int64, error) {
	return uc.store.Progress.ResetWeekly(ctx)
}

func (uc *DiscoveryUseCase) logFailure(op string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if isRefusal(err) {
		uc.log.Debug(op+" refused", fields...)
		return
	}
	uc.log.Error(op+" failed", fields...)
}

func isRefusal(err error) bool {
	return errors.Is(err, domain.ErrCollectibleNotFound) ||
		errors.Is(err, domain.ErrAlreadyOwned) ||
		errors.Is(err, domain.ErrSupplyExhausted) ||
		errors.Is(err, domain.ErrOwnershipNotFound) ||
		errors.Is(err, domain.ErrInvalidEvent)
}
