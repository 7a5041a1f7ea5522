package usecase_test

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/waste3d/cardvault-api/internal/application/usecase"
	"github.com/waste3d/cardvault-api/internal/domain"
	"github.com/waste3d/cardvault-api/internal/infrastructure/repository"
	"github.com/waste3d/cardvault-api/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
)

type fixture struct {
	db   *gorm.DB
	uc   *usecase.DiscoveryUseCase
	logs *observer.ObservedLogs
	now  time.Time
}

func newFixture(t *testing.T, opts ...usecase.Option) *fixture {
	core, logs := observer.New(zapcore.DebugLevel)
	f := &fixture{
		db:   testutil.NewDB(t),
		logs: logs,
		now:  time.Date(2026, time.May, 4, 12, 0, 0, 0, time.UTC),
	}
	opts = append([]usecase.Option{
		usecase.WithClock(func() time.Time { return f.now }),
		usecase.WithFoilRoll(func() bool { return false }),
	}, opts...)
	f.uc = usecase.NewDiscoveryUseCase(repository.NewStore(f.db), zap.New(core), opts...)
	return f
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func (f *fixture) discover(t *testing.T, user uuid.UUID, code string) (*usecase.DiscoverResult, error) {
	t.Helper()
	return f.uc.Discover(context.Background(), usecase.DiscoverRequest{
		UserID: user,
		Code:   code,
		Provenance: domain.Provenance{
			TriggerType: "feature_use",
			TriggerData: map[string]any{"feature": "scanner"},
			Location:    "/scanner",
		},
	})
}

func (f *fixture) supply(t *testing.T, code string) int {
	t.Helper()
	var c domain.Collectible
	require.NoError(t, f.db.Where("code = ?", code).First(&c).Error)
	return c.CurrentSupply
}

func TestDiscoverSupplyScenario(t *testing.T) {
	f := newFixture(t)
	testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "X", Series: "S", IsActive: true, MaxSupply: testutil.IntPtr(2)})

	a, err := f.discover(t, uuid.New(), "X")
	require.NoError(t, err)
	assert.Equal(t, 1, a.Card.InstanceNumber)
	assert.True(t, a.Card.IsFirstEdition)

	b, err := f.discover(t, uuid.New(), "X")
	require.NoError(t, err)
	assert.Equal(t, 2, b.Card.InstanceNumber)
	assert.True(t, b.Card.IsFirstEdition)

	_, err = f.discover(t, uuid.New(), "X")
	assert.True(t, errors.Is(err, domain.ErrSupplyExhausted))
	assert.Equal(t, 2, f.supply(t, "X"))

	var owners int64
	f.db.Model(&domain.UserCard{}).Count(&owners)
	assert.EqualValues(t, 2, owners)
}

func TestDiscoverTwiceIsIdempotent(t *testing.T) {
	f := newFixture(t)
	testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "X", Series: "S", IsActive: true})
	user := uuid.New()

	_, err := f.discover(t, user, "X")
	require.NoError(t, err)

	_, err = f.discover(t, user, "X")
	assert.True(t, errors.Is(err, domain.ErrAlreadyOwned))
	assert.Equal(t, 1, f.supply(t, "X"))

	p, err := f.uc.Progress(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalCardsDiscovered)
}

func TestDiscoverNotFound(t *testing.T) {
	f := newFixture(t)
	testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "RETIRED", Series: "S", IsActive: false})

	_, err := f.discover(t, uuid.New(), "MISSING")
	assert.True(t, errors.Is(err, domain.ErrCollectibleNotFound))

	_, err = f.discover(t, uuid.New(), "RETIRED")
	assert.True(t, errors.Is(err, domain.ErrCollectibleNotFound))
	assert.Equal(t, 0, f.supply(t, "RETIRED"))
}

func TestDiscoverWritesLogAndProgress(t *testing.T) {
	f := newFixture(t, usecase.WithFoilRoll(func() bool { return true }))
	testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "O-1", Series: "Origins", SeriesNumber: 1, Rarity: domain.RarityRare, IsActive: true})
	testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "O-2", Series: "Origins", SeriesNumber: 2, Rarity: domain.RarityEpic, IsActive: true})
	testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "O-3", Series: "Origins", SeriesNumber: 3, Rarity: domain.RarityMythic, IsActive: false})
	user := uuid.New()

	res, err := f.discover(t, user, "O-1")
	require.NoError(t, err)
	assert.True(t, res.Card.IsFoil)
	assert.Equal(t, "feature_use", res.Card.DiscoveryMethod)
	assert.Equal(t, "/scanner", res.Card.DiscoveryLocation)
	assert.Equal(t, f.now, res.Card.DiscoveredAt)

	p, err := f.uc.Progress(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, domain.RarityRare, p.RarestCardFound)
	assert.Empty(t, p.SeriesCompleted)

	_, err = f.discover(t, user, "O-2")
	require.NoError(t, err)

	p, err = f.uc.Progress(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 2, p.TotalCardsDiscovered)
	assert.Equal(t, 2, p.WeeklyDiscoveries)
	assert.Equal(t, domain.RarityEpic, p.RarestCardFound)
	assert.Equal(t, []string{"Origins"}, p.SeriesCompleted, "inactive members do not block completion")

	var logs []domain.DiscoveryLog
	require.NoError(t, f.db.Where("user_id = ?", user).Find(&logs).Error)
	require.Len(t, logs, 2)
	assert.Equal(t, "feature_use", logs[0].TriggerType)
	assert.Equal(t, "scanner", logs[0].TriggerData["feature"])
}

func TestDiscoverConcurrentKeepsSupplyConsistent(t *testing.T) {
	f := newFixture(t)
	testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "RUSH", Series: "S", IsActive: true, MaxSupply: testutil.IntPtr(5)})

	repeat := uuid.New()
	users := []uuid.UUID{repeat, repeat, repeat}
	for range 7 {
		users = append(users, uuid.New())
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		granted   int
		instances []int
	)
	for _, u := range users {
		wg.Add(1)
		go func(u uuid.UUID) {
			defer wg.Done()
			res, err := f.discover(t, u, "RUSH")
			if err != nil {
				assert.True(t, errors.Is(err, domain.ErrAlreadyOwned) || errors.Is(err, domain.ErrSupplyExhausted), "unexpected error: %v", err)
				return
			}
			mu.Lock()
			granted++
			instances = append(instances, res.Card.InstanceNumber)
			mu.Unlock()
		}(u)
	}
	wg.Wait()

	assert.Equal(t, 5, granted)
	assert.Equal(t, 5, f.supply(t, "RUSH"))

	sort.Ints(instances)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, instances)

	var repeatOwned int64
	f.db.Model(&domain.UserCard{}).Where("user_id = ?", repeat).Count(&repeatOwned)
	assert.LessOrEqual(t, repeatOwned, int64(1))
}

func TestDiscoverLocksProgressBeforeCountingSeries(t *testing.T) {
	f := newFixture(t)
	testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "S-1", Series: "S", SeriesNumber: 1, IsActive: true})
	testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "S-2", Series: "S", SeriesNumber: 2, IsActive: true})

	var tables []string
	require.NoError(t, f.db.Callback().Query().Before("gorm:query").Register("test:trace_tables", func(tx *gorm.DB) {
		tables = append(tables, tx.Statement.Table)
	}))

	_, err := f.discover(t, uuid.New(), "S-1")
	require.NoError(t, err)

	lock := slices.Index(tables, "user_progress")
	require.NotEqual(t, -1, lock, "queries: %v", tables)
	assert.Contains(t, tables[lock+1:], "user_cards", "series ownership is counted under the progress lock: %v", tables)
	assert.Contains(t, tables[lock+1:], "collectibles", "series size is counted under the progress lock: %v", tables)
}

func TestDiscoverFailedProgressWriteLeavesNothingBehind(t *testing.T) {
	f := newFixture(t)
	testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "X", Series: "S", IsActive: true, MaxSupply: testutil.IntPtr(3)})
	require.NoError(t, f.db.Callback().Update().Before("gorm:update").Register("test:fail_progress", func(tx *gorm.DB) {
		if tx.Statement.Table == "user_progress" {
			_ = tx.AddError(errors.New("disk I/O error"))
		}
	}))

	_, err := f.discover(t, uuid.New(), "X")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrSupplyExhausted) || errors.Is(err, domain.ErrAlreadyOwned))

	assert.Equal(t, 0, f.supply(t, "X"))
	assert.Zero(t, f.count(t, &domain.UserCard{}))
	assert.Zero(t, f.count(t, &domain.Progress{}))
	assert.Zero(t, f.count(t, &domain.DiscoveryLog{}))
}

func TestDiscoverSurvivesLogFailure(t *testing.T) {
	f := newFixture(t)
	testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "X", Series: "S", IsActive: true})
	require.NoError(t, f.db.Migrator().DropTable(&domain.DiscoveryLog{}))
	user := uuid.New()

	res, err := f.discover(t, user, "X")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Card.InstanceNumber)

	assert.Equal(t, 1, f.supply(t, "X"))
	assert.EqualValues(t, 1, f.count(t, &domain.UserCard{}))

	p, err := f.uc.Progress(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalCardsDiscovered)

	failures := f.logs.FilterMessage("discovery log append failed")
	require.Equal(t, 1, failures.Len())
	assert.Equal(t, zapcore.ErrorLevel, failures.All()[0].Level)
}

func TestFirstEditionBoundary(t *testing.T) {
	f := newFixture(t)
	testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "BIG", Series: "S", IsActive: true, CurrentSupply: 99})

	first, err := f.discover(t, uuid.New(), "BIG")
	require.NoError(t, err)
	assert.Equal(t, 100, first.Card.InstanceNumber)
	assert.True(t, first.Card.IsFirstEdition)

	second, err := f.discover(t, uuid.New(), "BIG")
	require.NoError(t, err)
	assert.Equal(t, 101, second.Card.InstanceNumber)
	assert.False(t, second.Card.IsFirstEdition)
}

func TestUpdateProgressStreakScenario(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	login := domain.ProgressEvent{Type: domain.EventDailyLogin}
	ctx := context.Background()

	res, err := f.uc.UpdateProgress(ctx, user, login)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Progress.DailyLoginStreak)
	assert.Nil(t, res.Match)

	f.now = f.now.AddDate(0, 0, 1)
	res, err = f.uc.UpdateProgress(ctx, user, login)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Progress.DailyLoginStreak)

	res, err = f.uc.UpdateProgress(ctx, user, login)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Progress.DailyLoginStreak, "same day login is a no-op")

	f.now = f.now.AddDate(0, 0, 2)
	res, err = f.uc.UpdateProgress(ctx, user, login)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Progress.DailyLoginStreak)

	stored, err := f.uc.Progress(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.DailyLoginStreak)
}

func TestUpdateProgressFeatureUseScenario(t *testing.T) {
	f := newFixture(t)
	testutil.SeedCollectible(t, f.db, domain.Collectible{
		Code: "SCANNER-PRO", Series: "Tools", IsActive: true,
		Trigger: domain.TriggerDef{Type: domain.TriggerFeatureUse, Feature: "scanner", Threshold: 5},
	})
	user := uuid.New()
	ctx := context.Background()
	event := domain.ProgressEvent{Type: domain.EventFeatureUse, Feature: "scanner"}

	for i := 1; i <= 4; i++ {
		res, err := f.uc.UpdateProgress(ctx, user, event)
		require.NoError(t, err)
		assert.Nil(t, res.Match, "call %d", i)
	}

	res, err := f.uc.UpdateProgress(ctx, user, event)
	require.NoError(t, err)
	require.NotNil(t, res.Match)
	assert.Equal(t, "SCANNER-PRO", res.Match.Collectible.Code)
	assert.Equal(t, domain.TriggerFeatureUse, res.Match.TriggerType)
	assert.Equal(t, 5, res.Progress.FeatureUses["scanner"])

	_, err = f.discover(t, user, "SCANNER-PRO")
	require.NoError(t, err)

	match, err := f.uc.CheckTriggers(ctx, user)
	require.NoError(t, err)
	assert.Nil(t, match, "owned collectibles are no longer candidates")
}

func TestUpdateProgressConcurrentEventsKeepEveryUpdate(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	ctx := context.Background()
	const uses = 10

	events := make([]domain.ProgressEvent, 0, uses+1)
	for range uses {
		events = append(events, domain.ProgressEvent{Type: domain.EventFeatureUse, Feature: "scanner"})
	}
	events = append(events, domain.ProgressEvent{Type: domain.EventDailyLogin})

	var wg sync.WaitGroup
	for _, e := range events {
		wg.Add(1)
		go func(e domain.ProgressEvent) {
			defer wg.Done()
			_, err := f.uc.UpdateProgress(ctx, user, e)
			assert.NoError(t, err)
		}(e)
	}
	wg.Wait()

	p, err := f.uc.Progress(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, uses, p.FeatureUses["scanner"])
	assert.Equal(t, 1, p.DailyLoginStreak)
	require.NotNil(t, p.LastLoginDate)
	assert.EqualValues(t, 1, f.count(t, &domain.Progress{}))
}

func TestUpdateProgressRejectsInvalidEvent(t *testing.T) {
	f := newFixture(t)
	_, err := f.uc.UpdateProgress(context.Background(), uuid.New(), domain.ProgressEvent{Type: domain.EventSecret})
	assert.True(t, errors.Is(err, domain.ErrInvalidEvent))

	var rows int64
	f.db.Model(&domain.Progress{}).Count(&rows)
	assert.EqualValues(t, 0, rows)
}

func TestCheckTriggersDoesNotWrite(t *testing.T) {
	f := newFixture(t)
	testutil.SeedCollectible(t, f.db, domain.Collectible{
		Code: "A-1", Series: "A", SeriesNumber: 1, IsActive: true,
		Trigger: domain.TriggerDef{Type: domain.TriggerAchievement, AchievementID: "first_trade"},
	})
	testutil.SeedCollectible(t, f.db, domain.Collectible{
		Code: "A-2", Series: "A", SeriesNumber: 2, IsActive: true,
		Trigger: domain.TriggerDef{Type: domain.TriggerAchievement, AchievementID: "first_trade"},
	})
	user := uuid.New()
	ctx := context.Background()

	match, err := f.uc.CheckTriggers(ctx, user)
	require.NoError(t, err)
	assert.Nil(t, match)

	var rows int64
	f.db.Model(&domain.Progress{}).Count(&rows)
	assert.EqualValues(t, 0, rows)

	_, err = f.uc.UpdateProgress(ctx, user, domain.ProgressEvent{Type: domain.EventAchievement, AchievementID: "first_trade"})
	require.NoError(t, err)

	for range 2 {
		match, err = f.uc.CheckTriggers(ctx, user)
		require.NoError(t, err)
		require.NotNil(t, match)
		assert.Equal(t, "A-1", match.Collectible.Code)
	}
}

func TestToggleFavorite(t *testing.T) {
	f := newFixture(t)
	testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "X", Series: "S", IsActive: true})
	user := uuid.New()
	ctx := context.Background()

	res, err := f.discover(t, user, "X")
	require.NoError(t, err)

	require.NoError(t, f.uc.ToggleFavorite(ctx, user, res.Card.ID, true))
	assert.True(t, errors.Is(f.uc.ToggleFavorite(ctx, uuid.New(), res.Card.ID, false), domain.ErrOwnershipNotFound))

	cards, err := f.uc.Collection(ctx, user, true)
	require.NoError(t, err)
	require.Len(t, cards, 1)
	assert.True(t, cards[0].IsFavorite)
}

type memoryCache struct {
	items []domain.Collectible
	sets  int
}

func (m *memoryCache) GetCatalog(context.Context) ([]domain.Collectible, bool) {
	if m.items == nil {
		return nil, false
	}
	return append([]domain.Collectible(nil), m.items...), true
}

func (m *memoryCache) SetCatalog(_ context.Context, items []domain.Collectible) error {
	m.items = items
	m.sets++
	return nil
}

func TestCatalogUsesCache(t *testing.T) {
	cache := &memoryCache{}
	f := newFixture(t, usecase.WithCatalogCache(cache))
	testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "X", Series: "S", IsActive: true})
	ctx := context.Background()

	items, err := f.uc.Catalog(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)

	testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "Y", Series: "S", IsActive: true})
	items, err = f.uc.Catalog(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1, "served from cache")
	assert.Equal(t, 1, cache.sets)
}

func TestCheckTriggersIgnoresStaleCatalogCache(t *testing.T) {
	cache := &memoryCache{}
	f := newFixture(t, usecase.WithCatalogCache(cache))
	trigger := domain.TriggerDef{Type: domain.TriggerAchievement, AchievementID: "first_trade"}
	retired := testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "A-1", Series: "A", IsActive: false, Trigger: trigger})
	testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "B-1", Series: "B", IsActive: true, Trigger: trigger})

	live, err := f.uc.Catalog(context.Background())
	require.NoError(t, err)
	retired.IsActive = true
	cache.items = append([]domain.Collectible{retired}, live...)

	user := uuid.New()
	res, err := f.uc.UpdateProgress(context.Background(), user, domain.ProgressEvent{Type: domain.EventAchievement, AchievementID: "first_trade"})
	require.NoError(t, err)
	require.NotNil(t, res.Match)
	assert.Equal(t, "B-1", res.Match.Collectible.Code)

	_, err = f.discover(t, user, res.Match.Collectible.Code)
	assert.NoError(t, err)
}

func TestCheckTriggersWarnsOnMalformedTrigger(t *testing.T) {
	f := newFixture(t)
	testutil.SeedCollectible(t, f.db, domain.Collectible{
		Code: "A-BROKEN", Series: "A", IsActive: true,
		Trigger: domain.TriggerDef{Type: "telepathy", Threshold: 1},
	})
	testutil.SeedCollectible(t, f.db, domain.Collectible{
		Code: "B-1", Series: "B", IsActive: true,
		Trigger: domain.TriggerDef{Type: domain.TriggerStreak, Threshold: 1},
	})
	user := uuid.New()
	ctx := context.Background()

	_, err := f.uc.UpdateProgress(ctx, user, domain.ProgressEvent{Type: domain.EventDailyLogin})
	require.NoError(t, err)

	match, err := f.uc.CheckTriggers(ctx, user)
	require.NoError(t, err)
	require.NotNil(t, match)
	assert.Equal(t, "B-1", match.Collectible.Code)

	warnings := f.logs.FilterMessage("skipping collectible with malformed trigger").FilterField(zap.String("code", "A-BROKEN"))
	assert.Positive(t, warnings.Len())
	assert.Equal(t, zapcore.WarnLevel, warnings.All()[0].Level)
}

func TestResetWeeklyDiscoveries(t *testing.T) {
	f := newFixture(t)
	testutil.SeedCollectible(t, f.db, domain.Collectible{Code: "X", Series: "S", IsActive: true})
	user := uuid.New()
	_, err := f.discover(t, user, "X")
	require.NoError(t, err)

	n, err := f.uc.ResetWeeklyDiscoveries(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	p, err := f.uc.Progress(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 0, p.WeeklyDiscoveries)
	assert.Equal(t, 1, p.TotalCardsDiscovered)
}
