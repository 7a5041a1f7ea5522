package domain

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Progress is the per-user snapshot used to evaluate discovery triggers.
type Progress struct {
	UserID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"user_id"`
	TotalCardsDiscovered int            `gorm:"not null;default:0" json:"total_cards_discovered"`
	WeeklyDiscoveries    int            `gorm:"not null;default:0" json:"weekly_discoveries"`
	FeatureUses          map[string]int `gorm:"serializer:json;type:text" json:"feature_uses"`
	DailyLoginStreak     int            `gorm:"not null;default:0" json:"daily_login_streak"`
	LastLoginDate        *time.Time     `json:"last_login_date"`
	RarestCardFound      Rarity         `gorm:"size:16" json:"rarest_card_found"`
	SeriesCompleted      []string       `gorm:"serializer:json;type:text" json:"series_completed"`
	AchievementsUnlocked []string       `gorm:"serializer:json;type:text" json:"achievements_unlocked"`
	SecretsFound         []string       `gorm:"serializer:json;type:text" json:"secrets_found"`
	CreatedAt            time.Time      `json:"-"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

func (Progress) TableName() string {
	return "user_progress"
}

func NewProgress(userID uuid.UUID) *Progress {
	p := &Progress{UserID: userID}
	p.Normalize()
	return p
}

// Normalize replaces nil collections so the snapshot serializes as empty
// objects and arrays instead of null.
func (p *Progress) Normalize() {
	if p.FeatureUses == nil {
		p.FeatureUses = map[string]int{}
	}
	if p.SeriesCompleted == nil {
		p.SeriesCompleted = []string{}
	}
	if p.AchievementsUnlocked == nil {
		p.AchievementsUnlocked = []string{}
	}
	if p.SecretsFound == nil {
		p.SecretsFound = []string{}
	}
}

type EventType string

const (
	EventFeatureUse  EventType = "feature_use"
	EventDailyLogin  EventType = "daily_login"
	EventAchievement EventType = "achievement"
	EventSecret      EventType = "secret"
)

type ProgressEvent struct {
	Type          EventType
	Feature       string
	AchievementID string
	SecretID      string
}

func (e ProgressEvent) Validate() error {
	switch e.Type {
	case EventFeatureUse:
		if e.Feature == "" {
			return fmt.Errorf("%w: feature_use requires a feature name", ErrInvalidEvent)
		}
	case EventDailyLogin:
	case EventAchievement:
		if e.AchievementID == "" {
			return fmt.Errorf("%w: achievement requires an achievement id", ErrInvalidEvent)
		}
	case EventSecret:
		if e.SecretID == "" {
			return fmt.Errorf("%w: secret requires a secret id", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	return nil
}

// Apply mutates p with one event and reports whether anything changed.
func (p *Progress) Apply(e ProgressEvent, now time.Time) (bool, error) {
	if err := e.Validate(); err != nil {
		return false, err
	}
	p.Normalize()

	switch e.Type {
	case EventFeatureUse:
		p.FeatureUses[e.Feature]++
		return true, nil
	case EventDailyLogin:
		return p.RecordLogin(now), nil
	case EventAchievement:
		return addUnique(&p.AchievementsUnlocked, e.AchievementID), nil
	case EventSecret:
		return addUnique(&p.SecretsFound, e.SecretID), nil
	}
	return false, nil
}

// RecordLogin advances the daily streak. Dates are UTC calendar days. A login
// on the day after the last one extends the streak, a repeat login on the same
// day is ignored, and anything else restarts it at 1.
func (p *Progress) RecordLogin(now time.Time) bool {
	today := CalendarDay(now)

	if p.LastLoginDate != nil {
		last := CalendarDay(*p.LastLoginDate)
		switch {
		case !today.After(last):
			return false
		case last.AddDate(0, 0, 1).Equal(today):
			p.DailyLoginStreak++
			p.LastLoginDate = &today
			return true
		}
	}

	p.DailyLoginStreak = 1
	p.LastLoginDate = &today
	return true
}

// RecordAward applies the counters that follow a successful award.
// completedSeries is empty unless the award finished that series.
func (p *Progress) RecordAward(rarity Rarity, completedSeries string) {
	p.Normalize()
	p.TotalCardsDiscovered++
	p.WeeklyDiscoveries++
	if rarity.Rank() > p.RarestCardFound.Rank() {
		p.RarestCardFound = rarity
	}
	if completedSeries != "" {
		addUnique(&p.SeriesCompleted, completedSeries)
	}
}

// CalendarDay truncates t to midnight UTC.
func CalendarDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func addUnique(set *[]string, v string) bool {
	if contains(*set, v) {
		return false
	}
	*set = append(*set, v)
	return true
}

func contains(set []string, v string) bool {
	return slices.Contains(set, v)
}
