package domain

import "fmt"

type TriggerType string

const (
	TriggerStreak      TriggerType = "streak"
	TriggerFeatureUse  TriggerType = "feature_use"
	TriggerCollection  TriggerType = "collection"
	TriggerAchievement TriggerType = "achievement"
)

// TriggerDef is the stored shape of a discovery trigger. It is only
// meaningful after ParseTrigger accepted it.
type TriggerDef struct {
	Type          TriggerType `json:"type" yaml:"type" toml:"type"`
	Threshold     int         `json:"threshold,omitempty" yaml:"threshold,omitempty" toml:"threshold,omitempty"`
	Feature       string      `json:"feature,omitempty" yaml:"feature,omitempty" toml:"feature,omitempty"`
	Series        string      `json:"series_complete,omitempty" yaml:"series_complete,omitempty" toml:"series_complete,omitempty"`
	AchievementID string      `json:"achievement_id,omitempty" yaml:"achievement_id,omitempty" toml:"achievement_id,omitempty"`
}

// Trigger is a parsed discovery predicate. The set of implementations is closed.
type Trigger interface {
	Type() TriggerType
	trigger()
}

type StreakTrigger struct {
	Days int
}

type FeatureUseTrigger struct {
	Feature string
	Uses    int
}

// CollectionTrigger holds either a discovered-cards threshold or a series
// that must be complete, never both.
type CollectionTrigger struct {
	TotalDiscovered int
	SeriesComplete  string
}

type AchievementTrigger struct {
	AchievementID string
}

func (StreakTrigger) Type() TriggerType      { return TriggerStreak }
func (FeatureUseTrigger) Type() TriggerType  { return TriggerFeatureUse }
func (CollectionTrigger) Type() TriggerType  { return TriggerCollection }
func (AchievementTrigger) Type() TriggerType { return TriggerAchievement }

func (StreakTrigger) trigger()      {}
func (FeatureUseTrigger) trigger()  {}
func (CollectionTrigger) trigger()  {}
func (AchievementTrigger) trigger() {}

// ParseTrigger validates def and returns the matching variant. Fields that
// belong to another variant make the definition invalid.
func ParseTrigger(def TriggerDef) (Trigger, error) {
	switch def.Type {
	case TriggerStreak:
		if def.Threshold < 1 || def.Feature != "" || def.Series != "" || def.AchievementID != "" {
			return nil, invalidTrigger(def, "streak needs only a positive threshold")
		}
		return StreakTrigger{Days: def.Threshold}, nil

	case TriggerFeatureUse:
		if def.Feature == "" || def.Threshold < 1 || def.Series != "" || def.AchievementID != "" {
			return nil, invalidTrigger(def, "feature_use needs a feature and a positive threshold")
		}
		return FeatureUseTrigger{Feature: def.Feature, Uses: def.Threshold}, nil

	case TriggerCollection:
		if def.Feature != "" || def.AchievementID != "" {
			return nil, invalidTrigger(def, "collection takes a threshold or a series")
		}
		hasThreshold := def.Threshold > 0
		hasSeries := def.Series != ""
		if hasThreshold == hasSeries || def.Threshold < 0 {
			return nil, invalidTrigger(def, "collection needs exactly one of threshold or series_complete")
		}
		return CollectionTrigger{TotalDiscovered: def.Threshold, SeriesComplete: def.Series}, nil

	case TriggerAchievement:
		if def.AchievementID == "" || def.Threshold != 0 || def.Feature != "" || def.Series != "" {
			return nil, invalidTrigger(def, "achievement needs only an achievement_id")
		}
		return AchievementTrigger{AchievementID: def.AchievementID}, nil
	}

	return nil, invalidTrigger(def, "unknown type")
}

func invalidTrigger(def TriggerDef, reason string) error {
	return fmt.Errorf("%w: %q: %s", ErrInvalidTrigger, def.Type, reason)
}

// Satisfied reports whether t holds for the given progress snapshot.
func Satisfied(t Trigger, p *Progress) bool {
	switch t := t.(type) {
	case StreakTrigger:
		return p.DailyLoginStreak >= t.Days
	case FeatureUseTrigger:
		return p.FeatureUses[t.Feature] >= t.Uses
	case CollectionTrigger:
		if t.SeriesComplete != "" {
			return contains(p.SeriesCompleted, t.SeriesComplete)
		}
		return p.TotalCardsDiscovered >= t.TotalDiscovered
	case AchievementTrigger:
		return contains(p.AchievementsUnlocked, t.AchievementID)
	}
	return false
}

type Match struct {
	Collectible Collectible
	TriggerType TriggerType
}

// Evaluate returns the first candidate whose trigger holds for p. Candidates
// are scanned in the order given and the scan stops at the first match.
// Definitions that fail to parse never match.
func Evaluate(p *Progress, candidates []Collectible) (Match, bool) {
	for _, c := range candidates {
		t, err := ParseTrigger(c.Trigger)
		if err != nil {
			continue
		}
		if Satisfied(t, p) {
			return Match{Collectible: c, TriggerType: t.Type()}, true
		}
	}
	return Match{}, false
}
