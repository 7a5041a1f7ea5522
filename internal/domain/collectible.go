package domain

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
)

type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityUncommon  Rarity = "uncommon"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
	RarityMythic    Rarity = "mythic"
)

var rarityRank = map[Rarity]int{
	RarityCommon:    1,
	RarityUncommon:  2,
	RarityRare:      3,
	RarityEpic:      4,
	RarityLegendary: 5,
	RarityMythic:    6,
}

// Rank is the position of r on the rarity scale; 0 for unknown or empty values.
func (r Rarity) Rank() int {
	return rarityRank[r]
}

func (r Rarity) Valid() bool {
	return r.Rank() > 0
}

// Collectible is a card definition from the catalog. Only CurrentSupply is
// ever written by the discovery flow.
type Collectible struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Code          string     `gorm:"uniqueIndex;not null;size:64" json:"code"`
	Name          string     `gorm:"not null" json:"name"`
	Description   string     `json:"description"`
	ImageURL      string     `json:"image_url"`
	Series        string     `gorm:"index;not null;size:100" json:"series"`
	SeriesNumber  int        `gorm:"not null" json:"series_number"`
	Rarity        Rarity     `gorm:"size:16;not null" json:"rarity"`
	IsActive      bool       `gorm:"not null;index" json:"is_active"`
	MaxSupply     *int       `json:"max_supply"`
	CurrentSupply int        `gorm:"not null;default:0" json:"current_supply"`
	Trigger       TriggerDef `gorm:"column:discovery_trigger;serializer:json;type:text" json:"discovery_trigger"`
	CreatedAt     time.Time  `json:"-"`
	UpdatedAt     time.Time  `json:"-"`
}

func (c *Collectible) HasSupplyLeft() bool {
	return c.MaxSupply == nil || c.CurrentSupply < *c.MaxSupply
}

// SortCatalog orders collectibles by series, series number and code. This is
// the order the trigger evaluator walks candidates in.
func SortCatalog(items []Collectible) {
	slices.SortStableFunc(items, func(a, b Collectible) int {
		return cmp.Or(
			cmp.Compare(a.Series, b.Series),
			cmp.Compare(a.SeriesNumber, b.SeriesNumber),
			cmp.Compare(a.Code, b.Code),
		)
	})
}
