package domain

import (
	"time"

	"github.com/google/uuid"
)

// FirstEditionLimit is the highest instance number that counts as first edition.
const FirstEditionLimit = 100

func IsFirstEdition(instance int) bool {
	return instance >= 1 && instance <= FirstEditionLimit
}

// UserCard is an owned instance of a collectible. A user holds at most one
// instance of each collectible.
type UserCard struct {
	ID                uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	UserID            uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_user_cards_owner,priority:1" json:"user_id"`
	CollectibleID     uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_user_cards_owner,priority:2;uniqueIndex:idx_user_cards_instance,priority:1" json:"collectible_id"`
	Collectible       *Collectible `gorm:"foreignKey:CollectibleID" json:"collectible,omitempty"`
	InstanceNumber    int          `gorm:"not null;uniqueIndex:idx_user_cards_instance,priority:2" json:"instance_number"`
	IsFirstEdition    bool         `gorm:"not null" json:"is_first_edition"`
	IsFoil            bool         `gorm:"not null" json:"is_foil"`
	IsFavorite        bool         `gorm:"not null" json:"is_favorite"`
	DiscoveryMethod   string       `gorm:"size:32" json:"discovery_method"`
	DiscoveryLocation string       `gorm:"size:255" json:"discovery_location"`
	DiscoveredAt      time.Time    `gorm:"not null" json:"discovered_at"`
}

// DiscoveryLog is an append-only audit row written for every award.
type DiscoveryLog struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey"`
	UserID        uuid.UUID      `gorm:"type:uuid;not null;index"`
	CollectibleID uuid.UUID      `gorm:"type:uuid;not null;index"`
	TriggerType   string         `gorm:"size:32"`
	TriggerData   map[string]any `gorm:"serializer:json;type:text"`
	Location      string         `gorm:"size:255"`
	CreatedAt     time.Time
}

// Provenance describes where an award request came from.
type Provenance struct {
	TriggerType string
	TriggerData map[string]any
	Location    string
}
