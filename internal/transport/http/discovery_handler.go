package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/waste3d/cardvault-api/internal/application/usecase"
	"github.com/waste3d/cardvault-api/internal/domain"
	"github.com/waste3d/cardvault-api/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	reasonNotFound        = "not_found"
	reasonAlreadyOwned    = "already_owned"
	reasonSupplyExhausted = "supply_exhausted"
)

type DiscoveryHandler struct {
	uc *usecase.DiscoveryUseCase
}

func NewDiscoveryHandler(uc *usecase.DiscoveryUseCase) *DiscoveryHandler {
	return &DiscoveryHandler{uc: uc}
}

type discoverReq struct {
	Code        string         `json:"code" binding:"required"`
	TriggerType string         `json:"trigger_type"`
	TriggerData map[string]any `json:"trigger_data"`
	Location    string         `json:"location"`
}

type awardedCard struct {
	ID             uuid.UUID     `json:"id"`
	Code           string        `json:"code"`
	Name           string        `json:"name"`
	Series         string        `json:"series"`
	Rarity         domain.Rarity `json:"rarity"`
	InstanceNumber int           `json:"instance_number"`
	IsFirstEdition bool          `json:"is_first_edition"`
	IsFoil         bool          `json:"is_foil"`
	AwardedAt      string        `json:"awarded_at"`
}

type qualifying struct {
	Code        string             `json:"code"`
	TriggerType domain.TriggerType `json:"trigger_type"`
}

func toQualifying(m *domain.Match) *qualifying {
	if m == nil {
		return nil
	}
	return &qualifying{Code: m.Collectible.Code, TriggerType: m.TriggerType}
}

// POST /api/v1/cards/discover
func (h *DiscoveryHandler) Discover(c *gin.Context) {
	var req discoverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	res, err := h.uc.Discover(c, usecase.DiscoverRequest{
		UserID: middleware.UserID(c),
		Code:   req.Code,
		Provenance: domain.Provenance{
			TriggerType: req.TriggerType,
			TriggerData: req.TriggerData,
			Location:    req.Location,
		},
	})

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrCollectibleNotFound):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "reason": reasonNotFound, "error": "Card not found"})
		return
	case errors.Is(err, domain.ErrAlreadyOwned):
		c.JSON(http.StatusOK, gin.H{"success": false, "reason": reasonAlreadyOwned, "message": "You already own this card"})
		return
	case errors.Is(err, domain.ErrSupplyExhausted):
		c.JSON(http.StatusOK, gin.H{"success": false, "reason": reasonSupplyExhausted, "message": "No copies of this card are left"})
		return
	default:
		internalError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"card": awardedCard{
			ID:             res.Card.ID,
			Code:           res.Collectible.Code,
			Name:           res.Collectible.Name,
			Series:         res.Collectible.Series,
			Rarity:         res.Collectible.Rarity,
			InstanceNumber: res.Card.InstanceNumber,
			IsFirstEdition: res.Card.IsFirstEdition,
			IsFoil:         res.Card.IsFoil,
			AwardedAt:      res.Card.DiscoveredAt.UTC().Format(time.RFC3339),
		},
	})
}

type progressReq struct {
	Type          domain.EventType `json:"type" binding:"required"`
	Feature       string           `json:"feature"`
	AchievementID string           `json:"achievement_id"`
	SecretID      string           `json:"secret_id"`
}

// POST /api/v1/progress
func (h *DiscoveryHandler) UpdateProgress(c *gin.Context) {
	var req progressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	res, err := h.uc.UpdateProgress(c, middleware.UserID(c), domain.ProgressEvent{
		Type:          req.Type,
		Feature:       req.Feature,
		AchievementID: req.AchievementID,
		SecretID:      req.SecretID,
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidEvent) {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
			return
		}
		internalError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"progress":      res.Progress,
		"new_discovery": toQualifying(res.Match),
	})
}

// GET /api/v1/progress/triggers
func (h *DiscoveryHandler) CheckTriggers(c *gin.Context) {
	match, err := h.uc.CheckTriggers(c, middleware.UserID(c))
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "new_discovery": toQualifying(match)})
}

// GET /api/v1/progress
func (h *DiscoveryHandler) GetProgress(c *gin.Context) {
	p, err := h.uc.Progress(c, middleware.UserID(c))
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// GET /api/v1/cards
func (h *DiscoveryHandler) Catalog(c *gin.Context) {
	items, err := h.uc.Catalog(c)
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": items})
}

// GET /api/v1/cards/collection?favorites=true
func (h *DiscoveryHandler) Collection(c *gin.Context) {
	cards, err := h.uc.Collection(c, middleware.UserID(c), c.Query("favorites") == "true")
	if err != nil {
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cards": cards})
}

// PATCH /api/v1/cards/collection/:id/favorite
func (h *DiscoveryHandler) ToggleFavorite(c *gin.Context) {
	cardID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid card id"})
		return
	}

	var req struct {
		IsFavorite *bool `json:"is_favorite" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	err = h.uc.ToggleFavorite(c, middleware.UserID(c), cardID, *req.IsFavorite)
	if err != nil {
		if errors.Is(err, domain.ErrOwnershipNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "reason": reasonNotFound, "error": "Card not found in your collection"})
			return
		}
		internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "is_favorite": *req.IsFavorite})
}

// internalError hides store details from the caller. The error is attached
// to the context so RequestLogger records it.
func internalError(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Something went wrong, please try again"})
}
