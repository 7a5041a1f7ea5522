package domain

import "errors"

var (
	ErrCollectibleNotFound = errors.New("collectible not found")
	ErrAlreadyOwned        = errors.New("collectible already owned")
	ErrSupplyExhausted     = errors.New("collectible supply exhausted")
	ErrOwnershipNotFound   = errors.New("card not found in collection")
	ErrInvalidTrigger      = errors.New("invalid discovery trigger")
	ErrInvalidEvent        = errors.New("invalid progress event")
)
