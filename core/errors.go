package core

import "errors"

var (
	ErrProductNotFound        = errors.New("product not found")
	ErrAuctionNotActive       = errors.New("auction is not active")
	ErrPriceTooLow            = errors.New("price is below the base price")
	ErrInvalidScoreInput      = errors.New("invalid score input")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrSubscriptionLost       = errors.New("subscription lost")

	ErrAuctionNotEnded   = errors.New("auction has not ended")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrInvalidProduct    = errors.New("invalid product")
)
