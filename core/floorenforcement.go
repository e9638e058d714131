package core

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// BidMeetsFloor returns true if the bid price meets or exceeds the floor price.
// Both prices are compared exactly as decimals, so any price below the floor fails.
func BidMeetsFloor(bidPrice, floorPrice float64) bool {
	bidPriceDecimal := decimal.NewFromFloat(bidPrice)
	floorDecimal := decimal.NewFromFloat(floorPrice)

	return bidPriceDecimal.GreaterThanOrEqual(floorDecimal)
}

// CheckPrice validates a bid price against a product's base price.
// Non-finite prices fail with ErrInvalidScoreInput, everything else that is not a
// positive price at or above the base price fails with ErrPriceTooLow.
func CheckPrice(price, basePrice float64) error {
	if !finite(price) {
		return fmt.Errorf("%w: price %v", ErrInvalidScoreInput, price)
	}
	if price <= 0 || !BidMeetsFloor(price, basePrice) {
		return fmt.Errorf("%w: price %.4f, base price %.4f", ErrPriceTooLow, price, basePrice)
	}
	return nil
}
