package core

import (
	"time"
)

// NewBid validates and scores a bid for product at now.
//
// Processing flow:
//  1. Check the price against the product's base price
//  2. Measure reaction time from the product's start (clamped at zero)
//  3. Score with the product's coefficients
func NewBid(id string, product Product, bidder Bidder, price float64, now time.Time, seq uint64, scorer Scorer) (Bid, error) {
	if err := CheckPrice(price, product.BasePrice); err != nil {
		return Bid{}, err
	}

	reactionTime := now.Sub(product.StartTime).Milliseconds()
	if reactionTime < 0 {
		reactionTime = 0
	}

	score, err := scorer.Score(price, bidder.Weight, reactionTime, product.Coefficients)
	if err != nil {
		return Bid{}, err
	}

	display := bidder.DisplayName
	if display == "" {
		display = RedactBidderName(bidder.ID)
	}

	return Bid{
		ID:           id,
		ProductID:    product.ID,
		BidderID:     bidder.ID,
		Display:      display,
		Price:        price,
		Weight:       bidder.Weight,
		ReactionTime: reactionTime,
		SubmittedAt:  now,
		Seq:          seq,
		Score:        score,
	}, nil
}

// MaterializeResult freezes the top-K entries at auction close. Every entry is a winner;
// there are fewer than K when fewer bidders took part.
func MaterializeResult(productID string, top []RankingEntry, endedAt time.Time) ProductResult {
	entries := make([]ResultEntry, len(top))
	for i, entry := range top {
		entries[i] = ResultEntry{RankingEntry: entry, IsWinner: true}
	}

	return ProductResult{
		ProductID: productID,
		Entries:   entries,
		EndedAt:   endedAt,
		Digest:    ComputeResultDigest(productID, entries),
	}
}

// RedactBidderName masks a bidder id for public rankings, keeping the last four characters.
func RedactBidderName(bidderID string) string {
	tail := bidderID
	if len(tail) > 4 {
		tail = tail[len(tail)-4:]
	}
	return "User_***" + tail
}
