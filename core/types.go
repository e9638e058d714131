package core

import (
	"fmt"
	"math"
	"time"
)

// Status is the lifecycle state of a product auction.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusActive     Status = "active"
	StatusEnded      Status = "ended"
)

// ParseStatus converts a wire value into a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNotStarted, StatusActive, StatusEnded:
		return Status(s), nil
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, s)
}

// Coefficients weight the inputs of the scoring function.
type Coefficients struct {
	Alpha float64 `json:"alpha"`
	Beta  float64 `json:"beta"`
	Gamma float64 `json:"gamma"`
}

// DefaultCoefficients are applied when an admin does not configure a product's coefficients.
var DefaultCoefficients = Coefficients{Alpha: 1.0, Beta: 0.5, Gamma: 0.3}

// Product is a single auctioned item with K award slots.
type Product struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`

	// BasePrice is the minimum admissible bid
	BasePrice float64 `json:"base_price"`

	// K is the number of awarded slots (>= 1)
	K int `json:"k"`

	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`

	Coefficients Coefficients `json:"coefficients"`

	Status Status `json:"status"`

	// CurrentHighestPrice is the largest price ever accepted for this product
	CurrentHighestPrice float64 `json:"current_highest_price"`
}

// Validate checks the invariants an admin-supplied product must satisfy.
func (p Product) Validate() error {
	switch {
	case p.K < 1:
		return fmt.Errorf("%w: k must be at least 1, got %d", ErrInvalidProduct, p.K)
	case !finite(p.BasePrice) || p.BasePrice < 0:
		return fmt.Errorf("%w: base price must be a non-negative number", ErrInvalidProduct)
	case p.StartTime.IsZero() || p.EndTime.IsZero():
		return fmt.Errorf("%w: start and end time are required", ErrInvalidProduct)
	case !p.StartTime.Before(p.EndTime):
		return fmt.Errorf("%w: start time must be before end time", ErrInvalidProduct)
	case !finite(p.Coefficients.Alpha) || !finite(p.Coefficients.Beta) || !finite(p.Coefficients.Gamma):
		return fmt.Errorf("%w: coefficients must be finite", ErrInvalidProduct)
	}
	return nil
}

// Bidder identifies the authenticated party placing a bid.
type Bidder struct {
	ID          string
	DisplayName string
	Weight      float64
}

// Bid is an accepted bid. A later bid by the same bidder replaces it in the leaderboard.
type Bid struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	BidderID  string  `json:"bidder_id"`
	Display   string  `json:"display_name"`
	Price     float64 `json:"price"`
	Weight    float64 `json:"weight"`

	// ReactionTime is milliseconds elapsed since the product's start time
	ReactionTime int64 `json:"reaction_time"`

	SubmittedAt time.Time `json:"submitted_at"`

	// Seq orders bids accepted within the same instant
	Seq uint64 `json:"seq"`

	Score float64 `json:"score"`
}

// RankingEntry is a bid's position on the leaderboard. Rank is 1-based and dense.
type RankingEntry struct {
	Rank         int       `json:"rank"`
	BidderID     string    `json:"bidder_id"`
	DisplayName  string    `json:"display_name"`
	Price        float64   `json:"price"`
	ReactionTime int64     `json:"reaction_time"`
	Weight       float64   `json:"weight"`
	Score        float64   `json:"score"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// Standings is a consistent read of a product's ranking.
type Standings struct {
	Entries []RankingEntry

	// ThresholdScore is the K-th entry's score, nil while fewer than K bidders exist
	ThresholdScore *float64

	CurrentHighestPrice float64
}

// ResultEntry is a winning entry frozen at auction close.
type ResultEntry struct {
	RankingEntry
	IsWinner bool `json:"is_winner"`
}

// ProductResult is the immutable top-K snapshot taken when a product ends.
type ProductResult struct {
	ProductID string        `json:"product_id"`
	Entries   []ResultEntry `json:"entries"`
	EndedAt   time.Time     `json:"ended_at"`
	Digest    string        `json:"digest"`
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
