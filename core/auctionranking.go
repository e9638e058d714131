package core

import (
	"sort"
)

// RanksBefore reports whether a is ranked ahead of b: higher score first, then the earlier
// submission, then the earlier acceptance sequence. The bidder id keeps the order total.
func RanksBefore(a, b Bid) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	if a.Seq != b.Seq {
		return a.Seq < b.Seq
	}
	return a.BidderID < b.BidderID
}

// supersedes reports whether b replaces a as the bidder's active bid.
func supersedes(b, a Bid) bool {
	if !b.SubmittedAt.Equal(a.SubmittedAt) {
		return b.SubmittedAt.After(a.SubmittedAt)
	}
	return b.Seq > a.Seq
}

// LatestBidPerBidder keeps each bidder's most recent bid, in order of the bidder's first
// appearance in bids.
func LatestBidPerBidder(bids []Bid) []Bid {
	latest := make(map[string]Bid, len(bids))
	order := make([]string, 0, len(bids))

	for _, bid := range bids {
		existing, seen := latest[bid.BidderID]
		if !seen {
			order = append(order, bid.BidderID)
		}
		if !seen || supersedes(bid, existing) {
			latest[bid.BidderID] = bid
		}
	}

	result := make([]Bid, 0, len(order))
	for _, bidder := range order {
		result = append(result, latest[bidder])
	}
	return result
}

// RankBids ranks a batch of bids from scratch. Only the latest bid per bidder takes part.
// The Leaderboard maintains the same order incrementally; RankBids is used when replaying
// stored bids.
func RankBids(bids []Bid) []RankingEntry {
	active := LatestBidPerBidder(bids)

	sort.Slice(active, func(i, j int) bool {
		return RanksBefore(active[i], active[j])
	})

	entries := make([]RankingEntry, len(active))
	for i, bid := range active {
		entries[i] = entryFor(bid, i+1)
	}
	return entries
}

// HighestPrice returns the largest price among bids, including replaced ones.
func HighestPrice(bids []Bid) float64 {
	var highest float64
	for _, bid := range bids {
		if bid.Price > highest {
			highest = bid.Price
		}
	}
	return highest
}

func entryFor(bid Bid, rank int) RankingEntry {
	return RankingEntry{
		Rank:         rank,
		BidderID:     bid.BidderID,
		DisplayName:  bid.Display,
		Price:        bid.Price,
		ReactionTime: bid.ReactionTime,
		Weight:       bid.Weight,
		Score:        bid.Score,
		SubmittedAt:  bid.SubmittedAt,
	}
}
