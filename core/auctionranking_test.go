package core

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func bidAt(bidder string, score, price float64, offset time.Duration, seq uint64) Bid {
	return Bid{
		ID:          bidder + "-" + offset.String(),
		BidderID:    bidder,
		Price:       price,
		Weight:      1,
		Score:       score,
		SubmittedAt: t0.Add(offset),
		Seq:         seq,
	}
}

func TestRankBids_OrderedByScore(t *testing.T) {
	bids := []Bid{
		bidAt("bidder_a", 1470.6, 1500, 100*time.Millisecond, 1),
		bidAt("bidder_b", 1485.5, 1500, 50*time.Millisecond, 2),
		bidAt("bidder_c", 1200.0, 1250, 10*time.Millisecond, 3),
	}

	entries := RankBids(bids)

	check.Equal(t, 3, len(entries))
	check.Equal(t, "bidder_b", entries[0].BidderID) // Highest (1485.5)
	check.Equal(t, "bidder_a", entries[1].BidderID)
	check.Equal(t, "bidder_c", entries[2].BidderID) // Lowest (1200.0)
	for i, entry := range entries {
		check.Equal(t, i+1, entry.Rank)
	}
}

func TestRankBids_EmptyBids(t *testing.T) {
	entries := RankBids(nil)

	check.NotNil(t, entries)
	check.Equal(t, 0, len(entries))
}

func TestRankBids_TieBrokenByEarlierSubmission(t *testing.T) {
	bids := []Bid{
		bidAt("late", 1000, 1000, 20*time.Millisecond, 1),
		bidAt("early", 1000, 1000, 10*time.Millisecond, 2),
	}

	entries := RankBids(bids)

	check.Equal(t, "early", entries[0].BidderID)
	check.Equal(t, "late", entries[1].BidderID)
}

func TestRankBids_SameInstantTieBrokenBySequence(t *testing.T) {
	bids := []Bid{
		bidAt("second", 1000, 1000, 0, 8),
		bidAt("first", 1000, 1000, 0, 7),
	}

	entries := RankBids(bids)

	check.Equal(t, "first", entries[0].BidderID)
	check.Equal(t, "second", entries[1].BidderID)
}

func TestRankBids_LatestBidPerBidderWins(t *testing.T) {
	bids := []Bid{
		bidAt("bidder_a", 2000, 2000, 10*time.Millisecond, 1),
		bidAt("bidder_b", 1500, 1500, 20*time.Millisecond, 2),
		bidAt("bidder_a", 1100, 1100, 30*time.Millisecond, 3), // re-bid replaces, even when lower
	}

	entries := RankBids(bids)

	check.Equal(t, 2, len(entries))
	check.Equal(t, "bidder_b", entries[0].BidderID)
	check.Equal(t, "bidder_a", entries[1].BidderID)
	check.Equal(t, 1100.0, entries[1].Price)
	check.Equal(t, 2000.0, HighestPrice(bids))
}

func TestLatestBidPerBidder_KeepsFirstAppearanceOrder(t *testing.T) {
	bids := []Bid{
		bidAt("bidder_b", 1, 1, 0, 1),
		bidAt("bidder_a", 1, 1, 0, 2),
		bidAt("bidder_b", 2, 2, time.Millisecond, 3),
	}

	latest := LatestBidPerBidder(bids)

	check.Equal(t, 2, len(latest))
	check.Equal(t, "bidder_b", latest[0].BidderID)
	check.Equal(t, uint64(3), latest[0].Seq)
	check.Equal(t, "bidder_a", latest[1].BidderID)
}
