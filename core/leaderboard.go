package core

import (
	"sync/atomic"

	"github.com/google/btree"
)

const leaderboardDegree = 32

// Leaderboard keeps one bid per bidder ordered by RanksBefore.
//
// Writes (UpsertBid, Load) must be serialized by the caller. Reads go through an immutable
// snapshot published after every write, so readers never observe a half-applied bid and
// never wait for a writer.
type Leaderboard struct {
	tree     *btree.BTreeG[Bid]
	byBidder map[string]Bid
	highest  float64

	snapshot atomic.Pointer[Snapshot]
}

// Snapshot is a point-in-time ranking. It must not be modified.
type Snapshot struct {
	Entries      []RankingEntry
	HighestPrice float64
	index        map[string]int
}

func NewLeaderboard() *Leaderboard {
	lb := &Leaderboard{
		tree:     btree.NewG[Bid](leaderboardDegree, RanksBefore),
		byBidder: make(map[string]Bid),
	}
	lb.snapshot.Store(&Snapshot{index: map[string]int{}})
	return lb
}

// UpsertBid inserts the bid or replaces the bidder's previous one and returns the
// full updated ranking.
func (lb *Leaderboard) UpsertBid(bid Bid) []RankingEntry {
	lb.put(bid)
	return lb.publish().Entries
}

// Load replaces the contents with the latest bid per bidder from bids, and seeds
// the highest price.
func (lb *Leaderboard) Load(bids []Bid, highestPrice float64) {
	lb.tree.Clear(false)
	lb.byBidder = make(map[string]Bid, len(bids))
	lb.highest = highestPrice
	for _, bid := range LatestBidPerBidder(bids) {
		lb.put(bid)
	}
	lb.publish()
}

func (lb *Leaderboard) put(bid Bid) {
	if prev, ok := lb.byBidder[bid.BidderID]; ok {
		lb.tree.Delete(prev)
	}
	lb.tree.ReplaceOrInsert(bid)
	lb.byBidder[bid.BidderID] = bid

	if bid.Price > lb.highest {
		lb.highest = bid.Price
	}
}

// publish re-ranks in O(n) and swaps the snapshot.
func (lb *Leaderboard) publish() *Snapshot {
	snap := &Snapshot{
		Entries:      make([]RankingEntry, 0, lb.tree.Len()),
		HighestPrice: lb.highest,
		index:        make(map[string]int, lb.tree.Len()),
	}
	lb.tree.Ascend(func(bid Bid) bool {
		snap.index[bid.BidderID] = len(snap.Entries)
		snap.Entries = append(snap.Entries, entryFor(bid, len(snap.Entries)+1))
		return true
	})
	lb.snapshot.Store(snap)
	return snap
}

// Snapshot returns the latest published ranking.
func (lb *Leaderboard) Snapshot() *Snapshot {
	return lb.snapshot.Load()
}

// TopK returns up to k leading entries.
func (lb *Leaderboard) TopK(k int) []RankingEntry {
	return lb.Snapshot().TopK(k)
}

// RankOf returns the bidder's entry at its full position, which may be beyond K.
func (lb *Leaderboard) RankOf(bidderID string) (RankingEntry, bool) {
	return lb.Snapshot().RankOf(bidderID)
}

// HighestPrice returns the largest price ever accepted.
func (lb *Leaderboard) HighestPrice() float64 {
	return lb.Snapshot().HighestPrice
}

// Len returns the number of bidders.
func (lb *Leaderboard) Len() int {
	return len(lb.Snapshot().Entries)
}

func (s *Snapshot) TopK(k int) []RankingEntry {
	if k < 0 {
		k = 0
	}
	if k > len(s.Entries) {
		k = len(s.Entries)
	}
	top := make([]RankingEntry, k)
	copy(top, s.Entries[:k])
	return top
}

func (s *Snapshot) RankOf(bidderID string) (RankingEntry, bool) {
	i, ok := s.index[bidderID]
	if !ok {
		return RankingEntry{}, false
	}
	return s.Entries[i], true
}

// Standings returns the top k entries with the winning threshold.
func (s *Snapshot) Standings(k int) Standings {
	top := s.TopK(k)
	st := Standings{
		Entries:             top,
		CurrentHighestPrice: s.HighestPrice,
	}
	if k > 0 && len(top) == k {
		threshold := top[k-1].Score
		st.ThresholdScore = &threshold
	}
	return st
}
