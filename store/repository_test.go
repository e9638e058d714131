package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/slotauction/core"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleProduct(id string) core.Product {
	return core.Product{
		ID:           id,
		Title:        "Limited edition",
		BasePrice:    1000,
		K:            2,
		StartTime:    start,
		EndTime:      start.Add(time.Hour),
		Coefficients: core.DefaultCoefficients,
		Status:       core.StatusNotStarted,
	}
}

func sampleBid(productID, bidder string, price float64, seq uint64) core.Bid {
	return core.Bid{
		ID:           bidder + "-bid",
		ProductID:    productID,
		BidderID:     bidder,
		Display:      core.RedactBidderName(bidder),
		Price:        price,
		Weight:       1,
		ReactionTime: int64(seq) * 10,
		SubmittedAt:  start.Add(time.Duration(seq) * time.Millisecond),
		Seq:          seq,
		Score:        price,
	}
}

func repositories(t *testing.T) map[string]Repository {
	t.Helper()
	boltRepo, err := OpenBolt(filepath.Join(t.TempDir(), "auction.db"))
	assert.Nil(t, err)
	t.Cleanup(func() { _ = boltRepo.Close() })

	return map[string]Repository{
		"memory": NewMemoryRepository(),
		"bolt":   boltRepo,
	}
}

func TestRepository_Products(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			check.Nil(t, repo.SaveProduct(ctx, sampleProduct("p2")))
			check.Nil(t, repo.SaveProduct(ctx, sampleProduct("p1")))

			updated := sampleProduct("p1")
			updated.Status = core.StatusActive
			updated.CurrentHighestPrice = 1500
			check.Nil(t, repo.SaveProduct(ctx, updated))

			products, err := repo.ListProducts(ctx)
			check.Nil(t, err)
			check.Equal(t, 2, len(products))
			check.Equal(t, "p1", products[0].ID)
			check.Equal(t, core.StatusActive, products[0].Status)
			check.Equal(t, 1500.0, products[0].CurrentHighestPrice)
			check.True(t, start.Equal(products[0].StartTime))
		})
	}
}

func TestRepository_BidsListInAppendOrder(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			check.Nil(t, repo.AppendBid(ctx, sampleBid("p1", "a", 1100, 1)))
			check.Nil(t, repo.AppendBid(ctx, sampleBid("p2", "z", 5000, 2)))
			check.Nil(t, repo.AppendBid(ctx, sampleBid("p1", "b", 1200, 3)))

			bids, err := repo.ListBids(ctx, "p1")
			check.Nil(t, err)
			check.Equal(t, 2, len(bids))
			check.Equal(t, "a", bids[0].BidderID)
			check.Equal(t, "b", bids[1].BidderID)
			check.Equal(t, 1200.0, bids[1].Price)

			none, err := repo.ListBids(ctx, "missing")
			check.Nil(t, err)
			check.Equal(t, 0, len(none))
		})
	}
}

func TestRepository_ResultWrittenOnce(t *testing.T) {
	ctx := context.Background()
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			_, found, err := repo.LoadResult(ctx, "p1")
			check.Nil(t, err)
			check.False(t, found)

			first := core.MaterializeResult("p1", []core.RankingEntry{{Rank: 1, BidderID: "a", Price: 1100, Score: 1100}}, start.Add(time.Hour))
			second := core.MaterializeResult("p1", nil, start.Add(2*time.Hour))
			check.Nil(t, repo.SaveResult(ctx, first))
			check.Nil(t, repo.SaveResult(ctx, second))

			loaded, found, err := repo.LoadResult(ctx, "p1")
			check.Nil(t, err)
			check.True(t, found)
			check.Equal(t, first.Digest, loaded.Digest)
			check.Equal(t, 1, len(loaded.Entries))
			check.True(t, loaded.Entries[0].IsWinner)
		})
	}
}

func TestBoltRepository_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "auction.db")

	repo, err := OpenBolt(path)
	assert.Nil(t, err)
	check.Nil(t, repo.SaveProduct(ctx, sampleProduct("p1")))
	check.Nil(t, repo.AppendBid(ctx, sampleBid("p1", "a", 1100, 1)))
	assert.Nil(t, repo.Close())

	reopened, err := OpenBolt(path)
	assert.Nil(t, err)
	defer reopened.Close()

	products, err := reopened.ListProducts(ctx)
	check.Nil(t, err)
	check.Equal(t, 1, len(products))

	bids, err := reopened.ListBids(ctx, "p1")
	check.Nil(t, err)
	check.Equal(t, 1, len(bids))
	check.True(t, bids[0].SubmittedAt.Equal(start.Add(time.Millisecond)))
}

func TestGormModels_RoundTrip(t *testing.T) {
	p := sampleProduct("p1")
	p.CurrentHighestPrice = 1500
	check.Equal(t, p, fromProductModel(toProductModel(p)))

	bid := sampleBid("p1", "a", 1100, 7)
	check.Equal(t, bid, fromBidLogModel(toBidLogModel(bid)))

	result := core.MaterializeResult("p1", []core.RankingEntry{{Rank: 1, BidderID: "a", Price: 1100, Score: 1100, SubmittedAt: start}}, start.Add(time.Hour))
	m, err := toResultModel(result)
	check.Nil(t, err)
	decoded, err := fromResultModel(m)
	check.Nil(t, err)
	check.Equal(t, result, decoded)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "redis"})
	check.Error(t, err)

	repo, err := Open(Config{})
	check.Nil(t, err)
	check.Nil(t, repo.Close())
}
