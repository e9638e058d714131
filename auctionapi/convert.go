package auctionapi

import (
	"time"

	"github.com/cloudx-io/slotauction/core"
)

func FromBid(bid core.Bid) BidView {
	return BidView{
		ID:        bid.ID,
		ProductID: bid.ProductID,
		UserID:    bid.BidderID,
		Price:     bid.Price,
		Timestamp: bid.SubmittedAt.UnixMilli(),
		Score:     bid.Score,
	}
}

func FromRankingEntry(entry core.RankingEntry) RankingItem {
	return RankingItem{
		Rank:         entry.Rank,
		UserID:       entry.BidderID,
		DisplayName:  entry.DisplayName,
		Price:        entry.Price,
		ReactionTime: entry.ReactionTime,
		Weight:       entry.Weight,
		Score:        entry.Score,
	}
}

func FromStandings(st core.Standings) RankingResponse {
	items := make([]RankingItem, len(st.Entries))
	for i, entry := range st.Entries {
		items[i] = FromRankingEntry(entry)
	}
	return RankingResponse{
		Rankings:            items,
		ThresholdScore:      st.ThresholdScore,
		CurrentHighestPrice: st.CurrentHighestPrice,
	}
}

func FromResult(result core.ProductResult) ResultsResponse {
	items := make([]ResultItem, len(result.Entries))
	for i, entry := range result.Entries {
		items[i] = ResultItem{
			Rank:        entry.Rank,
			UserID:      entry.BidderID,
			DisplayName: entry.DisplayName,
			FinalPrice:  entry.Price,
			FinalScore:  entry.Score,
			IsWinner:    entry.IsWinner,
		}
	}
	return ResultsResponse{
		Results: items,
		EndedAt: result.EndedAt.UnixMilli(),
		Digest:  result.Digest,
	}
}

func FromProduct(p core.Product) ProductView {
	return ProductView{
		ID:                  p.ID,
		Title:               p.Title,
		Description:         p.Description,
		BasePrice:           p.BasePrice,
		K:                   p.K,
		StartTime:           p.StartTime.UnixMilli(),
		EndTime:             p.EndTime.UnixMilli(),
		Status:              string(p.Status),
		CurrentHighestPrice: p.CurrentHighestPrice,
		Alpha:               p.Coefficients.Alpha,
		Beta:                p.Coefficients.Beta,
		Gamma:               p.Coefficients.Gamma,
	}
}

// Apply copies the payload onto p. A k or coefficient missing from the payload keeps p's value.
func (pl ProductPayload) Apply(p core.Product) core.Product {
	p.Title = pl.Title
	p.Description = pl.Description
	p.BasePrice = pl.BasePrice
	if pl.K != nil {
		p.K = *pl.K
	}
	p.StartTime = fromMillis(pl.StartTime)
	p.EndTime = fromMillis(pl.EndTime)
	if pl.Alpha != nil {
		p.Coefficients.Alpha = *pl.Alpha
	}
	if pl.Beta != nil {
		p.Coefficients.Beta = *pl.Beta
	}
	if pl.Gamma != nil {
		p.Coefficients.Gamma = *pl.Gamma
	}
	return p
}

// fromMillis maps 0 to the zero time so missing timestamps fail validation.
func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
