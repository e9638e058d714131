package auctionapi

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"

	"github.com/cloudx-io/slotauction/core"
)

func TestEncodeMessage(t *testing.T) {
	raw, err := EncodeMessage(TypeBidNotification, "product_1", BidNotification{UserID: "u1", Price: 1500})
	check.Nil(t, err)

	var decoded map[string]any
	check.Nil(t, json.Unmarshal(raw, &decoded))
	check.Equal(t, "bid_notification", decoded["type"])
	check.Equal(t, "product_1", decoded["productId"])

	data, ok := decoded["data"].(map[string]any)
	check.True(t, ok)
	check.Equal(t, "u1", data["userId"])
	check.Equal(t, 1500.0, data["price"])
}

func TestEncodeMessage_NoData(t *testing.T) {
	raw, err := EncodeMessage(TypeSubscribe, "product_1", nil)
	check.Nil(t, err)
	check.Equal(t, `{"type":"subscribe","productId":"product_1"}`, string(raw))
}

func TestRankingResponse_ThresholdOmittedWhenAbsent(t *testing.T) {
	raw, err := json.Marshal(FromStandings(core.Standings{CurrentHighestPrice: 1000}))
	check.Nil(t, err)
	check.Equal(t, `{"rankings":[],"currentHighestPrice":1000}`, string(raw))

	threshold := 1470.6
	raw, err = json.Marshal(RankingResponse{Rankings: []RankingItem{}, ThresholdScore: &threshold})
	check.Nil(t, err)
	check.Equal(t, `{"rankings":[],"thresholdScore":1470.6,"currentHighestPrice":0}`, string(raw))
}

func TestFromResult(t *testing.T) {
	endedAt := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	result := core.MaterializeResult("product_1", []core.RankingEntry{
		{Rank: 1, BidderID: "y", DisplayName: "User_***y", Price: 1500, Score: 1485.5},
	}, endedAt)

	resp := FromResult(result)

	check.Equal(t, 1, len(resp.Results))
	check.Equal(t, ResultItem{Rank: 1, UserID: "y", DisplayName: "User_***y", FinalPrice: 1500, FinalScore: 1485.5, IsWinner: true}, resp.Results[0])
	check.Equal(t, endedAt.UnixMilli(), resp.EndedAt)
	check.Equal(t, result.Digest, resp.Digest)
}

func TestProductPayload_Apply(t *testing.T) {
	alpha, k := 2.0, 3
	payload := ProductPayload{
		Title:     "Limited sneaker",
		BasePrice: 1000,
		K:         &k,
		StartTime: 1_700_000_000_000,
		EndTime:   1_700_000_600_000,
		Alpha:     &alpha,
	}

	p := payload.Apply(core.Product{ID: "product_1", Coefficients: core.DefaultCoefficients})

	check.Equal(t, "product_1", p.ID)
	check.Equal(t, "Limited sneaker", p.Title)
	check.Equal(t, 3, p.K)
	check.Equal(t, int64(1_700_000_000_000), p.StartTime.UnixMilli())
	check.Equal(t, core.Coefficients{Alpha: 2.0, Beta: 0.5, Gamma: 0.3}, p.Coefficients)
	check.Nil(t, p.Validate())

	missing := ProductPayload{}.Apply(core.Product{K: 1})
	check.True(t, missing.StartTime.IsZero())
	check.Error(t, missing.Validate())
}

func TestProductPayload_ApplyK(t *testing.T) {
	zero, two := 0, 2
	tests := []struct {
		name    string
		k       *int
		want    int
		wantErr error
	}{
		{"omitted keeps current", nil, 5, nil},
		{"explicit value", &two, 2, nil},
		{"explicit zero is rejected", &zero, 0, core.ErrInvalidProduct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := ProductPayload{
				Title:     "Limited sneaker",
				BasePrice: 1000,
				K:         tt.k,
				StartTime: 1_700_000_000_000,
				EndTime:   1_700_000_600_000,
			}.Apply(core.Product{ID: "product_1", K: 5, Coefficients: core.DefaultCoefficients})

			check.Equal(t, tt.want, p.K)
			err := p.Validate()
			if tt.wantErr == nil {
				check.Nil(t, err)
			} else {
				check.True(t, errors.Is(err, tt.wantErr))
			}
		})
	}
}

func TestProductPayload_DecodeK(t *testing.T) {
	var omitted, explicit ProductPayload
	assert.Nil(t, json.Unmarshal([]byte(`{"title":"a"}`), &omitted))
	assert.Nil(t, json.Unmarshal([]byte(`{"title":"a","k":0}`), &explicit))

	check.True(t, omitted.K == nil)
	assert.NotNil(t, explicit.K)
	check.Equal(t, 0, *explicit.K)
}
