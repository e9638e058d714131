package auctionapi

import (
	"encoding/json"
)

// Client -> server control messages.
const (
	TypeSubscribe         = "subscribe"
	TypeSubscribeRankings = "subscribe_rankings"
)

// Server -> client event messages.
const (
	TypeProductUpdate        = "product_update"
	TypeRankingsUpdate       = "rankings_update"
	TypeBidNotification      = "bid_notification"
	TypeActivityStatusChange = "activity_status_change"
)

// Message is the envelope for every realtime frame in both directions.
type Message struct {
	Type      string          `json:"type"`
	ProductID string          `json:"productId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// EncodeMessage builds a wire frame carrying data.
func EncodeMessage(kind, productID string, data any) ([]byte, error) {
	msg := Message{Type: kind, ProductID: productID}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		msg.Data = raw
	}
	return json.Marshal(msg)
}

// BidRequest is the body of a bid submission.
type BidRequest struct {
	Price float64 `json:"price"`
}

// BidView describes an accepted bid.
type BidView struct {
	ID        string  `json:"id"`
	ProductID string  `json:"productId"`
	UserID    string  `json:"userId"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // Unix ms
	Score     float64 `json:"score"`
}

// BidResponse is returned for an accepted bid, with the bidder's resulting position.
type BidResponse struct {
	Bid     BidView     `json:"bid"`
	Ranking RankingItem `json:"ranking"`
}

type RankingItem struct {
	Rank         int     `json:"rank"`
	UserID       string  `json:"userId"`
	DisplayName  string  `json:"displayName"`
	Price        float64 `json:"price"`
	ReactionTime int64   `json:"reactionTime"`
	Weight       float64 `json:"weight"`
	Score        float64 `json:"score"`
}

// RankingResponse is both the ranking query response and the rankings_update payload.
type RankingResponse struct {
	Rankings []RankingItem `json:"rankings"`

	// ThresholdScore is omitted while fewer than K bidders exist
	ThresholdScore *float64 `json:"thresholdScore,omitempty"`

	CurrentHighestPrice float64 `json:"currentHighestPrice"`
}

type ResultItem struct {
	Rank        int     `json:"rank"`
	UserID      string  `json:"userId"`
	DisplayName string  `json:"displayName"`
	FinalPrice  float64 `json:"finalPrice"`
	FinalScore  float64 `json:"finalScore"`
	IsWinner    bool    `json:"isWinner"`
}

type ResultsResponse struct {
	Results []ResultItem `json:"results"`
	EndedAt int64        `json:"endedAt"`
	Digest  string       `json:"digest"`
}

// ProductPayload is accepted by admin create and update. An omitted k or coefficient falls back
// to the default on create and keeps its current value on update. An explicit k is validated as
// given.
type ProductPayload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	BasePrice   float64  `json:"basePrice"`
	K           *int     `json:"k,omitempty"`
	StartTime   int64    `json:"startTime"` // Unix ms
	EndTime     int64    `json:"endTime"`   // Unix ms
	Alpha       *float64 `json:"alpha,omitempty"`
	Beta        *float64 `json:"beta,omitempty"`
	Gamma       *float64 `json:"gamma,omitempty"`
}

type StatusPayload struct {
	Status string `json:"status"`
}

// ProductView is a product as seen by API callers and in product_update events.
type ProductView struct {
	ID                  string  `json:"id"`
	Title               string  `json:"title"`
	Description         string  `json:"description"`
	BasePrice           float64 `json:"basePrice"`
	K                   int     `json:"k"`
	StartTime           int64   `json:"startTime"`
	EndTime             int64   `json:"endTime"`
	Status              string  `json:"status"`
	CurrentHighestPrice float64 `json:"currentHighestPrice"`
	Alpha               float64 `json:"alpha"`
	Beta                float64 `json:"beta"`
	Gamma               float64 `json:"gamma"`
}

// StatusChange is the activity_status_change payload.
type StatusChange struct {
	Status         string `json:"status"`
	PreviousStatus string `json:"previousStatus"`
	At             int64  `json:"at"`
	ByAdmin        bool   `json:"byAdmin"`
}

// BidNotification is the bid_notification payload.
type BidNotification struct {
	UserID      string  `json:"userId"`
	DisplayName string  `json:"displayName"`
	Price       float64 `json:"price"`
	Score       float64 `json:"score"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}
