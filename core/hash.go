package core

import (
	"crypto/sha256"
	"fmt"
)

// ComputeResultDigest fingerprints a frozen result so viewers can compare results
// fetched over different connections.
//
// Formula: SHA256(product_id + "|" + rank:bidder:price:score for each entry, "|"-joined)
//
// Price and score are formatted to exactly 4 decimal places, matching scoring precision.
func ComputeResultDigest(productID string, entries []ResultEntry) string {
	data := productID
	for _, entry := range entries {
		data += fmt.Sprintf("|%d:%s:%.4f:%.4f", entry.Rank, entry.BidderID, entry.Price, entry.Score)
	}
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}
