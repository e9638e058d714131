package auction

import (
	"context"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/cloudx-io/slotauction/core"
	"github.com/cloudx-io/slotauction/store"
)

const bidLogTimeout = 5 * time.Second

// BidLogger writes accepted bids to the repository on a bounded worker pool. A failed
// write is logged and never reported back to the bidder.
type BidLogger struct {
	pool   *ants.Pool
	repo   store.Repository
	logger *zap.Logger
}

func NewBidLogger(repo store.Repository, workers int, logger *zap.Logger) (*BidLogger, error) {
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &BidLogger{pool: pool, repo: repo, logger: logger}, nil
}

// Submit queues bid for persistence. It blocks only while every worker is busy.
func (l *BidLogger) Submit(bid core.Bid) {
	err := l.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), bidLogTimeout)
		defer cancel()
		if err := l.repo.AppendBid(ctx, bid); err != nil {
			l.logger.Error("bid_log_failed",
				zap.String("product_id", bid.ProductID),
				zap.String("bid_id", bid.ID),
				zap.Error(err))
		}
	})
	if err != nil {
		l.logger.Error("bid_log_rejected", zap.String("bid_id", bid.ID), zap.Error(err))
	}
}

// Close waits up to timeout for queued writes to finish.
func (l *BidLogger) Close(timeout time.Duration) error {
	return l.pool.ReleaseTimeout(timeout)
}
