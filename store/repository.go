package store

import (
	"context"
	"fmt"

	"github.com/cloudx-io/slotauction/core"
)

// Repository persists products, accepted bids and frozen results.
type Repository interface {
	SaveProduct(ctx context.Context, p core.Product) error
	ListProducts(ctx context.Context) ([]core.Product, error)

	// AppendBid records an accepted bid. Bids are never updated or deleted.
	AppendBid(ctx context.Context, bid core.Bid) error
	ListBids(ctx context.Context, productID string) ([]core.Bid, error)

	// SaveResult stores a product's result once; later calls for the same product are ignored.
	SaveResult(ctx context.Context, result core.ProductResult) error
	LoadResult(ctx context.Context, productID string) (core.ProductResult, bool, error)

	Close() error
}

// Config selects and configures a repository.
type Config struct {
	Driver      string // memory, bolt or postgres
	BoltPath    string
	PostgresDSN string
}

// Open returns the repository named by cfg.Driver.
func Open(cfg Config) (Repository, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryRepository(), nil
	case "bolt":
		return OpenBolt(cfg.BoltPath)
	case "postgres":
		return OpenPostgres(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
