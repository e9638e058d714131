package store

import (
	"context"
	"sort"
	"sync"

	"github.com/cloudx-io/slotauction/core"
)

// MemoryRepository keeps everything in process memory. Nothing survives a restart.
type MemoryRepository struct {
	mu       sync.RWMutex
	products map[string]core.Product
	bids     map[string][]core.Bid
	results  map[string]core.ProductResult
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		products: make(map[string]core.Product),
		bids:     make(map[string][]core.Bid),
		results:  make(map[string]core.ProductResult),
	}
}

func (r *MemoryRepository) SaveProduct(_ context.Context, p core.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ID] = p
	return nil
}

func (r *MemoryRepository) ListProducts(_ context.Context) ([]core.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	products := make([]core.Product, 0, len(r.products))
	for _, p := range r.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })
	return products, nil
}

func (r *MemoryRepository) AppendBid(_ context.Context, bid core.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bids[bid.ProductID] = append(r.bids[bid.ProductID], bid)
	return nil
}

func (r *MemoryRepository) ListBids(_ context.Context, productID string) ([]core.Bid, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bids := make([]core.Bid, len(r.bids[productID]))
	copy(bids, r.bids[productID])
	return bids, nil
}

func (r *MemoryRepository) SaveResult(_ context.Context, result core.ProductResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.results[result.ProductID]; !exists {
		r.results[result.ProductID] = result
	}
	return nil
}

func (r *MemoryRepository) LoadResult(_ context.Context, productID string) (core.ProductResult, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, ok := r.results[productID]
	return result, ok, nil
}

func (r *MemoryRepository) Close() error { return nil }
