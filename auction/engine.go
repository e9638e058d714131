package auction

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cloudx-io/slotauction/auctionapi"
	"github.com/cloudx-io/slotauction/core"
	"github.com/cloudx-io/slotauction/store"
)

// Options configures an Engine. Zero values select defaults.
type Options struct {
	Scorer core.Scorer
	Clock  Clock
	Sink   EventSink
	Store  store.Repository
	Logger *zap.Logger

	DefaultK            int
	DefaultCoefficients *core.Coefficients

	// NotifyBids publishes a bid_notification for every accepted bid
	NotifyBids bool

	BidLogWorkers int
}

// Engine owns every product's lifecycle, leaderboard and result.
//
// Each product is guarded by its own mutex. Lifecycle checks, bid admission and leaderboard
// mutation for a product all happen under that mutex, so a bid can never be admitted while
// its product is closing. Reads use published snapshots and take no product lock.
type Engine struct {
	scorer core.Scorer
	clock  Clock
	sink   EventSink
	repo   store.Repository
	bidLog *BidLogger
	logger *zap.Logger

	defaultK     int
	coefficients core.Coefficients
	notifyBids   bool

	mu       sync.RWMutex
	products map[string]*productState
	creating map[string]struct{} // ids reserved while their first save is in flight

	seq atomic.Uint64
}

type productState struct {
	mu      sync.Mutex
	product core.Product // guarded by mu
	board   *core.Leaderboard

	view   atomic.Pointer[core.Product]
	result atomic.Pointer[core.ProductResult]
}

func NewEngine(opts Options) (*Engine, error) {
	e := &Engine{
		scorer:       opts.Scorer,
		clock:        opts.Clock,
		sink:         opts.Sink,
		repo:         opts.Store,
		logger:       opts.Logger,
		defaultK:     opts.DefaultK,
		coefficients: core.DefaultCoefficients,
		notifyBids:   opts.NotifyBids,
		products:     make(map[string]*productState),
		creating:     make(map[string]struct{}),
	}
	if e.scorer == nil {
		e.scorer = core.LinearScorer{}
	}
	if e.clock == nil {
		e.clock = SystemClock{}
	}
	if e.sink == nil {
		e.sink = discardSink{}
	}
	if e.repo == nil {
		e.repo = store.NewMemoryRepository()
	}
	if e.logger == nil {
		e.logger = zap.L()
	}
	if e.defaultK < 1 {
		e.defaultK = 5
	}
	if opts.DefaultCoefficients != nil {
		e.coefficients = *opts.DefaultCoefficients
	}

	workers := opts.BidLogWorkers
	if workers < 1 {
		workers = 4
	}
	bidLog, err := NewBidLogger(e.repo, workers, e.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create bid log pool: %w", err)
	}
	e.bidLog = bidLog
	return e, nil
}

// Restore loads products, their bids and frozen results from the repository.
func (e *Engine) Restore(ctx context.Context) error {
	products, err := e.repo.ListProducts(ctx)
	if err != nil {
		return fmt.Errorf("failed to load products: %w", err)
	}

	for _, p := range products {
		bids, err := e.repo.ListBids(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("failed to load bids for %s: %w", p.ID, err)
		}

		st := &productState{board: core.NewLeaderboard()}
		highest := core.HighestPrice(bids)
		if p.CurrentHighestPrice > highest {
			highest = p.CurrentHighestPrice
		}
		st.board.Load(bids, highest)
		p.CurrentHighestPrice = highest
		st.product = p
		st.publishView()

		for _, bid := range bids {
			if bid.Seq > e.seq.Load() {
				e.seq.Store(bid.Seq)
			}
		}

		result, found, err := e.repo.LoadResult(ctx, p.ID)
		if err != nil {
			return fmt.Errorf("failed to load result for %s: %w", p.ID, err)
		}
		if found {
			st.result.Store(&result)
		}

		e.mu.Lock()
		e.products[p.ID] = st
		e.mu.Unlock()

		e.logger.Info("product_restored",
			zap.String("product_id", p.ID),
			zap.String("status", string(p.Status)),
			zap.Int("bidders", st.board.Len()))
	}
	return nil
}

// ProductDefaults returns a product carrying the engine's default K and coefficients, for
// callers that build a new product from a partial payload.
func (e *Engine) ProductDefaults() core.Product {
	return core.Product{K: e.defaultK, Coefficients: e.coefficients}
}

// CreateProduct registers a new product. The product becomes visible to readers and bidders
// only after it has been saved.
func (e *Engine) CreateProduct(ctx context.Context, p core.Product) (core.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.Status = core.StatusNotStarted
	p.CurrentHighestPrice = 0
	if err := p.Validate(); err != nil {
		return core.Product{}, err
	}

	e.mu.Lock()
	_, exists := e.products[p.ID]
	_, pending := e.creating[p.ID]
	if exists || pending {
		e.mu.Unlock()
		return core.Product{}, fmt.Errorf("%w: product %s already exists", core.ErrInvalidProduct, p.ID)
	}
	e.creating[p.ID] = struct{}{}
	e.mu.Unlock()

	if err := e.repo.SaveProduct(ctx, p); err != nil {
		e.mu.Lock()
		delete(e.creating, p.ID)
		e.mu.Unlock()
		return core.Product{}, fmt.Errorf("failed to save product: %w", err)
	}

	st := &productState{board: core.NewLeaderboard(), product: p}
	st.publishView()

	st.mu.Lock()
	defer st.mu.Unlock()

	e.mu.Lock()
	delete(e.creating, p.ID)
	e.products[p.ID] = st
	e.mu.Unlock()
	e.logger.Info("product_created", zap.String("product_id", p.ID), zap.Int("k", p.K))

	if !e.advanceLocked(ctx, st, e.clock.Now()) {
		e.sink.Publish(p.ID, auctionapi.TypeProductUpdate, auctionapi.FromProduct(st.product))
	}
	return st.product, nil
}

// UpdateProduct applies an admin edit. Status and the highest price are not editable here,
// and accepted bids keep the score they were accepted with.
func (e *Engine) UpdateProduct(ctx context.Context, id string, edit func(core.Product) core.Product) (core.Product, error) {
	st, err := e.state(id)
	if err != nil {
		return core.Product{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	updated := edit(st.product)
	updated.ID = st.product.ID
	updated.Status = st.product.Status
	updated.CurrentHighestPrice = st.product.CurrentHighestPrice
	if err := updated.Validate(); err != nil {
		return core.Product{}, err
	}
	if err := e.repo.SaveProduct(ctx, updated); err != nil {
		return core.Product{}, fmt.Errorf("failed to save product: %w", err)
	}
	st.product = updated
	st.publishView()

	if !e.advanceLocked(ctx, st, e.clock.Now()) {
		e.sink.Publish(id, auctionapi.TypeProductUpdate, auctionapi.FromProduct(st.product))
	}
	return st.product, nil
}

// SetStatus is the admin override path of the lifecycle. Re-applying the current status is a no-op.
func (e *Engine) SetStatus(ctx context.Context, id string, to core.Status) (core.Product, error) {
	st, err := e.state(id)
	if err != nil {
		return core.Product{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if err := core.ValidateOverride(st.product.Status, to); err != nil {
		return core.Product{}, err
	}
	e.transitionLocked(ctx, st, to, e.clock.Now(), true)
	return st.product, nil
}

// PlaceBid admits a bid for bidder on product id and returns the accepted bid with the
// bidder's resulting position.
//
// Validation order:
//  1. Product exists (ErrProductNotFound)
//  2. Product is active after a lifecycle re-check at the current time (ErrAuctionNotActive)
//  3. Price is at least the base price (ErrPriceTooLow)
func (e *Engine) PlaceBid(ctx context.Context, id string, bidder core.Bidder, price float64) (core.Bid, core.RankingEntry, error) {
	st, err := e.state(id)
	if err != nil {
		return core.Bid{}, core.RankingEntry{}, err
	}

	bid, entry, err := e.admit(ctx, st, bidder, price)
	if err != nil {
		return core.Bid{}, core.RankingEntry{}, err
	}

	// Persisted after the product lock is released
	e.bidLog.Submit(bid)

	e.logger.Debug("bid_accepted",
		zap.String("product_id", id),
		zap.String("bidder_id", bidder.ID),
		zap.Float64("price", price),
		zap.Float64("score", bid.Score),
		zap.Int("rank", entry.Rank))
	return bid, entry, nil
}

func (e *Engine) admit(ctx context.Context, st *productState, bidder core.Bidder, price float64) (core.Bid, core.RankingEntry, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	id := st.product.ID
	now := e.clock.Now()
	e.advanceLocked(ctx, st, now)
	if st.product.Status != core.StatusActive {
		return core.Bid{}, core.RankingEntry{}, fmt.Errorf("%w: product %s is %s", core.ErrAuctionNotActive, id, st.product.Status)
	}

	bid, err := core.NewBid(uuid.NewString(), st.product, bidder, price, now, e.seq.Add(1), e.scorer)
	if err != nil {
		return core.Bid{}, core.RankingEntry{}, err
	}

	previousHigh := st.board.HighestPrice()
	st.board.UpsertBid(bid)
	snap := st.board.Snapshot()
	entry, _ := snap.RankOf(bidder.ID)

	// Events are published under the product lock so their order matches the mutations
	e.sink.Publish(id, auctionapi.TypeRankingsUpdate, auctionapi.FromStandings(snap.Standings(st.product.K)))
	if snap.HighestPrice > previousHigh {
		st.product.CurrentHighestPrice = snap.HighestPrice
		st.publishView()
		e.sink.Publish(id, auctionapi.TypeProductUpdate, auctionapi.FromProduct(st.product))
	}
	if e.notifyBids {
		e.sink.Publish(id, auctionapi.TypeBidNotification, auctionapi.BidNotification{
			UserID:      bid.BidderID,
			DisplayName: bid.Display,
			Price:       bid.Price,
			Score:       bid.Score,
		})
	}
	return bid, entry, nil
}

// Tick re-evaluates every product's lifecycle at now.
func (e *Engine) Tick(ctx context.Context, now time.Time) {
	e.mu.RLock()
	states := make([]*productState, 0, len(e.products))
	for _, st := range e.products {
		states = append(states, st)
	}
	e.mu.RUnlock()

	for _, st := range states {
		st.mu.Lock()
		e.advanceLocked(ctx, st, now)
		st.mu.Unlock()
	}
}

// Run ticks the lifecycle on sched until ctx is cancelled.
func (e *Engine) Run(ctx context.Context, sched Scheduler) error {
	if err := sched.Start(ctx, func(time.Time) { e.Tick(ctx, e.clock.Now()) }); err != nil {
		return fmt.Errorf("failed to start lifecycle scheduler: %w", err)
	}
	e.logger.Info("lifecycle_scheduler_started")
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return sched.Stop(stopCtx)
}

// Close flushes pending bid log writes.
func (e *Engine) Close() error {
	return e.bidLog.Close(5 * time.Second)
}

// Product returns the latest view of a product.
func (e *Engine) Product(id string) (core.Product, error) {
	st, err := e.state(id)
	if err != nil {
		return core.Product{}, err
	}
	return *st.view.Load(), nil
}

// Products lists every product ordered by start time.
func (e *Engine) Products() []core.Product {
	e.mu.RLock()
	products := make([]core.Product, 0, len(e.products))
	for _, st := range e.products {
		products = append(products, *st.view.Load())
	}
	e.mu.RUnlock()

	sort.Slice(products, func(i, j int) bool {
		if !products[i].StartTime.Equal(products[j].StartTime) {
			return products[i].StartTime.Before(products[j].StartTime)
		}
		return products[i].ID < products[j].ID
	})
	return products
}

// Rankings returns the current top-K with the winning threshold.
func (e *Engine) Rankings(id string) (core.Standings, error) {
	st, err := e.state(id)
	if err != nil {
		return core.Standings{}, err
	}
	return st.board.Snapshot().Standings(st.view.Load().K), nil
}

// RankOf returns a bidder's full position on a product's leaderboard.
func (e *Engine) RankOf(id, bidderID string) (core.RankingEntry, bool, error) {
	st, err := e.state(id)
	if err != nil {
		return core.RankingEntry{}, false, err
	}
	entry, ok := st.board.RankOf(bidderID)
	return entry, ok, nil
}

// WithSnapshot calls fn with the product and its current standings while holding the product
// lock. No event for the product is published while fn runs, so a subscription registered
// inside fn sees exactly the events that follow the snapshot.
func (e *Engine) WithSnapshot(id string, fn func(p core.Product, standings core.Standings)) error {
	st, err := e.state(id)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	fn(st.product, st.board.Snapshot().Standings(st.product.K))
	return nil
}

// Results returns the result frozen when the product ended.
func (e *Engine) Results(id string) (core.ProductResult, error) {
	st, err := e.state(id)
	if err != nil {
		return core.ProductResult{}, err
	}
	result := st.result.Load()
	if result == nil {
		return core.ProductResult{}, fmt.Errorf("%w: product %s is %s", core.ErrAuctionNotEnded, id, st.view.Load().Status)
	}
	return *result, nil
}

func (e *Engine) state(id string) (*productState, error) {
	e.mu.RLock()
	st, ok := e.products[id]
	e.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrProductNotFound, id)
	}
	return st, nil
}

// advanceLocked applies the time-driven transition, if any, and reports whether one
// happened. Callers hold st.mu.
func (e *Engine) advanceLocked(ctx context.Context, st *productState, now time.Time) bool {
	p := st.product
	target := core.TimedStatus(p.Status, p.StartTime, p.EndTime, now)
	if target == p.Status {
		return false
	}
	e.transitionLocked(ctx, st, target, now, false)
	return true
}

// transitionLocked moves the product to status `to`. Entering ended freezes the result the
// first time only. Callers hold st.mu.
func (e *Engine) transitionLocked(ctx context.Context, st *productState, to core.Status, now time.Time, byAdmin bool) {
	from := st.product.Status
	if from == to {
		return
	}
	st.product.Status = to
	st.publishView()

	id := st.product.ID
	if to == core.StatusEnded && st.result.Load() == nil {
		result := core.MaterializeResult(id, st.board.TopK(st.product.K), now)
		st.result.Store(&result)
		if err := e.repo.SaveResult(ctx, result); err != nil {
			e.logger.Error("result_save_failed", zap.String("product_id", id), zap.Error(err))
		}
	}
	if err := e.repo.SaveProduct(ctx, st.product); err != nil {
		e.logger.Error("product_save_failed", zap.String("product_id", id), zap.Error(err))
	}

	e.logger.Info("status_changed",
		zap.String("product_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.Bool("by_admin", byAdmin))

	e.sink.Publish(id, auctionapi.TypeActivityStatusChange, auctionapi.StatusChange{
		Status:         string(to),
		PreviousStatus: string(from),
		At:             now.UnixMilli(),
		ByAdmin:        byAdmin,
	})
	e.sink.Publish(id, auctionapi.TypeProductUpdate, auctionapi.FromProduct(st.product))
}

func (st *productState) publishView() {
	p := st.product
	st.view.Store(&p)
}
