package broadcast

import (
	"sync"

	"go.uber.org/zap"

	"github.com/cloudx-io/slotauction/auctionapi"
)

// Subscriber receives encoded frames for one product at a time.
type Subscriber interface {
	// Send queues a frame without blocking. It returns false when the frame cannot be
	// delivered, after which the hub drops the subscriber.
	Send(frame []byte) bool

	// Dropped is called once when the hub removes the subscriber after a failed send.
	Dropped()
}

// Hub fans out product events to the subscribers of that product only.
//
// Each product has its own topic with a single drain goroutine, so frames published for a
// product reach every subscriber in publish order while a slow product never delays
// another. Publish never blocks on delivery.
type Hub struct {
	mu      sync.Mutex
	topics  map[string]*topic
	members map[Subscriber]*topic
	closed  bool

	logger *zap.Logger
	wg     sync.WaitGroup
}

type delivery struct {
	frame  []byte
	target Subscriber // nil delivers to every subscriber
}

type topic struct {
	productID string

	mu      sync.Mutex
	subs    map[Subscriber]struct{}
	pending []delivery
	closed  bool

	wake chan struct{}
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.L()
	}
	return &Hub{
		topics:  make(map[string]*topic),
		members: make(map[Subscriber]*topic),
		logger:  logger,
	}
}

// Publish encodes data as a frame of the given kind and queues it for the product's subscribers.
func (h *Hub) Publish(productID, kind string, data any) {
	frame, err := auctionapi.EncodeMessage(kind, productID, data)
	if err != nil {
		h.logger.Error("broadcast_encode_failed", zap.String("product_id", productID), zap.String("type", kind), zap.Error(err))
		return
	}

	h.mu.Lock()
	t := h.topics[productID]
	h.mu.Unlock()
	if t == nil {
		return // nobody has ever subscribed
	}
	t.enqueue(delivery{frame: frame})
}

// Subscribe moves sub to productID, leaving any other product first. The initial frames
// are delivered to sub alone, ordered with the product's other events.
func (h *Hub) Subscribe(sub Subscriber, productID string, initial ...[]byte) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	previous := h.members[sub]
	t := h.topicLocked(productID)
	h.members[sub] = t
	h.mu.Unlock()

	if previous != nil && previous != t {
		previous.remove(sub)
	}
	t.add(sub)
	for _, frame := range initial {
		t.enqueue(delivery{frame: frame, target: sub})
	}
}

// Unsubscribe removes sub from whatever product it follows.
func (h *Hub) Unsubscribe(sub Subscriber) {
	h.mu.Lock()
	t := h.members[sub]
	delete(h.members, sub)
	h.mu.Unlock()

	if t != nil {
		t.remove(sub)
	}
}

// SubscriberCount returns how many subscribers follow productID.
func (h *Hub) SubscriberCount(productID string) int {
	h.mu.Lock()
	t := h.topics[productID]
	h.mu.Unlock()
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// Close stops every drain goroutine. Pending frames are discarded.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	topics := make([]*topic, 0, len(h.topics))
	for _, t := range h.topics {
		topics = append(topics, t)
	}
	h.mu.Unlock()

	for _, t := range topics {
		t.close()
	}
	h.wg.Wait()
}

func (h *Hub) topicLocked(productID string) *topic {
	if t, ok := h.topics[productID]; ok {
		return t
	}
	t := &topic{
		productID: productID,
		subs:      make(map[Subscriber]struct{}),
		wake:      make(chan struct{}, 1),
	}
	h.topics[productID] = t
	h.wg.Add(1)
	go h.drain(t)
	return t
}

func (h *Hub) drain(t *topic) {
	defer h.wg.Done()
	for range t.wake {
		t.mu.Lock()
		batch := t.pending
		t.pending = nil
		closed := t.closed
		t.mu.Unlock()

		if closed {
			return
		}
		for _, d := range batch {
			h.deliver(t, d)
		}
	}
}

func (h *Hub) deliver(t *topic, d delivery) {
	t.mu.Lock()
	var targets []Subscriber
	if d.target != nil {
		if _, ok := t.subs[d.target]; ok {
			targets = []Subscriber{d.target}
		}
	} else {
		targets = make([]Subscriber, 0, len(t.subs))
		for sub := range t.subs {
			targets = append(targets, sub)
		}
	}
	t.mu.Unlock()

	for _, sub := range targets {
		if sub.Send(d.frame) {
			continue
		}
		h.logger.Warn("subscriber_dropped", zap.String("product_id", t.productID))
		h.drop(t, sub)
	}
}

func (h *Hub) drop(t *topic, sub Subscriber) {
	h.mu.Lock()
	if h.members[sub] == t {
		delete(h.members, sub)
	}
	h.mu.Unlock()

	if t.remove(sub) {
		sub.Dropped()
	}
}

func (t *topic) add(sub Subscriber) {
	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()
}

// remove reports whether sub was subscribed.
func (t *topic) remove(sub Subscriber) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.subs[sub]; !ok {
		return false
	}
	delete(t.subs, sub)
	return true
}

func (t *topic) enqueue(d delivery) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.pending = append(t.pending, d)

	select {
	case t.wake <- struct{}{}:
	default: // drainer already signalled
	}
}

func (t *topic) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	t.pending = nil
	close(t.wake)
}
