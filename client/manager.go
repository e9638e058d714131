// Package client implements the viewer side of the realtime channel: one subscription per
// viewer, bounded reconnect, and results retrieval.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cloudx-io/slotauction/auctionapi"
	"github.com/cloudx-io/slotauction/core"
)

type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// Conn is an open realtime connection.
type Conn interface {
	WriteJSON(v any) error
	ReadJSON(v any) error
	Close() error
}

// Dialer opens an authenticated connection. A rejected credential is reported as
// core.ErrAuthenticationRequired.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

type Options struct {
	Dialer      Dialer
	BaseDelay   time.Duration
	MaxAttempts int

	// After replaces time.After in tests
	After func(time.Duration) <-chan time.Time

	OnEvent  func(auctionapi.Message)
	OnStatus func(Status, error)
	Logger   *zap.Logger
}

// Manager holds a viewer's single subscription and keeps it alive across disconnects.
type Manager struct {
	dialer      Dialer
	baseDelay   time.Duration
	maxAttempts int
	after       func(time.Duration) <-chan time.Time
	onEvent     func(auctionapi.Message)
	onStatus    func(Status, error)
	logger      *zap.Logger

	mu       sync.Mutex
	product  string
	status   Status
	switched chan struct{}
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		dialer:      opts.Dialer,
		baseDelay:   opts.BaseDelay,
		maxAttempts: opts.MaxAttempts,
		after:       opts.After,
		onEvent:     opts.OnEvent,
		onStatus:    opts.OnStatus,
		logger:      opts.Logger,
		status:      StatusDisconnected,
		switched:    make(chan struct{}, 1),
	}
	if m.baseDelay <= 0 {
		m.baseDelay = time.Second
	}
	if m.maxAttempts < 1 {
		m.maxAttempts = 5
	}
	if m.after == nil {
		m.after = time.After
	}
	if m.onEvent == nil {
		m.onEvent = func(auctionapi.Message) {}
	}
	if m.onStatus == nil {
		m.onStatus = func(Status, error) {}
	}
	if m.logger == nil {
		m.logger = zap.L()
	}
	return m
}

// Run connects and follows productID until ctx is cancelled. It returns nil on cancellation
// and an error when the connection is given up: core.ErrAuthenticationRequired right away,
// core.ErrSubscriptionLost once every reconnect attempt failed.
func (m *Manager) Run(ctx context.Context, productID string) error {
	m.mu.Lock()
	m.product = productID
	m.mu.Unlock()

	backoff := Backoff{Base: m.baseDelay, MaxAttempts: m.maxAttempts}
	for {
		m.setStatus(StatusConnecting, nil)
		conn, err := m.dialer.Dial(ctx)
		switch {
		case ctx.Err() != nil:
			if conn != nil {
				_ = conn.Close()
			}
			m.setStatus(StatusDisconnected, nil)
			return nil
		case errors.Is(err, core.ErrAuthenticationRequired):
			m.logger.Error("ws_auth_rejected", zap.Error(err))
			m.setStatus(StatusError, err)
			return err
		case err != nil:
			m.logger.Warn("ws_connect_failed", zap.Int("attempt", backoff.Attempts()), zap.Error(err))
		default:
			backoff.Reset()
			m.setStatus(StatusConnected, nil)
			err = m.session(ctx, conn)
			_ = conn.Close()
			if ctx.Err() != nil {
				m.setStatus(StatusDisconnected, nil)
				return nil
			}
			m.logger.Warn("ws_disconnected", zap.Error(err))
		}

		delay, ok := backoff.Next()
		if !ok {
			err := fmt.Errorf("%w: gave up after %d reconnect attempts", core.ErrSubscriptionLost, m.maxAttempts)
			m.logger.Error("ws_reconnect_exhausted", zap.Int("attempts", m.maxAttempts))
			m.setStatus(StatusError, err)
			return err
		}
		m.setStatus(StatusDisconnected, nil)

		select {
		case <-m.after(delay):
		case <-ctx.Done():
			return nil
		}
	}
}

// Switch moves the subscription to productID. Events for the previous product are ignored
// from this call on.
func (m *Manager) Switch(productID string) {
	m.mu.Lock()
	if m.product == productID {
		m.mu.Unlock()
		return
	}
	m.product = productID
	m.mu.Unlock()

	select {
	case m.switched <- struct{}{}:
	default:
	}
}

// Product returns the product currently followed.
func (m *Manager) Product() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.product
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Manager) setStatus(status Status, err error) {
	m.mu.Lock()
	changed := m.status != status
	m.status = status
	m.mu.Unlock()
	if changed || err != nil {
		m.onStatus(status, err)
	}
}

// session subscribes on conn and dispatches frames until the connection fails or ctx ends.
func (m *Manager) session(ctx context.Context, conn Conn) error {
	if err := subscribe(conn, m.Product()); err != nil {
		return err
	}

	frames := make(chan auctionapi.Message)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			var msg auctionapi.Message
			if err := conn.ReadJSON(&msg); err != nil {
				readErr <- err
				return
			}
			select {
			case frames <- msg:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-m.switched:
			if err := subscribe(conn, m.Product()); err != nil {
				return err
			}

		case msg := <-frames:
			if msg.ProductID != m.Product() {
				continue
			}
			m.onEvent(msg)

		case err := <-readErr:
			return fmt.Errorf("%w: %v", core.ErrSubscriptionLost, err)
		}
	}
}

// subscribe issues the product-level and ranking subscriptions for productID.
func subscribe(conn Conn, productID string) error {
	for _, kind := range []string{auctionapi.TypeSubscribe, auctionapi.TypeSubscribeRankings} {
		if err := conn.WriteJSON(auctionapi.Message{Type: kind, ProductID: productID}); err != nil {
			return fmt.Errorf("%w: %v", core.ErrSubscriptionLost, err)
		}
	}
	return nil
}
