package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"go.uber.org/zap"

	"github.com/cloudx-io/slotauction/auctionapi"
	"github.com/cloudx-io/slotauction/core"
)

// fakeConn delivers queued frames to ReadJSON and records writes. Closing it fails the reader.
type fakeConn struct {
	incoming chan auctionapi.Message
	written  chan auctionapi.Message
	once     sync.Once
	closed   chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan auctionapi.Message, 16),
		written:  make(chan auctionapi.Message, 16),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) WriteJSON(v any) error {
	c.written <- v.(auctionapi.Message)
	return nil
}

func (c *fakeConn) ReadJSON(v any) error {
	select {
	case msg := <-c.incoming:
		*(v.(*auctionapi.Message)) = msg
		return nil
	case <-c.closed:
		return io.EOF
	}
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// drop simulates the server closing the connection.
func (c *fakeConn) drop() { _ = c.Close() }

func (c *fakeConn) nextWrite(t *testing.T) auctionapi.Message {
	t.Helper()
	select {
	case msg := <-c.written:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a write")
		return auctionapi.Message{}
	}
}

// fakeDialer hands out results in order, failing with err once they run out.
type fakeDialer struct {
	mu      sync.Mutex
	results []dialResult
	err     error
	dials   int
}

type dialResult struct {
	conn *fakeConn
	err  error
}

func (d *fakeDialer) Dial(context.Context) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.results) == 0 {
		return nil, d.err
	}
	r := d.results[0]
	d.results = d.results[1:]
	if r.err != nil {
		return nil, r.err
	}
	return r.conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

type observed struct {
	mu       sync.Mutex
	delays   []time.Duration
	statuses []Status
	events   chan auctionapi.Message
}

func newObserved() *observed {
	return &observed{events: make(chan auctionapi.Message, 16)}
}

func (o *observed) after(d time.Duration) <-chan time.Time {
	o.mu.Lock()
	o.delays = append(o.delays, d)
	o.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func (o *observed) status(s Status, _ error) {
	o.mu.Lock()
	o.statuses = append(o.statuses, s)
	o.mu.Unlock()
}

func (o *observed) recordedDelays() []time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]time.Duration(nil), o.delays...)
}

func (o *observed) nextEvent(t *testing.T) auctionapi.Message {
	t.Helper()
	select {
	case msg := <-o.events:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for an event")
		return auctionapi.Message{}
	}
}

func newTestManager(d Dialer, o *observed) *Manager {
	return NewManager(Options{
		Dialer:      d,
		BaseDelay:   time.Second,
		MaxAttempts: 5,
		After:       o.after,
		OnEvent:     func(msg auctionapi.Message) { o.events <- msg },
		OnStatus:    o.status,
		Logger:      zap.NewNop(),
	})
}

func frame(kind, productID string) auctionapi.Message {
	return auctionapi.Message{Type: kind, ProductID: productID, Data: json.RawMessage(`{}`)}
}

func runManager(t *testing.T, m *Manager, productID string) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx, productID) }()
	t.Cleanup(cancel)
	return cancel, done
}

func wait(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("manager did not stop")
		return nil
	}
}

func TestManager_SubscribesAndFiltersByProduct(t *testing.T) {
	conn := newFakeConn()
	o := newObserved()
	m := newTestManager(&fakeDialer{results: []dialResult{{conn: conn}}}, o)
	cancel, done := runManager(t, m, "p1")

	check.Equal(t, auctionapi.Message{Type: auctionapi.TypeSubscribe, ProductID: "p1"}, conn.nextWrite(t))
	check.Equal(t, auctionapi.Message{Type: auctionapi.TypeSubscribeRankings, ProductID: "p1"}, conn.nextWrite(t))

	conn.incoming <- frame(auctionapi.TypeRankingsUpdate, "p2")
	conn.incoming <- frame(auctionapi.TypeRankingsUpdate, "p1")
	check.Equal(t, "p1", o.nextEvent(t).ProductID)
	check.Equal(t, StatusConnected, m.Status())

	cancel()
	check.Nil(t, wait(t, done))
	check.Equal(t, StatusDisconnected, m.Status())
}

func TestManager_ReconnectsAndResubscribes(t *testing.T) {
	first, second := newFakeConn(), newFakeConn()
	o := newObserved()
	d := &fakeDialer{
		results: []dialResult{
			{conn: first},
			{err: errors.New("connection refused")},
			{conn: second},
		},
		err: errors.New("connection refused"),
	}
	m := newTestManager(d, o)
	cancel, done := runManager(t, m, "p1")

	first.nextWrite(t)
	first.nextWrite(t)
	first.drop()

	check.Equal(t, auctionapi.TypeSubscribe, second.nextWrite(t).Type)
	check.Equal(t, "p1", second.nextWrite(t).ProductID)
	check.Equal(t, []time.Duration{time.Second, 2 * time.Second}, o.recordedDelays())

	// A successful connection resets the schedule
	second.drop()
	eventually(t, func() bool { return len(o.recordedDelays()) >= 3 })
	check.Equal(t, time.Second, o.recordedDelays()[2])

	cancel()
	<-done
}

func TestManager_GivesUpAfterMaxAttempts(t *testing.T) {
	o := newObserved()
	d := &fakeDialer{err: errors.New("connection refused")}
	m := newTestManager(d, o)
	_, done := runManager(t, m, "p1")

	err := wait(t, done)
	check.True(t, errors.Is(err, core.ErrSubscriptionLost))
	check.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second,
	}, o.recordedDelays())
	check.Equal(t, 6, d.dialCount())
	check.Equal(t, StatusError, m.Status())
}

func TestManager_AuthenticationFailureIsTerminal(t *testing.T) {
	o := newObserved()
	d := &fakeDialer{err: core.ErrAuthenticationRequired}
	m := newTestManager(d, o)
	_, done := runManager(t, m, "p1")

	err := wait(t, done)
	check.True(t, errors.Is(err, core.ErrAuthenticationRequired))
	check.Equal(t, 1, d.dialCount())
	check.Equal(t, 0, len(o.recordedDelays()))
	check.Equal(t, StatusError, m.Status())
}

func TestManager_SwitchMovesSubscription(t *testing.T) {
	conn := newFakeConn()
	o := newObserved()
	m := newTestManager(&fakeDialer{results: []dialResult{{conn: conn}}}, o)
	cancel, done := runManager(t, m, "p1")

	conn.nextWrite(t)
	conn.nextWrite(t)

	m.Switch("p2")
	check.Equal(t, auctionapi.Message{Type: auctionapi.TypeSubscribe, ProductID: "p2"}, conn.nextWrite(t))
	check.Equal(t, auctionapi.Message{Type: auctionapi.TypeSubscribeRankings, ProductID: "p2"}, conn.nextWrite(t))
	check.Equal(t, "p2", m.Product())

	conn.incoming <- frame(auctionapi.TypeProductUpdate, "p1")
	conn.incoming <- frame(auctionapi.TypeProductUpdate, "p2")
	check.Equal(t, "p2", o.nextEvent(t).ProductID)

	// Switching to the current product sends nothing
	m.Switch("p2")
	select {
	case msg := <-conn.written:
		t.Fatalf("unexpected write %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}

	cancel()
	<-done
}

func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNewManager_Defaults(t *testing.T) {
	m := NewManager(Options{Dialer: &fakeDialer{}})
	assert.NotNil(t, m.after)
	check.Equal(t, time.Second, m.baseDelay)
	check.Equal(t, 5, m.maxAttempts)
	check.Equal(t, StatusDisconnected, m.Status())
}
