package auction

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// EventSink receives product events. Publish must not block.
type EventSink interface {
	Publish(productID, kind string, data any)
}

type discardSink struct{}

func (discardSink) Publish(string, string, any) {}
