package client

import "time"

// Backoff is the reconnect schedule: Base, then doubling, for at most MaxAttempts attempts.
// The zero value never allows an attempt.
type Backoff struct {
	Base        time.Duration
	MaxAttempts int

	attempt int
}

// Next returns the delay before the next attempt, or false once every attempt is used.
func (b *Backoff) Next() (time.Duration, bool) {
	if b.attempt >= b.MaxAttempts {
		return 0, false
	}
	delay := b.Base << b.attempt
	b.attempt++
	return delay, true
}

// Reset starts the schedule over after a successful connection.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempts reports how many delays have been handed out since the last reset.
func (b *Backoff) Attempts() int {
	return b.attempt
}
