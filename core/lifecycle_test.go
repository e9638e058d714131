package core

import (
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
)

func TestTimedStatus(t *testing.T) {
	start := t0
	end := t0.Add(time.Hour)

	tests := []struct {
		name     string
		status   Status
		now      time.Time
		expected Status
	}{
		{"before start stays not started", StatusNotStarted, start.Add(-time.Second), StatusNotStarted},
		{"at start becomes active", StatusNotStarted, start, StatusActive},
		{"past end skips straight to ended", StatusNotStarted, end.Add(time.Second), StatusEnded},
		{"active before end stays active", StatusActive, end.Add(-time.Millisecond), StatusActive},
		{"active at end becomes ended", StatusActive, end, StatusEnded},
		{"ended stays ended", StatusEnded, start, StatusEnded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check.Equal(t, tt.expected, TimedStatus(tt.status, start, end, tt.now))
		})
	}
}

func TestTimedStatus_Idempotent(t *testing.T) {
	now := t0.Add(2 * time.Hour)
	once := TimedStatus(StatusNotStarted, t0, t0.Add(time.Hour), now)
	twice := TimedStatus(once, t0, t0.Add(time.Hour), now)

	check.Equal(t, once, twice)
}

func TestValidateOverride(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusNotStarted, StatusActive, true},
		{StatusNotStarted, StatusEnded, true},
		{StatusActive, StatusEnded, true},
		{StatusEnded, StatusNotStarted, true},
		{StatusActive, StatusActive, true},
		{StatusEnded, StatusEnded, true},
		{StatusActive, StatusNotStarted, false},
		{StatusEnded, StatusActive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			err := ValidateOverride(tt.from, tt.to)
			if tt.allowed {
				check.Nil(t, err)
			} else {
				check.True(t, errors.Is(err, ErrInvalidTransition))
			}
		})
	}
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("active")
	check.Nil(t, err)
	check.Equal(t, StatusActive, s)

	_, err = ParseStatus("paused")
	check.True(t, errors.Is(err, ErrInvalidTransition))
}
