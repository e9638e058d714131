package auction

import (
	"context"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestNewCronScheduler(t *testing.T) {
	tests := []struct {
		name     string
		interval time.Duration
		wantErr  bool
	}{
		{name: "one second", interval: time.Second},
		{name: "minutes", interval: 5 * time.Minute},
		{name: "sub second rejected", interval: 500 * time.Millisecond, wantErr: true},
		{name: "zero rejected", interval: 0, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCronScheduler(tt.interval, nil)
			if tt.wantErr {
				check.Error(t, err)
			} else {
				check.Nil(t, err)
			}
		})
	}
}

func TestCronScheduler_FiresAndStops(t *testing.T) {
	sched, err := NewCronScheduler(time.Second, time.UTC)
	assert.Nil(t, err)

	fired := make(chan time.Time, 4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.Nil(t, sched.Start(ctx, func(now time.Time) {
		select {
		case fired <- now:
		default:
		}
	}))
	check.Error(t, sched.Start(ctx, func(time.Time) {}))

	select {
	case now := <-fired:
		check.Equal(t, time.UTC, now.Location())
	case <-time.After(3 * time.Second):
		t.Fatal("scheduler never fired")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	check.Nil(t, sched.Stop(stopCtx))
}
