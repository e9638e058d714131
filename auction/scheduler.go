package auction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs a job repeatedly until stopped.
type Scheduler interface {
	Start(ctx context.Context, job func(now time.Time)) error
	Stop(ctx context.Context) error
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// CronScheduler fires the job on a fixed "@every" interval.
type CronScheduler struct {
	spec string
	loc  *time.Location

	mu   sync.Mutex
	cron *cron.Cron
}

func NewCronScheduler(interval time.Duration, loc *time.Location) (*CronScheduler, error) {
	if interval < time.Second {
		return nil, fmt.Errorf("tick interval must be at least 1s, got %s", interval)
	}
	if loc == nil {
		loc = time.UTC
	}
	spec := fmt.Sprintf("@every %s", interval)
	if _, err := cronParser.Parse(spec); err != nil {
		return nil, err
	}
	return &CronScheduler{spec: spec, loc: loc}, nil
}

// Start registers job and starts ticking. The scheduler also stops when ctx is cancelled.
func (s *CronScheduler) Start(ctx context.Context, job func(now time.Time)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	c := cron.New(cron.WithLocation(s.loc), cron.WithParser(cronParser))
	if _, err := c.AddFunc(s.spec, func() { job(time.Now().UTC()) }); err != nil {
		return err
	}
	c.Start()
	s.cron = c

	go func() {
		<-ctx.Done()
		_ = s.Stop(context.Background())
	}()
	return nil
}

// Stop halts ticking and waits for a running job, or for ctx.
func (s *CronScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	if c == nil {
		return nil
	}

	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
