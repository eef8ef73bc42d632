package scheduler

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper drops sessions idle for longer than the given duration.
type Sweeper interface {
	Sweep(idle time.Duration) int
}

// Scheduler periodically evicts idle sessions.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	spec    string
	idle    time.Duration
}

// New creates a scheduler that runs sweeper.Sweep(idle) on spec
// (standard cron or descriptors such as "@every 10m").
func New(sweeper Sweeper, spec string, idle time.Duration) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		sweeper: sweeper,
		spec:    spec,
		idle:    idle,
	}
}

// Start registers the sweep job and starts the cron loop. A non-positive
// idle duration disables sweeping.
func (s *Scheduler) Start() error {
	if s.idle <= 0 {
		log.Println("⚠️ Session idle TTL not set, sessions will live until restart")
		return nil
	}

	if _, err := s.cron.AddFunc(s.spec, s.RunOnce); err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("📅 Scheduler started - sessions idle for %s are swept (%s)", s.idle, s.spec)
	return nil
}

// RunOnce performs a single sweep.
func (s *Scheduler) RunOnce() {
	if n := s.sweeper.Sweep(s.idle); n > 0 {
		log.Printf("🧹 Swept %d idle sessions", n)
	}
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
	log.Println("📅 Scheduler stopped")
}
