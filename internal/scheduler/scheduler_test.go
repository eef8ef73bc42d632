package scheduler

import (
	"sync"
	"testing"
	"time"
)

type countingSweeper struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (c *countingSweeper) Sweep(idle time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, idle)
	return 1
}

func (c *countingSweeper) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func TestRunOncePassesIdle(t *testing.T) {
	sw := &countingSweeper{}
	s := New(sw, "@every 1h", 30*time.Minute)
	s.RunOnce()
	if sw.count() != 1 || sw.calls[0] != 30*time.Minute {
		t.Fatalf("unexpected sweeps: %v", sw.calls)
	}
}

func TestStartDisabledWithoutTTL(t *testing.T) {
	s := New(&countingSweeper{}, "@every 1h", 0)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()
	if n := len(s.cron.Entries()); n != 0 {
		t.Fatalf("scheduler must not register a job when idle TTL is 0, got %d", n)
	}
}

func TestStartRejectsBadSpec(t *testing.T) {
	s := New(&countingSweeper{}, "not a spec", time.Minute)
	if err := s.Start(); err == nil {
		t.Fatalf("expected error for invalid spec")
	}
}

func TestStartRegistersJob(t *testing.T) {
	sw := &countingSweeper{}
	s := New(sw, "@every 1s", time.Minute)
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()
	if n := len(s.cron.Entries()); n != 1 {
		t.Fatalf("expected one registered job, got %d", n)
	}

	deadline := time.Now().Add(3 * time.Second)
	for sw.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if sw.count() == 0 {
		t.Fatalf("sweep never ran")
	}
}
