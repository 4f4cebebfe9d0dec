package progress

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mohammad-safakhou/postwise/internal/content"
)

// fakeClock is safe against the background sweep goroutine Put spawns.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestMemoryStorePutGet(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	st := content.ChainState{ChainID: "c1", Step: content.StepGeneratingIdeas, Progress: 15, IsGenerating: true}
	if err := s.Put(ctx, "c1", st); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := s.Get(ctx, "c1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected entry present")
	}
	if got.Step != content.StepGeneratingIdeas || got.Progress != 15 || !got.IsGenerating {
		t.Fatalf("unexpected state: %+v", got)
	}
}

func TestMemoryStoreGetMissing(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	if _, ok, err := s.Get(context.Background(), "nope"); err != nil || ok {
		t.Fatalf("expected miss without error, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	clock := newFakeClock()
	s.now = clock.Now
	ctx := context.Background()

	if err := s.Put(ctx, "c1", content.ChainState{ChainID: "c1"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	clock.Advance(30 * time.Second)
	if _, ok, _ := s.Get(ctx, "c1"); !ok {
		t.Fatalf("entry expired too early")
	}
	clock.Advance(45 * time.Second)
	if _, ok, _ := s.Get(ctx, "c1"); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestMemoryStoreSweepRemovesExpired(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	clock := newFakeClock()
	s.now = clock.Now
	ctx := context.Background()

	if err := s.Put(ctx, "old", content.ChainState{ChainID: "old"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	clock.Advance(2 * time.Minute)
	if err := s.Put(ctx, "fresh", content.ChainState{ChainID: "fresh"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	s.sweep()

	s.mu.RLock()
	_, oldThere := s.entries["old"]
	_, freshThere := s.entries["fresh"]
	s.mu.RUnlock()
	if oldThere {
		t.Fatalf("sweep kept expired entry")
	}
	if !freshThere {
		t.Fatalf("sweep removed live entry")
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()
	if err := s.Put(ctx, "c1", content.ChainState{ChainID: "c1"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Delete(ctx, "c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "c1"); ok {
		t.Fatalf("entry survived delete")
	}
}

func TestMemoryStoreSnapshotsAreIsolated(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	st := content.ChainState{
		ChainID: "c1",
		Partial: content.PartialResults{Ideas: []content.Idea{{ID: "i1", Title: "original"}}},
	}
	if err := s.Put(ctx, "c1", st); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Mutating the caller's copy after Put must not leak into the store,
	// and mutating a returned snapshot must not corrupt later reads.
	st.Partial.Ideas[0].Title = "mutated by writer"

	first, _, _ := s.Get(ctx, "c1")
	if first.Partial.Ideas[0].Title != "original" {
		t.Fatalf("writer mutation leaked into store: %q", first.Partial.Ideas[0].Title)
	}
	first.Partial.Ideas[0].Title = "mutated by reader"

	second, _, _ := s.Get(ctx, "c1")
	if second.Partial.Ideas[0].Title != "original" {
		t.Fatalf("reader mutation leaked into store: %q", second.Partial.Ideas[0].Title)
	}
}
