package chatlimit_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"tgrate/internal/infra/telegram/chatlimit"
)

// fakeClock lets tests advance the worker's notion of time without waiting
// in real wall-clock time for 60-second windows. The per-iteration pause
// (chatlimit.WithDelay) still runs on real time, kept tiny in tests so the
// suite stays fast while window arithmetic is driven entirely by Advance.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// waitUntil polls cond until it returns true or timeout elapses, failing the
// test otherwise. Used instead of fixed sleeps to absorb scheduler jitter.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	if !cond() {
		t.Fatalf("condition not satisfied within %s", timeout)
	}
}

func admitAsync(t *testing.T, g *chatlimit.Governor, key chatlimit.ChatKey, done *int32Counter) {
	t.Helper()
	go func() {
		f, err := g.Admit(context.Background(), key)
		if err != nil {
			return
		}
		f.Finish()
		done.inc()
	}()
}

type int32Counter struct {
	mu sync.Mutex
	n  int
}

func (c *int32Counter) inc() {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *int32Counter) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

// TestWorkerGlobalCapBinds is scenario S1: with a tiny per-second-overall
// budget and many distinct chats firing simultaneously, only that many are
// admitted within the first second; the rest wait for the next window.
func TestWorkerGlobalCapBinds(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	limits := chatlimit.Limits{PerSecChat: 1, PerMinChat: 20, PerSecOverall: 3}
	g, w := chatlimit.New(limits, chatlimit.WithClock(clock.Now), chatlimit.WithDelay(2*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	var admitted int32Counter
	for i := 0; i < 6; i++ {
		admitAsync(t, g, chatlimit.ChatID(int64(i)), &admitted)
	}

	waitUntil(t, time.Second, func() bool { return admitted.get() == 3 })
	time.Sleep(20 * time.Millisecond)
	if got := admitted.get(); got != 3 {
		t.Fatalf("admitted = %d before window rolled over, want exactly 3", got)
	}

	clock.Advance(1100 * time.Millisecond)
	waitUntil(t, time.Second, func() bool { return admitted.get() == 6 })
}

// TestWorkerPerChatFIFO is scenario S4: requests to the same chat are
// admitted in enqueue order, and that order is independent of other chats'
// requests interleaved with them.
func TestWorkerPerChatFIFO(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	limits := chatlimit.Limits{PerSecChat: 1, PerMinChat: 20, PerSecOverall: 30}
	g, w := chatlimit.New(limits, chatlimit.WithClock(clock.Now), chatlimit.WithDelay(2*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	chatA := chatlimit.ChatID(1)
	chatB := chatlimit.ChatID(2)

	var mu sync.Mutex
	var order []string
	record := func(label string) {
		mu.Lock()
		order = append(order, label)
		mu.Unlock()
	}

	admitLabeled := func(label string, key chatlimit.ChatKey) {
		go func() {
			f, err := g.Admit(context.Background(), key)
			if err != nil {
				return
			}
			f.Finish()
			record(label)
		}()
		// Yield so this caller reaches the admission channel before the
		// next one is started; goroutine start order alone does not fix
		// the order in which they enqueue.
		time.Sleep(5 * time.Millisecond)
	}

	// Enqueue A1, B1, A2, B2, A3 in this exact order.
	admitLabeled("A1", chatA)
	admitLabeled("B1", chatB)
	admitLabeled("A2", chatA)
	admitLabeled("B2", chatB)
	admitLabeled("A3", chatA)

	waitUntil(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) >= 2 // A1 and B1 should both be immediately eligible
	})

	// A2/B2/A3 are blocked behind the 1-per-second-per-chat cap; roll the
	// window forward so each subsequent round becomes eligible.
	for i := 0; i < 3; i++ {
		clock.Advance(1100 * time.Millisecond)
		time.Sleep(10 * time.Millisecond)
	}
	waitUntil(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 5
	})

	mu.Lock()
	defer mu.Unlock()
	posA := map[string]int{}
	posB := map[string]int{}
	for i, label := range order {
		switch label {
		case "A1", "A2", "A3":
			posA[label] = i
		case "B1", "B2":
			posB[label] = i
		}
	}
	if !(posA["A1"] < posA["A2"] && posA["A2"] < posA["A3"]) {
		t.Fatalf("chat A order violated: %v", order)
	}
	if !(posB["B1"] < posB["B2"]) {
		t.Fatalf("chat B order violated: %v", order)
	}
}

// TestDegradedModeAfterClose is scenario S6 (the degraded half): once the
// Governor is closed, Admit must return promptly without throttling instead
// of deadlocking the caller.
func TestDegradedModeAfterClose(t *testing.T) {
	t.Parallel()

	limits := chatlimit.Default()
	g, w := chatlimit.New(limits, chatlimit.WithDelay(2*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(cancel)

	g.Close()

	done := make(chan struct{})
	go func() {
		f, err := g.Admit(context.Background(), chatlimit.ChatID(1))
		if err != nil {
			t.Errorf("Admit returned error in degraded mode: %v", err)
			close(done)
			return
		}
		if !f.Degraded() {
			t.Errorf("expected Degraded() == true after Close")
		}
		f.Finish()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Admit deadlocked after Close instead of degrading")
	}
}

// TestCancellationDuringWait is scenario S5 (the cancellation half): a
// caller whose ctx is cancelled before admission observes ctx.Err() and does
// not block forever; other callers for other chats are unaffected.
func TestCancellationDuringWait(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	limits := chatlimit.Limits{PerSecChat: 1, PerMinChat: 1, PerSecOverall: 30}
	g, w := chatlimit.New(limits, chatlimit.WithClock(clock.Now), chatlimit.WithDelay(2*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	chatX := chatlimit.ChatID(99)

	// First request occupies chat X's per-second-and-per-minute budget.
	var admitted int32Counter
	admitAsync(t, g, chatX, &admitted)
	waitUntil(t, time.Second, func() bool { return admitted.get() == 1 })

	// Second request for the same chat is now blocked (per-minute cap is 1).
	// Cancel it and confirm it returns the context error instead of hanging.
	cancelCtx, cancelFn := context.WithCancel(context.Background())
	cancelFn()
	if _, err := g.Admit(cancelCtx, chatX); err == nil {
		t.Fatal("expected context error for cancelled admission, got nil")
	}

	// A different chat is unaffected by chat X's saturation.
	var otherAdmitted int32Counter
	admitAsync(t, g, chatlimit.ChatID(100), &otherAdmitted)
	waitUntil(t, time.Second, func() bool { return otherAdmitted.get() == 1 })
}
