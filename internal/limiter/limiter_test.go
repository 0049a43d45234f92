package limiter

import (
	"context"
	"testing"
	"time"
)

func newMemoryLimiter(t *testing.T, inflight int) *Adaptive {
	t.Helper()
	a, err := New(Options{MaxInflight: inflight, BaseBackoff: 50 * time.Millisecond, MaxBackoff: 200 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestAcquireRelease(t *testing.T) {
	a := newMemoryLimiter(t, 1)

	release, err := a.Acquire(context.Background(), "openai")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	// Second slot should block until release.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, err := a.Acquire(ctx, "openai"); err == nil {
		t.Fatal("second acquire should block and time out")
	}

	release()
	release2, err := a.Acquire(context.Background(), "openai")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release2()
}

func TestSemaphoresArePerProvider(t *testing.T) {
	a := newMemoryLimiter(t, 1)

	r1, err := a.Acquire(context.Background(), "openai")
	if err != nil {
		t.Fatal(err)
	}
	defer r1()

	r2, err := a.Acquire(context.Background(), "local")
	if err != nil {
		t.Fatalf("different provider should not share slots: %v", err)
	}
	r2()
}

func TestTripOpensBreaker(t *testing.T) {
	a := newMemoryLimiter(t, 2)

	a.Trip("openai")
	if _, err := a.Acquire(context.Background(), "openai"); err == nil {
		t.Fatal("acquire should fail while cooling down")
	}

	// Other providers unaffected.
	if r, err := a.Acquire(context.Background(), "local"); err != nil {
		t.Fatalf("local acquire: %v", err)
	} else {
		r()
	}

	// Window expires.
	time.Sleep(70 * time.Millisecond)
	r, err := a.Acquire(context.Background(), "openai")
	if err != nil {
		t.Fatalf("acquire after cooldown: %v", err)
	}
	r()
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	base, max := 50*time.Millisecond, 200*time.Millisecond
	want := []time.Duration{50, 100, 200, 200}
	for i, w := range want {
		if got := backoff(base, max, i+1); got != w*time.Millisecond {
			t.Errorf("attempt %d: backoff = %v, want %v", i+1, got, w*time.Millisecond)
		}
	}
	if got := backoff(base, max, 40); got != max {
		t.Errorf("huge attempt count: %v", got)
	}
}

func TestClearResetsBackoff(t *testing.T) {
	a := newMemoryLimiter(t, 1)

	a.Trip("openai")
	a.Trip("openai")
	a.Clear("openai")

	// After clear the breaker is shut and attempts reset.
	r, err := a.Acquire(context.Background(), "openai")
	if err != nil {
		t.Fatalf("acquire after clear: %v", err)
	}
	r()

	a.Trip("openai")
	mb := a.state.(*memoryBreaker)
	mb.mu.Lock()
	tries := mb.tries["openai"]
	mb.mu.Unlock()
	if tries != 1 {
		t.Errorf("tries after clear+trip = %d, want 1", tries)
	}
}
