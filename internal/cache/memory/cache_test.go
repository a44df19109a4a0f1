package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/avelinor/wagerbot/internal/domain"
)

func TestLockManagerMutualExclusion(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()

	unlock, err := lm.Acquire(ctx, "prediction:p1", time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if _, err := lm.Acquire(ctx, "prediction:p1", time.Minute); !errors.Is(err, domain.ErrLockHeld) {
		t.Fatalf("second acquire: %v, want ErrLockHeld", err)
	}
	// A different key is independent.
	if _, err := lm.Acquire(ctx, "prediction:p2", time.Minute); err != nil {
		t.Fatalf("other key: %v", err)
	}

	unlock()
	unlock() // safe to call twice
	if _, err := lm.Acquire(ctx, "prediction:p1", time.Minute); err != nil {
		t.Fatalf("reacquire after unlock: %v", err)
	}
}

func TestLockManagerExpiry(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager()
	now := time.Now()
	lm.clock = func() time.Time { return now }

	if _, err := lm.Acquire(ctx, "k", time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	// A dead holder's lock lapses after the TTL.
	now = now.Add(2 * time.Second)
	if _, err := lm.Acquire(ctx, "k", time.Second); err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
}

func TestRateLimiterSlidingWindow(t *testing.T) {
	ctx := context.Background()
	rl := NewRateLimiter()
	now := time.Now()
	rl.clock = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, "k", 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("hit %d: ok=%v err=%v", i, ok, err)
		}
	}
	if ok, _ := rl.Allow(ctx, "k", 3, time.Minute); ok {
		t.Fatal("fourth hit allowed inside window")
	}
	// Other keys are unaffected.
	if ok, _ := rl.Allow(ctx, "other", 3, time.Minute); !ok {
		t.Fatal("separate key throttled")
	}

	// The window slides: after it passes, the key opens up again.
	now = now.Add(2 * time.Minute)
	if ok, _ := rl.Allow(ctx, "k", 3, time.Minute); !ok {
		t.Fatal("hit refused after window lapsed")
	}
}

func TestSignalBusPublishSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sb := NewSignalBus()

	exact, err := sb.Subscribe(ctx, "market.events")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	pattern, err := sb.Subscribe(ctx, "market.*")
	if err != nil {
		t.Fatalf("pattern subscribe: %v", err)
	}

	if err := sb.Publish(ctx, "market.events", []byte("hello")); err != nil {
		t.Fatalf("publish: %v", err)
	}

	for name, ch := range map[string]<-chan []byte{"exact": exact, "pattern": pattern} {
		select {
		case got := <-ch:
			if string(got) != "hello" {
				t.Fatalf("%s payload = %q", name, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s subscriber got nothing", name)
		}
	}
}

func TestSignalBusStreamResume(t *testing.T) {
	ctx := context.Background()
	sb := NewSignalBus()

	for _, p := range []string{"one", "two", "three"} {
		if err := sb.StreamAppend(ctx, "s", []byte(p)); err != nil {
			t.Fatalf("append %s: %v", p, err)
		}
	}

	first, err := sb.StreamRead(ctx, "s", "0", 2)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(first) != 2 || string(first[0].Payload) != "one" {
		t.Fatalf("first read = %v", first)
	}

	rest, err := sb.StreamRead(ctx, "s", first[1].ID, 10)
	if err != nil {
		t.Fatalf("resume read: %v", err)
	}
	if len(rest) != 1 || string(rest[0].Payload) != "three" {
		t.Fatalf("resume read = %v", rest)
	}
}
