package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func TestTokenBucket_StartsFull(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := NewTokenBucket(clock, 3, 1)

	for i := 0; i < 3; i++ {
		if !b.Allow(1) {
			t.Fatalf("token %d unexpectedly rejected", i)
		}
	}
	if b.Allow(1) {
		t.Fatalf("expected empty bucket to reject")
	}
}

func TestTokenBucket_RefillsAtRate(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := NewTokenBucket(clock, 2, 2)

	if !b.Allow(2) {
		t.Fatalf("initial capacity rejected")
	}
	if b.Allow(1) {
		t.Fatalf("expected rejection before refill")
	}

	clock.Advance(500 * time.Millisecond) // 2/sec -> 1 token
	if !b.Allow(1) {
		t.Fatalf("expected 1 token after 500ms")
	}
	if b.Allow(1) {
		t.Fatalf("expected rejection after consuming refill")
	}
}

func TestTokenBucket_ClampsToCapacity(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	b := NewTokenBucket(clock, 2, 100)

	clock.Advance(time.Hour)
	if !b.Allow(2) {
		t.Fatalf("expected full capacity after long idle")
	}
	if b.Allow(1) {
		t.Fatalf("bucket exceeded capacity after refill clamp")
	}
}

func TestTokenBucket_TimeGoingBackwards(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	b := NewTokenBucket(clock, 1, 1)

	if !b.Allow(1) {
		t.Fatalf("initial token rejected")
	}

	clock.now = time.Unix(500, 0)
	if b.Allow(1) {
		t.Fatalf("expected no refill when time goes backwards")
	}

	clock.Advance(time.Second)
	if !b.Allow(1) {
		t.Fatalf("expected refill after clock recovers")
	}
}

func TestTokenBucket_NonPositiveCostAlwaysAllowed(t *testing.T) {
	b := NewTokenBucket(&fakeClock{now: time.Unix(0, 0)}, 0, 0)
	if !b.Allow(0) {
		t.Fatalf("Allow(0) = false, want true")
	}
	if !b.Allow(-5) {
		t.Fatalf("Allow(-5) = false, want true")
	}
}
