package ratelimit

import (
	"testing"
	"time"
)

func TestLimiter_BurstThenRefill(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := New(3, 1)
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		if !l.Allow("a") {
			t.Fatalf("request %d within burst rejected", i)
		}
	}
	if l.Allow("a") {
		t.Fatalf("burst exceeded")
	}
	if !l.Allow("b") {
		t.Fatalf("keys must not share a bucket")
	}

	now = now.Add(1500 * time.Millisecond)
	if !l.Allow("a") {
		t.Fatalf("token not refilled")
	}
	if l.Allow("a") {
		t.Fatalf("only one token should have refilled")
	}
}

func TestLimiter_SweepsIdleKeys(t *testing.T) {
	now := time.Unix(1700000000, 0)
	l := New(1, 1)
	l.now = func() time.Time { return now }

	l.Allow("a")
	l.Allow("b")
	now = now.Add(11 * time.Minute)
	l.Allow("c")
	if l.Len() != 1 {
		t.Fatalf("idle keys kept: %d", l.Len())
	}
}
