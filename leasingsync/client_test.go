package leasingsync

import (
	"context"
	"testing"
	"time"
)

func TestDomoClientThrottleSpacesCalls(t *testing.T) {
	c := &domoClient{interval: 30 * time.Millisecond}
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := c.throttle(context.Background()); err != nil {
			t.Fatalf("throttle: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 60*time.Millisecond {
		t.Fatalf("three calls at 30ms spacing finished in %v", elapsed)
	}
}

func TestDomoClientThrottleHonorsCancel(t *testing.T) {
	c := &domoClient{interval: time.Minute}
	// the first slot is immediate
	if err := c.throttle(context.Background()); err != nil {
		t.Fatalf("throttle: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.throttle(ctx); err == nil {
		t.Fatal("cancelled wait must return the context error")
	}
}
