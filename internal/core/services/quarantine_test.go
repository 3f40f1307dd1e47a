package services

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

func newTestQuarantine(t *testing.T, storage *mockStorage, clock clockwork.Clock, cfg QuarantineConfig) *QuarantineManager {
	t.Helper()
	manager, err := NewQuarantineManager(storage, clock, zap.NewNop(), cfg)
	if err != nil {
		t.Fatalf("failed to create quarantine manager: %v", err)
	}
	return manager
}

func TestQuarantine_TripsAfterThreshold(t *testing.T) {
	storage := newMockStorage()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	manager := newTestQuarantine(t, storage, clock, QuarantineConfig{
		Threshold:     5,
		Window:        time.Minute,
		BlockDuration: time.Hour,
	})

	ctx := context.Background()

	for i := 0; i < 5; i++ {
		tripped, err := manager.RecordHit(ctx, "ip:1.2.3.4")
		if err != nil {
			t.Fatalf("unexpected error on hit %d: %v", i+1, err)
		}
		if tripped {
			t.Fatalf("hit %d must not trip the quarantine yet", i+1)
		}
	}

	tripped, err := manager.RecordHit(ctx, "ip:1.2.3.4")
	if err != nil {
		t.Fatalf("unexpected error on tripping hit: %v", err)
	}
	if !tripped {
		t.Fatalf("expected hit above threshold to trip the quarantine")
	}

	status, err := manager.CheckBlocked(ctx, "ip:1.2.3.4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Blocked {
		t.Fatalf("expected identifier to be blocked after trip")
	}
	if status.Reason != ReasonExcessiveRate {
		t.Fatalf("expected reason %q, got %q", ReasonExcessiveRate, status.Reason)
	}
}

func TestQuarantine_BlockExpiresWithoutIntervention(t *testing.T) {
	storage := newMockStorage()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	manager := newTestQuarantine(t, storage, clock, QuarantineConfig{
		Threshold:     100,
		Window:        time.Minute,
		BlockDuration: time.Hour,
	})

	ctx := context.Background()

	if err := manager.Block(ctx, "ip:5.6.7.8", "manual", time.Hour); err != nil {
		t.Fatalf("unexpected error installing block: %v", err)
	}

	status, err := manager.CheckBlocked(ctx, "ip:5.6.7.8")
	if err != nil || !status.Blocked {
		t.Fatalf("expected identifier to be blocked, status=%+v err=%v", status, err)
	}

	clock.Advance(time.Hour + time.Second)

	status, err = manager.CheckBlocked(ctx, "ip:5.6.7.8")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Blocked {
		t.Fatalf("expected block to expire without manual intervention")
	}
}

func TestQuarantine_ManualBlockAndUnblock(t *testing.T) {
	storage := newMockStorage()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	manager := newTestQuarantine(t, storage, clock, QuarantineConfig{
		Threshold:     100,
		Window:        time.Minute,
		BlockDuration: time.Hour,
	})

	ctx := context.Background()

	if err := manager.Block(ctx, "ip:1.2.3.4", "manual", time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status, err := manager.CheckBlocked(ctx, "ip:1.2.3.4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !status.Blocked || status.Reason != "manual" {
		t.Fatalf("expected manual block, got %+v", status)
	}

	if err := manager.Unblock(ctx, "ip:1.2.3.4"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	status, err = manager.CheckBlocked(ctx, "ip:1.2.3.4")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Blocked {
		t.Fatalf("expected identifier to be released after unblock")
	}
}

func TestQuarantine_RejectsNonPositiveBlockDuration(t *testing.T) {
	storage := newMockStorage()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))
	manager := newTestQuarantine(t, storage, clock, QuarantineConfig{
		Threshold:     100,
		Window:        time.Minute,
		BlockDuration: time.Hour,
	})

	if err := manager.Block(context.Background(), "ip:1.2.3.4", "manual", 0); err == nil {
		t.Fatalf("expected error for non-positive block duration")
	}
}

func TestNewQuarantineManager_ValidatesConfig(t *testing.T) {
	storage := newMockStorage()
	clock := clockwork.NewFakeClockAt(time.UnixMilli(1_700_000_000_000))

	cases := []QuarantineConfig{
		{Threshold: 0, Window: time.Minute, BlockDuration: time.Hour},
		{Threshold: 10, Window: 0, BlockDuration: time.Hour},
		{Threshold: 10, Window: time.Minute, BlockDuration: 0},
	}
	for _, cfg := range cases {
		if _, err := NewQuarantineManager(storage, clock, zap.NewNop(), cfg); err == nil {
			t.Fatalf("expected config %+v to be rejected", cfg)
		}
	}
}
