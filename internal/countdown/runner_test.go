package countdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"multitimer/internal/model"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	ticker *fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTicker(time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ticker = &fakeTicker{ch: make(chan time.Time)}
	return c.ticker
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Tick moves the clock forward and hands one tick to the runner loop.
func (c *fakeClock) Tick(t *testing.T, d time.Duration) {
	t.Helper()
	c.Advance(d)
	c.mu.Lock()
	ticker := c.ticker
	c.mu.Unlock()
	select {
	case ticker.ch <- c.Now():
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not accept tick")
	}
}

type fakeTicker struct {
	ch chan time.Time
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               {}

func nextMilestone(t *testing.T, events <-chan Event) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				t.Fatal("event channel closed")
			}
			if event.Type == EventTick {
				continue
			}
			return event
		case <-timeout:
			t.Fatal("timed out waiting for event")
		}
	}
}

func nextTick(t *testing.T, events <-chan Event) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				t.Fatal("event channel closed")
			}
			if event.Type == EventTick {
				return event
			}
		case <-timeout:
			t.Fatal("timed out waiting for tick")
		}
	}
}

func newTestRunner(t *testing.T, presets []model.PresetTimer) (*Runner, *fakeClock, <-chan Event) {
	t.Helper()
	engine, err := New("workout", presets)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	clock := newFakeClock()
	runner := NewRunner(engine, Config{TickInterval: 100 * time.Millisecond, Clock: clock})
	events := runner.Subscribe(64)
	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() {
		runner.Cancel()
	})
	return runner, clock, events
}

func TestRunnerDeliversMilestonesInOrder(t *testing.T) {
	runner, clock, events := newTestRunner(t, []model.PresetTimer{
		preset("A", 1, 10000, 3000),
		preset("B", 2, 5000, 0),
	})

	clock.Tick(t, 7*time.Second)
	if event := nextMilestone(t, events); event.Type != EventPreNotification || event.PresetName != "A" {
		t.Fatalf("expected pre-notification for A, got %+v", event)
	}

	clock.Tick(t, 3*time.Second)
	if event := nextMilestone(t, events); event.Type != EventSegmentFinished || event.PresetName != "A" {
		t.Fatalf("expected A finished, got %+v", event)
	}

	clock.Tick(t, 5*time.Second)
	if event := nextMilestone(t, events); event.Type != EventFinished || event.PresetName != "B" {
		t.Fatalf("expected finished after B, got %+v", event)
	}

	select {
	case <-runner.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after finishing")
	}
	for range events {
	}
	if status := runner.Snapshot().Status; status != StatusFinished {
		t.Fatalf("expected finished status, got %s", status)
	}
}

func TestRunnerPauseResumeKeepsRemaining(t *testing.T) {
	runner, clock, events := newTestRunner(t, []model.PresetTimer{preset("A", 1, 10000, 0)})

	clock.Tick(t, time.Second)
	clock.Advance(500 * time.Millisecond)

	snapshot, err := runner.Pause()
	if err != nil {
		t.Fatalf("pause: %v", err)
	}
	if snapshot.Status != StatusPaused {
		t.Fatalf("expected paused, got %s", snapshot.Status)
	}
	if snapshot.SegmentRemaining != 8500*time.Millisecond {
		t.Fatalf("expected 8.5s remaining at pause, got %s", snapshot.SegmentRemaining)
	}
	if event := nextMilestone(t, events); event.Type != EventPaused {
		t.Fatalf("expected paused event, got %+v", event)
	}

	clock.Tick(t, time.Minute)
	if got := runner.Snapshot().SegmentRemaining; got != 8500*time.Millisecond {
		t.Fatalf("paused runner lost time: %s", got)
	}

	clock.Advance(time.Minute)
	snapshot, err = runner.Resume()
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if snapshot.SegmentRemaining != 8500*time.Millisecond {
		t.Fatalf("resume changed remaining: %s", snapshot.SegmentRemaining)
	}

	clock.Tick(t, 500*time.Millisecond)
	if got := nextTick(t, events).SegmentRemaining; got != 8*time.Second {
		t.Fatalf("expected 8s after resumed tick, got %s", got)
	}
}

func TestRunnerCancel(t *testing.T) {
	runner, clock, events := newTestRunner(t, []model.PresetTimer{preset("A", 1, 10000, 0)})

	clock.Tick(t, time.Second)
	snapshot := runner.Cancel()
	if snapshot.Status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", snapshot.Status)
	}

	var sawCancelled bool
	for event := range events {
		if event.Type == EventCancelled {
			sawCancelled = true
		}
	}
	if !sawCancelled {
		t.Fatal("expected cancelled event before channel close")
	}

	if _, err := runner.Pause(); !errors.Is(err, ErrStopped) {
		t.Fatalf("expected ErrStopped after cancel, got %v", err)
	}
}

func TestRunnerCancelBeforeStart(t *testing.T) {
	engine, err := New("idle", []model.PresetTimer{preset("A", 1, 1000, 0)})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	runner := NewRunner(engine, Config{Clock: newFakeClock()})
	events := runner.Subscribe(1)

	runner.Cancel()
	if _, ok := <-events; ok {
		t.Fatal("expected closed channel")
	}
	if err := runner.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("expected ErrAlreadyStarted, got %v", err)
	}
	select {
	case <-runner.Done():
	default:
		t.Fatal("expected done to be closed")
	}

	if snapshot := runner.Cancel(); snapshot.Status != StatusCancelled {
		t.Fatalf("second cancel: expected cancelled, got %s", snapshot.Status)
	}
}

func TestRunnerContextCancellation(t *testing.T) {
	engine, err := New("ctx", []model.PresetTimer{preset("A", 1, 1000, 0)})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	runner := NewRunner(engine, Config{Clock: newFakeClock()})
	if err := runner.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	cancel()
	select {
	case <-runner.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("runner ignored context cancellation")
	}
	if status := runner.Snapshot().Status; status != StatusCancelled {
		t.Fatalf("expected cancelled, got %s", status)
	}
}
