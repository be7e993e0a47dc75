package countdown

import (
	"context"
	"errors"
	"sync"
	"time"
)

const DefaultTickInterval = 100 * time.Millisecond

var (
	ErrAlreadyStarted = errors.New("countdown already started")
	ErrNotStarted     = errors.New("countdown not started")
	ErrStopped        = errors.New("countdown stopped")
)

// Config contains runtime options for Runner.
type Config struct {
	TickInterval time.Duration
	Clock        Clock
}

type commandKind int

const (
	commandPause commandKind = iota
	commandResume
)

type command struct {
	kind  commandKind
	reply chan Snapshot
}

// Runner drives an Engine from a periodic ticker. Ticks, pause and resume are
// handled on one goroutine; Cancel stops it through context cancellation.
type Runner struct {
	mu          sync.Mutex
	engine      *Engine
	options     Config
	lastTick    time.Time
	subscribers []chan Event
	commands    chan command
	cancel      context.CancelFunc
	done        chan struct{}
	started     bool
	stopped     bool
}

// NewRunner wraps engine. A zero TickInterval uses DefaultTickInterval and a
// nil Clock uses SystemClock.
func NewRunner(engine *Engine, options Config) *Runner {
	if options.TickInterval <= 0 {
		options.TickInterval = DefaultTickInterval
	}
	if options.Clock == nil {
		options.Clock = SystemClock()
	}
	return &Runner{
		engine:   engine,
		options:  options,
		commands: make(chan command),
		done:     make(chan struct{}),
	}
}

// Subscribe registers an observer channel. Tick and state-change events are
// dropped when the buffer is full; milestone events block until received or
// the runner stops, so subscribers must keep draining. The channel is closed
// when the countdown finishes or is cancelled.
func (r *Runner) Subscribe(buffer int) <-chan Event {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		close(ch)
		return ch
	}
	r.subscribers = append(r.subscribers, ch)
	return ch
}

// Start launches the ticking loop. The countdown is cancelled when ctx is.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return ErrAlreadyStarted
	}
	r.started = true
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.lastTick = r.options.Clock.Now()
	ticker := r.options.Clock.NewTicker(r.options.TickInterval)
	r.mu.Unlock()

	go r.run(runCtx, ticker)
	return nil
}

// Pause freezes the countdown after accounting for time elapsed since the
// last tick.
func (r *Runner) Pause() (Snapshot, error) {
	return r.send(commandPause)
}

// Resume continues a paused countdown.
func (r *Runner) Resume() (Snapshot, error) {
	return r.send(commandResume)
}

// Cancel stops the countdown and waits for the loop to exit. It is safe to
// call more than once.
func (r *Runner) Cancel() Snapshot {
	r.mu.Lock()
	if !r.started {
		r.started = true
		r.cancel = func() {}
		r.engine.Cancel()
		r.mu.Unlock()
		r.closeSubscribers()
		close(r.done)
		return r.Snapshot()
	}
	cancel := r.cancel
	r.mu.Unlock()

	cancel()
	<-r.done
	return r.Snapshot()
}

// Done is closed once the countdown has finished or been cancelled.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

func (r *Runner) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.engine.Snapshot()
}

func (r *Runner) send(kind commandKind) (Snapshot, error) {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return Snapshot{}, ErrNotStarted
	}

	cmd := command{kind: kind, reply: make(chan Snapshot, 1)}
	select {
	case r.commands <- cmd:
	case <-r.done:
		return r.Snapshot(), ErrStopped
	}
	select {
	case snapshot := <-cmd.reply:
		return snapshot, nil
	case <-r.done:
		return r.Snapshot(), ErrStopped
	}
}

func (r *Runner) run(ctx context.Context, ticker Ticker) {
	defer close(r.done)
	defer r.closeSubscribers()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			var events []Event
			if r.engine.Cancel() {
				events = append(events, r.engine.event(EventCancelled, r.options.Clock.Now()))
			}
			r.mu.Unlock()
			r.deliver(ctx, events)
			return

		case <-ticker.C():
			if r.advance(ctx) {
				return
			}

		case cmd := <-r.commands:
			if r.handle(ctx, cmd) {
				return
			}
		}
	}
}

// advance applies the time since the previous tick and reports whether the
// countdown has finished.
func (r *Runner) advance(ctx context.Context) bool {
	r.mu.Lock()
	now := r.options.Clock.Now()
	var events []Event
	if r.engine.Status() == StatusRunning {
		events = r.engine.Advance(now.Sub(r.lastTick), now)
	}
	r.lastTick = now
	finished := r.engine.Status() == StatusFinished
	r.mu.Unlock()

	r.deliver(ctx, events)
	return finished
}

func (r *Runner) handle(ctx context.Context, cmd command) bool {
	r.mu.Lock()
	now := r.options.Clock.Now()
	var events []Event
	switch cmd.kind {
	case commandPause:
		if r.engine.Status() == StatusRunning {
			events = r.engine.Advance(now.Sub(r.lastTick), now)
			if r.engine.Pause() {
				events = append(events, r.engine.event(EventPaused, now))
			}
		}
	case commandResume:
		if r.engine.Resume() {
			events = append(events, r.engine.event(EventResumed, now))
		}
	}
	r.lastTick = now
	finished := r.engine.Status() == StatusFinished
	snapshot := r.engine.Snapshot()
	r.mu.Unlock()

	r.deliver(ctx, events)
	cmd.reply <- snapshot
	return finished
}

func (r *Runner) deliver(ctx context.Context, events []Event) {
	if len(events) == 0 {
		return
	}
	r.mu.Lock()
	subscribers := append([]chan Event(nil), r.subscribers...)
	r.mu.Unlock()

	for _, event := range events {
		for _, ch := range subscribers {
			if !event.Milestone() {
				select {
				case ch <- event:
				default:
				}
				continue
			}
			select {
			case ch <- event:
			case <-ctx.Done():
			}
		}
	}
}

func (r *Runner) closeSubscribers() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	subscribers := r.subscribers
	r.subscribers = nil
	r.mu.Unlock()

	for _, ch := range subscribers {
		close(ch)
	}
}
