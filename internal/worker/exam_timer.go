package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// TickInterval is the length of one timer tick.
const TickInterval = time.Second

// TickSource produces timer ticks. The returned stop function releases the source.
type TickSource func(interval time.Duration) (ticks <-chan time.Time, stop func())

// RealTicks is the TickSource backed by time.NewTicker.
func RealTicks(interval time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(interval)
	return t.C, t.Stop
}

// TickResult reports the session state after one tick.
type TickResult struct {
	Remaining time.Duration
	Expired   bool
	// Stopped is set when the session no longer accepts ticks (completed or closed).
	Stopped bool
}

// TimedSession is the session state the timer drives.
type TimedSession interface {
	Tick() TickResult
	Checkpoint(ctx context.Context) error
	Expire(ctx context.Context) error
}

// EventType enumerates timer events.
type EventType string

const (
	EventTick       EventType = "tick"
	EventCheckpoint EventType = "checkpoint"
	EventExpired    EventType = "expired"
)

// TimerEvent is published after every tick, checkpoint and on expiry.
type TimerEvent struct {
	Type      EventType     `json:"type"`
	Remaining time.Duration `json:"remaining"`
}

// ExamTimer counts a session down one tick at a time, checkpoints it every
// checkpointEvery ticks and completes it when no time is left.
type ExamTimer struct {
	target          TimedSession
	ticks           TickSource
	checkpointEvery int
	log             zerolog.Logger

	events chan TimerEvent
	done   chan struct{}

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
	stopped bool
}

// NewExamTimer creates a new ExamTimer. A nil ticks uses RealTicks.
func NewExamTimer(target TimedSession, ticks TickSource, checkpointEvery int, log zerolog.Logger) *ExamTimer {
	if ticks == nil {
		ticks = RealTicks
	}
	return &ExamTimer{
		target:          target,
		ticks:           ticks,
		checkpointEvery: checkpointEvery,
		log:             log.With().Str("component", "exam_timer").Logger(),
		events:          make(chan TimerEvent, 64),
		done:            make(chan struct{}),
	}
}

// Start launches the countdown goroutine. Calling it again has no effect.
func (t *ExamTimer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started || t.stopped {
		return
	}
	t.started = true

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	go t.run(ctx)
}

// Stop cancels future ticks. A checkpoint or expiry already running is left to finish.
// Stop does not wait and is safe to call from the timer's own goroutine.
func (t *ExamTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.stopped = true

	if t.started {
		t.cancel()
		return
	}
	// Never started: release anyone waiting on Done or Events.
	close(t.done)
	close(t.events)
}

// Done is closed once the countdown goroutine has exited.
func (t *ExamTimer) Done() <-chan struct{} {
	return t.done
}

// Events streams timer events. The channel is closed when the timer exits.
// Slow readers miss events rather than blocking the countdown.
func (t *ExamTimer) Events() <-chan TimerEvent {
	return t.events
}

func (t *ExamTimer) run(ctx context.Context) {
	defer close(t.done)
	defer close(t.events)

	ticks, stop := t.ticks(TickInterval)
	defer stop()

	t.log.Debug().Msg("Timer started")
	elapsed := 0

	for {
		select {
		case <-ctx.Done():
			t.log.Debug().Int("elapsed", elapsed).Msg("Timer stopped")
			return
		case <-ticks:
		}

		res := t.target.Tick()
		if res.Stopped {
			return
		}
		elapsed++

		if res.Expired {
			t.emit(TimerEvent{Type: EventExpired, Remaining: 0})
			t.log.Info().Int("elapsed", elapsed).Msg("Time expired")
			if err := t.target.Expire(context.Background()); err != nil {
				t.log.Error().Err(err).Msg("Expiry completion error")
			}
			return
		}

		t.emit(TimerEvent{Type: EventTick, Remaining: res.Remaining})

		if t.checkpointEvery > 0 && elapsed%t.checkpointEvery == 0 {
			// Detached from ctx: Stop must not abort a save in flight.
			if err := t.target.Checkpoint(context.Background()); err != nil {
				t.log.Warn().Err(err).Int("elapsed", elapsed).Msg("Checkpoint save failed")
				continue
			}
			t.emit(TimerEvent{Type: EventCheckpoint, Remaining: res.Remaining})
		}
	}
}

func (t *ExamTimer) emit(ev TimerEvent) {
	select {
	case t.events <- ev:
	default:
	}
}
