package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeSession struct {
	mu          sync.Mutex
	remaining   time.Duration
	stopped     bool
	checkpoints int
	expiries    int
	checkErr    error
}

func (f *fakeSession) Tick() TickResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return TickResult{Stopped: true}
	}
	f.remaining -= time.Second
	if f.remaining <= 0 {
		f.remaining = 0
		return TickResult{Expired: true}
	}
	return TickResult{Remaining: f.remaining}
}

func (f *fakeSession) Checkpoint(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkpoints++
	return f.checkErr
}

func (f *fakeSession) Expire(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiries++
	f.stopped = true
	return nil
}

func (f *fakeSession) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.checkpoints, f.expiries
}

// manualTicks returns a TickSource driven by the test.
func manualTicks() (TickSource, chan time.Time) {
	ch := make(chan time.Time)
	return func(time.Duration) (<-chan time.Time, func()) {
		return ch, func() {}
	}, ch
}

func waitDone(t *testing.T, timer *ExamTimer) {
	t.Helper()
	select {
	case <-timer.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("timer did not exit")
	}
}

func TestExamTimer_CheckpointEveryN(t *testing.T) {
	sess := &fakeSession{remaining: time.Hour}
	ticks, ch := manualTicks()

	timer := NewExamTimer(sess, ticks, 30, zerolog.Nop())
	timer.Start()

	for i := 0; i < 65; i++ {
		ch <- time.Now()
	}
	timer.Stop()
	waitDone(t, timer)

	checkpoints, expiries := sess.counts()
	if checkpoints != 2 {
		t.Fatalf("checkpoints = %d, want 2", checkpoints)
	}
	if expiries != 0 {
		t.Fatalf("expiries = %d, want 0", expiries)
	}
	if sess.remaining != time.Hour-65*time.Second {
		t.Fatalf("remaining = %s", sess.remaining)
	}
}

func TestExamTimer_ExpiresOnce(t *testing.T) {
	sess := &fakeSession{remaining: 3 * time.Second}
	ticks, ch := manualTicks()

	timer := NewExamTimer(sess, ticks, 30, zerolog.Nop())
	timer.Start()

	for i := 0; i < 3; i++ {
		ch <- time.Now()
	}
	waitDone(t, timer)

	_, expiries := sess.counts()
	if expiries != 1 {
		t.Fatalf("expiries = %d, want 1", expiries)
	}

	var last TimerEvent
	for ev := range timer.Events() {
		last = ev
	}
	if last.Type != EventExpired {
		t.Fatalf("last event = %s, want %s", last.Type, EventExpired)
	}
}

func TestExamTimer_StopHaltsTicks(t *testing.T) {
	sess := &fakeSession{remaining: time.Minute}
	ticks, ch := manualTicks()

	timer := NewExamTimer(sess, ticks, 30, zerolog.Nop())
	timer.Start()
	ch <- time.Now()
	timer.Stop()
	waitDone(t, timer)

	select {
	case ch <- time.Now():
		t.Fatalf("tick accepted after stop")
	case <-time.After(20 * time.Millisecond):
	}

	if sess.remaining != time.Minute-time.Second {
		t.Fatalf("remaining = %s, want %s", sess.remaining, time.Minute-time.Second)
	}
}

func TestExamTimer_CheckpointFailureKeepsCounting(t *testing.T) {
	sess := &fakeSession{remaining: time.Hour, checkErr: errors.New("disk full")}
	ticks, ch := manualTicks()

	timer := NewExamTimer(sess, ticks, 2, zerolog.Nop())
	timer.Start()
	for i := 0; i < 6; i++ {
		ch <- time.Now()
	}
	timer.Stop()
	waitDone(t, timer)

	checkpoints, _ := sess.counts()
	if checkpoints != 3 {
		t.Fatalf("checkpoints = %d, want 3", checkpoints)
	}
}

func TestExamTimer_StopBeforeStart(t *testing.T) {
	timer := NewExamTimer(&fakeSession{remaining: time.Minute}, nil, 30, zerolog.Nop())
	timer.Stop()
	waitDone(t, timer)
	timer.Start()

	if _, ok := <-timer.Events(); ok {
		t.Fatalf("events channel should be closed")
	}
}
