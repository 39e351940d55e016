package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/provpass/internal/content"
	"github.com/stemsi/provpass/internal/model"
	"github.com/stemsi/provpass/internal/worker"
)

// ActiveSession is the live, in-process handle of one opened practice session.
// It is safe for concurrent use by the presentation layer and its timer.
type ActiveSession struct {
	svc   *PracticeService
	log   zerolog.Logger
	timer *worker.ExamTimer

	// saveMu serializes saves. The snapshot is taken while holding it so
	// writes reach the store in snapshot order.
	saveMu sync.Mutex

	mu         sync.Mutex
	session    model.Session
	ledger     *AnswerLedger
	closed     bool
	deleted    bool
	finalSaved bool
}

func newActiveSession(svc *PracticeService, s model.Session) *ActiveSession {
	as := &ActiveSession{
		svc:     svc,
		session: s,
		ledger:  NewAnswerLedger(s.Answers),
		log: svc.log.With().
			Str("session_id", s.ID.String()).
			Str("identity", s.Identity.Key()).
			Logger(),
	}
	as.session.Answers = nil
	if s.TimerEnabled && !s.Completed {
		as.timer = worker.NewExamTimer(as, svc.opts.Ticks, svc.opts.CheckpointEvery, as.log)
	}
	return as
}

// ID returns the session ID.
func (s *ActiveSession) ID() uuid.UUID {
	return s.session.ID
}

// Identity returns the session identity.
func (s *ActiveSession) Identity() model.SessionIdentity {
	return s.session.Identity
}

func (s *ActiveSession) CurrentQuestion() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.CurrentQuestion
}

func (s *ActiveSession) TimeRemaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.TimeRemaining
}

func (s *ActiveSession) TimerEnabled() bool {
	return s.session.TimerEnabled
}

func (s *ActiveSession) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Completed
}

// Answers returns the current answers ordered by question number.
func (s *ActiveSession) Answers() []model.Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.OrderedEntries()
}

// Selected returns the option selected on the current question, if any.
func (s *ActiveSession) Selected() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Get(s.session.CurrentQuestion)
}

// Snapshot returns a copy of the session including its answers.
func (s *ActiveSession) Snapshot() model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Options returns the answer alphabet of the current question.
func (s *ActiveSession) Options() []string {
	return content.Options(s.svc.content, s.session.Identity.Kind, s.CurrentQuestion())
}

// Events streams timer events. It returns nil when the timer is disabled.
func (s *ActiveSession) Events() <-chan worker.TimerEvent {
	if s.timer == nil {
		return nil
	}
	return s.timer.Events()
}

// State returns the presentation view of the session.
func (s *ActiveSession) State() model.SessionState {
	s.mu.Lock()
	snap := s.snapshotLocked()
	var selected *string
	if opt, ok := s.ledger.Get(snap.CurrentQuestion); ok {
		selected = &opt
	}
	s.mu.Unlock()

	return model.SessionState{
		Session:          snap,
		Selected:         selected,
		Options:          content.Options(s.svc.content, snap.Identity.Kind, snap.CurrentQuestion),
		RemainingSeconds: int(snap.TimeRemaining / time.Second),
	}
}

// RecordAnswer toggles option on question: selecting the chosen option again
// clears it, any other option overwrites it. The session is saved afterwards.
func (s *ActiveSession) RecordAnswer(ctx context.Context, questionNumber int, option string) error {
	s.mu.Lock()
	if err := s.mutableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if !model.ValidQuestion(questionNumber) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrInvalidQuestion, questionNumber)
	}
	selected, ok := s.ledger.Toggle(questionNumber, option, s.svc.now())
	s.mu.Unlock()

	s.log.Debug().
		Int("question", questionNumber).
		Str("selected", selected).
		Bool("answered", ok).
		Msg("Answer recorded")

	return s.save(ctx)
}

// Advance moves the question pointer by delta, clamped to the pass, and saves
// even when the clamp keeps the pointer in place. Moving past the last
// question completes the session once that question is answered.
func (s *ActiveSession) Advance(ctx context.Context, delta int) error {
	s.mu.Lock()
	if err := s.mutableLocked(); err != nil {
		s.mu.Unlock()
		return err
	}

	target := s.session.CurrentQuestion + delta
	if target > model.QuestionCount && s.session.CurrentQuestion == model.QuestionCount {
		if _, answered := s.ledger.Get(model.QuestionCount); answered {
			s.mu.Unlock()
			return s.Complete(ctx)
		}
	}
	s.session.CurrentQuestion = min(max(target, 1), model.QuestionCount)
	s.mu.Unlock()

	return s.save(ctx)
}

// Complete finishes the session: it stops the timer and writes the final state.
// Calling it again is a no-op, unless the final save failed, in which case the
// same final state is saved again.
func (s *ActiveSession) Complete(ctx context.Context) error {
	s.mu.Lock()
	if s.deleted {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.session.Completed {
		done := s.finalSaved
		s.mu.Unlock()
		if done {
			return nil
		}
		return s.finish(ctx)
	}
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.session.Completed = true
	answered := s.ledger.Len()
	s.mu.Unlock()

	s.stopTimer()
	s.log.Info().Int("answered", answered).Msg("Session completed")
	return s.finish(ctx)
}

// Close detaches the handle when the user leaves the session. Progress stays
// durable and an in-flight save is allowed to finish.
func (s *ActiveSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.stopTimer()
	s.svc.unregister(s)
	s.log.Debug().Msg("Session closed")
}

// Tick implements worker.TimedSession.
func (s *ActiveSession) Tick() worker.TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.Completed || s.closed {
		return worker.TickResult{Stopped: true}
	}
	s.session.TimeRemaining -= worker.TickInterval
	if s.session.TimeRemaining <= 0 {
		s.session.TimeRemaining = 0
		return worker.TickResult{Expired: true}
	}
	return worker.TickResult{Remaining: s.session.TimeRemaining}
}

// Checkpoint implements worker.TimedSession.
func (s *ActiveSession) Checkpoint(ctx context.Context) error {
	return s.save(ctx)
}

// Expire implements worker.TimedSession.
func (s *ActiveSession) Expire(ctx context.Context) error {
	s.log.Info().Msg("Time is up")
	return s.Complete(ctx)
}

func (s *ActiveSession) mutableLocked() error {
	if s.closed {
		return ErrSessionClosed
	}
	if s.session.Completed {
		return ErrSessionCompleted
	}
	return nil
}

func (s *ActiveSession) snapshotLocked() model.Session {
	snap := s.session
	snap.Answers = s.ledger.OrderedEntries()
	return snap
}

func (s *ActiveSession) startTimer() {
	if s.timer != nil {
		s.timer.Start()
	}
}

func (s *ActiveSession) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
	}
}

func (s *ActiveSession) finish(ctx context.Context) error {
	if err := s.save(ctx); err != nil {
		return err
	}
	// The final state is durable; the handle is no longer reachable by ID.
	s.svc.unregister(s)
	return nil
}

// save writes the full current state. Once the final state is durable, or the
// session was deleted by a restart, nothing is written.
func (s *ActiveSession) save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.deleted {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.finalSaved {
		s.mu.Unlock()
		return nil
	}
	snap := s.session
	snap.LastUpdated = s.svc.now()
	answers := s.ledger.OrderedEntries()
	s.mu.Unlock()

	if err := s.svc.store.Save(ctx, &snap, answers); err != nil {
		s.log.Error().Err(err).
			Int("question", snap.CurrentQuestion).
			Bool("completed", snap.Completed).
			Msg("Failed to save session")
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	s.mu.Lock()
	s.session.LastUpdated = snap.LastUpdated
	if snap.Completed {
		s.finalSaved = true
	}
	s.mu.Unlock()
	return nil
}

// forceClose stops the handle for a restart and waits for a save in flight.
// No save starts afterwards.
func (s *ActiveSession) forceClose() {
	s.mu.Lock()
	s.closed = true
	s.deleted = true
	s.mu.Unlock()

	s.stopTimer()

	// Wait for the in-flight save, if any.
	s.saveMu.Lock()
	s.saveMu.Unlock() //nolint:staticcheck
}
