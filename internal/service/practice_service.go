package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/provpass/internal/content"
	"github.com/stemsi/provpass/internal/model"
	"github.com/stemsi/provpass/internal/repository"
	"github.com/stemsi/provpass/internal/worker"
)

// Options tunes a PracticeService. Zero values fall back to the model defaults.
type Options struct {
	ExamDuration    time.Duration
	CheckpointEvery int
	// Ticks drives session timers. Nil uses a one-second ticker.
	Ticks worker.TickSource
	Now   func() time.Time
}

func (o Options) withDefaults() Options {
	if o.ExamDuration <= 0 {
		o.ExamDuration = model.ExamDuration
	}
	if o.CheckpointEvery <= 0 {
		o.CheckpointEvery = model.CheckpointEvery
	}
	if o.Ticks == nil {
		o.Ticks = worker.RealTicks
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// PracticeService opens, resumes and restarts practice sessions and keeps the
// registry of live handles.
type PracticeService struct {
	store    repository.SessionStore
	resolver *SessionResolver
	content  content.Provider
	opts     Options
	log      zerolog.Logger

	// opMu serializes Open, Restart and RestartAll.
	opMu sync.Mutex

	regMu      sync.Mutex
	byID       map[uuid.UUID]*ActiveSession
	byIdentity map[string]*ActiveSession
}

// NewPracticeService creates a new PracticeService.
func NewPracticeService(
	store repository.SessionStore,
	provider content.Provider,
	log zerolog.Logger,
	opts Options,
) *PracticeService {
	log = log.With().Str("component", "practice_service").Logger()
	return &PracticeService{
		store:      store,
		resolver:   NewSessionResolver(store, log),
		content:    provider,
		opts:       opts.withDefaults(),
		log:        log,
		byID:       make(map[uuid.UUID]*ActiveSession),
		byIdentity: make(map[string]*ActiveSession),
	}
}

// Open resumes the open session of identity or creates a fresh one, and starts
// its timer when enabled. A session already live in this process is returned as is.
// On resume the persisted timer setting wins over timerEnabled.
func (p *PracticeService) Open(ctx context.Context, identity model.SessionIdentity, timerEnabled bool) (*ActiveSession, error) {
	if err := identity.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}

	p.opMu.Lock()
	defer p.opMu.Unlock()

	if live := p.liveByIdentity(identity); live != nil {
		if !live.Completed() {
			return live, nil
		}
		// Completed in memory but the final save has not landed yet.
		if err := live.Complete(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
		}
	}

	res, err := p.resolver.Resolve(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if len(res.Malformed) > 0 {
		if err := p.store.Delete(ctx, res.Malformed); err != nil {
			return nil, fmt.Errorf("%w: purge malformed sessions: %w", ErrStorageUnavailable, err)
		}
		p.log.Warn().Int("count", len(res.Malformed)).Str("identity", identity.Key()).Msg("Purged malformed sessions")
	}

	s := res.Session
	if s != nil {
		if s.TimerEnabled != timerEnabled {
			p.log.Debug().
				Str("session_id", s.ID.String()).
				Bool("persisted", s.TimerEnabled).
				Msg("Keeping persisted timer setting")
		}
		p.log.Info().
			Str("session_id", s.ID.String()).
			Int("question", s.CurrentQuestion).
			Dur("remaining", s.TimeRemaining).
			Int("answers", len(s.Answers)).
			Msg("Session resumed")
	} else {
		s, err = p.create(ctx, identity, timerEnabled)
		if err != nil {
			return nil, err
		}
	}

	as := newActiveSession(p, *s)
	p.register(as)
	as.startTimer()
	return as, nil
}

func (p *PracticeService) create(ctx context.Context, identity model.SessionIdentity, timerEnabled bool) (*model.Session, error) {
	now := p.now()
	s := &model.Session{
		ID:              uuid.New(),
		Identity:        identity,
		CurrentQuestion: 1,
		TimeRemaining:   p.opts.ExamDuration,
		TimerEnabled:    timerEnabled,
		StartedAt:       now,
		LastUpdated:     now,
	}
	if err := p.store.Save(ctx, s, nil); err != nil {
		p.log.Error().Err(err).Str("identity", identity.Key()).Msg("Failed to create session")
		return nil, fmt.Errorf("%w: create session: %w", ErrStorageUnavailable, err)
	}
	p.log.Info().
		Str("session_id", s.ID.String()).
		Str("identity", identity.Key()).
		Bool("timer", timerEnabled).
		Msg("Session created")
	return s, nil
}

// Restart deletes every session of identity, completed or not, together with
// its answers. A live handle of the identity is closed first. Nothing to delete is not an error.
func (p *PracticeService) Restart(ctx context.Context, identity model.SessionIdentity) error {
	if err := identity.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}
	return p.restart(ctx, identity.Kind, identity.PassNumber, func(other model.SessionIdentity) bool {
		return other.Equal(identity)
	})
}

// RestartAll deletes every session of kind and pass, whatever their year and semester.
func (p *PracticeService) RestartAll(ctx context.Context, kind model.TestKind, passNumber int) error {
	return p.restart(ctx, kind, passNumber, func(other model.SessionIdentity) bool {
		return other.Kind == kind && other.PassNumber == passNumber
	})
}

func (p *PracticeService) restart(ctx context.Context, kind model.TestKind, passNumber int, match func(model.SessionIdentity) bool) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	headers, err := p.store.ListSessions(ctx, repository.SessionFilter{Kind: &kind, PassNumber: &passNumber})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	var ids []uuid.UUID
	for i := range headers {
		if headers[i].ID != uuid.Nil && match(headers[i].Identity) {
			ids = append(ids, headers[i].ID)
		}
	}

	for _, live := range p.detach(match) {
		live.forceClose()
		live.log.Info().Msg("Live session closed for restart")
	}

	if len(ids) == 0 {
		p.log.Debug().Str("kind", string(kind)).Int("pass", passNumber).Msg("Nothing to restart")
		return nil
	}

	if err := p.store.Delete(ctx, ids); err != nil {
		p.log.Error().Err(err).Int("count", len(ids)).Msg("Failed to delete sessions")
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	p.log.Info().
		Str("kind", string(kind)).
		Int("pass", passNumber).
		Int("count", len(ids)).
		Msg("Sessions deleted")
	return nil
}

// Session returns the live handle with the given ID. A session that is not
// live reports ErrSessionCompleted when its durable record is completed and
// ErrNotFound otherwise.
func (p *PracticeService) Session(ctx context.Context, id uuid.UUID) (*ActiveSession, error) {
	p.regMu.Lock()
	as, ok := p.byID[id]
	p.regMu.Unlock()
	if ok {
		return as, nil
	}

	s, err := p.store.LoadSession(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if s.Completed {
		return nil, ErrSessionCompleted
	}
	return nil, ErrNotFound
}

// FindOpenSession returns the durable open session of identity, or nil.
func (p *PracticeService) FindOpenSession(ctx context.Context, identity model.SessionIdentity) (*model.Session, error) {
	if err := identity.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidIdentity, err)
	}
	s, err := p.resolver.FindOpenSession(ctx, identity)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return s, nil
}

// HasOpenSession reports whether an open session exists for kind and pass,
// in any year or semester. Used by pass listings to offer a resume.
func (p *PracticeService) HasOpenSession(ctx context.Context, kind model.TestKind, passNumber int) (bool, error) {
	ok, err := p.resolver.HasAnyOpenSession(ctx, func(id model.SessionIdentity) bool {
		return id.Kind == kind && id.PassNumber == passNumber
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return ok, nil
}

// ListSessions returns the durable session headers matching filter.
func (p *PracticeService) ListSessions(ctx context.Context, filter repository.SessionFilter) ([]model.Session, error) {
	sessions, err := p.store.ListSessions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return sessions, nil
}

// Shutdown checkpoints and closes every live session.
func (p *PracticeService) Shutdown(ctx context.Context) {
	p.regMu.Lock()
	live := make([]*ActiveSession, 0, len(p.byID))
	for _, as := range p.byID {
		live = append(live, as)
	}
	p.regMu.Unlock()

	for _, as := range live {
		as.stopTimer()
		if !as.Completed() {
			if err := as.save(ctx); err != nil {
				as.log.Warn().Err(err).Msg("Shutdown checkpoint failed")
			}
		}
		as.Close()
	}
	p.log.Info().Int("sessions", len(live)).Msg("Live sessions closed")
}

func (p *PracticeService) now() time.Time {
	return p.opts.Now().UTC()
}

func (p *PracticeService) liveByIdentity(identity model.SessionIdentity) *ActiveSession {
	p.regMu.Lock()
	defer p.regMu.Unlock()
	return p.byIdentity[identity.Key()]
}

func (p *PracticeService) register(as *ActiveSession) {
	p.regMu.Lock()
	defer p.regMu.Unlock()
	p.byID[as.ID()] = as
	p.byIdentity[as.Identity().Key()] = as
}

func (p *PracticeService) unregister(as *ActiveSession) {
	p.regMu.Lock()
	defer p.regMu.Unlock()
	if p.byID[as.ID()] == as {
		delete(p.byID, as.ID())
	}
	key := as.Identity().Key()
	if p.byIdentity[key] == as {
		delete(p.byIdentity, key)
	}
}

// detach removes and returns the live handles whose identity matches.
func (p *PracticeService) detach(match func(model.SessionIdentity) bool) []*ActiveSession {
	p.regMu.Lock()
	defer p.regMu.Unlock()

	var out []*ActiveSession
	for id, as := range p.byID {
		if !match(as.Identity()) {
			continue
		}
		out = append(out, as)
		delete(p.byID, id)
		if key := as.Identity().Key(); p.byIdentity[key] == as {
			delete(p.byIdentity, key)
		}
	}
	return out
}
