package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/provpass/internal/model"
	"github.com/stemsi/provpass/internal/repository"
)

// SessionResolver finds durable open sessions by identity. It only reads.
type SessionResolver struct {
	store repository.SessionStore
	log   zerolog.Logger
}

// NewSessionResolver creates a new SessionResolver.
func NewSessionResolver(store repository.SessionStore, log zerolog.Logger) *SessionResolver {
	return &SessionResolver{
		store: store,
		log:   log.With().Str("component", "session_resolver").Logger(),
	}
}

// Resolution is the outcome of an identity lookup.
type Resolution struct {
	// Session is the open session for the identity, with its answers, or nil.
	Session *model.Session
	// Malformed lists sessions of the identity whose durable record is unusable.
	Malformed []uuid.UUID
}

// FindOpenSession returns the open session for identity, or nil when there is none.
// Completed and malformed sessions are never returned.
func (r *SessionResolver) FindOpenSession(ctx context.Context, identity model.SessionIdentity) (*model.Session, error) {
	res, err := r.Resolve(ctx, identity)
	if err != nil {
		return nil, err
	}
	return res.Session, nil
}

// Resolve looks up the open session for identity and reports malformed candidates.
func (r *SessionResolver) Resolve(ctx context.Context, identity model.SessionIdentity) (Resolution, error) {
	kind, pass := identity.Kind, identity.PassNumber
	headers, err := r.store.ListSessions(ctx, repository.SessionFilter{
		Kind:       &kind,
		PassNumber: &pass,
		OpenOnly:   true,
	})
	if err != nil {
		return Resolution{}, fmt.Errorf("list sessions: %w", err)
	}

	var res Resolution
	for i := range headers {
		h := &headers[i]
		if !h.Identity.Equal(identity) {
			continue
		}
		if h.ID == uuid.Nil {
			r.log.Warn().Str("identity", identity.Key()).Msg("Skipping session without a readable id")
			continue
		}

		s, err := r.store.LoadSession(ctx, h.ID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return Resolution{}, fmt.Errorf("load session %s: %w", h.ID, err)
		}
		if verr := s.Validate(); verr != nil {
			r.log.Warn().Err(verr).Str("session_id", s.ID.String()).Msg("Malformed session record")
			res.Malformed = append(res.Malformed, h.ID)
			continue
		}
		if s.Completed {
			continue
		}

		if res.Session != nil {
			// More than one open session: keep the most recently updated.
			r.log.Warn().
				Str("identity", identity.Key()).
				Str("kept", res.Session.ID.String()).
				Str("other", s.ID.String()).
				Msg("Duplicate open sessions for identity")
			if !s.LastUpdated.After(res.Session.LastUpdated) {
				continue
			}
		}
		res.Session = s
	}
	return res, nil
}

// HasAnyOpenSession reports whether any well-formed open session satisfies pred.
func (r *SessionResolver) HasAnyOpenSession(ctx context.Context, pred func(model.SessionIdentity) bool) (bool, error) {
	headers, err := r.store.ListSessions(ctx, repository.SessionFilter{OpenOnly: true})
	if err != nil {
		return false, fmt.Errorf("list sessions: %w", err)
	}
	for i := range headers {
		h := &headers[i]
		if h.ID == uuid.Nil || h.Validate() != nil {
			continue
		}
		if pred(h.Identity) {
			return true, nil
		}
	}
	return false, nil
}
