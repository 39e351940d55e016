package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/stemsi/provpass/internal/model"
)

// ErrNotFound is returned when a session does not exist in the store.
var ErrNotFound = errors.New("session not found")

// SessionFilter narrows ListSessions. Nil fields match everything.
type SessionFilter struct {
	Kind       *model.TestKind
	PassNumber *int
	OpenOnly   bool
}

// Match reports whether s passes the filter.
func (f SessionFilter) Match(s *model.Session) bool {
	if f.Kind != nil && s.Identity.Kind != *f.Kind {
		return false
	}
	if f.PassNumber != nil && s.Identity.PassNumber != *f.PassNumber {
		return false
	}
	if f.OpenOnly && s.Completed {
		return false
	}
	return true
}

// SessionStore is the durable persistence of practice sessions and their answers.
//
// Save must be atomic: either the session header and the complete answer set are
// written together, or the previous durable state is left untouched.
type SessionStore interface {
	// ListSessions returns session headers (without answers) ordered by start time.
	ListSessions(ctx context.Context, filter SessionFilter) ([]model.Session, error)
	// LoadSession returns a session with its answers ordered by question number.
	LoadSession(ctx context.Context, id uuid.UUID) (*model.Session, error)
	// Save upserts the session header and replaces its whole answer set.
	Save(ctx context.Context, s *model.Session, answers []model.Answer) error
	// Delete removes the sessions and their answers. Unknown IDs are ignored.
	Delete(ctx context.Context, ids []uuid.UUID) error
	Close() error
}

func sortAnswers(answers []model.Answer) {
	sort.Slice(answers, func(i, j int) bool {
		return answers[i].QuestionNumber < answers[j].QuestionNumber
	})
}

func sortSessions(sessions []model.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})
}

func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func nullableYear(id model.SessionIdentity) *string {
	return id.Year
}

func nullableSemester(id model.SessionIdentity) *string {
	if id.Semester == nil {
		return nil
	}
	s := string(*id.Semester)
	return &s
}

func identityFrom(kind string, pass int, year, semester *string) model.SessionIdentity {
	id := model.SessionIdentity{
		Kind:       model.TestKind(kind),
		PassNumber: pass,
		Year:       year,
	}
	if semester != nil {
		s := model.Semester(*semester)
		id.Semester = &s
	}
	return id
}
