package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// QuestionCount is the number of questions in one provpass.
	QuestionCount = 40
	// ExamDuration is the time allowed for one timed provpass.
	ExamDuration = 55 * time.Minute
	// CheckpointEvery is the number of timer ticks between autosave checkpoints.
	CheckpointEvery = 30
)

// TestKind enumerates the two halves of the exam.
type TestKind string

const (
	TestKindQuant  TestKind = "quant"
	TestKindVerbal TestKind = "verbal"
)

// Valid reports whether k is a known test kind.
func (k TestKind) Valid() bool {
	return k == TestKindQuant || k == TestKindVerbal
}

// Semester enumerates when a historical test was given.
type Semester string

const (
	SemesterFall   Semester = "fall"
	SemesterSpring Semester = "spring"
)

// Valid reports whether s is a known semester.
func (s Semester) Valid() bool {
	return s == SemesterFall || s == SemesterSpring
}

// SessionIdentity distinguishes one practice pass from another.
// PassNumber 0 denotes a generated (non-historical) test.
type SessionIdentity struct {
	Kind       TestKind  `json:"kind"`
	PassNumber int       `json:"pass_number"`
	Year       *string   `json:"year,omitempty"`
	Semester   *Semester `json:"semester,omitempty"`
}

// Generated reports whether the identity refers to a generated test.
func (id SessionIdentity) Generated() bool {
	return id.PassNumber == 0
}

// Equal compares all four fields. A nil historical field only matches nil.
func (id SessionIdentity) Equal(other SessionIdentity) bool {
	if id.Kind != other.Kind || id.PassNumber != other.PassNumber {
		return false
	}
	if (id.Year == nil) != (other.Year == nil) {
		return false
	}
	if id.Year != nil && *id.Year != *other.Year {
		return false
	}
	if (id.Semester == nil) != (other.Semester == nil) {
		return false
	}
	if id.Semester != nil && *id.Semester != *other.Semester {
		return false
	}
	return true
}

// Key renders a stable string form, e.g. "quant:1:2024:fall" or "verbal:0:-:-".
func (id SessionIdentity) Key() string {
	year, sem := "-", "-"
	if id.Year != nil {
		year = *id.Year
	}
	if id.Semester != nil {
		sem = string(*id.Semester)
	}
	return strings.Join([]string{string(id.Kind), strconv.Itoa(id.PassNumber), year, sem}, ":")
}

func (id SessionIdentity) String() string {
	return id.Key()
}

// Validate checks the identity fields.
func (id SessionIdentity) Validate() error {
	if !id.Kind.Valid() {
		return fmt.Errorf("unknown test kind %q", id.Kind)
	}
	if id.PassNumber < 0 {
		return fmt.Errorf("negative pass number %d", id.PassNumber)
	}
	if id.Semester != nil && !id.Semester.Valid() {
		return fmt.Errorf("unknown semester %q", *id.Semester)
	}
	return nil
}

// Session represents one attempt at a 40-question pass.
type Session struct {
	ID              uuid.UUID       `json:"id"`
	Identity        SessionIdentity `json:"identity"`
	CurrentQuestion int             `json:"current_question"`
	TimeRemaining   time.Duration   `json:"time_remaining"`
	TimerEnabled    bool            `json:"timer_enabled"`
	StartedAt       time.Time       `json:"started_at"`
	LastUpdated     time.Time       `json:"last_updated"`
	Completed       bool            `json:"completed"`
	Answers         []Answer        `json:"answers,omitempty"`
}

// Answer is the option selected for one question.
type Answer struct {
	QuestionNumber int       `json:"question_number"`
	SelectedOption string    `json:"selected_option"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// ValidQuestion reports whether q is a question number of a pass.
func ValidQuestion(q int) bool {
	return q >= 1 && q <= QuestionCount
}

// Validate reports whether a stored session record is well formed.
func (s *Session) Validate() error {
	var errs []error
	if s.ID == uuid.Nil {
		errs = append(errs, errors.New("missing id"))
	}
	if err := s.Identity.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !ValidQuestion(s.CurrentQuestion) {
		errs = append(errs, fmt.Errorf("current question %d out of range", s.CurrentQuestion))
	}
	if s.TimeRemaining < 0 {
		errs = append(errs, fmt.Errorf("negative time remaining %s", s.TimeRemaining))
	}
	seen := make(map[int]bool, len(s.Answers))
	for _, a := range s.Answers {
		if !ValidQuestion(a.QuestionNumber) {
			errs = append(errs, fmt.Errorf("answer question %d out of range", a.QuestionNumber))
		}
		if seen[a.QuestionNumber] {
			errs = append(errs, fmt.Errorf("duplicate answer for question %d", a.QuestionNumber))
		}
		if a.SelectedOption == "" {
			errs = append(errs, fmt.Errorf("empty option for question %d", a.QuestionNumber))
		}
		seen[a.QuestionNumber] = true
	}
	return errors.Join(errs...)
}
