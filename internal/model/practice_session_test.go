package model

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func strPtr(s string) *string { return &s }

func semPtr(s Semester) *Semester { return &s }

func TestSessionIdentityEqual(t *testing.T) {
	base := SessionIdentity{Kind: TestKindQuant, PassNumber: 1, Year: strPtr("2024"), Semester: semPtr(SemesterFall)}

	tests := []struct {
		name  string
		other SessionIdentity
		want  bool
	}{
		{"identical", SessionIdentity{Kind: TestKindQuant, PassNumber: 1, Year: strPtr("2024"), Semester: semPtr(SemesterFall)}, true},
		{"different kind", SessionIdentity{Kind: TestKindVerbal, PassNumber: 1, Year: strPtr("2024"), Semester: semPtr(SemesterFall)}, false},
		{"different pass", SessionIdentity{Kind: TestKindQuant, PassNumber: 2, Year: strPtr("2024"), Semester: semPtr(SemesterFall)}, false},
		{"different year", SessionIdentity{Kind: TestKindQuant, PassNumber: 1, Year: strPtr("2023"), Semester: semPtr(SemesterFall)}, false},
		{"different semester", SessionIdentity{Kind: TestKindQuant, PassNumber: 1, Year: strPtr("2024"), Semester: semPtr(SemesterSpring)}, false},
		{"nil year", SessionIdentity{Kind: TestKindQuant, PassNumber: 1, Semester: semPtr(SemesterFall)}, false},
		{"nil semester", SessionIdentity{Kind: TestKindQuant, PassNumber: 1, Year: strPtr("2024")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := base.Equal(tt.other); got != tt.want {
				t.Fatalf("Equal() = %v, want %v", got, tt.want)
			}
			if got := tt.other.Equal(base); got != tt.want {
				t.Fatalf("Equal() not symmetric: %v, want %v", got, tt.want)
			}
		})
	}

	generated := SessionIdentity{Kind: TestKindVerbal}
	if !generated.Equal(SessionIdentity{Kind: TestKindVerbal}) {
		t.Fatalf("nil historical fields should match nil")
	}
}

func TestSessionIdentityKey(t *testing.T) {
	tests := []struct {
		id   SessionIdentity
		want string
	}{
		{SessionIdentity{Kind: TestKindQuant, PassNumber: 1, Year: strPtr("2024"), Semester: semPtr(SemesterFall)}, "quant:1:2024:fall"},
		{SessionIdentity{Kind: TestKindVerbal}, "verbal:0:-:-"},
	}
	for _, tt := range tests {
		if got := tt.id.Key(); got != tt.want {
			t.Errorf("Key() = %q, want %q", got, tt.want)
		}
	}
}

func TestSessionValidate(t *testing.T) {
	valid := func() *Session {
		return &Session{
			ID:              uuid.New(),
			Identity:        SessionIdentity{Kind: TestKindQuant, PassNumber: 3},
			CurrentQuestion: 1,
			TimeRemaining:   ExamDuration,
			Answers: []Answer{
				{QuestionNumber: 1, SelectedOption: "A", AnsweredAt: time.Now()},
			},
		}
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(s *Session)
		wantMsg string
	}{
		{"unknown kind", func(s *Session) { s.Identity.Kind = "math" }, "unknown test kind"},
		{"question zero", func(s *Session) { s.CurrentQuestion = 0 }, "current question"},
		{"question 41", func(s *Session) { s.CurrentQuestion = 41 }, "current question"},
		{"negative time", func(s *Session) { s.TimeRemaining = -time.Second }, "negative time"},
		{"duplicate answer", func(s *Session) {
			s.Answers = append(s.Answers, Answer{QuestionNumber: 1, SelectedOption: "B"})
		}, "duplicate answer"},
		{"empty option", func(s *Session) { s.Answers[0].SelectedOption = "" }, "empty option"},
		{"bad semester", func(s *Session) { s.Identity.Semester = semPtr("winter") }, "unknown semester"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := s.Validate()
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Fatalf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}
