package service

import (
	"sort"
	"time"

	"github.com/stemsi/provpass/internal/model"
)

// AnswerLedger is the in-memory question → option map of an open session.
// It is not safe for concurrent use; ActiveSession guards it.
type AnswerLedger struct {
	entries map[int]model.Answer
}

// NewAnswerLedger rebuilds a ledger from durable answers.
func NewAnswerLedger(answers []model.Answer) *AnswerLedger {
	l := &AnswerLedger{entries: make(map[int]model.Answer, len(answers))}
	for _, a := range answers {
		if a.SelectedOption == "" {
			continue
		}
		l.entries[a.QuestionNumber] = a
	}
	return l
}

// Get returns the selected option for a question.
func (l *AnswerLedger) Get(questionNumber int) (string, bool) {
	a, ok := l.entries[questionNumber]
	return a.SelectedOption, ok
}

// Set selects option for a question; an empty option clears it.
func (l *AnswerLedger) Set(questionNumber int, option string, at time.Time) {
	if option == "" {
		delete(l.entries, questionNumber)
		return
	}
	l.entries[questionNumber] = model.Answer{
		QuestionNumber: questionNumber,
		SelectedOption: option,
		AnsweredAt:     at,
	}
}

// Toggle clears the question when option is already selected and selects it otherwise.
// It returns the selection after the change.
func (l *AnswerLedger) Toggle(questionNumber int, option string, at time.Time) (string, bool) {
	if current, ok := l.Get(questionNumber); ok && current == option {
		l.Set(questionNumber, "", at)
		return "", false
	}
	l.Set(questionNumber, option, at)
	return l.Get(questionNumber)
}

// OrderedEntries returns the answers sorted by question number.
func (l *AnswerLedger) OrderedEntries() []model.Answer {
	out := make([]model.Answer, 0, len(l.entries))
	for _, a := range l.entries {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].QuestionNumber < out[j].QuestionNumber
	})
	return out
}

// Len returns the number of answered questions.
func (l *AnswerLedger) Len() int {
	return len(l.entries)
}
