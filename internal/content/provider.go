// Package content describes the question layout of a provpass: which section a
// question belongs to and how many answer options that section offers.
package content

import "github.com/stemsi/provpass/internal/model"

// Section is the short code of an exam section.
type Section string

const (
	SectionXYZ Section = "XYZ"
	SectionKVA Section = "KVA"
	SectionNOG Section = "NOG"
	SectionDTK Section = "DTK"
	SectionORD Section = "ORD"
	SectionLAS Section = "LÄS"
	SectionMEK Section = "MEK"
	SectionELF Section = "ELF"
)

// Provider answers layout questions for the session engine. Both lookups are pure.
type Provider interface {
	AnswerAlphabetSize(section Section) int
	SectionCode(kind model.TestKind, questionNumber int) Section
}

type sectionRange struct {
	section Section
	last    int // inclusive upper question number
}

// HPProvider implements Provider for the standard högskoleprov layout.
type HPProvider struct{}

// NewHPProvider creates a new HPProvider.
func NewHPProvider() *HPProvider {
	return &HPProvider{}
}

var layouts = map[model.TestKind][]sectionRange{
	model.TestKindQuant: {
		{SectionXYZ, 12},
		{SectionKVA, 22},
		{SectionNOG, 28},
		{SectionDTK, 40},
	},
	model.TestKindVerbal: {
		{SectionORD, 10},
		{SectionLAS, 20},
		{SectionMEK, 30},
		{SectionELF, 40},
	},
}

// AnswerAlphabetSize returns 5 for sections offering A-E and 4 otherwise.
func (p *HPProvider) AnswerAlphabetSize(section Section) int {
	switch section {
	case SectionNOG, SectionORD:
		return 5
	default:
		return 4
	}
}

// SectionCode maps a question number to its section. Out-of-range numbers are
// clamped to the nearest section.
func (p *HPProvider) SectionCode(kind model.TestKind, questionNumber int) Section {
	ranges, ok := layouts[kind]
	if !ok {
		ranges = layouts[model.TestKindQuant]
	}
	for _, r := range ranges {
		if questionNumber <= r.last {
			return r.section
		}
	}
	return ranges[len(ranges)-1].section
}

// Alphabet renders the first n option letters ("A", "B", ...).
func Alphabet(n int) []string {
	letters := make([]string, 0, n)
	for i := 0; i < n && i < 26; i++ {
		letters = append(letters, string(rune('A'+i)))
	}
	return letters
}

// Options returns the option letters for a question.
func Options(p Provider, kind model.TestKind, questionNumber int) []string {
	return Alphabet(p.AnswerAlphabetSize(p.SectionCode(kind, questionNumber)))
}
