package model

// IdentityRequest carries a session identity in request payloads and query strings.
type IdentityRequest struct {
	Kind       string  `json:"kind" form:"kind" binding:"required,testkind"`
	PassNumber *int    `json:"pass_number" form:"pass_number" binding:"required,min=0"`
	Year       *string `json:"year" form:"year" binding:"omitempty,numeric,len=4"`
	Semester   *string `json:"semester" form:"semester" binding:"omitempty,semester"`
}

// Identity converts the request into a SessionIdentity.
func (r IdentityRequest) Identity() SessionIdentity {
	id := SessionIdentity{
		Kind:       TestKind(r.Kind),
		PassNumber: *r.PassNumber,
	}
	if r.Year != nil && *r.Year != "" {
		y := *r.Year
		id.Year = &y
	}
	if r.Semester != nil && *r.Semester != "" {
		s := Semester(*r.Semester)
		id.Semester = &s
	}
	return id
}

// OpenSessionRequest is the payload for opening or resuming a pass.
type OpenSessionRequest struct {
	IdentityRequest
	TimerEnabled bool `json:"timer_enabled"`
}

// RecordAnswerRequest is the payload for selecting or toggling an option.
type RecordAnswerRequest struct {
	QuestionNumber int    `json:"question_number" binding:"required,min=1,max=40"`
	Option         string `json:"option" binding:"required,max=8"`
}

// AdvanceRequest is the payload for navigating between questions.
type AdvanceRequest struct {
	Delta int `json:"delta" binding:"required,oneof=-1 1"`
}

// PassRequest names every session of a kind and pass, whatever their year and semester.
type PassRequest struct {
	Kind       string `json:"kind" form:"kind" binding:"required,testkind"`
	PassNumber *int   `json:"pass_number" form:"pass_number" binding:"required,min=0"`
}

// SessionListQuery filters the durable session listing.
type SessionListQuery struct {
	Kind       *string `form:"kind" binding:"omitempty,testkind"`
	PassNumber *int    `form:"pass_number" binding:"omitempty,min=0"`
	OpenOnly   bool    `form:"open_only"`
}

// SessionState is the view of a live session returned to the presentation layer.
type SessionState struct {
	Session          Session  `json:"session"`
	Selected         *string  `json:"selected"`
	Options          []string `json:"options"`
	RemainingSeconds int      `json:"remaining_seconds"`
}
