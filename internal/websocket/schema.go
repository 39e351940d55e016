package websocket

import "github.com/stemsi/provpass/internal/model"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer   Action = "answer"
	ActionAdvance  Action = "advance"
	ActionComplete Action = "complete"
	ActionPing     Action = "ping"
)

// ClientMessage is every message the exam screen sends. Fields not used by
// the action are left zero.
type ClientMessage struct {
	Action         Action `json:"action"`
	QuestionNumber int    `json:"question_number,omitempty"`
	Option         string `json:"option,omitempty"`
	Delta          int    `json:"delta,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState      Event = "state"
	EventTick       Event = "tick"
	EventCheckpoint Event = "checkpoint"
	EventCompleted  Event = "completed"
	EventError      Event = "error"
	EventPong       Event = "pong"
)

// StateResponse carries the full session view after every action.
type StateResponse struct {
	Event Event              `json:"event"`
	State model.SessionState `json:"state"`
}

// TimerResponse is pushed on every tick and after every checkpoint.
type TimerResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
