package service

import "errors"

var (
	// ErrStorageUnavailable means the store could not be read or written while
	// opening, creating or deleting sessions. The exam cannot start.
	ErrStorageUnavailable = errors.New("session storage unavailable")
	// ErrSaveFailed means a save did not reach the store. The in-memory session
	// stays authoritative and the next mutation or checkpoint saves again.
	ErrSaveFailed = errors.New("session save failed")
	// ErrNotFound means no live session has the requested ID.
	ErrNotFound = errors.New("session not found")
	// ErrSessionCompleted is returned when mutating a completed session.
	ErrSessionCompleted = errors.New("session already completed")
	// ErrSessionClosed is returned when using a handle that was closed or restarted.
	ErrSessionClosed = errors.New("session closed")
	// ErrInvalidQuestion is returned for question numbers outside the pass.
	ErrInvalidQuestion = errors.New("invalid question number")
	// ErrInvalidIdentity is returned for malformed session identities.
	ErrInvalidIdentity = errors.New("invalid session identity")
)
