package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation      ErrCode = "VALIDATION_ERROR"
	ErrInvalidID       ErrCode = "INVALID_ID"
	ErrInvalidPayload  ErrCode = "INVALID_PAYLOAD"
	ErrInvalidQuestion ErrCode = "INVALID_QUESTION"

	// ─── Sessions ──────────────────────────────────────────────────────
	ErrSessionNotFound  ErrCode = "SESSION_NOT_FOUND"
	ErrSessionCompleted ErrCode = "SESSION_COMPLETED"
	ErrSessionClosed    ErrCode = "SESSION_CLOSED"

	// ─── Storage ───────────────────────────────────────────────────────
	ErrSaveFailed         ErrCode = "SAVE_FAILED"
	ErrStorageUnavailable ErrCode = "STORAGE_UNAVAILABLE"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."
	case ErrInvalidQuestion:
		return "Question number is outside the pass."

	// ─── Sessions ──────────────────────────────────────────────────────
	case ErrSessionNotFound:
		return "No open session was found."
	case ErrSessionCompleted:
		return "This session is already completed."
	case ErrSessionClosed:
		return "This session was closed or restarted."

	// ─── Storage ───────────────────────────────────────────────────────
	case ErrSaveFailed:
		return "Progress could not be saved. It will be saved again on the next change."
	case ErrStorageUnavailable:
		return "Session storage is unavailable. The pass cannot be started."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
