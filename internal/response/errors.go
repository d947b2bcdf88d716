package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden     ErrCode = "FORBIDDEN"
	ErrNotTestAuthor ErrCode = "NOT_TEST_AUTHOR"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Test taking ───────────────────────────────────────────────────
	ErrInvalidInvite     ErrCode = "INVALID_INVITE_TOKEN"
	ErrTestNotAvailable  ErrCode = "TEST_NOT_AVAILABLE"
	ErrTestEnded         ErrCode = "TEST_ENDED"
	ErrTestNotReady      ErrCode = "TEST_NOT_READY"
	ErrAlreadyTaken      ErrCode = "ALREADY_TAKEN"
	ErrNoQuestions       ErrCode = "NO_QUESTIONS"
	ErrSessionNotStarted ErrCode = "SESSION_NOT_STARTED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrNotTestAuthor:
		return "You are not the author of this test."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The identifier has an invalid format."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "The requested resource was not found."
	case ErrConflict:
		return "The resource already exists."

	// ─── Test taking ───────────────────────────────────────────────────
	case ErrInvalidInvite:
		return "The invite token is not valid for any test."
	case ErrTestNotAvailable:
		return "This test is not open yet."
	case ErrTestEnded:
		return "This test's availability window has ended."
	case ErrTestNotReady:
		return "This test is still being prepared."
	case ErrAlreadyTaken:
		return "This invite has already been used and the test does not allow repeat attempts."
	case ErrNoQuestions:
		return "This test has no questions."
	case ErrSessionNotStarted:
		return "No active test session for this invite."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
