package exitcode

import (
	"os"
	"strings"

	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// AuthError indicates an authentication or authorization failure
	AuthError = 5

	// NetworkError indicates the API could not be reached
	NetworkError = 6

	// ConflictError indicates the server refused a change (capacity, duplicate booking)
	ConflictError = 7

	// ValidationError indicates input was rejected before or by the server
	ValidationError = 8

	// Interrupted indicates the user cancelled with Ctrl+C (128 + SIGINT)
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	if err == nil {
		Exit(Success)
		return
	}

	Exit(DetermineExitCode(err))
}

// DetermineExitCode maps an error to a process exit code. Coded errors are
// classified by their code; anything else falls back to cobra's usage
// error wording.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeAuthExpired,
		apperrors.ErrCodeAuthRequired,
		apperrors.ErrCodeSessionPending,
		apperrors.ErrCodeInvalidCredentials,
		apperrors.ErrCodeAuthorization:
		return AuthError
	case apperrors.ErrCodeNetwork:
		return NetworkError
	case apperrors.ErrCodeConflict:
		return ConflictError
	case apperrors.ErrCodeValidation:
		return ValidationError
	case "":
	default:
		return GeneralError
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, "invalid flag") || strings.Contains(errMsg, "unknown command") {
		return UsageError
	}
	if strings.Contains(errMsg, "unknown flag") || strings.Contains(errMsg, "unknown shorthand flag") {
		return UsageError
	}
	if strings.Contains(errMsg, "required flag") || strings.Contains(errMsg, "accepts ") {
		return UsageError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case ConflictError:
		return "Conflict (event full or already booked)"
	case ValidationError:
		return "Validation error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
