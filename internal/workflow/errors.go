// Package workflow drives registration, recognition and the user directory
// against the recognition service.
package workflow

import (
	"errors"
	"fmt"

	"github.com/kozaktomas/face-recognizer/internal/faceapi"
)

// Field names a client-side precondition.
type Field string

const (
	FieldName  Field = "name"
	FieldEmail Field = "email"
	FieldImage Field = "missingImage"
	FieldSkip  Field = "skip"
	FieldLimit Field = "limit"
	FieldID    Field = "id"
)

// ValidationError reports an unmet precondition. No network call was made.
type ValidationError struct {
	Field   Field
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// SubmissionError reports a failed or rejected remote call.
// Reason is the service's structured rejection when it sent one.
type SubmissionError struct {
	Reason string
	Err    error
	// generic is the fallback message used when Reason is empty.
	generic string
}

func (e *SubmissionError) Error() string {
	return e.Message()
}

// Message is the human-readable text to show the user.
func (e *SubmissionError) Message() string {
	if e.Reason != "" {
		return e.Reason
	}
	return e.generic
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// DeletionError reports a failed delete. The directory is unchanged.
type DeletionError struct {
	UserID faceapi.UserID
	Reason string
	Err    error
}

func (e *DeletionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("failed to delete user %s: %s", e.UserID, e.Reason)
	}
	return fmt.Sprintf("failed to delete user %s", e.UserID)
}

func (e *DeletionError) Unwrap() error { return e.Err }

var (
	// ErrDeleteNotConfirmed is returned when ConfirmDelete runs on an unconfirmed request.
	ErrDeleteNotConfirmed = errors.New("deletion was not confirmed")
	// ErrInFlight is returned when a workflow instance already has a submission outstanding.
	ErrInFlight = errors.New("submission already in progress")
)

const (
	genericRegistrationFailure = "Registration failed"
	genericRecognitionFailure  = "Recognition failed"
	genericListFailure         = "Failed to fetch users"
)

func newSubmissionError(err error, generic string) *SubmissionError {
	return &SubmissionError{Reason: faceapi.ReasonOf(err), Err: err, generic: generic}
}
