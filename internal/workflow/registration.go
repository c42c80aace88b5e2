package workflow

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/capture"
	"github.com/kozaktomas/face-recognizer/internal/faceapi"
	"github.com/kozaktomas/face-recognizer/internal/logging"
)

// Enroller creates users on the recognition service.
type Enroller interface {
	Register(ctx context.Context, req faceapi.RegisterRequest) (*faceapi.User, error)
}

// Registration validates identity fields and a captured image, then enrolls the user.
// It issues at most one request per Submit and never retries.
type Registration struct {
	enroller Enroller
	logger   *zap.Logger
	inFlight atomic.Bool
}

// NewRegistration creates a registration workflow. A nil logger disables logging.
func NewRegistration(enroller Enroller, logger *zap.Logger) *Registration {
	return &Registration{enroller: enroller, logger: logging.OrNop(logger)}
}

// CheckIdentity trims name and email and reports the first one missing as a
// *ValidationError. Callers can run it before acquiring an image.
func CheckIdentity(name, email string) (string, string, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" {
		return "", "", &ValidationError{Field: FieldName, Message: "name is required"}
	}
	if email == "" {
		return "", "", &ValidationError{Field: FieldEmail, Message: "email is required"}
	}
	return name, email, nil
}

// InFlight reports whether a submission is outstanding.
func (r *Registration) InFlight() bool { return r.inFlight.Load() }

// Submit enrolls name and email with the session's captured image.
// Preconditions are checked in order (name, email, image) and fail with
// *ValidationError before any network call. The session is left untouched;
// the caller resets it after success.
func (r *Registration) Submit(ctx context.Context, name, email string, session *capture.Session) (*faceapi.User, error) {
	name, email, err := CheckIdentity(name, email)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, &ValidationError{Field: FieldImage, Message: "capture or upload a photo first"}
	}

	if !r.inFlight.CompareAndSwap(false, true) {
		return nil, ErrInFlight
	}
	defer r.inFlight.Store(false)

	img, done, err := session.Begin()
	if errors.Is(err, capture.ErrNotCaptured) {
		return nil, &ValidationError{Field: FieldImage, Message: "capture or upload a photo first"}
	}
	if err != nil {
		return nil, err
	}
	defer done()

	logger := r.logger.With(zap.String("email", email), zap.String("source", string(img.Source)))
	logger.Debug("submitting registration")

	user, err := r.enroller.Register(ctx, faceapi.RegisterRequest{
		Name:      name,
		Email:     email,
		ImageData: img.Payload,
	})
	if err != nil {
		subErr := newSubmissionError(err, genericRegistrationFailure)
		logger.Warn("registration failed", zap.String("reason", subErr.Message()), zap.Error(err))
		return nil, subErr
	}

	logger.Info("user registered", zap.String("user_id", user.ID.String()))
	return user, nil
}
