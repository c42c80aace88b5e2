package workflow

import (
	"context"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/capture"
	"github.com/kozaktomas/face-recognizer/internal/faceapi"
	"github.com/kozaktomas/face-recognizer/internal/logging"
)

// Recognizer matches an image against enrolled users.
type Recognizer interface {
	Recognize(ctx context.Context, req faceapi.RecognizeRequest) (*faceapi.RecognitionResult, error)
}

// Recognition submits a captured image for matching.
// "No match" is a successful result; only transport or protocol failures are errors.
type Recognition struct {
	recognizer Recognizer
	logger     *zap.Logger
	inFlight   atomic.Bool
}

// NewRecognition creates a recognition workflow. A nil logger disables logging.
func NewRecognition(recognizer Recognizer, logger *zap.Logger) *Recognition {
	return &Recognition{recognizer: recognizer, logger: logging.OrNop(logger)}
}

// InFlight reports whether a submission is outstanding.
func (r *Recognition) InFlight() bool { return r.inFlight.Load() }

// Submit sends the session's captured image for recognition. The session is
// not modified. Confidence is reported as returned by the service; no
// client-side threshold is applied.
func (r *Recognition) Submit(ctx context.Context, session *capture.Session) (*faceapi.RecognitionResult, error) {
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

	logger := r.logger.With(zap.String("source", string(img.Source)))
	logger.Debug("submitting recognition")

	result, err := r.recognizer.Recognize(ctx, faceapi.RecognizeRequest{ImageData: img.Payload})
	if err != nil {
		subErr := newSubmissionError(err, genericRecognitionFailure)
		logger.Warn("recognition failed", zap.String("reason", subErr.Message()), zap.Error(err))
		return nil, subErr
	}
	if result == nil {
		return nil, &SubmissionError{Err: faceapi.ErrMalformedResponse, generic: genericRecognitionFailure}
	}

	if result.Matched() {
		conf, _ := result.Confidence()
		logger.Info("face recognized", zap.String("user_id", result.User().ID.String()), zap.Float64("confidence", conf))
	} else {
		logger.Info("no match", zap.String("message", result.Message()))
	}
	return result, nil
}
