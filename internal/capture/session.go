package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// State is the observable state of a capture session.
type State int

const (
	StateIdle State = iota
	StateCaptured
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCaptured:
		return "captured"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrAlreadyCaptured is returned by Capture when an image is held; Retake first.
	ErrAlreadyCaptured = errors.New("image already captured, retake first")
	// ErrNotCaptured is returned when an operation needs a held image.
	ErrNotCaptured = errors.New("no image captured")
	// ErrBusy is returned when a capture or submission is already in flight on the session.
	ErrBusy = errors.New("session busy")
)

// Session tracks one capture attempt: Idle -> Captured -> Idle (retake or hand-off).
// At most one image is held; a new capture always fully replaces the previous one.
type Session struct {
	encoder *Encoder

	mu    sync.Mutex
	state State
	image *CapturedImage
	busy  bool
}

// NewSession creates an idle session. A nil encoder uses NewEncoder(0, 0).
func NewSession(encoder *Encoder) *Session {
	if encoder == nil {
		encoder = NewEncoder(0, 0)
	}
	return &Session{encoder: encoder}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Busy reports whether a capture or submission is in flight.
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Capture acquires and encodes one image. It is valid only in Idle.
// On failure the session stays Idle and the error matches ErrInvalidImageSource.
func (s *Session) Capture(ctx context.Context, acquirer Acquirer) (*CapturedImage, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.leave()

	if acquirer == nil {
		return nil, fmt.Errorf("%w: no source selected", ErrInvalidImageSource)
	}

	src, err := acquirer.Acquire(ctx)
	if err != nil {
		if !errors.Is(err, ErrInvalidImageSource) {
			err = fmt.Errorf("%w: %w", ErrInvalidImageSource, err)
		}
		return nil, err
	}

	img, err := s.encoder.Encode(ctx, src)
	if err != nil {
		if !errors.Is(err, ErrInvalidImageSource) {
			err = fmt.Errorf("%w: %w", ErrInvalidImageSource, err)
		}
		return nil, err
	}

	s.mu.Lock()
	s.image = img
	s.state = StateCaptured
	s.mu.Unlock()
	return img, nil
}

// enter marks the session busy for a capture. It fails if busy or already captured.
func (s *Session) enter() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return ErrBusy
	}
	if s.state == StateCaptured {
		return ErrAlreadyCaptured
	}
	s.busy = true
	return nil
}

func (s *Session) leave() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

// Retake discards any held image and returns to Idle. It is idempotent.
func (s *Session) Retake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.image = nil
	s.state = StateIdle
}

// CurrentImage returns the held image or nil.
func (s *Session) CurrentImage() *CapturedImage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

// Consume hands the held image off and resets the session to Idle.
func (s *Session) Consume() (*CapturedImage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return nil, ErrBusy
	}
	if s.state != StateCaptured {
		return nil, ErrNotCaptured
	}
	img := s.image
	s.image = nil
	s.state = StateIdle
	return img, nil
}

// Begin starts a submission against the held image. It fails with
// ErrNotCaptured in Idle and ErrBusy while another submission is in flight.
// The returned done func must be called once the submission resolves.
func (s *Session) Begin() (*CapturedImage, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return nil, nil, ErrBusy
	}
	if s.state != StateCaptured || s.image == nil {
		return nil, nil, ErrNotCaptured
	}
	s.busy = true
	var once sync.Once
	return s.image, func() { once.Do(s.leave) }, nil
}
