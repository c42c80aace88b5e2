package faceapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// UserID is the opaque, server-assigned user identifier.
// The service may send it as a JSON string or number; it is always kept as text.
type UserID string

func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("unmarshal user id: %w", err)
		}
		*id = UserID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("unmarshal user id: %w", err)
	}
	*id = UserID(n.String())
	return nil
}

// MarshalJSON writes canonical integers ("42", "-7") as numbers, the form
// integer ids arrive in. Anything else, including "007" and "+5", stays a string.
func (id UserID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id UserID) String() string { return string(id) }

// User is an enrolled identity record. It is read-only after creation.
type User struct {
	ID        UserID     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	ImageData string `json:"image_data"`
}

// RecognizeRequest is the body of POST /api/recognize.
type RecognizeRequest struct {
	ImageData string `json:"image_data"`
}

// RecognizeResponse is the wire shape of a recognition answer.
type RecognizeResponse struct {
	User       *User    `json:"user,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Message    string   `json:"message"`
}

// UserList is the body of GET /api/users. Total is optional on the wire.
type UserList struct {
	Users []User `json:"users"`
	Total *int   `json:"total,omitempty"`
}

// DeleteResponse is the confirmation payload of DELETE /api/users/{id}.
type DeleteResponse struct {
	Message string `json:"message"`
}

// ErrInvalidResult is returned when a recognition answer violates the
// matched ⇔ (user and confidence) invariant.
var ErrInvalidResult = errors.New("invalid recognition result")

// RecognitionResult is the interpreted outcome of a recognition request.
// A result is matched exactly when it carries both a user and a confidence.
// Build it with NewMatchedResult, NewUnmatchedResult or ResultFromResponse.
type RecognitionResult struct {
	user       *User
	confidence float64
	matched    bool
	message    string
}

// NewMatchedResult builds a matched result. Confidence must lie in [0,1].
func NewMatchedResult(user User, confidence float64, message string) (*RecognitionResult, error) {
	if confidence < 0 || confidence > 1 {
		return nil, fmt.Errorf("%w: confidence %v outside [0,1]", ErrInvalidResult, confidence)
	}
	if message == "" {
		return nil, fmt.Errorf("%w: missing message", ErrInvalidResult)
	}
	return &RecognitionResult{user: &user, confidence: confidence, matched: true, message: message}, nil
}

// NewUnmatchedResult builds a "no match" result.
func NewUnmatchedResult(message string) (*RecognitionResult, error) {
	if message == "" {
		return nil, fmt.Errorf("%w: missing message", ErrInvalidResult)
	}
	return &RecognitionResult{message: message}, nil
}

// ResultFromResponse validates a wire response and converts it.
// A user without a confidence (or the reverse) is rejected.
func ResultFromResponse(resp *RecognizeResponse) (*RecognitionResult, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrInvalidResult)
	}
	switch {
	case resp.User != nil && resp.Confidence != nil:
		return NewMatchedResult(*resp.User, *resp.Confidence, resp.Message)
	case resp.User == nil && resp.Confidence == nil:
		return NewUnmatchedResult(resp.Message)
	case resp.User != nil:
		return nil, fmt.Errorf("%w: user without confidence", ErrInvalidResult)
	default:
		return nil, fmt.Errorf("%w: confidence without user", ErrInvalidResult)
	}
}

// Matched reports whether a user was identified.
func (r *RecognitionResult) Matched() bool { return r.matched }

// User returns the matched user, or nil.
func (r *RecognitionResult) User() *User { return r.user }

// Confidence returns the match confidence and whether it is present.
func (r *RecognitionResult) Confidence() (float64, bool) { return r.confidence, r.matched }

// Message returns the human-readable explanation.
func (r *RecognitionResult) Message() string { return r.message }

// Response converts the result back to its wire shape.
func (r *RecognitionResult) Response() RecognizeResponse {
	resp := RecognizeResponse{Message: r.message}
	if r.matched {
		u := *r.user
		c := r.confidence
		resp.User = &u
		resp.Confidence = &c
	}
	return resp
}

// MarshalJSON encodes the result with its wire shape plus a "matched" flag.
func (r *RecognitionResult) MarshalJSON() ([]byte, error) {
	out := struct {
		Matched bool `json:"matched"`
		RecognizeResponse
	}{Matched: r.matched, RecognizeResponse: r.Response()}
	return json.Marshal(out)
}
