// Package store persists enrolled users and their face signatures for the
// reference recognition service.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrNotFound       = errors.New("user not found")
	ErrDuplicateEmail = errors.New("user with this email already exists")
)

// User is an enrolled identity with its signature embedding.
type User struct {
	ID        string
	Name      string
	Email     string
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt *time.Time
}

// Match is the nearest enrolled user to a probe embedding.
type Match struct {
	User     User
	Distance float64 // cosine distance, 0 = identical
}

// RecognitionLog records one recognition attempt.
type RecognitionLog struct {
	UserID     string // empty when nothing matched
	Confidence float64
	Matched    bool
	Message    string
	CreatedAt  time.Time
}

// Store is implemented by the in-memory and PostgreSQL backends.
type Store interface {
	// CreateUser assigns ID and CreatedAt. Emails are unique after NormalizeEmail.
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	// GetUserByEmail matches on NormalizeEmail(email).
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	// ListUsers returns users in creation order.
	ListUsers(ctx context.Context, skip, limit int) ([]User, error)
	CountUsers(ctx context.Context) (int, error)
	DeleteUser(ctx context.Context, id string) error
	// Nearest returns nil without error when no users are enrolled.
	Nearest(ctx context.Context, embedding []float32) (*Match, error)
	LogRecognition(ctx context.Context, entry RecognitionLog) error
	Close() error
}

// NormalizeEmail returns the comparison key for an email address:
// trimmed, NFKC-normalized and case-folded ("Ana@Example.COM" -> "ana@example.com").
func NormalizeEmail(email string) string {
	return cases.Fold().String(norm.NFKC.String(strings.TrimSpace(email)))
}
