// Package postgres is the PostgreSQL Store backend. Embeddings live in a
// pgvector column and nearest-neighbour search runs in the database.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/logging"
	"github.com/kozaktomas/face-recognizer/internal/store"
)

// uniqueViolation is the PostgreSQL SQLSTATE for unique constraint failures.
const uniqueViolation = "23505"

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to PostgreSQL and applies pending migrations.
func Open(ctx context.Context, cfg *config.DatabaseConfig, logger *zap.Logger) (*Store, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool.
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, logger: logging.OrNop(logger)}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

// CreateUser inserts a user and fills in its id and creation time.
func (s *Store) CreateUser(ctx context.Context, user *store.User) error {
	if len(user.Embedding) == 0 {
		return errors.New("user embedding is required")
	}

	var id int64
	var createdAt time.Time
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (name, email, email_normalized, embedding)
		VALUES ($1, $2, $3, $4::vector)
		RETURNING id, created_at
	`, user.Name, user.Email, store.NormalizeEmail(user.Email), pgvector.NewVector(user.Embedding)).Scan(&id, &createdAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return store.ErrDuplicateEmail
		}
		return fmt.Errorf("insert user: %w", err)
	}

	user.ID = strconv.FormatInt(id, 10)
	user.CreatedAt = createdAt.UTC()
	user.UpdatedAt = nil
	return nil
}

// GetUser fetches a user by id. Non-numeric ids are reported as not found.
func (s *Store) GetUser(ctx context.Context, id string) (*store.User, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, store.ErrNotFound
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, embedding, created_at, updated_at
		FROM users WHERE id = $1
	`, n)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// GetUserByEmail fetches a user by normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, embedding, created_at, updated_at
		FROM users WHERE email_normalized = $1
	`, store.NormalizeEmail(email))
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return &u, nil
}

// ListUsers returns a page of users ordered by id.
func (s *Store) ListUsers(ctx context.Context, skip, limit int) ([]store.User, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, embedding, created_at, updated_at
		FROM users ORDER BY id OFFSET $1 LIMIT $2
	`, skip, limit)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []store.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

// CountUsers returns the number of enrolled users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

// DeleteUser removes a user. Recognition log rows keep a NULL user.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return store.ErrNotFound
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = $1", n)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Nearest returns the user with the smallest cosine distance to embedding.
func (s *Store) Nearest(ctx context.Context, embedding []float32) (*store.Match, error) {
	vec := pgvector.NewVector(embedding)
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, embedding, created_at, updated_at, embedding <=> $1::vector AS distance
		FROM users
		ORDER BY embedding <=> $1::vector
		LIMIT 1
	`, vec)

	var distance float64
	u, err := scanUser(row, &distance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("nearest user: %w", err)
	}
	return &store.Match{User: u, Distance: distance}, nil
}

// LogRecognition records one recognition attempt.
func (s *Store) LogRecognition(ctx context.Context, entry store.RecognitionLog) error {
	var userID sql.NullInt64
	if entry.UserID != "" {
		if n, err := strconv.ParseInt(entry.UserID, 10, 64); err == nil {
			userID = sql.NullInt64{Int64: n, Valid: true}
		}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO recognition_logs (user_id, confidence, matched, message)
		VALUES ($1, $2, $3, $4)
	`, userID, entry.Confidence, entry.Matched, entry.Message)
	if err != nil {
		return fmt.Errorf("insert recognition log: %w", err)
	}
	return nil
}

// scanUser scans the standard user columns, with optional extra destinations
// appended after them (e.g., a distance column).
func scanUser(scanner interface{ Scan(...any) error }, extraDest ...any) (store.User, error) {
	var u store.User
	var id int64
	var vec pgvector.Vector
	var updatedAt sql.NullTime

	dest := append([]any{&id, &u.Name, &u.Email, &vec, &u.CreatedAt, &updatedAt}, extraDest...)
	if err := scanner.Scan(dest...); err != nil {
		return u, err //nolint:wrapcheck // callers wrap and check sql.ErrNoRows
	}

	u.ID = strconv.FormatInt(id, 10)
	u.Embedding = vec.Slice()
	u.CreatedAt = u.CreatedAt.UTC()
	if updatedAt.Valid {
		t := updatedAt.Time.UTC()
		u.UpdatedAt = &t
	}
	return u, nil
}
