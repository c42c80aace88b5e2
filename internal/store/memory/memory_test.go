package memory

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/kozaktomas/face-recognizer/internal/fingerprint"
	"github.com/kozaktomas/face-recognizer/internal/store"
)

// embedding returns a ±1 vector with the first n components flipped to +1.
func embedding(n int) []float32 {
	v := make([]float32, 128)
	for i := range v {
		v[i] = -1
		if i < n {
			v[i] = 1
		}
	}
	return v
}

func mustCreate(t *testing.T, s *Store, name, email string, emb []float32) *store.User {
	t.Helper()
	u := &store.User{Name: name, Email: email, Embedding: emb}
	if err := s.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("CreateUser(%s) failed: %v", email, err)
	}
	return u
}

func TestCreateAndGet(t *testing.T) {
	s := New()
	ctx := context.Background()

	u := mustCreate(t, s, "Ana Ruiz", "ana@example.com", embedding(10))
	if u.ID == "" {
		t.Fatal("expected an assigned id")
	}
	if u.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser failed: %v", err)
	}
	if got.Name != "Ana Ruiz" || got.Email != "ana@example.com" {
		t.Errorf("unexpected user %+v", got)
	}

	if _, err := s.GetUser(ctx, "missing"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	byEmail, err := s.GetUserByEmail(ctx, "ANA@Example.com")
	if err != nil || byEmail.ID != u.ID {
		t.Errorf("GetUserByEmail = %+v, %v", byEmail, err)
	}
	if _, err := s.GetUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateDuplicateEmail(t *testing.T) {
	s := New()
	mustCreate(t, s, "Ana", "ana@example.com", embedding(1))

	err := s.CreateUser(context.Background(), &store.User{Name: "Other", Email: " ANA@example.com", Embedding: embedding(2)})
	if !errors.Is(err, store.ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
	if n, _ := s.CountUsers(context.Background()); n != 1 {
		t.Errorf("expected 1 user, got %d", n)
	}
}

func TestCreateRequiresEmbedding(t *testing.T) {
	s := New()
	if err := s.CreateUser(context.Background(), &store.User{Name: "A", Email: "a@example.com"}); err == nil {
		t.Error("expected error for missing embedding")
	}
}

func TestListUsersPaging(t *testing.T) {
	s := New()
	ctx := context.Background()
	emails := []string{"a@example.com", "b@example.com", "c@example.com", "d@example.com"}
	for i, e := range emails {
		mustCreate(t, s, e, e, embedding(i*20))
	}

	tests := []struct {
		name        string
		skip, limit int
		want        []string
	}{
		{"all", 0, 100, emails},
		{"first page", 0, 2, emails[:2]},
		{"second page", 2, 2, emails[2:]},
		{"past end", 10, 5, nil},
		{"zero limit", 0, 0, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users, err := s.ListUsers(ctx, tc.skip, tc.limit)
			if err != nil {
				t.Fatalf("ListUsers failed: %v", err)
			}
			if users == nil {
				t.Fatal("expected non-nil slice")
			}
			if len(users) != len(tc.want) {
				t.Fatalf("expected %d users, got %d", len(tc.want), len(users))
			}
			for i, u := range users {
				if u.Email != tc.want[i] {
					t.Errorf("position %d: expected %s, got %s", i, tc.want[i], u.Email)
				}
			}
		})
	}
}

func TestNearest(t *testing.T) {
	s := New()
	ctx := context.Background()

	if m, err := s.Nearest(ctx, embedding(0)); err != nil || m != nil {
		t.Fatalf("expected no match on empty store, got %v, %v", m, err)
	}

	ana := mustCreate(t, s, "Ana", "ana@example.com", embedding(0))
	mustCreate(t, s, "Bo", "bo@example.com", embedding(64))
	mustCreate(t, s, "Cy", "cy@example.com", embedding(128))

	m, err := s.Nearest(ctx, embedding(4))
	if err != nil {
		t.Fatalf("Nearest failed: %v", err)
	}
	if m == nil || m.User.ID != ana.ID {
		t.Fatalf("expected Ana as nearest, got %+v", m)
	}
	if m.Distance <= 0 || m.Distance >= 0.1 {
		t.Errorf("unexpected distance %v", m.Distance)
	}
}

// randomEmbedding returns a seeded random ±1 vector.
func randomEmbedding(rng *rand.Rand) []float32 {
	v := make([]float32, 128)
	for i := range v {
		v[i] = -1
		if rng.IntN(2) == 1 {
			v[i] = 1
		}
	}
	return v
}

func enrollRandom(t *testing.T, s *Store, n int) []*store.User {
	t.Helper()
	rng := rand.New(rand.NewPCG(42, 1042))
	users := make([]*store.User, 0, n)
	for i := range n {
		users = append(users, mustCreate(t, s, fmt.Sprintf("User %d", i), fmt.Sprintf("user%d@example.com", i), randomEmbedding(rng)))
	}
	return users
}

func TestNearestFindsEveryEnrolledUser(t *testing.T) {
	for _, n := range []int{10, 100, 500} {
		t.Run(fmt.Sprintf("%d users", n), func(t *testing.T) {
			s := New()
			ctx := context.Background()
			users := enrollRandom(t, s, n)

			misses := 0
			for _, u := range users {
				m, err := s.Nearest(ctx, u.Embedding)
				if err != nil {
					t.Fatalf("Nearest failed: %v", err)
				}
				if m == nil || m.User.ID != u.ID {
					misses++
					continue
				}
				if m.Distance > 1e-6 {
					t.Errorf("self distance for %s = %v", u.Email, m.Distance)
				}
			}
			if misses != 0 {
				t.Errorf("%d of %d enrolled users were not their own nearest match", misses, n)
			}
		})
	}
}

func TestNearestGraphSearchReranksExactly(t *testing.T) {
	s := New()
	s.exactScanLimit = 0
	ctx := context.Background()
	users := enrollRandom(t, s, 150)

	for _, u := range users {
		m, err := s.Nearest(ctx, u.Embedding)
		if err != nil {
			t.Fatalf("Nearest failed: %v", err)
		}
		if m == nil {
			t.Fatalf("graph search returned no match for %s", u.Email)
		}
		if want := fingerprint.CosineDistance(u.Embedding, m.User.Embedding); m.Distance != want {
			t.Errorf("distance %v is not the exact distance %v", m.Distance, want)
		}
	}
}

func TestDeleteUser(t *testing.T) {
	s := New()
	ctx := context.Background()

	ana := mustCreate(t, s, "Ana", "ana@example.com", embedding(0))
	bo := mustCreate(t, s, "Bo", "bo@example.com", embedding(100))

	if err := s.DeleteUser(ctx, ana.ID); err != nil {
		t.Fatalf("DeleteUser failed: %v", err)
	}
	if err := s.DeleteUser(ctx, ana.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}

	m, err := s.Nearest(ctx, embedding(0))
	if err != nil {
		t.Fatalf("Nearest failed: %v", err)
	}
	if m == nil || m.User.ID != bo.ID {
		t.Errorf("deleted user must not be returned, got %+v", m)
	}

	// Email becomes available again.
	mustCreate(t, s, "Ana", "ana@example.com", embedding(0))

	users, _ := s.ListUsers(ctx, 0, 10)
	if len(users) != 2 || users[0].ID != bo.ID {
		t.Errorf("unexpected listing after delete %+v", users)
	}
}

func TestLogRecognition(t *testing.T) {
	s := New()
	ctx := context.Background()

	for range maxRecognitionLogs + 5 {
		if err := s.LogRecognition(ctx, store.RecognitionLog{Message: "No matching face found"}); err != nil {
			t.Fatalf("LogRecognition failed: %v", err)
		}
	}
	logs := s.Recognitions()
	if len(logs) != maxRecognitionLogs {
		t.Errorf("expected log capped at %d, got %d", maxRecognitionLogs, len(logs))
	}
	if logs[0].CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be filled in")
	}
}

func TestSaveAndOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faces.hnsw")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open on missing file failed: %v", err)
	}
	ana := mustCreate(t, s, "Ana", "ana@example.com", embedding(0))
	bo := mustCreate(t, s, "Bo", "bo@example.com", embedding(128))
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	users, _ := reopened.ListUsers(ctx, 0, 10)
	if len(users) != 2 || users[0].ID != ana.ID || users[1].ID != bo.ID {
		t.Fatalf("unexpected users after reopen %+v", users)
	}

	m, err := reopened.Nearest(ctx, embedding(126))
	if err != nil || m == nil || m.User.ID != bo.ID {
		t.Errorf("expected Bo after reopen, got %+v, %v", m, err)
	}

	err = reopened.CreateUser(ctx, &store.User{Name: "Dup", Email: "ana@example.com", Embedding: embedding(3)})
	if !errors.Is(err, store.ErrDuplicateEmail) {
		t.Errorf("expected email index to survive reopen, got %v", err)
	}
}
