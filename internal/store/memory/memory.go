// Package memory is the in-process Store backend, searched through an HNSW graph.
package memory

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
	"github.com/oklog/ulid/v2"

	"github.com/kozaktomas/face-recognizer/internal/fingerprint"
	"github.com/kozaktomas/face-recognizer/internal/store"
)

// HNSW index parameters for 128-dim signature embeddings
const (
	// hnswMaxNeighbors (M) is the maximum number of neighbors per node.
	hnswMaxNeighbors = 16

	// hnswEfSearch is the search candidate pool size.
	hnswEfSearch = 100

	// hnswMinSearchCandidates is the minimum number of graph neighbours
	// re-ranked by exact distance.
	hnswMinSearchCandidates = 100

	// exactScanLimit is the user count up to which Nearest compares every
	// user instead of searching the graph.
	exactScanLimit = 4096

	// maxRecognitionLogs bounds the in-memory recognition log.
	maxRecognitionLogs = 1000
)

// Store keeps users in memory. The zero value is not usable; call New or Open.
type Store struct {
	mu     sync.RWMutex
	users  map[string]*store.User
	order  []string          // creation order
	emails map[string]string // normalized email -> id
	graph  *hnsw.Graph[string]
	logs   []store.RecognitionLog
	path   string
	now    func() time.Time

	// exactScanLimit defaults to the package constant.
	exactScanLimit int
}

var _ store.Store = (*Store)(nil)

// New creates an empty store that is never persisted.
func New() *Store {
	return &Store{
		users:  make(map[string]*store.User),
		emails: make(map[string]string),
		now:    time.Now,

		exactScanLimit: exactScanLimit,
	}
}

// Open creates a store persisted at path. Existing index files are loaded;
// a missing file starts an empty store.
func Open(path string) (*Store, error) {
	s := New()
	s.path = path
	if path == "" {
		return s, nil
	}
	if _, err := os.Stat(path + ".users"); os.IsNotExist(err) {
		return s, nil
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func newGraph() *hnsw.Graph[string] {
	g := hnsw.NewGraph[string]()
	g.M = hnswMaxNeighbors
	g.Ml = 1.0 / float64(hnswMaxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance
	g.EfSearch = hnswEfSearch
	return g
}

// CreateUser stores a new user with a fresh ULID.
func (s *Store) CreateUser(_ context.Context, user *store.User) error {
	if len(user.Embedding) == 0 {
		return errors.New("user embedding is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := store.NormalizeEmail(user.Email)
	if _, ok := s.emails[key]; ok {
		return store.ErrDuplicateEmail
	}

	user.ID = ulid.Make().String()
	user.CreatedAt = s.now().UTC()
	user.UpdatedAt = nil

	stored := *user
	stored.Embedding = append([]float32(nil), user.Embedding...)

	if s.graph == nil {
		s.graph = newGraph()
	}
	s.graph.Add(hnsw.MakeNode(stored.ID, stored.Embedding))

	s.users[stored.ID] = &stored
	s.order = append(s.order, stored.ID)
	s.emails[key] = stored.ID
	return nil
}

// GetUser returns a copy of the user with the given id.
func (s *Store) GetUser(_ context.Context, id string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// GetUserByEmail looks a user up by normalized email.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*store.User, error) {
	s.mu.RLock()
	id, ok := s.emails[store.NormalizeEmail(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, store.ErrNotFound
	}
	return s.GetUser(ctx, id)
}

// ListUsers returns a page of users in creation order.
func (s *Store) ListUsers(_ context.Context, skip, limit int) ([]store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if skip >= len(s.order) || limit <= 0 {
		return []store.User{}, nil
	}
	end := min(skip+limit, len(s.order))

	out := make([]store.User, 0, end-skip)
	for _, id := range s.order[skip:end] {
		out = append(out, *s.users[id])
	}
	return out, nil
}

// CountUsers returns the number of enrolled users.
func (s *Store) CountUsers(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users), nil
}

// DeleteUser removes a user and rebuilds the search graph without it.
func (s *Store) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return store.ErrNotFound
	}

	delete(s.users, id)
	delete(s.emails, store.NormalizeEmail(u.Email))
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.rebuildGraph()
	return nil
}

// rebuildGraph recreates the graph from s.users. Caller holds the write lock.
func (s *Store) rebuildGraph() {
	if len(s.users) == 0 {
		s.graph = nil
		return
	}
	g := newGraph()
	for _, id := range s.order {
		u := s.users[id]
		g.Add(hnsw.MakeNode(u.ID, u.Embedding))
	}
	s.graph = g
}

// Nearest returns the closest enrolled user by cosine distance. Small stores
// are scanned exactly; larger ones re-rank the graph's candidates.
func (s *Store) Nearest(_ context.Context, embedding []float32) (*store.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.users) == 0 {
		return nil, nil
	}

	if s.graph == nil || len(s.users) <= s.exactScanLimit {
		return s.closest(embedding, s.order), nil
	}

	// Search with more candidates for better recall after re-ranking
	searchK := min(hnswMinSearchCandidates, len(s.users))
	neighbors := s.graph.Search(embedding, searchK)

	keys := make([]string, 0, len(neighbors))
	for _, n := range neighbors {
		keys = append(keys, n.Key)
	}
	return s.closest(embedding, keys), nil
}

// closest picks the user among ids with the smallest exact distance.
// Caller holds the read lock.
func (s *Store) closest(embedding []float32, ids []string) *store.Match {
	var best *store.Match
	for _, id := range ids {
		u, ok := s.users[id]
		if !ok {
			continue
		}
		d := fingerprint.CosineDistance(embedding, u.Embedding)
		if best == nil || d < best.Distance {
			best = &store.Match{User: *u, Distance: d}
		}
	}
	return best
}

// LogRecognition appends to a bounded in-memory log.
func (s *Store) LogRecognition(_ context.Context, entry store.RecognitionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}
	s.logs = append(s.logs, entry)
	if len(s.logs) > maxRecognitionLogs {
		s.logs = s.logs[len(s.logs)-maxRecognitionLogs:]
	}
	return nil
}

// Recognitions returns a copy of the recognition log, oldest first.
func (s *Store) Recognitions() []store.RecognitionLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]store.RecognitionLog(nil), s.logs...)
}

// Close persists the store when it was opened with a path.
func (s *Store) Close() error {
	return s.Save()
}

// Save writes the graph to path and the user records to path+".users".
func (s *Store) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.path == "" {
		return nil
	}

	if s.graph == nil {
		// Remove existing files if the store is empty (best-effort cleanup).
		_ = os.Remove(s.path)
		_ = os.Remove(s.path + ".users")
		return nil
	}

	f, err := os.Create(s.path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	if err := s.graph.Export(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to export HNSW graph: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing HNSW index file: %w", err)
	}

	users := make([]store.User, 0, len(s.order))
	for _, id := range s.order {
		users = append(users, *s.users[id])
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(users); err != nil {
		return fmt.Errorf("failed to encode users: %w", err)
	}
	if err := os.WriteFile(s.path+".users", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write users file: %w", err)
	}
	return nil
}

// load reads the files written by Save. A graph that disagrees with the user
// records is discarded and rebuilt.
func (s *Store) load() error {
	data, err := os.ReadFile(s.path + ".users") //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to read users file: %w", err)
	}

	var users []store.User
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&users); err != nil {
		return fmt.Errorf("failed to decode users: %w", err)
	}
	// ULIDs sort by creation time.
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range users {
		u := users[i]
		s.users[u.ID] = &u
		s.order = append(s.order, u.ID)
		s.emails[store.NormalizeEmail(u.Email)] = u.ID
	}

	if saved, err := hnsw.LoadSavedGraph[string](s.path); err == nil && saved.Len() == len(users) {
		s.graph = saved.Graph
		s.graph.EfSearch = hnswEfSearch
		return nil
	}
	s.rebuildGraph()
	return nil
}
