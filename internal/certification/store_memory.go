package certification

import (
	"context"
	"sort"
	"sync"

	"kiosk/internal/sentinel"
)

type pair struct {
	userID int64
	certID int64
}

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	certs  map[int64]Certification
	byName map[string]int64
	held   map[pair]bool
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		certs:  make(map[int64]Certification),
		byName: make(map[string]int64),
		held:   make(map[pair]bool),
	}
}

func (s *MemoryStore) Create(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.byName[name]; taken {
		return 0, sentinel.ErrConflict
	}
	s.nextID++
	s.certs[s.nextID] = Certification{ID: s.nextID, Name: name}
	s.byName[name] = s.nextID
	return s.nextID, nil
}

func (s *MemoryStore) Assign(_ context.Context, userID, certID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.certs[certID]; !ok {
		return sentinel.ErrNotFound
	}
	p := pair{userID: userID, certID: certID}
	if s.held[p] {
		return sentinel.ErrConflict
	}
	s.held[p] = true
	return nil
}

func (s *MemoryStore) Revoke(_ context.Context, userID, certID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := pair{userID: userID, certID: certID}
	if !s.held[p] {
		return sentinel.ErrNotFound
	}
	delete(s.held, p)
	return nil
}

func (s *MemoryStore) List(_ context.Context) ([]Certification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Certification, 0, len(s.certs))
	for _, c := range s.certs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryStore) ListForUser(_ context.Context, userID int64) ([]Certification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Certification
	for p := range s.held {
		if p.userID == userID {
			out = append(out, s.certs[p.certID])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
