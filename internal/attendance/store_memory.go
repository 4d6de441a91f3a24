package attendance

import (
	"context"
	"sync"
	"time"

	"kiosk/internal/directory"
	"kiosk/internal/sentinel"
)

// MemoryStore is an in-process Store for tests and single-node dev runs. A
// single mutex covers directory and log, which trivially gives the same
// per-user atomicity the Postgres store gets from row locks.
type MemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	users   map[int64]directory.User
	byBadge map[string]int64
	log     []LogEntry
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[int64]directory.User),
		byBadge: make(map[string]int64),
	}
}

// AddUser registers a user with the default checked_out status and returns
// its id. A taken badge code yields sentinel.ErrConflict.
func (s *MemoryStore) AddUser(name, badgeCode string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if badgeCode != "" {
		if _, taken := s.byBadge[badgeCode]; taken {
			return 0, sentinel.ErrConflict
		}
	}
	s.nextID++
	id := s.nextID
	s.users[id] = directory.User{ID: id, BadgeCode: badgeCode, Name: name, Status: directory.StatusCheckedOut}
	if badgeCode != "" {
		s.byBadge[badgeCode] = id
	}
	return id, nil
}

// DeleteUser removes a user. Log entries referencing it remain.
func (s *MemoryStore) DeleteUser(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(s.users, id)
	if u.BadgeCode != "" {
		delete(s.byBadge, u.BadgeCode)
	}
	return nil
}

// Find resolves a ref.
func (s *MemoryStore) Find(_ context.Context, ref Ref) (directory.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.find(ref)
}

func (s *MemoryStore) find(ref Ref) (directory.User, error) {
	id := ref.ID
	if ref.Badge != "" {
		var ok bool
		if id, ok = s.byBadge[ref.Badge]; !ok {
			return directory.User{}, sentinel.ErrNotFound
		}
	}
	u, ok := s.users[id]
	if !ok {
		return directory.User{}, sentinel.ErrNotFound
	}
	return u, nil
}

// Execute applies a validated transition atomically under the store lock.
func (s *MemoryStore) Execute(_ context.Context, ref Ref, action Action, at time.Time, validate func(directory.User) (directory.Status, error)) (directory.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, err := s.find(ref)
	if err != nil {
		return directory.User{}, err
	}
	next, err := validate(u)
	if err != nil {
		return directory.User{}, err
	}
	u.Status = next
	s.users[u.ID] = u
	s.log = append(s.log, LogEntry{
		ID:        int64(len(s.log) + 1),
		UserID:    u.ID,
		Action:    action,
		Timestamp: at,
	})
	return u, nil
}

// Log returns a copy of the append-only log.
func (s *MemoryStore) Log() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LogEntry(nil), s.log...)
}
