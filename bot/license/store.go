package license

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/telefoot/telefoot-bot/bot/store"
)

// Store is the sole writer of user records. Every mutation happens under the
// store lock and is persisted to the snapshot before the mutating call
// returns, so a successful return is durable and concurrent admin/user
// mutations of the same record cannot interleave.
type Store struct {
	mu    sync.Mutex
	snap  *store.Snapshot
	users map[int64]*UserRecord
}

// OpenStore loads the user snapshot from path. A missing file starts empty.
func OpenStore(path string) (*Store, error) {
	snap, err := store.NewSnapshot(path)
	if err != nil {
		return nil, err
	}

	raw := map[string]*UserRecord{}
	if _, err := snap.Load(&raw); err != nil {
		return nil, err
	}

	users := make(map[int64]*UserRecord, len(raw))
	for key, rec := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("license: bad user key %q in snapshot: %w", key, err)
		}
		rec.ID = id
		users[id] = rec
	}

	return &Store{snap: snap, users: users}, nil
}

// Get returns a copy of the record for id.
func (s *Store) Get(id int64) (*UserRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.users[id]
	if !ok {
		return nil, false
	}
	return rec.Clone(), true
}

// All returns copies of every record.
func (s *Store) All() []*UserRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*UserRecord, 0, len(s.users))
	for _, rec := range s.users {
		out = append(out, rec.Clone())
	}
	return out
}

// Len returns the number of registered users.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// Exists reports whether a record exists for id.
func (s *Store) Exists(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[id]
	return ok
}

// Ensure creates an unregistered record for id if absent and persists it.
// It reports whether a record was created.
func (s *Store) Ensure(id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; ok {
		return false, nil
	}
	s.users[id] = &UserRecord{ID: id, Status: StatusUnregistered}
	if err := s.persistLocked(); err != nil {
		delete(s.users, id)
		return false, err
	}
	return true, nil
}

// Mutate applies fn to the record for id under the store lock and persists
// the snapshot before returning. When fn returns an error nothing is
// persisted and the in-memory record is left as fn left it only if
// persistence succeeded; on persistence failure the previous record is
// restored so the store never diverges from disk.
func (s *Store) Mutate(id int64, fn func(*UserRecord) error) (*UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}

	prev := rec.Clone()
	if err := fn(rec); err != nil {
		s.users[id] = prev
		return nil, err
	}
	if err := s.persistLocked(); err != nil {
		s.users[id] = prev
		return nil, err
	}
	return rec.Clone(), nil
}

// persistLocked rewrites the snapshot; caller holds the lock.
func (s *Store) persistLocked() error {
	raw := make(map[string]*UserRecord, len(s.users))
	for id, rec := range s.users {
		raw[strconv.FormatInt(id, 10)] = rec
	}
	return s.snap.Save(raw)
}
