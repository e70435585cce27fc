// Package session keeps per-visitor key/value state, in memory or in a class
// table.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrInvalidID is returned for an empty session id.
var ErrInvalidID = errors.New("invalid session id")

// Values is the state held for one session.
type Values map[string]interface{}

// Store persists session values by id.
type Store interface {
	// Load returns the values of id. An unknown id yields empty values.
	Load(ctx context.Context, id string) (Values, error)
	Save(ctx context.Context, id string, values Values) error
	Destroy(ctx context.Context, id string) error
}

// NewID returns a fresh random session id.
func NewID() string {
	return uuid.NewString()
}

// Session is one visitor's state. Changes are buffered until Save.
type Session struct {
	mu     sync.RWMutex
	id     string
	values Values
	dirty  bool
	store  Store
}

// Start loads the session id from store. An empty id starts a new session.
func Start(ctx context.Context, store Store, id string) (*Session, error) {
	if id == "" {
		return &Session{id: NewID(), values: Values{}, store: store}, nil
	}
	values, err := store.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = Values{}
	}
	return &Session{id: id, values: values, store: store}, nil
}

// ID returns the session id.
func (s *Session) ID() string {
	return s.id
}

func (s *Session) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Session) Set(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.dirty = true
}

// Load copies every entry of values into the session.
func (s *Session) Load(values Values) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range values {
		s.values[k] = v
	}
	s.dirty = true
}

func (s *Session) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
}

// Clear removes every value.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = Values{}
	s.dirty = true
}

// Values returns a copy of the session state.
func (s *Session) Values() Values {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyValues(s.values)
}

// Save writes pending changes to the store.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	if err := s.store.Save(ctx, s.id, copyValues(s.values)); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// Destroy removes the session from the store and clears it.
func (s *Session) Destroy(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = Values{}
	s.dirty = false
	return s.store.Destroy(ctx, s.id)
}

func copyValues(v Values) Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Values
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Values)}
}

func (m *MemoryStore) Load(_ context.Context, id string) (Values, error) {
	if id == "" {
		return nil, ErrInvalidID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyValues(m.sessions[id]), nil
}

func (m *MemoryStore) Save(_ context.Context, id string, values Values) error {
	if id == "" {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = copyValues(values)
	return nil
}

func (m *MemoryStore) Destroy(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len returns the number of stored sessions.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
