// Package session holds the credential and the signed-in profile.
//
// The Store is a dumb holder: it never validates what it is given. Reads
// are served from memory and writes go through to a Backend so the token
// survives restarts. Only the token is persisted; the profile is always
// re-fetched with it.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/felixgeelhaar/eventify/internal/domain"
	apperrors "github.com/felixgeelhaar/eventify/internal/errors"
)

// Backend persists the session token.
type Backend interface {
	// Load returns the stored token, or "" when none is stored.
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
	Name() string
}

// Snapshot is a point-in-time copy of the store.
type Snapshot struct {
	Token string
	User  *domain.Profile
}

// HasToken reports whether a credential is held.
func (s Snapshot) HasToken() bool {
	return s.Token != ""
}

// Store is the session store.
type Store struct {
	mu        sync.RWMutex
	token     string
	user      *domain.Profile
	backend   Backend
	timeout   time.Duration
	listeners map[int]func(Snapshot)
	nextID    int
}

// Option configures a Store.
type Option func(*Store)

// WithTimeout bounds every backend operation.
func WithTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// New creates an empty store over backend. A nil backend keeps the
// session in memory only.
func New(backend Backend, opts ...Option) *Store {
	if backend == nil {
		backend = NewMemoryBackend()
	}
	s := &Store{
		backend:   backend,
		timeout:   5 * time.Second,
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open creates a store and loads the persisted token.
func Open(ctx context.Context, backend Backend, opts ...Option) (*Store, error) {
	s := New(backend, opts...)
	token, err := s.backend.Load(ctx)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeFileReadFailed,
			fmt.Sprintf("failed to load session from %s backend", s.backend.Name()), err)
	}
	s.token = token
	return s, nil
}

// Token returns the held credential.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// SetToken replaces the credential. An empty token clears it.
func (s *Store) SetToken(token string) error {
	s.mu.Lock()
	s.token = token
	snap := s.snapshotLocked()
	s.mu.Unlock()

	err := s.persist(token)
	s.notify(snap)
	return err
}

// User returns the held profile.
func (s *Store) User() (*domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil, false
	}
	u := *s.user
	return &u, true
}

// SetUser replaces the profile; nil removes it.
func (s *Store) SetUser(user *domain.Profile) error {
	s.mu.Lock()
	if user == nil {
		s.user = nil
	} else {
		u := *user
		s.user = &u
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return nil
}

// Clear removes token and profile. Clearing an empty store is a no-op
// apart from the change notification.
func (s *Store) Clear() error {
	s.mu.Lock()
	s.token = ""
	s.user = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	err := s.backend.Clear(ctx)
	s.notify(snap)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeFileWriteFailed, "failed to clear persisted session", err)
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe registers fn for every change. The returned function removes it.
func (s *Store) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// BackendName reports where the token is persisted.
func (s *Store) BackendName() string {
	return s.backend.Name()
}

func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{Token: s.token}
	if s.user != nil {
		u := *s.user
		snap.User = &u
	}
	return snap
}

func (s *Store) persist(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	var err error
	if token == "" {
		err = s.backend.Clear(ctx)
	} else {
		err = s.backend.Save(ctx, token)
	}
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeFileWriteFailed,
			fmt.Sprintf("failed to persist session to %s backend", s.backend.Name()), err)
	}
	return nil
}

// notify runs listeners outside the lock.
func (s *Store) notify(snap Snapshot) {
	s.mu.RLock()
	fns := make([]func(Snapshot), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(snap)
	}
}
