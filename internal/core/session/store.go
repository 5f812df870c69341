// Package session holds the client-side authentication session.
//
// The Store is the only writer of the persisted token/user pair. Every
// other component reads it through Get.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/yndnr/salesdesk-go/internal/core/domain"
	"github.com/yndnr/salesdesk-go/internal/storage"
	"github.com/yndnr/salesdesk-go/internal/telemetry/logger"
)

// Persisted keys.
const (
	TokenKey = "token"
	UserKey  = "user"
)

// EventType describes why the session changed.
type EventType string

const (
	EventLogin       EventType = "login"
	EventRefresh     EventType = "refresh"
	EventLogout      EventType = "logout"
	EventInvalidated EventType = "invalidated"
)

// Event is delivered to change listeners.
type Event struct {
	Type    EventType
	Session domain.Session
}

// Listener receives session change events.
type Listener func(Event)

// Reader is the read-only view the request engine consumes.
type Reader interface {
	Get() domain.Session
}

// Store manages the session slot.
type Store interface {
	Reader

	// Set stores a new token and user after a successful login.
	Set(ctx context.Context, token string, user *domain.User) error

	// SetUser replaces the stored identity, keeping the token.
	SetUser(ctx context.Context, user *domain.User) error

	// Clear removes token and user (explicit logout).
	Clear(ctx context.Context) error

	// Invalidate clears the session after the backend rejected the token.
	// It returns true only for the first call since the last Set, so
	// concurrent rejections trigger a single redirect.
	Invalidate(ctx context.Context) bool

	// OnChange registers a listener and returns a function removing it.
	OnChange(fn Listener) (cancel func())
}

// PersistentStore is a Store backed by a storage.KV.
type PersistentStore struct {
	kv     storage.KV
	logger logger.Logger

	mu          sync.RWMutex
	current     domain.Session
	invalidated bool

	listenersMu sync.Mutex
	listeners   []listenerEntry
	nextID      int
}

type listenerEntry struct {
	id int
	fn Listener
}

// Option configures a PersistentStore.
type Option func(*PersistentStore)

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *PersistentStore) {
		s.logger = l
	}
}

// Open creates a store and loads any persisted session from kv.
func Open(ctx context.Context, kv storage.KV, opts ...Option) (*PersistentStore, error) {
	s := &PersistentStore{
		kv:     kv,
		logger: logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// NewMemoryStore returns an empty store over an in-memory KV.
func NewMemoryStore(opts ...Option) *PersistentStore {
	s, _ := Open(context.Background(), storage.NewMemoryKV(), opts...)
	return s
}

func (s *PersistentStore) load(ctx context.Context) error {
	token, err := s.kv.Get(ctx, []byte(TokenKey))
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
	case errors.Is(err, storage.ErrUnsealFailed):
		return s.dropUnreadable(ctx, "token", err)
	case err != nil:
		return fmt.Errorf("session: load token: %w", err)
	default:
		s.current.Token = string(token)
	}

	raw, err := s.kv.Get(ctx, []byte(UserKey))
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
	case errors.Is(err, storage.ErrUnsealFailed):
		return s.dropUnreadable(ctx, "user", err)
	case err != nil:
		return fmt.Errorf("session: load user: %w", err)
	default:
		var u domain.User
		if err := json.Unmarshal(raw, &u); err != nil {
			s.logger.Warn("dropping unreadable stored user", "error", err)
			if err := s.kv.Delete(ctx, []byte(UserKey)); err != nil {
				return fmt.Errorf("session: drop user: %w", err)
			}
		} else {
			s.current.User = &u
		}
	}

	return nil
}

// dropUnreadable discards a session sealed under another key and starts
// logged out.
func (s *PersistentStore) dropUnreadable(ctx context.Context, what string, cause error) error {
	s.logger.Warn("dropping stored session sealed with a different key", "key", what, "error", cause)
	s.current = domain.Session{}
	if err := s.deleteAll(ctx); err != nil {
		return fmt.Errorf("session: drop unreadable session: %w", err)
	}
	return nil
}

// Get returns a copy of the current session.
func (s *PersistentStore) Get() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copySession(s.current)
}

// Set stores a new token and user.
func (s *PersistentStore) Set(ctx context.Context, token string, user *domain.User) error {
	if token == "" {
		return domain.ErrInvalidResource.WithDetails("empty token")
	}

	s.mu.Lock()
	if err := s.kv.Set(ctx, []byte(TokenKey), []byte(token)); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("session: store token: %w", err)
	}
	if err := s.writeUser(ctx, user); err != nil {
		s.mu.Unlock()
		return err
	}
	s.current = domain.Session{Token: token, User: copyUser(user)}
	s.invalidated = false
	snapshot := copySession(s.current)
	s.mu.Unlock()

	s.notify(Event{Type: EventLogin, Session: snapshot})
	return nil
}

// SetUser replaces the stored identity.
func (s *PersistentStore) SetUser(ctx context.Context, user *domain.User) error {
	s.mu.Lock()
	if err := s.writeUser(ctx, user); err != nil {
		s.mu.Unlock()
		return err
	}
	s.current.User = copyUser(user)
	snapshot := copySession(s.current)
	s.mu.Unlock()

	s.notify(Event{Type: EventRefresh, Session: snapshot})
	return nil
}

// Clear removes token and user.
func (s *PersistentStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	err := s.deleteAll(ctx)
	s.current = domain.Session{}
	s.mu.Unlock()

	s.notify(Event{Type: EventLogout})
	return err
}

// Invalidate clears the session once per login.
func (s *PersistentStore) Invalidate(ctx context.Context) bool {
	s.mu.Lock()
	if s.invalidated {
		s.mu.Unlock()
		return false
	}
	s.invalidated = true
	if err := s.deleteAll(ctx); err != nil {
		s.logger.Error("failed to clear persisted session", "error", err)
	}
	s.current = domain.Session{}
	s.mu.Unlock()

	s.notify(Event{Type: EventInvalidated})
	return true
}

// OnChange registers a listener.
func (s *PersistentStore) OnChange(fn Listener) func() {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()

	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: fn})

	return func() {
		s.listenersMu.Lock()
		defer s.listenersMu.Unlock()
		for i, l := range s.listeners {
			if l.id == id {
				s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

func (s *PersistentStore) notify(ev Event) {
	s.listenersMu.Lock()
	fns := make([]Listener, len(s.listeners))
	for i, l := range s.listeners {
		fns[i] = l.fn
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// writeUser persists user, or deletes the key when user is nil.
// Caller holds s.mu.
func (s *PersistentStore) writeUser(ctx context.Context, user *domain.User) error {
	if user == nil {
		if err := s.kv.Delete(ctx, []byte(UserKey)); err != nil {
			return fmt.Errorf("session: delete user: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("session: encode user: %w", err)
	}
	if err := s.kv.Set(ctx, []byte(UserKey), data); err != nil {
		return fmt.Errorf("session: store user: %w", err)
	}
	return nil
}

// deleteAll removes both keys. Caller holds s.mu.
func (s *PersistentStore) deleteAll(ctx context.Context) error {
	return errors.Join(
		s.kv.Delete(ctx, []byte(TokenKey)),
		s.kv.Delete(ctx, []byte(UserKey)),
	)
}

func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func copySession(s domain.Session) domain.Session {
	return domain.Session{Token: s.Token, User: copyUser(s.User)}
}
