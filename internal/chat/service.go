// Package chat validates inbound requests and runs them against the
// session registry, one request per user at a time.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"chat-proxy/internal/session"
	"chat-proxy/internal/storage"
)

var ErrValidation = errors.New("validation failed")

type Request struct {
	Query        string `json:"query"`
	UserID       string `json:"id"`
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
}

// Validate reports the first missing required field.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Query) == "":
		return missing("query")
	case strings.TrimSpace(r.UserID) == "":
		return missing("id")
	case strings.TrimSpace(r.Model) == "":
		return missing("model")
	}
	return nil
}

type Reply struct {
	Response  string
	Model     string
	SessionID string
}

type Service struct {
	registry *session.Registry
	store    storage.Store
	locks    *lockTable
}

func NewService(registry *session.Registry, store storage.Store) *Service {
	if store == nil {
		store = storage.Nop{}
	}
	return &Service{registry: registry, store: store, locks: newLockTable()}
}

// Ask resolves the caller's session and generates a reply. Requests for the
// same user are serialised so their turns are never interleaved.
func (s *Service) Ask(ctx context.Context, req Request) (Reply, error) {
	if err := req.Validate(); err != nil {
		return Reply{}, err
	}

	unlock := s.locks.lock(req.UserID)
	defer unlock()

	sess, err := s.registry.GetOrCreate(ctx, req.UserID, req.Model, req.SystemPrompt)
	if err != nil {
		return Reply{}, err
	}
	resp, err := sess.Chat(ctx, req.Query)
	if err != nil {
		return Reply{}, err
	}
	return Reply{Response: resp.Content, Model: string(sess.Variant), SessionID: sess.ID}, nil
}

func (s *Service) Memory(ctx context.Context, userID string) (storage.Memory, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, missing("id")
	}
	return s.store.GetMemory(ctx, userID)
}

// SetMemory replaces the user's memory and drops their cached sessions so
// the next request sees the new facts.
func (s *Service) SetMemory(ctx context.Context, userID string, mem storage.Memory) error {
	if strings.TrimSpace(userID) == "" {
		return missing("id")
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	if err := s.store.PutMemory(ctx, userID, mem); err != nil {
		return err
	}
	s.registry.Invalidate(userID)
	return nil
}

// Remember sets a single fact, keeping the position of an existing key.
func (s *Service) Remember(ctx context.Context, userID, key, value string) (storage.Memory, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, missing("id")
	}
	if key = strings.TrimSpace(key); key == "" {
		return nil, missing("key")
	}
	unlock := s.locks.lock(userID)
	defer unlock()

	mem, err := s.store.GetMemory(ctx, userID)
	if err != nil {
		return nil, err
	}
	mem.Set(key, value)
	if err := s.store.PutMemory(ctx, userID, mem); err != nil {
		return nil, err
	}
	s.registry.Invalidate(userID)
	return mem, nil
}

func (s *Service) History(ctx context.Context, userID string) ([]storage.Turn, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, missing("id")
	}
	return s.store.ReadAll(ctx, userID)
}

func (s *Service) Sessions() []session.Info {
	return s.registry.Snapshot()
}

// Degraded reports whether the service runs without durable storage.
func (s *Service) Degraded() bool {
	return storage.IsDegraded(s.store)
}

func missing(field string) error {
	return fmt.Errorf("%w: missing %s", ErrValidation, field)
}

type userLock struct {
	sync.Mutex
	refs int
}

// lockTable hands out one mutex per user and forgets it once no request
// holds or waits for it.
type lockTable struct {
	mu    sync.Mutex
	users map[string]*userLock
}

func newLockTable() *lockTable {
	return &lockTable{users: make(map[string]*userLock)}
}

func (t *lockTable) lock(userID string) (unlock func()) {
	t.mu.Lock()
	l, ok := t.users[userID]
	if !ok {
		l = &userLock{}
		t.users[userID] = l
	}
	l.refs++
	t.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		t.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(t.users, userID)
		}
		t.mu.Unlock()
	}
}

func (t *lockTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.users)
}
