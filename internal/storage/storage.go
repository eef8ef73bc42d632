package storage

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnavailable is returned by durable stores when the backing service
// cannot serve a request. The Nop store never returns it.
var ErrUnavailable = errors.New("storage: unavailable")

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is a single message of a conversation. Turns are immutable once
// written and are returned in the order they were appended.
type Turn struct {
	UserID string `json:"user_id" bson:"user_id"`
	Role   Role   `json:"role" bson:"role"`
	Text   string `json:"text" bson:"text"`
}

// Store abstracts persistence of conversation turns and per-user memory.
// Implementations must be safe for concurrent use.
// ReadAll returns an empty slice (not an error) for unknown users and
// GetMemory returns an empty Memory when no record exists.
// PutMemory replaces the whole document.
type Store interface {
	Append(ctx context.Context, userID string, role Role, text string) error
	ReadAll(ctx context.Context, userID string) ([]Turn, error)
	GetMemory(ctx context.Context, userID string) (Memory, error)
	PutMemory(ctx context.Context, userID string, mem Memory) error
	Close(ctx context.Context) error
}

// Unavailable wraps a backend failure so callers can match ErrUnavailable
// while keeping the original cause.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

// Nop is the degraded-mode store: history and memory are always empty and
// writes are discarded.
type Nop struct{}

func (Nop) Append(context.Context, string, Role, string) error { return nil }

func (Nop) ReadAll(context.Context, string) ([]Turn, error) { return []Turn{}, nil }

func (Nop) GetMemory(context.Context, string) (Memory, error) { return Memory{}, nil }

func (Nop) PutMemory(context.Context, string, Memory) error { return nil }

func (Nop) Close(context.Context) error { return nil }

// IsDegraded reports whether s is the no-op store.
func IsDegraded(s Store) bool {
	_, ok := s.(Nop)
	return ok
}
