package session

import (
	"context"
	"log"
	"sync/atomic"
	"time"

	"chat-proxy/internal/llm"
	"chat-proxy/internal/prompt"
	"chat-proxy/internal/storage"
)

// Session is the live conversation state for one (user, model) pair. It
// owns a client already bound to a credential and the memory snapshot
// taken when it was built.
type Session struct {
	ID           string
	UserID       string
	Variant      llm.Variant
	CustomPrompt string
	SystemPrompt string
	Memory       storage.Memory
	CreatedAt    time.Time

	client   llm.Client
	store    storage.Store
	now      func() time.Time
	lastUsed atomic.Int64
}

// Info is a read-only view of a session for listings.
type Info struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Model        string    `json:"model"`
	CustomPrompt string    `json:"system_prompt,omitempty"`
	Facts        int       `json:"facts"`
	CreatedAt    time.Time `json:"created_at"`
	LastUsed     time.Time `json:"last_used"`
}

// Chat replays stored history, generates a reply and appends the user
// turn followed by the assistant turn. Append failures after a successful
// generation are logged, not returned.
func (s *Session) Chat(ctx context.Context, input string) (llm.Response, error) {
	s.touch(s.now())

	history, err := s.store.ReadAll(ctx, s.UserID)
	if err != nil {
		return llm.Response{}, err
	}

	resp, err := s.client.Generate(ctx, prompt.Build(s.Variant, s.SystemPrompt, s.Memory, history, input))
	if err != nil {
		return llm.Response{}, err
	}

	// the exchange is kept even if the caller has gone away
	pctx := context.WithoutCancel(ctx)
	if err := s.store.Append(pctx, s.UserID, storage.RoleUser, input); err != nil {
		log.Printf("session %s: failed to save user turn: %v", s.ID, err)
		return resp, nil
	}
	if err := s.store.Append(pctx, s.UserID, storage.RoleAssistant, resp.Content); err != nil {
		log.Printf("session %s: failed to save assistant turn: %v", s.ID, err)
	}
	return resp, nil
}

func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Session) Info() Info {
	return Info{
		ID:           s.ID,
		UserID:       s.UserID,
		Model:        string(s.Variant),
		CustomPrompt: s.CustomPrompt,
		Facts:        len(s.Memory),
		CreatedAt:    s.CreatedAt,
		LastUsed:     s.LastUsed(),
	}
}

func (s *Session) touch(t time.Time) {
	s.lastUsed.Store(t.UnixNano())
}
