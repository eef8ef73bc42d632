package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chat-proxy/internal/keys"
	"chat-proxy/internal/llm"
	"chat-proxy/internal/prompt"
	"chat-proxy/internal/storage"
)

var ErrInvalidModelType = errors.New("invalid model, choose 'gemini' or 'gpt'")

// ClientFactory builds a backend client bound to a credential.
type ClientFactory interface {
	CreateClient(ctx context.Context, variant llm.Variant, credential, system string) (llm.Client, error)
}

type key struct {
	userID  string
	variant llm.Variant
}

// Registry caches one Session per (user, model). A cached session is reused
// until a request arrives with a different system prompt.
type Registry struct {
	mu       sync.Mutex
	sessions map[key]*Session

	factory    ClientFactory
	geminiKeys *keys.Rotator
	openAIKey  string
	store      storage.Store
	basePrompt string
	now        func() time.Time
}

type Options struct {
	Factory    ClientFactory
	GeminiKeys *keys.Rotator
	OpenAIKey  string
	Store      storage.Store
	BasePrompt string
	// Now defaults to time.Now.
	Now func() time.Time
}

func NewRegistry(opts Options) *Registry {
	r := &Registry{
		sessions:   make(map[key]*Session),
		factory:    opts.Factory,
		geminiKeys: opts.GeminiKeys,
		openAIKey:  opts.OpenAIKey,
		store:      opts.Store,
		basePrompt: opts.BasePrompt,
		now:        opts.Now,
	}
	if r.geminiKeys == nil {
		r.geminiKeys = keys.NewRotator(nil)
	}
	if r.store == nil {
		r.store = storage.Nop{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// GetOrCreate returns the cached session for (userID, model) when its
// custom prompt equals systemPrompt exactly; otherwise it builds a new one
// (rotating credentials and loading memory) and replaces the cache entry.
func (r *Registry) GetOrCreate(ctx context.Context, userID, model, systemPrompt string) (*Session, error) {
	v, ok := llm.ParseVariant(model)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidModelType, model)
	}
	k := key{userID: userID, variant: v}

	r.mu.Lock()
	if s, ok := r.sessions[k]; ok && s.CustomPrompt == systemPrompt {
		r.mu.Unlock()
		s.touch(r.now())
		return s, nil
	}
	r.mu.Unlock()

	s, err := r.build(ctx, userID, v, systemPrompt)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// a concurrent caller may have installed an equivalent session meanwhile
	if cur, ok := r.sessions[k]; ok && cur.CustomPrompt == systemPrompt {
		return cur, nil
	}
	r.sessions[k] = s
	return s, nil
}

func (r *Registry) build(ctx context.Context, userID string, v llm.Variant, custom string) (*Session, error) {
	cred, err := r.credential(v)
	if err != nil {
		return nil, err
	}

	system := prompt.ResolveSystemPrompt(r.basePrompt, custom)
	client, err := r.factory.CreateClient(ctx, v, cred, system)
	if err != nil {
		return nil, err
	}

	mem, err := r.store.GetMemory(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := r.now()
	s := &Session{
		ID:           uuid.New().String(),
		UserID:       userID,
		Variant:      v,
		CustomPrompt: custom,
		SystemPrompt: system,
		Memory:       mem,
		CreatedAt:    now,
		client:       client,
		store:        r.store,
		now:          r.now,
	}
	s.touch(now)
	return s, nil
}

func (r *Registry) credential(v llm.Variant) (string, error) {
	switch v {
	case llm.VariantGemini:
		k, err := r.geminiKeys.Next()
		if err != nil {
			return "", fmt.Errorf("gemini: %w", err)
		}
		return k, nil
	case llm.VariantGPT:
		if r.openAIKey == "" {
			return "", fmt.Errorf("gpt: %w", keys.ErrNoCredentialAvailable)
		}
		return r.openAIKey, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidModelType, v)
	}
}

// Invalidate drops every cached session of userID, so the next request
// reloads memory.
func (r *Registry) Invalidate(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k := range r.sessions {
		if k.userID == userID {
			delete(r.sessions, k)
			n++
		}
	}
	return n
}

// Sweep removes sessions idle for longer than idle and reports how many
// were dropped.
func (r *Registry) Sweep(idle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := r.now().Add(-idle)
	n := 0
	for k, s := range r.sessions {
		if s.LastUsed().Before(cutoff) {
			delete(r.sessions, k)
			n++
		}
	}
	return n
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot lists live sessions ordered by user then model.
func (r *Registry) Snapshot() []Info {
	r.mu.Lock()
	out := make([]Info, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Info())
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Model < out[j].Model
	})
	return out
}
