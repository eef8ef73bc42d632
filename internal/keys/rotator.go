package keys

import (
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
)

var ErrNoCredentialAvailable = errors.New("keys: no credential available")

// Rotator hands out keys from a fixed pool, never returning the same key
// twice in a row unless the pool has only one usable key.
type Rotator struct {
	mu   sync.Mutex
	pool []string
	last string
	intN func(n int) int
}

type Option func(*Rotator)

// WithRand overrides the source used to pick among candidates.
func WithRand(intN func(n int) int) Option {
	return func(r *Rotator) { r.intN = intN }
}

func NewRotator(pool []string, opts ...Option) *Rotator {
	r := &Rotator{intN: rand.IntN}
	for _, k := range pool {
		if k = strings.TrimSpace(k); k != "" {
			r.pool = append(r.pool, k)
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Rotator) Next() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pool) == 0 {
		return "", ErrNoCredentialAvailable
	}

	candidates := make([]string, 0, len(r.pool))
	for _, k := range r.pool {
		if k != r.last {
			candidates = append(candidates, k)
		}
	}
	// only the previous key is usable
	if len(candidates) == 0 {
		candidates = r.pool
	}

	key := candidates[r.intN(len(candidates))]
	r.last = key
	return key, nil
}

// Size reports the number of usable keys.
func (r *Rotator) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pool)
}
