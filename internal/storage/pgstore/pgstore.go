package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chat-proxy/internal/storage"
)

const connectTimeout = 5 * time.Second

const schemaSQL = `
CREATE TABLE IF NOT EXISTS chat_history (
	id         UUID PRIMARY KEY,
	user_id    TEXT NOT NULL,
	seq        BIGINT NOT NULL,
	role       TEXT NOT NULL,
	text       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (user_id, seq)
);
CREATE TABLE IF NOT EXISTS chat_memory (
	user_id    TEXT PRIMARY KEY,
	data       JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// Store keeps turns in chat_history ordered by a per-user seq and memory
// as a JSONB array of {key, value} so fact order survives.
type Store struct {
	db *pgxpool.Pool
}

func Open(ctx context.Context, databaseURL string) (*Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	s := &Store{db: pool}
	if err := s.CreateSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres create schema: %w", err)
	}
	return nil
}

// Append assigns the next per-user seq inside the insert.
func (s *Store) Append(ctx context.Context, userID string, role storage.Role, text string) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO chat_history (id, user_id, seq, role, text)
		 VALUES ($1, $2, COALESCE((SELECT MAX(seq) FROM chat_history WHERE user_id = $2), 0) + 1, $3, $4)`,
		uuid.New().String(), userID, string(role), text,
	)
	if err != nil {
		return storage.Unavailable("postgres insert turn", err)
	}
	return nil
}

func (s *Store) ReadAll(ctx context.Context, userID string) ([]storage.Turn, error) {
	rows, err := s.db.Query(ctx,
		`SELECT role, text FROM chat_history WHERE user_id = $1 ORDER BY seq ASC`,
		userID,
	)
	if err != nil {
		return nil, storage.Unavailable("postgres list turns", err)
	}
	defer rows.Close()

	turns := []storage.Turn{}
	for rows.Next() {
		t := storage.Turn{UserID: userID}
		var role string
		if err := rows.Scan(&role, &t.Text); err != nil {
			return nil, storage.Unavailable("postgres scan turn", err)
		}
		t.Role = storage.Role(role)
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Unavailable("postgres list turns", err)
	}
	return turns, nil
}

func (s *Store) GetMemory(ctx context.Context, userID string) (storage.Memory, error) {
	var raw []byte
	err := s.db.QueryRow(ctx, `SELECT data FROM chat_memory WHERE user_id = $1`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.Memory{}, nil
	}
	if err != nil {
		return nil, storage.Unavailable("postgres get memory", err)
	}
	return decodeFacts(raw)
}

func (s *Store) PutMemory(ctx context.Context, userID string, mem storage.Memory) error {
	raw, err := encodeFacts(mem)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx,
		`INSERT INTO chat_memory (user_id, data, updated_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		userID, raw,
	)
	if err != nil {
		return storage.Unavailable("postgres upsert memory", err)
	}
	return nil
}

func (s *Store) Close(context.Context) error {
	s.db.Close()
	return nil
}

// encodeFacts stores memory as an array; JSONB objects do not keep key order.
func encodeFacts(mem storage.Memory) ([]byte, error) {
	facts := []storage.Fact(mem)
	if facts == nil {
		facts = []storage.Fact{}
	}
	raw, err := json.Marshal(facts)
	if err != nil {
		return nil, fmt.Errorf("postgres encode memory: %w", err)
	}
	return raw, nil
}

func decodeFacts(raw []byte) (storage.Memory, error) {
	mem := storage.Memory{}
	if err := json.Unmarshal(raw, &mem); err != nil {
		return nil, fmt.Errorf("postgres decode memory: %w", err)
	}
	if mem == nil {
		mem = storage.Memory{}
	}
	return mem, nil
}

var _ storage.Store = (*Store)(nil)
