package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore keeps turns in a JSONL log and memory in a single JSON file.
// It is meant for single-instance deployments without a database.
type FileStore struct {
	historyPath string
	memoryPath  string
	mu          sync.Mutex
}

func NewFileStore(historyPath, memoryPath string) (*FileStore, error) {
	for _, p := range []string{historyPath, memoryPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("failed to ensure data dir: %w", err)
		}
		f, err := os.OpenFile(p, os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to init %s: %w", p, err)
		}
		_ = f.Close()
	}
	return &FileStore{historyPath: historyPath, memoryPath: memoryPath}, nil
}

func (s *FileStore) Append(_ context.Context, userID string, role Role, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.OpenFile(s.historyPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return Unavailable("open append", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(Turn{UserID: userID, Role: role, Text: text}); err != nil {
		return Unavailable("encode append", err)
	}
	return nil
}

func (s *FileStore) ReadAll(_ context.Context, userID string) ([]Turn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.historyPath)
	if err != nil {
		return nil, Unavailable("open read", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	buf := make([]byte, 0, 1024*1024)
	sc.Buffer(buf, 10*1024*1024)
	turns := []Turn{}
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var t Turn
		if err := json.Unmarshal(line, &t); err != nil {
			return nil, Unavailable("decode turn", err)
		}
		if t.UserID == userID {
			turns = append(turns, t)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, Unavailable("scan", err)
	}
	return turns, nil
}

func (s *FileStore) GetMemory(_ context.Context, userID string) (Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.loadMemoryUnlocked()
	if err != nil {
		return nil, err
	}
	if mem, ok := all[userID]; ok {
		return mem, nil
	}
	return Memory{}, nil
}

func (s *FileStore) PutMemory(_ context.Context, userID string, mem Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.loadMemoryUnlocked()
	if err != nil {
		return err
	}
	all[userID] = mem.Clone()
	return s.saveMemoryUnlocked(all)
}

func (s *FileStore) Close(context.Context) error { return nil }

func (s *FileStore) loadMemoryUnlocked() (map[string]Memory, error) {
	data, err := os.ReadFile(s.memoryPath)
	if err != nil {
		return nil, Unavailable("read memory", err)
	}
	all := make(map[string]Memory)
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, Unavailable("decode memory", err)
	}
	return all, nil
}

func (s *FileStore) saveMemoryUnlocked(all map[string]Memory) error {
	f, err := os.OpenFile(s.memoryPath, os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return Unavailable("open memory", err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		return Unavailable("encode memory", err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
