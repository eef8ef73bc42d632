package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Fact is one durable key/value pair remembered about a user.
type Fact struct {
	Key   string `json:"key" bson:"key"`
	Value string `json:"value" bson:"value"`
}

// Memory is an ordered set of facts. Order is observable in rendered
// prompts, so it is kept as a slice rather than a map.
type Memory []Fact

// Set replaces the value of an existing key in place or appends a new fact.
func (m *Memory) Set(key, value string) {
	for i := range *m {
		if (*m)[i].Key == key {
			(*m)[i].Value = value
			return
		}
	}
	*m = append(*m, Fact{Key: key, Value: value})
}

func (m Memory) Get(key string) (string, bool) {
	for _, f := range m {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Clone returns a copy that does not share the backing array.
func (m Memory) Clone() Memory {
	out := make(Memory, len(m))
	copy(out, m)
	return out
}

// ParseFacts builds a Memory from "key=value" pairs.
func ParseFacts(pairs []string) (Memory, error) {
	var mem Memory
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid fact %q, want key=value", p)
		}
		mem.Set(k, strings.TrimSpace(v))
	}
	return mem, nil
}

// MarshalJSON encodes the memory as a JSON object preserving fact order.
func (m Memory) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range m {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(f.Key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON accepts either a JSON object (keys kept in document order,
// non-string values stored as their JSON text) or an array of facts.
func (m *Memory) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = nil
		return nil
	}

	if data[0] == '[' {
		var facts []Fact
		if err := json.Unmarshal(data, &facts); err != nil {
			return err
		}
		var out Memory
		for _, f := range facts {
			out.Set(f.Key, f.Value)
		}
		*m = out
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("memory: expected object or array, got %v", tok)
	}
	var out Memory
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			s = string(raw)
		}
		out.Set(key, s)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*m = out
	return nil
}
