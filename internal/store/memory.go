package store

import (
	"context"
	"sync"
)

// Memory implements Params and Secrets in process. Journal records every write
// in order ("parameter:<name>" or "secret:<id>") so callers can assert
// sequencing.
type Memory struct {
	mu      sync.RWMutex
	params  map[string]string
	secrets map[string]string
	journal []string
}

func NewMemory() *Memory {
	return &Memory{
		params:  make(map[string]string),
		secrets: make(map[string]string),
	}
}

func (m *Memory) GetParameter(ctx context.Context, name string, decrypt bool) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if id, ok := SecretIDFromReference(name); ok {
		v, found := m.secrets[id]
		if !found || !decrypt {
			return "", ErrNotFound
		}
		return v, nil
	}
	v, ok := m.params[name]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) PutParameter(ctx context.Context, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.params[name] = value
	m.journal = append(m.journal, "parameter:"+name)
	return nil
}

func (m *Memory) PutSecret(ctx context.Context, id, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets[id] = value
	m.journal = append(m.journal, "secret:"+id)
	return nil
}

// Journal returns a copy of the write log.
func (m *Memory) Journal() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.journal))
	copy(out, m.journal)
	return out
}
