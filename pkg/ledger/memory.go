package ledger

import (
	"context"
	"sync"
)

// Event is a published ledger event
type Event struct {
	Name    string
	Payload []byte
}

// Memory is an in-process ledger. It records emitted events so callers can
// inspect them.
type Memory struct {
	mu     sync.RWMutex
	state  map[string][]byte
	events []Event
}

// NewMemory creates an empty in-memory ledger
func NewMemory() *Memory {
	return &Memory{state: make(map[string][]byte)}
}

func (m *Memory) GetState(key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.state[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), value...), nil
}

func (m *Memory) PutState(key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state[key] = append([]byte(nil), value...)
	return nil
}

// WriteBatch applies all writes under a single lock
func (m *Memory) WriteBatch(writes []Write) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range writes {
		m.state[w.Key] = append([]byte(nil), w.Value...)
	}
	return nil
}

func (m *Memory) SetEvent(name string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, Event{Name: name, Payload: append([]byte(nil), payload...)})
	return nil
}

// Events returns a copy of every event emitted so far
func (m *Memory) Events() []Event {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]Event(nil), m.events...)
}

// Snapshot returns a copy of the whole state
func (m *Memory) Snapshot() map[string][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string][]byte, len(m.state))
	for k, v := range m.state {
		out[k] = append([]byte(nil), v...)
	}
	return out
}

func (m *Memory) Ping(ctx context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
