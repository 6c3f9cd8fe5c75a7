package storage

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Data is lost when the process exits.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]Fields
	hub  *Hub
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{docs: make(map[string]Fields), hub: NewHub()}
}

func (m *Memory) Get(ctx context.Context, user string) (Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[user]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.Clone(), nil
}

func (m *Memory) SetMerge(ctx context.Context, user string, patch Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	doc := Merge(m.docs[user], patch)
	m.docs[user] = doc
	m.mu.Unlock()

	m.hub.Publish(user, doc)
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, user string, onChange func(Fields)) (func(), error) {
	id := m.hub.Add(user, onChange)
	if doc, err := m.Get(ctx, user); err == nil {
		onChange(doc)
	}
	return func() { m.hub.Remove(user, id) }, nil
}

func (m *Memory) Close() error {
	return nil
}

// Subscribers returns how many callbacks are registered for user.
func (m *Memory) Subscribers(user string) int {
	return m.hub.Len(user)
}
