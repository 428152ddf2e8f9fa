// Package kv is the string key/value contract the conversation store persists
// through. Backends live in sibling packages.
package kv

import (
	"context"
	"errors"
	"sync"
)

// ErrUnavailable is returned by Memory when it has been told to fail.
var ErrUnavailable = errors.New("kv: store unavailable")

// KV is a string key to string value store. Set replaces the whole value
// atomically; Get reports ok=false for a missing key.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Memory is an in-process KV. The zero value is ready to use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string

	// FailWrites makes Set and Delete return ErrUnavailable.
	FailWrites bool
	// FailReads makes Get return ErrUnavailable.
	FailReads bool
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.FailReads {
		return "", false, ErrUnavailable
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return ErrUnavailable
	}
	if m.data == nil {
		m.data = make(map[string]string)
	}
	m.data[key] = value
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return ErrUnavailable
	}
	delete(m.data, key)
	return nil
}
