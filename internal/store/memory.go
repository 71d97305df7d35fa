// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package store

import "sync"

// Memory is an in-memory store for testing.
type Memory struct {
	mu       sync.RWMutex
	crcs     map[string]uint32
	metadata map[string]string
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{
		crcs:     make(map[string]uint32),
		metadata: make(map[string]string),
	}
}

// CommandCrc retrieves the cached CRC for an artifact.
func (m *Memory) CommandCrc(artifact string) (uint32, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	crc, ok := m.crcs[artifact]
	return crc, ok, nil
}

// SetCommandCrc records the CRC for an artifact.
func (m *Memory) SetCommandCrc(artifact string, crc uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.crcs[artifact] = crc
	return nil
}

// All returns a copy of the artifact table.
func (m *Memory) All() (map[string]uint32, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]uint32, len(m.crcs))
	for k, v := range m.crcs {
		out[k] = v
	}
	return out, nil
}

// Close is a no-op for memory store.
func (m *Memory) Close() error {
	return nil
}

// GetMetadata retrieves a metadata value by key.
func (m *Memory) GetMetadata(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metadata[key], nil
}

// SetMetadata stores a metadata value by key.
func (m *Memory) SetMetadata(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[key] = value
	return nil
}
