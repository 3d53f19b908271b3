package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemorySize bounds the in-process cache when no size is configured.
const DefaultMemorySize = 256

// MemoryConfig holds configuration for the in-process cache.
type MemoryConfig struct {
	// Size is the maximum number of entries (default: 256).
	Size int

	// TTL expires entries after this long. Zero disables expiry.
	TTL time.Duration
}

// Memory is a size-bound LRU cache.
type Memory struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemory creates an LRU cache.
func NewMemory(cfg MemoryConfig) *Memory {
	size := cfg.Size
	if size <= 0 {
		size = DefaultMemorySize
	}
	return &Memory{lru: expirable.NewLRU[string, []byte](size, nil, cfg.TTL)}
}

// Name implements Cache.
func (m *Memory) Name() string { return "memory" }

// Get implements Cache. A hit marks the entry as recently used.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	value, ok := m.lru.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return value, nil
}

// Set implements Cache, evicting the least recently used entry when full.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.lru.Add(key, value)
	return nil
}

// Len returns the number of entries not yet purged.
func (m *Memory) Len() int {
	return m.lru.Len()
}
