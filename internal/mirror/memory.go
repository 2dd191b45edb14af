package mirror

import "sync"

// MemoryBackend is an in-memory Backend. It stands in for browser Web
// Storage in tests and in server-side rendering paths where no real storage
// exists.
type MemoryBackend struct {
	mu     sync.Mutex
	values map[string]string
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

// Get returns the value under key and whether it was present.
func (b *MemoryBackend) Get(key string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.values[key]
	return v, ok
}

// Set stores value under key, overwriting any previous value.
func (b *MemoryBackend) Set(key, value string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
}

// Remove deletes key. Removing an absent key is a no-op.
func (b *MemoryBackend) Remove(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.values, key)
}

// Len returns the number of stored keys.
func (b *MemoryBackend) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.values)
}

var _ Backend = (*MemoryBackend)(nil)
