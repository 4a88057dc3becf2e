// Package hashutil provides SHA-256 content hashing with a small
// per-path cache used to detect concurrent modification.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// ChecksumManager is a thread-safe checksum manager.
type ChecksumManager struct {
	mu    sync.RWMutex
	store map[string]string
}

// NewChecksumManager creates a new thread-safe checksum manager instance.
func NewChecksumManager() *ChecksumManager {
	return &ChecksumManager{
		store: make(map[string]string),
	}
}

// Compute computes the SHA-256 checksum of data and returns it as a hex string.
func (m *ChecksumManager) Compute(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Get retrieves the cached checksum for a file path.
func (m *ChecksumManager) Get(path string) (checksum string, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	checksum, ok = m.store[path]
	return checksum, ok
}

// Update stores or updates the checksum for a file path in the cache.
func (m *ChecksumManager) Update(path string, checksum string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[path] = checksum
}
