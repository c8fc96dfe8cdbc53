package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
)

// KeyStore maps hashed host API keys to client IDs. Thread-safe.
// Keys are stored as SHA-256 hashes so plaintext keys never stay in memory.
type KeyStore struct {
	mu   sync.RWMutex
	keys map[string]string // SHA-256(apiKey) → clientID
}

// NewKeyStore creates a KeyStore from a comma-separated "client:key" string.
// Example: "workflows-prod:sk-abc,workflows-staging:sk-def"
func NewKeyStore(raw string) *KeyStore {
	ks := &KeyStore{keys: make(map[string]string)}
	if raw == "" {
		return ks
	}
	for _, pair := range strings.Split(raw, ",") {
		client, key, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok {
			continue
		}
		client, key = strings.TrimSpace(client), strings.TrimSpace(key)
		if client == "" || key == "" {
			continue
		}
		ks.keys[hashKey(key)] = client
	}
	return ks
}

// Lookup returns the client ID for a given API key.
func (ks *KeyStore) Lookup(apiKey string) (clientID string, ok bool) {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	clientID, ok = ks.keys[hashKey(apiKey)]
	return
}

// Len reports how many keys are configured.
func (ks *KeyStore) Len() int {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	return len(ks.keys)
}

func hashKey(key string) string {
	h := sha256.Sum256([]byte(key))
	return hex.EncodeToString(h[:])
}
