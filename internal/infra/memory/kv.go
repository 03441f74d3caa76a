// Package memory provides in-process implementations of the storage and
// messaging ports. They back local development and tests when no Redis or
// Postgres is configured.
package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     string
	expiresAt time.Time // zero means no expiry
}

// KV is a thread-safe in-memory key-value store with per-key TTL and
// set-membership support, mirroring the subset of Redis the job store uses.
type KV struct {
	mu    sync.RWMutex
	items map[string]entry
	sets  map[string]map[string]struct{}
}

// NewKV creates an in-memory KV store.
func NewKV() *KV {
	kv := &KV{
		items: make(map[string]entry),
		sets:  make(map[string]map[string]struct{}),
	}
	// Background cleanup goroutine
	go kv.cleanup()
	return kv
}

// Get retrieves a value. Returns ("", false, nil) if not found or expired.
func (kv *KV) Get(_ context.Context, key string) (string, bool, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	e, ok := kv.items[key]
	if !ok || (!e.expiresAt.IsZero() && time.Now().After(e.expiresAt)) {
		return "", false, nil
	}
	return e.value, true, nil
}

// Set stores a value with the given TTL. A zero TTL means no expiry.
func (kv *KV) Set(_ context.Context, key, value string, ttl time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	e := entry{value: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	kv.items[key] = e
	return nil
}

// Delete removes a key.
func (kv *KV) Delete(_ context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	delete(kv.items, key)
	return nil
}

// SAdd adds members to the set at key, creating it if needed.
func (kv *KV) SAdd(_ context.Context, key string, members ...string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	set, ok := kv.sets[key]
	if !ok {
		set = make(map[string]struct{})
		kv.sets[key] = set
	}
	for _, m := range members {
		set[m] = struct{}{}
	}
	return nil
}

// SRem removes members from the set at key.
func (kv *KV) SRem(_ context.Context, key string, members ...string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()

	set, ok := kv.sets[key]
	if !ok {
		return nil
	}
	for _, m := range members {
		delete(set, m)
	}
	if len(set) == 0 {
		delete(kv.sets, key)
	}
	return nil
}

// SMembers returns the members of the set at key. A missing set is empty.
func (kv *KV) SMembers(_ context.Context, key string) ([]string, error) {
	kv.mu.RLock()
	defer kv.mu.RUnlock()

	set := kv.sets[key]
	members := make([]string, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	return members, nil
}

// cleanup periodically removes expired entries.
func (kv *KV) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		kv.mu.Lock()
		now := time.Now()
		for k, e := range kv.items {
			if !e.expiresAt.IsZero() && now.After(e.expiresAt) {
				delete(kv.items, k)
			}
		}
		kv.mu.Unlock()
	}
}
