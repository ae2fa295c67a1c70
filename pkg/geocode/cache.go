package geocode

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// CachedAddress is a memoized geocode outcome. Matched=false entries memoize
// failures so repeated lookups short-circuit without re-hitting the network.
type CachedAddress struct {
	Lat     float64
	Lon     float64
	Matched bool
}

// Cache is the memoization backend for geocode and leg-distance results.
// Implementations live in internal/store (sqlite, postgres) alongside the
// default in-process MemoryCache here.
type Cache interface {
	GetAddress(ctx context.Context, key string) (*CachedAddress, error)
	PutAddress(ctx context.Context, key string, addr CachedAddress) error
	GetDistance(ctx context.Context, key string) (float64, bool, error)
	PutDistance(ctx context.Context, key string, miles float64) error
}

// AddressKey normalizes an address into its cache key.
func AddressKey(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

// LegKey returns the cache key for a directed coordinate pair.
func LegKey(from, to Coordinates) string {
	return fmt.Sprintf("%.6f,%.6f->%.6f,%.6f", from.Lat, from.Lon, to.Lat, to.Lon)
}

// MemoryCache is a process-lifetime in-memory Cache with no eviction. The
// original design assumed a single logical thread; this port runs lookups from
// worker goroutines, so access is mutex-guarded.
type MemoryCache struct {
	mu        sync.RWMutex
	addresses map[string]CachedAddress
	distances map[string]float64
}

// NewMemoryCache creates an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		addresses: make(map[string]CachedAddress),
		distances: make(map[string]float64),
	}
}

// GetAddress implements Cache. A miss returns (nil, nil).
func (m *MemoryCache) GetAddress(_ context.Context, key string) (*CachedAddress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if a, ok := m.addresses[key]; ok {
		return &a, nil
	}
	return nil, nil
}

// PutAddress implements Cache.
func (m *MemoryCache) PutAddress(_ context.Context, key string, addr CachedAddress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addresses[key] = addr
	return nil
}

// GetDistance implements Cache.
func (m *MemoryCache) GetDistance(_ context.Context, key string) (float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.distances[key]
	return d, ok, nil
}

// PutDistance implements Cache.
func (m *MemoryCache) PutDistance(_ context.Context, key string, miles float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.distances[key] = miles
	return nil
}
