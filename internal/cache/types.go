package cache

import (
	"errors"
	"time"
)

// Common errors for cache operations
var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrCacheCorrupted is returned when cache data is corrupted
	ErrCacheCorrupted = errors.New("cache data corrupted")

	// ErrClosed is returned when a medium is used after Close
	ErrClosed = errors.New("cache medium closed")
)

// Medium is the persistent key-value store beneath a Store.
// Get reports a missing key as (nil, false, nil); a non-nil error means
// the medium itself could not be used.
type Medium interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Close() error
}

// Backend names a Medium implementation.
type Backend string

const (
	// BackendMemory keeps entries in process memory only
	BackendMemory Backend = "memory"

	// BackendDisk stores one compressed file per key
	BackendDisk Backend = "disk"

	// BackendSQLite stores entries in a SQLite database
	BackendSQLite Backend = "sqlite"
)

// String returns the backend name
func (b Backend) String() string {
	return string(b)
}

// CacheStats holds cache performance metrics
type CacheStats struct {
	// Configuration
	Capacity int64 // Maximum capacity in bytes

	// Current state
	Size      int64 // Current size in bytes
	ItemCount int64 // Number of items in cache

	// Performance metrics
	Hits      int64   // Number of cache hits
	Misses    int64   // Number of cache misses
	Evictions int64   // Number of evictions
	HitRate   float64 // Calculated hit rate (hits / (hits + misses))

	// Timing
	LastAccess time.Time // Last access time
	LastEvict  time.Time // Last eviction time
}

// CacheConfig holds configuration for opening a medium
type CacheConfig struct {
	Backend Backend

	// Memory cache
	MemoryCapacity int64 // Bytes

	// Disk cache
	DiskCapacity     int64  // Bytes
	DiskPath         string // Directory for cache files
	CompressionLevel int    // Zstd compression level (1-22, default 3)

	// SQLite
	SQLitePath string // Database file; defaults to DiskPath/cache.db
}

// DefaultCacheConfig returns default cache configuration
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Backend:          BackendDisk,
		MemoryCapacity:   16 * 1024 * 1024,  // 16MB
		DiskCapacity:     256 * 1024 * 1024, // 256MB
		CompressionLevel: 3,                 // Balanced compression
	}
}

// snapshot fills in the derived fields of a copy of s.
func (s CacheStats) snapshot(size int64, items int) CacheStats {
	s.Size = size
	s.ItemCount = int64(items)
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
	return s
}
