package cache

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/cardshuffler/internal/ctypes"
)

// SchemaVersion is the version stamped on every entry this build writes.
const SchemaVersion = 1

// Keys used by the collection controller.
const (
	KeyCollection = "collection.cards"
	KeySpeed      = "settings.speed"
)

// StoreStats counts Store-level outcomes.
type StoreStats struct {
	Hits          int64
	Misses        int64
	StaleHits     int64
	ReadFailures  int64
	WriteFailures int64
}

// Store adds TTL and schema-version validity on top of a Medium.
// Medium failures are logged and counted, never returned.
type Store struct {
	medium Medium
	now    func() time.Time
	logger *log.Logger

	hits, misses, stale, readFail, writeFail atomic.Int64
}

// Option configures a Store.
type Option func(*Store)

// WithClock injects the time source used to stamp and validate entries.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for storage failures.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore wraps medium.
func NewStore(medium Medium, opts ...Option) *Store {
	s := &Store{
		medium: medium,
		now:    time.Now,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open builds the Medium described by cfg.
func Open(cfg *CacheConfig) (Medium, error) {
	if cfg == nil {
		cfg = DefaultCacheConfig()
	}
	switch cfg.Backend {
	case BackendMemory:
		return NewMemoryCache(cfg.MemoryCapacity), nil
	case BackendDisk, "":
		return NewDiskCache(cfg.DiskPath, cfg.DiskCapacity, cfg.CompressionLevel)
	case BackendSQLite:
		path := cfg.SQLitePath
		if path == "" {
			path = filepath.Join(cfg.DiskPath, "cache.db")
		}
		return NewSQLiteMedium(path)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// Medium returns the underlying medium.
func (s *Store) Medium() Medium {
	return s.medium
}

// Now returns the store's notion of the current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Stats returns a snapshot of the store counters.
func (s *Store) Stats() StoreStats {
	return StoreStats{
		Hits:          s.hits.Load(),
		Misses:        s.misses.Load(),
		StaleHits:     s.stale.Load(),
		ReadFailures:  s.readFail.Load(),
		WriteFailures: s.writeFail.Load(),
	}
}

// Close closes the underlying medium.
func (s *Store) Close() error {
	return s.medium.Close()
}

// Read returns the stored entry for key regardless of its validity.
func Read[T any](s *Store, key string) (ctypes.Entry[T], bool) {
	var entry ctypes.Entry[T]

	raw, ok, err := s.medium.Get(key)
	if err != nil {
		s.readFail.Add(1)
		s.fail("read", key, err)
		return entry, false
	}
	if !ok {
		return entry, false
	}

	if err := json.Unmarshal(raw, &entry); err != nil {
		s.readFail.Add(1)
		s.fail("decode", key, err)
		return ctypes.Entry[T]{}, false
	}
	return entry, true
}

// ReadValid returns the payload for key only if the entry is younger than
// ttl and carries version. Stale entries are left in place.
func ReadValid[T any](s *Store, key string, ttl time.Duration, version int) (T, bool) {
	entry, ok := ReadValidEntry[T](s, key, ttl, version)
	return entry.Payload, ok
}

// ReadValidEntry is ReadValid returning the whole entry.
func ReadValidEntry[T any](s *Store, key string, ttl time.Duration, version int) (ctypes.Entry[T], bool) {
	entry, ok := Read[T](s, key)
	if !ok {
		s.misses.Add(1)
		return ctypes.Entry[T]{}, false
	}
	now := s.now()
	if !entry.ValidAt(now, ttl, version) {
		s.stale.Add(1)
		s.logger.Debug("cache entry stale", "key", key, "age", entry.Age(now), "version", entry.SchemaVersion)
		return ctypes.Entry[T]{}, false
	}
	s.hits.Add(1)
	return entry, true
}

// Write stores payload under key stamped with the current time and version.
func Write[T any](s *Store, key string, payload T, version int) bool {
	entry := ctypes.Entry[T]{
		Payload:       payload,
		CapturedAt:    s.now(),
		SchemaVersion: version,
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		s.writeFail.Add(1)
		s.fail("encode", key, err)
		return false
	}
	if err := s.medium.Put(key, raw); err != nil {
		s.writeFail.Add(1)
		s.fail("write", key, err)
		return false
	}
	return true
}

// Purge removes the entry stored under key.
func (s *Store) Purge(key string) bool {
	if err := s.medium.Delete(key); err != nil {
		s.writeFail.Add(1)
		s.fail("purge", key, err)
		return false
	}
	return true
}

// Clear drops every stored entry. Mediums without bulk removal have the
// known keys purged instead.
func (s *Store) Clear() error {
	if c, ok := s.medium.(interface{ Clear() error }); ok {
		if err := c.Clear(); err != nil {
			s.writeFail.Add(1)
			s.fail("clear", "*", err)
			return err
		}
		return nil
	}
	for _, key := range []string{KeyCollection, KeySpeed} {
		if err := s.medium.Delete(key); err != nil {
			s.writeFail.Add(1)
			s.fail("clear", key, err)
			return err
		}
	}
	return nil
}

func (s *Store) fail(op, key string, err error) {
	cerr := ctypes.NewError(ctypes.KindStorageUnavailable, "cache."+op, "local cache unavailable", err)
	s.logger.Warn("cache operation failed", "op", op, "key", key, "err", cerr)
}
