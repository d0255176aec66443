package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

const (
	indexFile = "cache.index"
	fileExt   = ".cache"

	// First byte of every cache file.
	headerRaw  byte = 0
	headerZstd byte = 1

	// Values at or below this size are stored raw.
	compressThreshold = 1024
)

// DiskCache is a persistent Medium storing one file per key, zstd
// compressed when that pays off. Every file carries its own header, so a
// process sharing the directory reads entries it did not write. The index
// only drives size accounting and eviction.
type DiskCache struct {
	mu sync.Mutex

	dir    string
	limit  int64
	used   int64
	index  map[string]*diskRecord
	codec  fileCodec
	closed bool

	stats CacheStats
}

type diskRecord struct {
	Path       string
	Size       int64 // bytes on disk, header included
	LastAccess time.Time
}

// fileCodec frames values with a one byte header.
type fileCodec struct {
	enc *zstd.Encoder // nil disables compression
	dec *zstd.Decoder
}

func newFileCodec(level int) (fileCodec, error) {
	var c fileCodec
	var err error
	if level > 0 {
		c.enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return c, fmt.Errorf("create zstd encoder: %w", err)
		}
	}
	// Decoding is always available so compressed files from another
	// process can be read.
	c.dec, err = zstd.NewReader(nil)
	if err != nil {
		return c, fmt.Errorf("create zstd decoder: %w", err)
	}
	return c, nil
}

func (c fileCodec) encode(value []byte) []byte {
	if c.enc != nil && len(value) > compressThreshold {
		packed := c.enc.EncodeAll(value, []byte{headerZstd})
		if len(packed) < len(value)+1 {
			return packed
		}
	}
	return append([]byte{headerRaw}, value...)
}

func (c fileCodec) decode(file []byte) ([]byte, error) {
	if len(file) == 0 {
		return nil, ErrCacheCorrupted
	}
	switch file[0] {
	case headerRaw:
		return file[1:], nil
	case headerZstd:
		return c.dec.DecodeAll(file[1:], nil)
	default:
		return nil, ErrCacheCorrupted
	}
}

func (c fileCodec) close() {
	if c.enc != nil {
		_ = c.enc.Close()
	}
	c.dec.Close()
}

// NewDiskCache opens or creates a cache in dir holding at most limit bytes.
// A level of 0 disables compression.
func NewDiskCache(dir string, limit int64, level int) (*DiskCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil { //nolint:gosec
		return nil, fmt.Errorf("create cache directory: %w", err)
	}
	codec, err := newFileCodec(level)
	if err != nil {
		return nil, err
	}

	dc := &DiskCache{
		dir:   dir,
		limit: limit,
		index: make(map[string]*diskRecord),
		codec: codec,
		stats: CacheStats{Capacity: limit},
	}
	if err := dc.loadIndex(); err != nil {
		// Start over; entries are rediscovered on read.
		dc.index = make(map[string]*diskRecord)
	}
	for _, rec := range dc.index {
		dc.used += rec.Size
	}
	return dc, nil
}

// Get reads key from disk. Corrupt files are removed and reported as a miss.
func (dc *DiskCache) Get(key string) ([]byte, bool, error) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.closed {
		return nil, false, ErrClosed
	}

	path := dc.pathFor(key)
	file, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		dc.forget(key)
		dc.stats.Misses++
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cache file: %w", err)
	}

	value, err := dc.codec.decode(file)
	if err != nil {
		_ = os.Remove(path)
		dc.forget(key)
		dc.stats.Misses++
		return nil, false, nil
	}

	now := time.Now()
	if rec, ok := dc.index[key]; ok {
		rec.LastAccess = now
	} else {
		dc.remember(key, path, int64(len(file)), now)
	}
	dc.stats.Hits++
	dc.stats.LastAccess = now
	return value, true, nil
}

// Put writes value under key, evicting least recently used files to stay
// within the limit.
func (dc *DiskCache) Put(key string, value []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.closed {
		return ErrClosed
	}

	file := dc.codec.encode(value)
	n := int64(len(file))
	if n > dc.limit {
		return ErrItemTooLarge
	}

	dc.forget(key)
	for dc.used+n > dc.limit && len(dc.index) > 0 {
		dc.evict()
	}

	path := dc.pathFor(key)
	if err := writeFileAtomic(path, file); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}
	dc.remember(key, path, n, time.Now())
	return dc.saveIndex()
}

// Delete removes key. Missing keys are not an error.
func (dc *DiskCache) Delete(key string) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.closed {
		return ErrClosed
	}
	if err := os.Remove(dc.pathFor(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	dc.forget(key)
	return dc.saveIndex()
}

// Clear removes every cache file in the directory, including files written
// by other processes.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.closed {
		return ErrClosed
	}
	files, err := filepath.Glob(filepath.Join(dc.dir, "*"+fileExt))
	if err != nil {
		return err
	}
	for _, f := range files {
		if err := os.Remove(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove cache file: %w", err)
		}
	}
	dc.index = make(map[string]*diskRecord)
	dc.used = 0
	return dc.saveIndex()
}

// Size returns the bytes on disk known to the index.
func (dc *DiskCache) Size() int64 {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	return dc.used
}

// Stats returns usage counters.
func (dc *DiskCache) Stats() CacheStats {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	return dc.stats.snapshot(dc.used, len(dc.index))
}

// Close saves the index and releases the codec. It is safe to call twice.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.closed {
		return nil
	}
	dc.closed = true
	dc.codec.close()
	return dc.saveIndex()
}

func (dc *DiskCache) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(dc.dir, hex.EncodeToString(sum[:16])+fileExt)
}

func (dc *DiskCache) remember(key, path string, size int64, at time.Time) {
	dc.index[key] = &diskRecord{Path: path, Size: size, LastAccess: at}
	dc.used += size
}

func (dc *DiskCache) forget(key string) {
	if rec, ok := dc.index[key]; ok {
		dc.used -= rec.Size
		delete(dc.index, key)
	}
}

func (dc *DiskCache) evict() {
	var victim string
	var oldest time.Time
	for key, rec := range dc.index {
		if victim == "" || rec.LastAccess.Before(oldest) {
			victim, oldest = key, rec.LastAccess
		}
	}
	if victim == "" {
		return
	}
	_ = os.Remove(dc.index[victim].Path)
	dc.forget(victim)
	dc.stats.Evictions++
	dc.stats.LastEvict = time.Now()
}

func (dc *DiskCache) loadIndex() error {
	f, err := os.Open(filepath.Join(dc.dir, indexFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck

	return gob.NewDecoder(f).Decode(&dc.index)
}

func (dc *DiskCache) saveIndex() error {
	path := filepath.Join(dc.dir, indexFile)
	tmp, err := os.CreateTemp(dc.dir, indexFile+".*.tmp")
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(tmp).Encode(dc.index); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// writeFileAtomic writes data next to path and renames it into place, so
// readers in other processes never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
