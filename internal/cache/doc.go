// Package cache provides the local, versioned cache for the card collection.
// A Store layers TTL and schema-version validity over a byte Medium: an
// in-memory LRU, a zstd-compressed disk cache, or a SQLite table.
package cache
