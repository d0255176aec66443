// Package ctypes contains shared types for the card collection.
// This package is used to break import cycles between cache, remote, collection, and shuffle packages.
package ctypes

import (
	"encoding/json"
	"strings"
	"time"
)

// DefaultCardName is used when a card is created or updated without a name.
const DefaultCardName = "Unnamed Card"

// Card is a labeled image with an external link.
type Card struct {
	ID        string
	Name      string
	ImageRef  string
	Link      string
	CreatedAt time.Time
}

// wireCard is the JSON shape served by the collection API.
type wireCard struct {
	ID        string `json:"_id"`
	Name      string `json:"name"`
	ImageURL  string `json:"imageUrl"`
	Link      string `json:"link"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

// MarshalJSON encodes the card in the collection API layout.
func (c Card) MarshalJSON() ([]byte, error) {
	w := wireCard{
		ID:       c.ID,
		Name:     c.Name,
		ImageURL: c.ImageRef,
		Link:     c.Link,
	}
	if !c.CreatedAt.IsZero() {
		w.CreatedAt = c.CreatedAt.UnixMilli()
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the collection API layout. A plain "id" field is
// accepted as a fallback for servers that do not use "_id".
func (c *Card) UnmarshalJSON(data []byte) error {
	var w struct {
		wireCard
		AltID string `json:"id"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	c.ID = w.ID
	if c.ID == "" {
		c.ID = w.AltID
	}
	c.Name = w.Name
	c.ImageRef = w.ImageURL
	c.Link = w.Link
	c.CreatedAt = time.Time{}
	if w.CreatedAt > 0 {
		c.CreatedAt = time.UnixMilli(w.CreatedAt).UTC()
	}
	return nil
}

// Valid reports whether the card can be shown by the shuffler.
func (c Card) Valid() bool {
	return strings.TrimSpace(c.ImageRef) != "" && strings.TrimSpace(c.Link) != ""
}

// DisplayName returns the card name or the default name.
func (c Card) DisplayName() string {
	if n := strings.TrimSpace(c.Name); n != "" {
		return n
	}
	return DefaultCardName
}

// CardInput is the payload of a create operation. The server assigns
// the ID and creation time.
type CardInput struct {
	Name     string `json:"name"`
	ImageRef string `json:"imageUrl"`
	Link     string `json:"link"`
}

// CardPatch is a partial update. Nil fields are left untouched.
type CardPatch struct {
	Name     *string `json:"name,omitempty"`
	ImageRef *string `json:"imageUrl,omitempty"`
	Link     *string `json:"link,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p CardPatch) Empty() bool {
	return p.Name == nil && p.ImageRef == nil && p.Link == nil
}

// Source records where a snapshot came from.
type Source string

const (
	// SourceNetwork marks a snapshot fetched from the collection API.
	SourceNetwork Source = "network"

	// SourceCache marks a snapshot served from the local cache.
	SourceCache Source = "cache"
)

// Snapshot is an immutable ordered view of the collection.
type Snapshot struct {
	cards      []Card
	capturedAt time.Time
	source     Source
}

// NewSnapshot copies cards into a new snapshot. Cards whose ID was already
// seen are dropped so that IDs stay unique within the snapshot.
func NewSnapshot(cards []Card, capturedAt time.Time, source Source) Snapshot {
	out := make([]Card, 0, len(cards))
	seen := make(map[string]bool, len(cards))
	for _, c := range cards {
		if c.ID != "" {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
		}
		out = append(out, c)
	}
	return Snapshot{cards: out, capturedAt: capturedAt, source: source}
}

// Cards returns a copy of the cards in order.
func (s Snapshot) Cards() []Card {
	out := make([]Card, len(s.cards))
	copy(out, s.cards)
	return out
}

// Len returns the number of cards.
func (s Snapshot) Len() int { return len(s.cards) }

// At returns the card at index i.
func (s Snapshot) At(i int) (Card, bool) {
	if i < 0 || i >= len(s.cards) {
		return Card{}, false
	}
	return s.cards[i], true
}

// Find returns the card with the given ID.
func (s Snapshot) Find(id string) (Card, bool) {
	for _, c := range s.cards {
		if c.ID == id {
			return c, true
		}
	}
	return Card{}, false
}

// Playable returns a new snapshot holding only the cards valid for shuffling.
func (s Snapshot) Playable() Snapshot {
	out := make([]Card, 0, len(s.cards))
	for _, c := range s.cards {
		if c.Valid() {
			out = append(out, c)
		}
	}
	return Snapshot{cards: out, capturedAt: s.capturedAt, source: s.source}
}

// CapturedAt returns when the snapshot was produced.
func (s Snapshot) CapturedAt() time.Time { return s.capturedAt }

// Source returns where the snapshot came from.
func (s Snapshot) Source() Source { return s.source }

// WithSource returns a copy of the snapshot tagged with src.
func (s Snapshot) WithSource(src Source) Snapshot {
	return Snapshot{cards: s.cards, capturedAt: s.capturedAt, source: src}
}

// Entry is a cached payload stamped with its capture time and schema version.
type Entry[T any] struct {
	Payload       T         `json:"payload"`
	CapturedAt    time.Time `json:"capturedAt"`
	SchemaVersion int       `json:"schemaVersion"`
}

// ValidAt reports whether the entry matches version and is younger than ttl at now.
func (e Entry[T]) ValidAt(now time.Time, ttl time.Duration, version int) bool {
	if e.SchemaVersion != version {
		return false
	}
	return now.Sub(e.CapturedAt) < ttl
}

// Age returns how old the entry is at now.
func (e Entry[T]) Age(now time.Time) time.Duration {
	return now.Sub(e.CapturedAt)
}
