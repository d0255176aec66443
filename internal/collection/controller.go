// Package collection keeps the local card collection in step with the
// remote API. Reads are served stale-while-revalidate from the local cache;
// mutations go to the API first and are then mirrored by a refetch.
package collection

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"github.com/dgnsrekt/cardshuffler/internal/cache"
	"github.com/dgnsrekt/cardshuffler/internal/compress"
	"github.com/dgnsrekt/cardshuffler/internal/ctypes"
	"github.com/dgnsrekt/cardshuffler/internal/speed"
)

// DefaultTTL is how long a cached snapshot is served without a refetch.
const DefaultTTL = 5 * time.Minute

// Remote is the card collection API.
type Remote interface {
	List(ctx context.Context) ([]ctypes.Card, error)
	Create(ctx context.Context, in ctypes.CardInput) error
	Update(ctx context.Context, id string, patch ctypes.CardPatch) error
	Delete(ctx context.Context, id string) error
	Clear(ctx context.Context) error
}

// Options configures a Controller.
type Options struct {
	Remote     Remote
	Store      *cache.Store
	Compressor compress.Compressor // nil disables compression
	Policy     compress.Policy     // zero value means compress.DefaultPolicy
	TTL        time.Duration       // zero value means DefaultTTL
	Logger     *log.Logger
}

// Controller coordinates the cache and the remote API for one session.
type Controller struct {
	remote     Remote
	store      *cache.Store
	compressor compress.Compressor
	policy     compress.Policy
	ttl        time.Duration
	logger     *log.Logger

	// Background refreshes
	group  singleflight.Group
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// writeMu orders every write of the collection key, so a refresh that
	// checked the generation cannot land after a newer mutation.
	writeMu sync.Mutex

	mu        sync.Mutex
	closed    bool
	gen       uint64 // bumped by every applied mutation
	listeners []func(ctypes.Snapshot)
}

// New creates a controller.
func New(opts Options) *Controller {
	if opts.Policy == (compress.Policy{}) {
		opts.Policy = compress.DefaultPolicy
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		remote:     opts.Remote,
		store:      opts.Store,
		compressor: opts.Compressor,
		policy:     opts.Policy,
		ttl:        opts.TTL,
		logger:     opts.Logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// TTL returns the validity window of cached entries.
func (c *Controller) TTL() time.Duration {
	return c.ttl
}

// OnRefresh registers fn to be called with every snapshot produced by a
// background refresh. fn runs on the refresh goroutine.
func (c *Controller) OnRefresh(fn func(ctypes.Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.listeners = append(c.listeners, fn)
}

// Snapshot returns the collection. A valid, non-empty cached snapshot is
// returned immediately and refreshed in the background; otherwise the
// collection is fetched before returning.
func (c *Controller) Snapshot(ctx context.Context) (ctypes.Snapshot, error) {
	entry, ok := cache.ReadValidEntry[[]ctypes.Card](c.store, cache.KeyCollection, c.ttl, cache.SchemaVersion)
	if ok && len(entry.Payload) > 0 {
		c.refreshInBackground()
		return ctypes.NewSnapshot(entry.Payload, entry.CapturedAt, ctypes.SourceCache), nil
	}

	return c.fetch(ctx)
}

// Cached returns the last stored snapshot regardless of its age.
func (c *Controller) Cached() (ctypes.Snapshot, bool) {
	entry, ok := cache.Read[[]ctypes.Card](c.store, cache.KeyCollection)
	if !ok || entry.SchemaVersion != cache.SchemaVersion {
		return ctypes.Snapshot{}, false
	}
	return ctypes.NewSnapshot(entry.Payload, entry.CapturedAt, ctypes.SourceCache), true
}

// Refresh fetches the collection now, bypassing the cache.
func (c *Controller) Refresh(ctx context.Context) (ctypes.Snapshot, error) {
	return c.fetch(ctx)
}

// Mutate applies op remotely and returns the resulting snapshot. The cache
// is only written after the API accepted the change.
func (c *Controller) Mutate(ctx context.Context, op Operation) (ctypes.Snapshot, error) {
	if err := op.Validate(); err != nil {
		return ctypes.Snapshot{}, err
	}

	op, err := c.prepare(ctx, op)
	if err != nil {
		return ctypes.Snapshot{}, err
	}

	if err := c.apply(ctx, op); err != nil {
		c.logger.Debug("mutation rejected", "op", op.Kind, "id", op.ID, "err", err)
		return ctypes.Snapshot{}, err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.Lock()
	c.gen++
	c.mu.Unlock()

	if op.Kind == OpClearAll {
		c.store.Purge(cache.KeyCollection)
		snap := ctypes.NewSnapshot(nil, c.store.Now(), ctypes.SourceNetwork)
		cache.Write(c.store, cache.KeyCollection, snap.Cards(), cache.SchemaVersion)
		return snap, nil
	}

	snap, err := c.fetchLocked(ctx)
	if err != nil {
		// The change is applied but the cached copy is now outdated.
		c.store.Purge(cache.KeyCollection)
		return ctypes.Snapshot{}, ctypes.NewError(ctypes.KindNetwork, "collection."+op.Kind.String(),
			"change applied but the collection could not be reloaded", err)
	}
	return snap, nil
}

// Create adds a card.
func (c *Controller) Create(ctx context.Context, in ctypes.CardInput) (ctypes.Snapshot, error) {
	return c.Mutate(ctx, CreateOp(in))
}

// Update changes a card.
func (c *Controller) Update(ctx context.Context, id string, patch ctypes.CardPatch) (ctypes.Snapshot, error) {
	return c.Mutate(ctx, UpdateOp(id, patch))
}

// Delete removes a card.
func (c *Controller) Delete(ctx context.Context, id string) (ctypes.Snapshot, error) {
	return c.Mutate(ctx, DeleteOp(id))
}

// ClearAll removes every card.
func (c *Controller) ClearAll(ctx context.Context) (ctypes.Snapshot, error) {
	return c.Mutate(ctx, ClearAllOp())
}

// Speed returns the persisted shuffle speed, or speed.Default.
func (c *Controller) Speed() int {
	v, ok := cache.ReadValid[int](c.store, cache.KeySpeed, c.ttl, cache.SchemaVersion)
	if !ok || v < speed.Min || v > speed.Max {
		return speed.Default
	}
	return v
}

// SetSpeed clamps and persists s, returning the stored value.
func (c *Controller) SetSpeed(s int) int {
	s = speed.Clamp(s)
	cache.Write(c.store, cache.KeySpeed, s, cache.SchemaVersion)
	return s
}

// Close cancels background refreshes and waits for them to finish.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
	return nil
}

func (c *Controller) fetch(ctx context.Context) (ctypes.Snapshot, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	return c.fetchLocked(ctx)
}

// fetchLocked must be called with writeMu held.
func (c *Controller) fetchLocked(ctx context.Context) (ctypes.Snapshot, error) {
	cards, err := c.remote.List(ctx)
	if err != nil {
		return ctypes.Snapshot{}, err
	}

	snap := ctypes.NewSnapshot(cards, c.store.Now(), ctypes.SourceNetwork)
	cache.Write(c.store, cache.KeyCollection, snap.Cards(), cache.SchemaVersion)
	return snap, nil
}

func (c *Controller) refreshInBackground() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	gen := c.gen
	c.wg.Add(1)
	c.mu.Unlock()

	go func() {
		defer c.wg.Done()

		_, err, _ := c.group.Do(cache.KeyCollection, func() (any, error) {
			cards, err := c.remote.List(c.ctx)
			if err != nil {
				return nil, err
			}

			c.writeMu.Lock()
			defer c.writeMu.Unlock()

			c.mu.Lock()
			superseded := c.gen != gen
			listeners := append([]func(ctypes.Snapshot){}, c.listeners...)
			c.mu.Unlock()

			if superseded {
				// A mutation finished meanwhile and wrote a newer snapshot.
				return nil, nil
			}

			snap := ctypes.NewSnapshot(cards, c.store.Now(), ctypes.SourceNetwork)
			cache.Write(c.store, cache.KeyCollection, snap.Cards(), cache.SchemaVersion)
			for _, fn := range listeners {
				fn(snap)
			}
			return nil, nil
		})
		if err != nil {
			c.logger.Warn("background refresh failed", "err", err)
		}
	}()
}

func (c *Controller) prepare(ctx context.Context, op Operation) (Operation, error) {
	switch op.Kind {
	case OpCreate:
		op.Input.Name = orDefaultName(op.Input.Name)
		ref, err := c.compressRef(ctx, op.Input.ImageRef)
		if err != nil {
			return op, err
		}
		op.Input.ImageRef = ref

	case OpUpdate:
		if op.Patch.Name != nil {
			name := orDefaultName(*op.Patch.Name)
			op.Patch.Name = &name
		}
		if op.Patch.ImageRef != nil {
			ref, err := c.compressRef(ctx, *op.Patch.ImageRef)
			if err != nil {
				return op, err
			}
			op.Patch.ImageRef = &ref
		}
	}
	return op, nil
}

func (c *Controller) compressRef(ctx context.Context, ref string) (string, error) {
	if c.compressor == nil || !compress.IsRaw(ref) {
		return ref, nil
	}
	out, err := c.compressor.Compress(ctx, ref, c.policy)
	if err != nil {
		if ctypes.KindOf(err) != ctypes.KindCompression {
			err = ctypes.NewError(ctypes.KindCompression, "collection.compress", "image compression failed", err)
		}
		return "", err
	}
	return out, nil
}

func (c *Controller) apply(ctx context.Context, op Operation) error {
	switch op.Kind {
	case OpCreate:
		return c.remote.Create(ctx, op.Input)
	case OpUpdate:
		return c.remote.Update(ctx, op.ID, op.Patch)
	case OpDelete:
		return c.remote.Delete(ctx, op.ID)
	case OpClearAll:
		return c.remote.Clear(ctx)
	}
	return ctypes.Errorf(ctypes.KindValidation, "collection.apply", "unknown operation %d", int(op.Kind))
}
