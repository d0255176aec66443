package shuffle

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/cardshuffler/internal/ctypes"
	"github.com/dgnsrekt/cardshuffler/internal/speed"
)

// Update is published to subscribers after every state change.
type Update struct {
	State   State
	Card    ctypes.Card
	HasCard bool
}

// Options configures an Engine.
type Options struct {
	// Speed sets the initial interval (defaults to speed.Default)
	Speed int

	// NewTicker creates timers (defaults to NewTimeTicker)
	NewTicker TickerFactory

	// Rand is the source for card selection (defaults to a random seed)
	Rand *rand.Rand

	Logger *log.Logger
}

// Engine runs the shuffle state machine against a real timer.
type Engine struct {
	newTicker TickerFactory
	rng       *rand.Rand
	logger    *log.Logger

	mu     sync.Mutex
	state  State
	cards  ctypes.Snapshot // playable cards only
	loop   *tickLoop
	closed bool

	subMu      sync.Mutex
	subs       map[int]chan Update
	nextSub    int
	subsClosed bool
}

// tickLoop is one armed timer and the goroutine draining it.
type tickLoop struct {
	ticker Ticker
	stop   chan struct{}
	done   chan struct{}
}

// New creates an idle engine with no cards.
func New(opts Options) *Engine {
	if opts.Speed == 0 {
		opts.Speed = speed.Default
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTimeTicker
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Engine{
		newTicker: opts.NewTicker,
		rng:       opts.Rand,
		logger:    opts.Logger,
		state:     State{Mode: Idle, Interval: speed.MapSpeedToInterval(opts.Speed)},
		subs:      make(map[int]chan Update),
	}
}

// Start begins cycling. It does nothing unless at least two playable cards
// are loaded or when already running.
func (e *Engine) Start() bool {
	upd, ok := e.send(Event{Kind: EventStart})
	return ok && upd.State.Running()
}

// Stop halts cycling and keeps the current card. No tick is processed after
// Stop returns.
func (e *Engine) Stop() {
	e.send(Event{Kind: EventStop})
}

// Toggle starts a stopped engine or stops a running one.
func (e *Engine) Toggle() bool {
	if e.State().Running() {
		e.Stop()
		return false
	}
	return e.Start()
}

// SetSpeed changes the tick interval using the speed mapping.
func (e *Engine) SetSpeed(s int) {
	e.SetInterval(speed.MapSpeedToInterval(s))
}

// SetInterval changes the tick interval. A running engine is re-armed.
func (e *Engine) SetInterval(d time.Duration) {
	e.send(Event{Kind: EventSetInterval, Interval: d})
}

// SetSnapshot replaces the cards being shuffled with the playable cards of s.
func (e *Engine) SetSnapshot(s ctypes.Snapshot) {
	cards := s.Playable()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.cards = cards
	old := e.dispatch(Event{Kind: EventSetSnapshotLen, Len: cards.Len()})
	e.publish(e.updateLocked())
	e.mu.Unlock()

	join(old)
}

// State returns a copy of the current state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state.Clone()
}

// Current returns the card being shown.
func (e *Engine) Current() (ctypes.Card, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	u := e.updateLocked()
	return u.Card, u.HasCard
}

// Subscribe returns a channel of updates and a function to unsubscribe.
// Slow readers only see the latest update.
func (e *Engine) Subscribe() (<-chan Update, func()) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	if e.subsClosed {
		ch := make(chan Update)
		close(ch)
		return ch, func() {}
	}

	id := e.nextSub
	e.nextSub++
	ch := make(chan Update, 1)
	e.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.subMu.Lock()
			defer e.subMu.Unlock()
			if c, ok := e.subs[id]; ok {
				delete(e.subs, id)
				close(c)
			}
		})
	}
}

// Close stops the engine and closes all subscriptions. It is safe to call
// more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	old := e.dispatch(Event{Kind: EventStop})
	e.closed = true
	e.mu.Unlock()

	join(old)

	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.subsClosed = true
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
	return nil
}

func (e *Engine) send(ev Event) (Update, bool) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return Update{}, false
	}
	old := e.dispatch(ev)
	upd := e.updateLocked()
	e.publish(upd)
	e.mu.Unlock()

	join(old)
	return upd, true
}

// dispatch runs Reduce and executes its effect. It must be called with mu
// held and returns a detached loop for the caller to join after unlocking.
func (e *Engine) dispatch(ev Event) *tickLoop {
	next, eff := Reduce(e.state, ev)
	e.state = next

	switch eff.Kind {
	case EffectArmTimer:
		old := e.detach()
		e.arm(eff.Interval)
		e.logger.Debug("shuffle timer armed", "interval", eff.Interval)
		return old
	case EffectDisarmTimer:
		e.logger.Debug("shuffle timer disarmed", "index", e.state.CurrentIndex)
		return e.detach()
	}
	return nil
}

func (e *Engine) arm(d time.Duration) {
	l := &tickLoop{
		ticker: e.newTicker(d),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	e.loop = l
	go e.run(l)
}

func (e *Engine) detach() *tickLoop {
	l := e.loop
	if l == nil {
		return nil
	}
	e.loop = nil
	close(l.stop)
	return l
}

func (e *Engine) run(l *tickLoop) {
	defer close(l.done)
	defer l.ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-l.ticker.C():
			e.tick(l)
		}
	}
}

func (e *Engine) tick(l *tickLoop) {
	e.mu.Lock()
	if e.loop != l {
		// Detached while the tick was pending.
		e.mu.Unlock()
		return
	}

	idx := -1
	if n := e.cards.Len(); n >= 2 {
		idx = Pick(e.rng, n, e.state.CurrentIndex, e.state.HasCurrent)
	}
	// An auto-stop detaches l itself; run exits once tick returns.
	e.dispatch(Event{Kind: EventTick, Index: idx})
	e.publish(e.updateLocked())
	e.mu.Unlock()
}

func (e *Engine) updateLocked() Update {
	u := Update{State: e.state.Clone()}
	if e.state.HasCurrent {
		u.Card, u.HasCard = e.cards.At(e.state.CurrentIndex)
	}
	return u
}

// publish must be called with mu held so subscribers see updates in order.
func (e *Engine) publish(u Update) {
	e.subMu.Lock()
	defer e.subMu.Unlock()

	for _, ch := range e.subs {
		select {
		case ch <- u:
		default:
			// Drop the stale update in favour of the latest one.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- u:
			default:
			}
		}
	}
}

func join(l *tickLoop) {
	if l != nil {
		<-l.done
	}
}
