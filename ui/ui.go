// Package ui provides the interactive shuffle screen.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/cardshuffler/internal/ctypes"
	"github.com/dgnsrekt/cardshuffler/internal/shuffle"
	"github.com/dgnsrekt/cardshuffler/internal/speed"
)

const (
	statusMessageTimeout = time.Second * 3 // how long to show status messages like "copied!"
	loadTimeout          = 15 * time.Second
)

// Collection is the part of the collection controller the UI needs.
type Collection interface {
	Snapshot(ctx context.Context) (ctypes.Snapshot, error)
	Refresh(ctx context.Context) (ctypes.Snapshot, error)
	Cached() (ctypes.Snapshot, bool)
	Speed() int
	SetSpeed(s int) int
	OnRefresh(fn func(ctypes.Snapshot))
}

// NewProgram returns a new Tea program.
func NewProgram(cfg Config, coll Collection, engine *shuffle.Engine) *tea.Program {
	log.Debug("starting shuffle ui", "speed", cfg.Speed, "offline", cfg.Offline, "watch", cfg.CacheDir)

	var opts []tea.ProgramOption
	if cfg.AltScreen {
		opts = append(opts, tea.WithAltScreen())
	}
	if cfg.EnableMouse {
		opts = append(opts, tea.WithMouseCellMotion())
	}
	return tea.NewProgram(newModel(cfg, coll, engine), opts...)
}

type (
	snapshotMsg struct {
		snap ctypes.Snapshot
		err  error
	}
	engineMsg               shuffle.Update
	refreshedMsg            ctypes.Snapshot
	cachedMsg               ctypes.Snapshot
	cacheChangedMsg         struct{}
	statusMessageTimeoutMsg struct{}
)

type statusMessage struct {
	text    string
	isError bool
}

type model struct {
	cfg    Config
	coll   Collection
	engine *shuffle.Engine

	updates     <-chan shuffle.Update
	unsubscribe func()
	refreshed   chan ctypes.Snapshot
	watcher     *cacheWatcher

	spinner spinner.Model
	loading bool

	speed    int
	snapshot ctypes.Snapshot
	current  ctypes.Card
	hasCard  bool
	state    shuffle.State

	width  int
	height int

	status      *statusMessage
	statusTimer *time.Timer
	err         error
}

func newModel(cfg Config, coll Collection, engine *shuffle.Engine) model {
	if cfg.SpeedStep <= 0 {
		cfg.SpeedStep = 5
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(fuchsia)

	s := cfg.Speed
	if s == 0 {
		s = coll.Speed()
	}
	s = speed.Clamp(s)
	engine.SetSpeed(s)

	updates, unsubscribe := engine.Subscribe()

	// Background refreshes are delivered through a channel so they can be
	// turned into messages.
	refreshed := make(chan ctypes.Snapshot, 1)
	coll.OnRefresh(func(snap ctypes.Snapshot) {
		select {
		case refreshed <- snap:
		default:
		}
	})

	return model{
		cfg:         cfg,
		coll:        coll,
		engine:      engine,
		updates:     updates,
		unsubscribe: unsubscribe,
		refreshed:   refreshed,
		watcher:     newCacheWatcher(cfg.CacheDir),
		spinner:     sp,
		loading:     true,
		speed:       s,
		state:       engine.State(),
	}
}

func (m model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		m.loadSnapshot(),
		waitForEngine(m.updates),
		waitForRefresh(m.refreshed),
	}
	if m.watcher != nil {
		cmds = append(cmds, m.watcher.wait)
	}
	return tea.Batch(cmds...)
}

func (m model) loadSnapshot() tea.Cmd {
	coll, offline := m.coll, m.cfg.Offline
	return func() tea.Msg {
		if offline {
			snap, ok := coll.Cached()
			if !ok {
				return snapshotMsg{err: errors.New("no cached collection available offline")}
			}
			return snapshotMsg{snap: snap}
		}

		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		snap, err := coll.Snapshot(ctx)
		if err != nil {
			// Fall back to whatever is cached, however old.
			if cached, ok := coll.Cached(); ok {
				log.Warn("using stale cache", "err", err)
				return snapshotMsg{snap: cached, err: err}
			}
		}
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m model) refresh() tea.Cmd {
	coll := m.coll
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		snap, err := coll.Refresh(ctx)
		return snapshotMsg{snap: snap, err: err}
	}
}

func (m model) reloadCached() tea.Cmd {
	coll := m.coll
	return func() tea.Msg {
		if snap, ok := coll.Cached(); ok {
			return cachedMsg(snap)
		}
		return nil
	}
}

func waitForEngine(ch <-chan shuffle.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return engineMsg(u)
	}
}

func waitForRefresh(ch <-chan ctypes.Snapshot) tea.Cmd {
	return func() tea.Msg {
		return refreshedMsg(<-ch)
	}
}

func (m *model) showStatusMessage(msg statusMessage) tea.Cmd {
	m.status = &msg
	if m.statusTimer != nil {
		m.statusTimer.Stop()
	}
	m.statusTimer = time.NewTimer(statusMessageTimeout)
	timer := m.statusTimer
	return func() tea.Msg {
		<-timer.C
		return statusMessageTimeoutMsg{}
	}
}

func (m *model) setSnapshot(snap ctypes.Snapshot) {
	m.snapshot = snap
	m.engine.SetSnapshot(snap)
	m.current, m.hasCard = m.engine.Current()
	m.state = m.engine.State()
}

func (m *model) changeSpeed(delta int) tea.Cmd {
	next := speed.Step(m.speed, delta)
	if next == m.speed {
		return nil
	}
	m.speed = m.coll.SetSpeed(next)
	m.engine.SetSpeed(m.speed)
	return m.showStatusMessage(statusMessage{text: "Speed " + speed.Describe(m.speed)})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			m.shutdown()
			return m, tea.Quit

		case "ctrl+z":
			return m, tea.Suspend

		case " ", "enter", "s":
			if m.loading {
				break
			}
			if m.engine.State().Running() {
				m.engine.Stop()
			} else if !m.engine.Start() {
				cmds = append(cmds, m.showStatusMessage(statusMessage{text: "Need at least two cards to shuffle", isError: true}))
			}
			m.state = m.engine.State()

		case "+", "=", "right", "l":
			cmds = append(cmds, m.changeSpeed(m.cfg.SpeedStep))

		case "-", "_", "left", "h":
			cmds = append(cmds, m.changeSpeed(-m.cfg.SpeedStep))

		case "r":
			if !m.cfg.Offline {
				m.loading = true
				cmds = append(cmds, m.refresh(), m.spinner.Tick)
			}

		case "c":
			if m.hasCard && m.current.Link != "" {
				// Copy using OSC 52
				termenv.Copy(m.current.Link)
				// Copy using native system clipboard
				_ = clipboard.WriteAll(m.current.Link)
				cmds = append(cmds, m.showStatusMessage(statusMessage{text: "Copied link"}))
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case snapshotMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			cmds = append(cmds, m.showStatusMessage(statusMessage{text: msg.err.Error(), isError: true}))
		} else {
			m.err = nil
		}
		if msg.snap.CapturedAt().IsZero() && msg.err != nil {
			break
		}
		m.setSnapshot(msg.snap)

	case refreshedMsg:
		m.setSnapshot(ctypes.Snapshot(msg))
		cmds = append(cmds, waitForRefresh(m.refreshed))

	case cachedMsg:
		// The watcher also fires for our own writes.
		if snap := ctypes.Snapshot(msg); !snap.CapturedAt().Equal(m.snapshot.CapturedAt()) {
			m.setSnapshot(snap)
		}

	case cacheChangedMsg:
		cmds = append(cmds, m.reloadCached())
		if m.watcher != nil {
			cmds = append(cmds, m.watcher.wait)
		}

	case engineMsg:
		m.state = msg.State
		m.current, m.hasCard = msg.Card, msg.HasCard
		cmds = append(cmds, waitForEngine(m.updates))

	case statusMessageTimeoutMsg:
		m.status = nil

	case spinner.TickMsg:
		if m.loading {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *model) shutdown() {
	m.unsubscribe()
	if m.watcher != nil {
		m.watcher.close()
	}
}

func (m model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle("Card Shuffler"))
	b.WriteString(" ")
	if m.state.Running() {
		b.WriteString(runningStyle("shuffling"))
	} else {
		b.WriteString(stoppedStyle("stopped"))
	}
	b.WriteString("\n\n")

	switch {
	case m.loading && !m.hasCard:
		b.WriteString(m.spinner.View() + " Loading cards…")
	case m.snapshot.Len() == 0 && m.err == nil:
		b.WriteString(subtleStyle("No cards yet. Add one with `cardshuffler add`."))
	case !m.hasCard:
		b.WriteString(subtleStyle("Nothing to show."))
	default:
		b.WriteString(m.cardView())
	}
	b.WriteString("\n\n")

	b.WriteString(m.infoLine())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(helpStyle("space start/stop • +/- speed • r refresh • c copy link • q quit"))

	return b.String()
}

func (m model) cardView() string {
	width := m.width - 10
	if width <= 0 || width > 60 {
		width = 60
	}

	lines := []string{cardNameStyle(Truncate(m.current.DisplayName(), width))}
	if !m.state.Running() && m.cfg.ShowLinks {
		lines = append(lines,
			"",
			Link(m.current, m.current.Link, width),
			subtleStyle(Truncate(ImageSummary(m.current.ImageRef), width)),
		)
	}
	return cardStyle.Width(width + 6).Render(strings.Join(lines, "\n"))
}

func (m model) infoLine() string {
	parts := []string{
		"speed " + speed.Describe(m.speed),
		fmt.Sprintf("%d cards", m.snapshot.Playable().Len()),
	}
	if !m.snapshot.CapturedAt().IsZero() {
		parts = append(parts, fmt.Sprintf("%s %s", m.snapshot.Source(), humanize.Time(m.snapshot.CapturedAt())))
	}
	if m.loading && m.hasCard {
		parts = append(parts, m.spinner.View()+" refreshing")
	}
	return subtleStyle(strings.Join(parts, " · "))
}

func (m model) statusLine() string {
	if m.status == nil {
		return ""
	}
	if m.status.isError {
		return errorStyle(m.status.text)
	}
	return statusBarMessageStyle(" " + m.status.text + " ")
}
