package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/termenv"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/dgnsrekt/cardshuffler/internal/ctypes"
	"github.com/dgnsrekt/cardshuffler/ui"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"

	maxNameWidth = 28
	maxLinkWidth = 40
)

var (
	listFormat string
	listFilter string

	listCmd = &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the cards in the collection",
		Example: paragraph("cardshuffler list\ncardshuffler list --filter cats\ncardshuffler list --format json"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch listFormat {
			case formatTable, formatJSON, formatYAML:
			default:
				return fmt.Errorf("unknown format %q: use table, json or yaml", listFormat)
			}

			sess, err := openSession()
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			snap, err := loadSnapshot(cmd.Context(), sess)
			if err != nil {
				return err
			}

			cards := filterCards(snap.Cards(), listFilter)
			out := cmd.OutOrStdout()
			switch listFormat {
			case formatJSON:
				return writeJSON(out, cards)
			case formatYAML:
				return writeYAML(out, cards)
			}

			if len(cards) == 0 {
				if listFilter != "" {
					fmt.Fprintf(out, "No cards match %q.\n", listFilter)
				} else {
					fmt.Fprintln(out, "The collection is empty. Add a card with: cardshuffler add")
				}
				return nil
			}
			return writeTable(out, cards, tableOptions{
				now:        time.Now(),
				hyperlinks: term.IsTerminal(int(os.Stdout.Fd())),
			})
		},
	}
)

// loadSnapshot returns the cached collection when offline, and the
// controller's snapshot otherwise.
func loadSnapshot(ctx context.Context, sess *session) (ctypes.Snapshot, error) {
	if offline {
		snap, ok := sess.ctrl.Cached()
		if !ok {
			return ctypes.Snapshot{}, ctypes.Errorf(ctypes.KindStorageUnavailable, "offline",
				"no cached collection in %s; run once without --offline", sess.cacheDir)
		}
		return snap, nil
	}
	return sess.ctrl.Snapshot(ctx)
}

type cardSource []ctypes.Card

func (s cardSource) String(i int) string { return s[i].DisplayName() + " " + s[i].Link }
func (s cardSource) Len() int            { return len(s) }

// filterCards returns the cards fuzzily matching pattern, best match first.
func filterCards(cards []ctypes.Card, pattern string) []ctypes.Card {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		return cards
	}
	matches := fuzzy.FindFrom(pattern, cardSource(cards))
	out := make([]ctypes.Card, 0, len(matches))
	for _, m := range matches {
		out = append(out, cards[m.Index])
	}
	return out
}

type listItem struct {
	ID      string     `json:"id" yaml:"id"`
	Name    string     `json:"name" yaml:"name"`
	Image   string     `json:"image" yaml:"image"`
	Link    string     `json:"link" yaml:"link"`
	Created *time.Time `json:"created,omitempty" yaml:"created,omitempty"`
}

func toListItems(cards []ctypes.Card) []listItem {
	items := make([]listItem, 0, len(cards))
	for _, c := range cards {
		item := listItem{ID: c.ID, Name: c.DisplayName(), Image: c.ImageRef, Link: c.Link}
		if !c.CreatedAt.IsZero() {
			t := c.CreatedAt
			item.Created = &t
		}
		items = append(items, item)
	}
	return items
}

func writeJSON(w io.Writer, cards []ctypes.Card) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toListItems(cards))
}

func writeYAML(w io.Writer, cards []ctypes.Card) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(toListItems(cards)); err != nil {
		return err
	}
	return enc.Close()
}

type tableOptions struct {
	now        time.Time
	hyperlinks bool
}

func writeTable(w io.Writer, cards []ctypes.Card, opts tableOptions) error {
	header := []string{"NAME", "LINK", "ADDED", "IMAGE", "ID"}
	rows := make([][]string, 0, len(cards))
	for _, c := range cards {
		added := "-"
		if !c.CreatedAt.IsZero() {
			added = humanize.RelTime(c.CreatedAt, opts.now, "ago", "from now")
		}
		rows = append(rows, []string{
			ui.Truncate(c.DisplayName(), maxNameWidth),
			ui.Truncate(c.Link, maxLinkWidth),
			added,
			ui.Truncate(ui.ImageSummary(c.ImageRef), maxLinkWidth),
			c.ID,
		})
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	line := func(cells []string, link string) string {
		var b strings.Builder
		for i, cell := range cells {
			padded := cell
			if i < len(cells)-1 {
				padded = runewidth.FillRight(cell, widths[i]) + "  "
			}
			if i == 1 && link != "" && opts.hyperlinks {
				padded = termenv.Hyperlink(link, cell) + strings.Repeat(" ", runewidth.StringWidth(padded)-runewidth.StringWidth(cell))
			}
			b.WriteString(padded)
		}
		return strings.TrimRight(b.String(), " ")
	}

	if _, err := fmt.Fprintln(w, faint(line(header, ""))); err != nil {
		return err
	}
	for i, row := range rows {
		if _, err := fmt.Fprintln(w, line(row, cards[i].Link)); err != nil {
			return err
		}
	}
	return nil
}

func init() {
	listCmd.Flags().StringVarP(&listFormat, "format", "f", formatTable, "output format: table, json or yaml")
	listCmd.Flags().StringVar(&listFilter, "filter", "", "fuzzy filter on name and link")
}
