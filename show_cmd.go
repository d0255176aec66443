package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/cardshuffler/internal/compress"
	"github.com/dgnsrekt/cardshuffler/internal/ctypes"
	"github.com/dgnsrekt/cardshuffler/ui"
)

var (
	showStyle string

	showCmd = &cobra.Command{
		Use:     "show ID",
		Short:   "Show a single card",
		Long:    paragraph(fmt.Sprintf("\n%s a card as markdown. ID may be any unique prefix of the card ID.", keyword("Render"))),
		Example: paragraph("cardshuffler show 64f1c2\ncardshuffler show 64f1c2 --style light"),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := openSession()
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			snap, err := loadSnapshot(cmd.Context(), sess)
			if err != nil {
				return err
			}
			card, ok := findCard(snap, args[0])
			if !ok {
				return ctypes.Errorf(ctypes.KindNotFound, "show", "no card with id %s", args[0])
			}

			out, err := renderMarkdown(cardMarkdown(card, time.Now()), showStyle, width)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
)

// findCard looks up a card by exact ID, then by unique ID prefix.
func findCard(snap ctypes.Snapshot, ref string) (ctypes.Card, bool) {
	if c, ok := snap.Find(ref); ok {
		return c, true
	}
	if ref == "" {
		return ctypes.Card{}, false
	}

	var found ctypes.Card
	n := 0
	for _, c := range snap.Cards() {
		if strings.HasPrefix(c.ID, ref) {
			found = c
			n++
		}
	}
	if n != 1 {
		return ctypes.Card{}, false
	}
	return found, true
}

// resolveID expands a unique prefix to a full ID. Unknown IDs are returned
// unchanged so the server decides whether they exist.
func resolveID(snap ctypes.Snapshot, ref string) string {
	if c, ok := findCard(snap, ref); ok {
		return c.ID
	}
	return ref
}

func cardMarkdown(c ctypes.Card, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", c.DisplayName())

	if compress.IsRaw(c.ImageRef) {
		fmt.Fprintf(&b, "_%s_\n\n", ui.ImageSummary(c.ImageRef))
	} else if c.ImageRef != "" {
		fmt.Fprintf(&b, "![%s](%s)\n\n", c.DisplayName(), c.ImageRef)
	}

	if c.Link != "" {
		fmt.Fprintf(&b, "**Link:** [%s](%s)\n\n", c.Link, c.Link)
	}
	if !c.CreatedAt.IsZero() {
		fmt.Fprintf(&b, "**Added:** %s (%s)\n\n",
			humanize.RelTime(c.CreatedAt, now, "ago", "from now"),
			c.CreatedAt.Local().Format(time.DateTime))
	}
	fmt.Fprintf(&b, "**ID:** `%s`\n", c.ID)
	return b.String()
}

func renderMarkdown(md, style string, wrap uint) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(int(wrap))} //nolint:gosec
	switch {
	case !term.IsTerminal(int(os.Stdout.Fd())):
		opts = append(opts, glamour.WithStandardStyle("notty"))
	case style == "" || style == "auto":
		opts = append(opts, glamour.WithAutoStyle())
	default:
		opts = append(opts, glamour.WithStandardStyle(style))
	}

	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", fmt.Errorf("unable to create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("unable to render markdown: %w", err)
	}
	return out, nil
}

func init() {
	showCmd.Flags().StringVarP(&showStyle, "style", "s", "auto", "style name: auto, dark, light, notty, ascii, pink, dracula")
}
