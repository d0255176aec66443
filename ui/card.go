package ui

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/termenv"

	"github.com/dgnsrekt/cardshuffler/internal/compress"
	"github.com/dgnsrekt/cardshuffler/internal/ctypes"
)

const ellipsis = "…"

// ImageSummary describes an image reference in a single short line.
// Inline images are summarised by format and decoded size.
func ImageSummary(ref string) string {
	if !compress.IsRaw(ref) {
		return ref
	}

	header, payload, _ := strings.Cut(ref, ",")
	format := strings.TrimSuffix(strings.TrimPrefix(header, "data:image/"), ";base64")
	size := uint64(len(payload)) * 3 / 4
	return fmt.Sprintf("inline %s image, %s", format, humanize.Bytes(size))
}

// Link renders a card link as a terminal hyperlink labelled with text,
// truncated to width cells.
func Link(card ctypes.Card, text string, width int) string {
	if width > 0 {
		text = truncate.StringWithTail(text, uint(width), ellipsis)
	}
	if card.Link == "" {
		return text
	}
	return termenv.Hyperlink(card.Link, text)
}

// Truncate shortens s to width cells.
func Truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	return truncate.StringWithTail(s, uint(width), ellipsis)
}
