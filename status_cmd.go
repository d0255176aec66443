package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/cardshuffler/internal/cache"
	"github.com/dgnsrekt/cardshuffler/internal/ctypes"
	"github.com/dgnsrekt/cardshuffler/internal/speed"
)

type statsReporter interface {
	Stats() cache.CacheStats
}

var (
	statusPurge bool

	statusCmd = &cobra.Command{
		Use:     "status",
		Short:   "Show the state of the local cache",
		Example: paragraph("cardshuffler status\ncardshuffler status --purge"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := openSession()
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			out := cmd.OutOrStdout()
			if statusPurge {
				if err := purgeCache(out, sess); err != nil {
					return err
				}
			}
			writeStatus(out, sess)
			return nil
		},
	}
)

func writeStatus(w io.Writer, sess *session) {
	now := sess.store.Now()
	ttl := sess.ctrl.TTL()

	fmt.Fprintf(w, "API:      %s\n", sess.client.BaseURL())
	fmt.Fprintf(w, "Cache:    %s", sess.backend)
	if sess.backend != cache.BackendMemory {
		fmt.Fprintf(w, " (%s)", sess.cacheDir)
	}
	fmt.Fprintf(w, "\nTTL:      %s\n\n", ttl)

	if entry, ok := cache.Read[[]ctypes.Card](sess.store, cache.KeyCollection); ok {
		fmt.Fprintf(w, "Collection: %d cards\n", len(entry.Payload))
		writeEntry(w, entry.CapturedAt, entry.SchemaVersion, entry.ValidAt(now, ttl, cache.SchemaVersion), now)
	} else {
		fmt.Fprintln(w, "Collection: "+faint("not cached"))
	}

	if entry, ok := cache.Read[int](sess.store, cache.KeySpeed); ok {
		fmt.Fprintf(w, "Speed:      %s\n", speed.Describe(entry.Payload))
		writeEntry(w, entry.CapturedAt, entry.SchemaVersion, entry.ValidAt(now, ttl, cache.SchemaVersion), now)
	} else {
		fmt.Fprintf(w, "Speed:      %s\n", faint("not set, default "+speed.Describe(speed.Default)))
	}

	if r, ok := sess.store.Medium().(statsReporter); ok {
		stats := r.Stats()
		fmt.Fprintf(w, "\nMedium:   %d items, %s", stats.ItemCount, humanize.IBytes(uint64(max(stats.Size, 0))))
		if stats.Capacity > 0 {
			fmt.Fprintf(w, " of %s", humanize.IBytes(uint64(stats.Capacity)))
		}
		fmt.Fprintln(w)
		if stats.Evictions > 0 {
			fmt.Fprintf(w, "          %d evictions, last %s\n", stats.Evictions, humanize.RelTime(stats.LastEvict, now, "ago", "from now"))
		}
	}
}

func writeEntry(w io.Writer, captured time.Time, version int, valid bool, now time.Time) {
	state := keyword("valid")
	switch {
	case version != cache.SchemaVersion:
		state = errStyle(fmt.Sprintf("schema v%d, expected v%d", version, cache.SchemaVersion))
	case !valid:
		state = errStyle("expired")
	}
	fmt.Fprintf(w, "  captured %s, schema v%d, %s\n",
		humanize.RelTime(captured, now, "ago", "from now"), version, state)
}

func purgeCache(w io.Writer, sess *session) error {
	if err := sess.store.Clear(); err != nil {
		return fmt.Errorf("unable to purge the local cache: %w", err)
	}
	fmt.Fprintln(w, "Purged the local cache.")
	fmt.Fprintln(w)
	return nil
}

func init() {
	statusCmd.Flags().BoolVar(&statusPurge, "purge", false, "drop every cached entry before reporting")
}
