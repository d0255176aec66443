package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dgnsrekt/cardshuffler/internal/compress"
	"github.com/dgnsrekt/cardshuffler/internal/ctypes"
)

var errOffline = errors.New("the collection cannot be changed while offline")

type cardFlags struct {
	name  string
	image string
	file  string
	link  string
}

func (f *cardFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.name, "name", "n", "", "card name")
	cmd.Flags().StringVarP(&f.image, "image", "i", "", "image URL or data URL")
	cmd.Flags().StringVar(&f.file, "file", "", "local image file")
	cmd.Flags().StringVarP(&f.link, "link", "l", "", "link opened from the card")
	cmd.MarkFlagsMutuallyExclusive("image", "file")
}

// imageRef returns the image given by --image or --file. Local files are
// compressed for upload first.
func (f *cardFlags) imageRef(ctx context.Context) (string, error) {
	if f.file == "" {
		return f.image, nil
	}
	raw, err := compress.FromFile(expandPath(f.file))
	if err != nil {
		return "", err
	}
	return compress.New().Compress(ctx, raw, compress.UploadPolicy)
}

var (
	addFlags    cardFlags
	updateFlags cardFlags
	clearYes    bool

	addCmd = &cobra.Command{
		Use:     "add",
		Short:   "Add a card to the collection",
		Example: paragraph("cardshuffler add --name Cat --image https://example.com/cat.png --link https://example.com\ncardshuffler add --file ~/cat.png --link https://example.com"),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if offline {
				return errOffline
			}
			ctx := cmd.Context()
			image, err := addFlags.imageRef(ctx)
			if err != nil {
				return err
			}

			sess, err := openSession()
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			in := ctypes.CardInput{Name: addFlags.name, ImageRef: image, Link: addFlags.link}
			snap, err := sess.ctrl.Create(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s. %s\n", keyword(nameOrDefault(in.Name)), countLine(snap.Len()))
			return nil
		},
	}

	updateCmd = &cobra.Command{
		Use:     "update ID",
		Short:   "Update a card",
		Long:    paragraph(fmt.Sprintf("\n%s the given fields of a card. Fields left out keep their current value.", keyword("Update"))),
		Example: paragraph("cardshuffler update 64f1c2 --name Dog\ncardshuffler update 64f1c2 --file ~/dog.png"),
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if offline {
				return errOffline
			}
			ctx := cmd.Context()
			flags := cmd.Flags()
			if !flags.Changed("name") && !flags.Changed("image") && !flags.Changed("file") && !flags.Changed("link") {
				return fmt.Errorf("nothing to update: pass at least one of --name, --image, --file or --link")
			}

			sess, err := openSession()
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			var patch ctypes.CardPatch
			if flags.Changed("image") || flags.Changed("file") {
				image, err := updateFlags.imageRef(ctx)
				if err != nil {
					return err
				}
				patch.ImageRef = &image
			}
			if flags.Changed("name") {
				patch.Name = &updateFlags.name
			}
			if flags.Changed("link") {
				patch.Link = &updateFlags.link
			}

			id := args[0]
			if cached, ok := sess.ctrl.Cached(); ok {
				id = resolveID(cached, id)
				if card, ok := cached.Find(id); ok {
					patch = fillPatch(patch, card)
				}
			}

			if _, err := sess.ctrl.Update(ctx, id, patch); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s.\n", keyword(id))
			return nil
		},
	}

	deleteCmd = &cobra.Command{
		Use:     "delete ID",
		Aliases: []string{"rm"},
		Short:   "Delete a card",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if offline {
				return errOffline
			}
			sess, err := openSession()
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			id := args[0]
			if cached, ok := sess.ctrl.Cached(); ok {
				id = resolveID(cached, id)
			}
			snap, err := sess.ctrl.Delete(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s. %s\n", keyword(id), countLine(snap.Len()))
			return nil
		},
	}

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete every card in the collection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if offline {
				return errOffline
			}
			if !clearYes {
				if !term.IsTerminal(int(os.Stdin.Fd())) {
					return fmt.Errorf("refusing to clear the collection without --yes")
				}
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(), "Delete every card in the collection?")
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
					return nil
				}
			}

			sess, err := openSession()
			if err != nil {
				return err
			}
			defer sess.Close() //nolint:errcheck

			if _, err := sess.ctrl.ClearAll(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cleared the collection.")
			return nil
		},
	}
)

// fillPatch completes the text fields of patch from the cached card, so the
// server receives the whole card. Images are left alone to avoid
// re-encoding an already compressed image.
func fillPatch(patch ctypes.CardPatch, card ctypes.Card) ctypes.CardPatch {
	if patch.Name == nil {
		name := card.Name
		patch.Name = &name
	}
	if patch.Link == nil && card.Link != "" {
		link := card.Link
		patch.Link = &link
	}
	return patch
}

func confirm(in io.Reader, out io.Writer, question string) (bool, error) {
	fmt.Fprintf(out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func nameOrDefault(name string) string {
	if strings.TrimSpace(name) == "" {
		return ctypes.DefaultCardName
	}
	return name
}

func countLine(n int) string {
	if n == 1 {
		return "The collection now has 1 card."
	}
	return fmt.Sprintf("The collection now has %d cards.", n)
}

func init() {
	addFlags.register(addCmd)
	updateFlags.register(updateCmd)
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "do not ask for confirmation")
}
