package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/cardshuffler/internal/speed"
)

var speedCmd = &cobra.Command{
	Use:   "speed [N]",
	Short: "Print or set the shuffle speed",
	Long: paragraph(fmt.Sprintf("\n%s the shuffle speed, from %d (slowest) to %d (fastest), and the interval between cards it maps to.",
		keyword("Print or set"), speed.Min, speed.Max)),
	Example: paragraph("cardshuffler speed\ncardshuffler speed 80"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession()
		if err != nil {
			return err
		}
		defer sess.Close() //nolint:errcheck

		out := cmd.OutOrStdout()
		if len(args) == 0 {
			fmt.Fprintf(out, "Speed: %s\n", speed.Describe(sess.ctrl.Speed()))
			return nil
		}

		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("speed must be a number between %d and %d, got %q", speed.Min, speed.Max, args[0])
		}
		set := sess.ctrl.SetSpeed(n)
		if set != n {
			fmt.Fprintln(out, faint(fmt.Sprintf("%d is out of range, using %d.", n, set)))
		}
		fmt.Fprintf(out, "Speed set to %s\n", keyword(speed.Describe(set)))
		return nil
	},
}
