// File: cmd/ignore.go
package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/crashreporter/internal/crashlog"
)

func newIgnoreCmd() *cobra.Command {
	var upTo string

	cmd := &cobra.Command{
		Use:   "ignore",
		Short: "Stop offering pending crash logs",
		Long: `Marks pending crash logs as handled without sending them. By default
every pending log is ignored; --up-to stops at the given log, leaving newer
ones pending.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, err := openReporter(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			reports, err := r.Pending(cmd.Context())
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending crash reports.")
				return nil
			}

			target, _ := crashlog.Newest(reports)
			if upTo != "" {
				abs, err := filepath.Abs(upTo)
				if err != nil {
					return err
				}
				found := false
				for _, rep := range reports {
					if rep.Path == abs {
						target, found = rep, true
						break
					}
				}
				if !found {
					return fmt.Errorf("%s is not a pending crash report", upTo)
				}
			}

			if err := r.IgnoreReportsUpTo(target); err != nil {
				return err
			}
			count := 0
			for _, rep := range reports {
				if !rep.Date.After(target.Date) {
					count++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Ignored %d crash report(s).\n", count)
			return nil
		},
	}
	cmd.Flags().StringVar(&upTo, "up-to", "", "ignore this crash log and everything older")
	return cmd
}
