// File: cmd/pending.go
package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

type pendingEntry struct {
	Path string    `json:"path"`
	Date time.Time `json:"date"`
}

func newPendingCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List crash logs that have not been sent or ignored",
		Args:  cobra.NoArgs,
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

			out := cmd.OutOrStdout()
			if asJSON {
				entries := make([]pendingEntry, 0, len(reports))
				for _, rep := range reports {
					entries = append(entries, pendingEntry{Path: rep.Path, Date: rep.Date.UTC()})
				}
				data, err := json.MarshalIndent(entries, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
				return nil
			}

			if len(reports) == 0 {
				fmt.Fprintln(out, "No pending crash reports.")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tPATH")
			for _, rep := range reports {
				fmt.Fprintf(tw, "%s\t%s\n", rep.Date.Format(time.RFC3339), rep.Path)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the list as JSON")
	return cmd
}
