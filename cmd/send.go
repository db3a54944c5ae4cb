// File: cmd/send.go
package cmd

import (
	"fmt"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/crashreporter/internal/dialog"
)

func newSendCmd() *cobra.Command {
	var (
		comments    string
		email       string
		interactive bool
		attrs       map[string]string
		attachments []string
	)

	cmd := &cobra.Command{
		Use:   "send",
		Short: "Send every pending crash log now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, cfg, err := openReporter(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			ctx := cmd.Context()
			reports, err := r.Pending(ctx)
			if err != nil {
				return err
			}
			if len(reports) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No pending crash reports.")
				return nil
			}
			if err := stage(r, attrs, attachments); err != nil {
				return err
			}

			if interactive {
				return r.SendReportsInteractively(ctx, reports, dialog.CopyFromConfig(cfg.Dialog()))
			}

			if !cmd.Flags().Changed("email") {
				email = cfg.Dialog().EmailAddress
			}
			spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
			spin.Suffix = fmt.Sprintf(" Sending %d crash report(s)...", len(reports))
			spin.Start()
			err = r.SendReports(ctx, reports, comments, email)
			spin.Stop()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent %d crash report(s).\n", len(reports))
			return nil
		},
	}

	cmd.Flags().StringVar(&comments, "comments", "", "what you were doing when the crash happened")
	cmd.Flags().StringVar(&email, "email", "", "contact address (defaults to dialog.email_address)")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "review the reports in the dialog before sending")
	addPayloadFlags(cmd, &attrs, &attachments)
	return cmd
}
