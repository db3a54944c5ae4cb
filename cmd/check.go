// File: cmd/check.go
package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/crashreporter/internal/observability"
	"github.com/xkilldash9x/crashreporter/internal/reporter"
	"github.com/xkilldash9x/crashreporter/internal/submission"
)

func newCheckCmd() *cobra.Command {
	var (
		interactive bool
		attrs       map[string]string
		attachments []string
		skip        []string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Look for new crash logs and offer to send them",
		Long: `Scans the configured crash directories for logs newer than the last
report that was sent or ignored. In interactive mode a dialog asks what to do;
otherwise reporter.non_interactive_policy decides.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, _, err := openReporter(cmd)
			if err != nil {
				return err
			}
			defer r.Close()

			if err := stage(r, attrs, attachments); err != nil {
				return err
			}

			logger := observability.GetLogger()
			held := make(map[string]bool, len(skip))
			for _, s := range skip {
				if abs, err := filepath.Abs(s); err == nil {
					held[abs] = true
				}
			}
			out := cmd.OutOrStdout()
			delegate := reporter.DelegateFuncs{
				WillSend: func(path string, date time.Time) bool {
					if held[path] {
						logger.Info("Holding back crash log.", zap.String("path", path))
						return false
					}
					return true
				},
				Finished: func(res submission.Result) {
					fmt.Fprintf(out, "Submitted %d crash report(s) (submission %s).\n", len(res.Reports), res.SubmissionID)
				},
				Failed: func(err error) {
					logger.Warn("Crash reports were not submitted; they will be offered again.", zap.Error(err))
				},
			}
			return r.CheckForNewCrashes(cmd.Context(), interactive, delegate)
		},
	}

	cmd.Flags().BoolVar(&interactive, "interactive", true, "show the crash report dialog")
	cmd.Flags().StringSliceVar(&skip, "skip", nil, "crash log path to hold back for this run (repeatable)")
	addPayloadFlags(cmd, &attrs, &attachments)
	return cmd
}
