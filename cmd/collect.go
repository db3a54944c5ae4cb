// File: cmd/collect.go
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/crashreporter/internal/collector"
	"github.com/xkilldash9x/crashreporter/internal/observability"
)

func newCollectCmd() *cobra.Command {
	var listen, spool string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Run a local collection endpoint that stores submissions on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFromContext(cmd.Context())
			if err != nil {
				return err
			}
			cc := cfg.Collector()
			if cmd.Flags().Changed("listen") {
				cc.ListenAddress = listen
			}
			if cmd.Flags().Changed("spool") {
				cc.SpoolDir = spool
			}

			srv, err := collector.NewServer(observability.GetLogger(), cc)
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context(), cc.ListenAddress)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides collector.listen_address)")
	cmd.Flags().StringVar(&spool, "spool", "", "spool directory (overrides collector.spool_dir)")
	return cmd
}
