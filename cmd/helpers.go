// File: cmd/helpers.go
package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/crashreporter/internal/config"
	"github.com/xkilldash9x/crashreporter/internal/observability"
	"github.com/xkilldash9x/crashreporter/internal/reporter"
)

// openReporter validates the loaded configuration and builds a Reporter from it.
func openReporter(cmd *cobra.Command) (*reporter.Reporter, *config.Config, error) {
	cfg, err := configFromContext(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	r, err := reporter.New(observability.GetLogger(), cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up reporter: %w", err)
	}
	return r, cfg, nil
}

// stage adds command-line attributes and attachments to the next submission.
func stage(r *reporter.Reporter, attrs map[string]string, attachments []string) error {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := r.SendAttribute(k, attrs[k]); err != nil {
			return err
		}
	}
	for _, path := range attachments {
		if err := r.AddAttachment(path); err != nil {
			return err
		}
	}
	return nil
}

// addPayloadFlags registers the flags shared by commands that can submit.
func addPayloadFlags(cmd *cobra.Command, attrs *map[string]string, attachments *[]string) {
	cmd.Flags().StringToStringVar(attrs, "attribute", nil, "extra key=value attribute sent with the reports (repeatable)")
	cmd.Flags().StringSliceVar(attachments, "attach", nil, "file attached to the submission (repeatable)")
}
