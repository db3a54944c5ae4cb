// File: internal/config/dialog_config.go
// This file defines the DialogConfig struct: the copy shown by the crash
// report dialog and the effect of its discard button.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// DiscardPolicy decides what the dialog's discard button does to the watermark.
type DiscardPolicy string

const (
	// DiscardKeepPending closes the dialog and leaves the reports pending.
	DiscardKeepPending DiscardPolicy = "keep_pending"
	// DiscardIgnore closes the dialog and ignores the reports, like the ignore button.
	DiscardIgnore DiscardPolicy = "ignore"
)

// DialogConfig holds the strings shown in the crash report dialog.
type DialogConfig struct {
	Title         string        `mapstructure:"title" yaml:"title"`
	Message       string        `mapstructure:"message" yaml:"message"`
	Prompt        string        `mapstructure:"prompt" yaml:"prompt"`
	Placeholder   string        `mapstructure:"placeholder" yaml:"placeholder"`
	Note          string        `mapstructure:"note" yaml:"note"`
	EmailAddress  string        `mapstructure:"email_address" yaml:"email_address"`
	DiscardPolicy DiscardPolicy `mapstructure:"discard_policy" yaml:"discard_policy"`
}

// Validate checks the dialog configuration.
func (d *DialogConfig) Validate() error {
	switch d.DiscardPolicy {
	case DiscardKeepPending, DiscardIgnore:
		return nil
	default:
		return fmt.Errorf("unknown discard_policy %q", d.DiscardPolicy)
	}
}

func setDialogDefaults(v *viper.Viper) {
	v.SetDefault("dialog.title", "Crash Reporter")
	v.SetDefault("dialog.message", "The application unexpectedly quit the last time it was run. Would you like to send a crash report?")
	v.SetDefault("dialog.prompt", "Please describe what you were doing when the crash occurred:")
	v.SetDefault("dialog.placeholder", "Comments (optional)")
	v.SetDefault("dialog.note", "The report contains the crash log and basic system information. No personal data is sent unless you enter it above.")
	v.SetDefault("dialog.email_address", "")
	v.SetDefault("dialog.discard_policy", string(DiscardKeepPending))
}
