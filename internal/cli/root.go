// Package cli implements the symcheck command line: offline triage of
// symptom text against the rule table, and inspection of stored assessments.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/linnemanlabs/symcheck/internal/triage"
)

const (
	formatJSON = "json"
	formatText = "text"
)

type rootOptions struct {
	rulesPath string
}

// NewRootCmd builds the symcheck command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "symcheck",
		Short:         "Symptom triage from the command line",
		Long:          "Maps free-text symptoms to a next step (Emergency, Consult a General Physician, Self-care) using the same rule table as the server.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.rulesPath, "rules", "r", "", "YAML rule file (default: built-in rules)")

	root.AddCommand(
		newTriageCmd(opts),
		newBatchCmd(opts),
		newRulesCmd(opts),
		newHistoryCmd(),
	)
	return root
}

func (o *rootOptions) mapper() (*triage.Mapper, error) {
	if o.rulesPath == "" {
		return triage.Default(), nil
	}
	return triage.LoadRules(o.rulesPath)
}
