package cli

import (
	"github.com/spf13/cobra"

	"github.com/linnemanlabs/symcheck/internal/triage"
)

func newRulesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the active rule table as YAML",
		Long:  "Prints the rule table in the same format --rules and the server's rules-path accept. Use it as a starting point for a custom table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := root.mapper()
			if err != nil {
				return err
			}
			b, err := triage.MarshalRules(m)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(b)
			return err
		},
	}
}
