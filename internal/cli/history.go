package cli

import (
	"encoding/json"
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/linnemanlabs/symcheck/internal/assess"
	"github.com/linnemanlabs/symcheck/internal/assess/sqlitestore"
)

func newHistoryCmd() *cobra.Command {
	var (
		dbPath string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent assessments from a SQLite store",
		Long:  "Reads the SQLite database written by the server (sqlite-path) and prints the newest assessments as JSON lines.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dbPath == "" {
				dbPath = os.Getenv("SYMCHECK_SQLITE_PATH")
			}
			if dbPath == "" {
				return errors.New("no database: pass --db or set SYMCHECK_SQLITE_PATH")
			}
			if _, err := os.Stat(dbPath); err != nil {
				return err
			}

			st, err := sqlitestore.New(cmd.Context(), dbPath)
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			list, err := st.List(cmd.Context(), assess.ClampLimit(limit))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, a := range list {
				if err := enc.Encode(a); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&dbPath, "db", "d", "", "SQLite database path (default: $SYMCHECK_SQLITE_PATH)")
	cmd.Flags().IntVarP(&limit, "limit", "n", assess.DefaultListLimit, "maximum assessments to print")
	return cmd
}
