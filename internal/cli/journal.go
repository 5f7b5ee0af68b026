package cli

import (
	"github.com/spf13/cobra"

	"expensectl/internal/store"
)

func newJournalCmd(app *App) *cobra.Command {
	var f store.JournalFilter

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "List locally recorded mutation outcomes (newest first)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := app.store.ListJournal(cmd.Context(), f)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": journalRows(entries)})
		},
	}
	cmd.Flags().Int64Var(&f.ExpenseID, "expense", 0, "Only entries for this expense id")
	cmd.Flags().StringVar(&f.Outcome, "outcome", "", "Only entries with this outcome: applied|conflict|failed")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "Max entries (0 = all)")
	return cmd
}
