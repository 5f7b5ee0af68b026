package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"expensectl/internal/bulk"
	"expensectl/internal/model"
)

func newBulkCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk",
		Short: "Approve or reject several pending expenses at once (managers)",
	}
	cmd.AddCommand(newBulkActionCmd(app, bulk.ActionApprove))
	cmd.AddCommand(newBulkActionCmd(app, bulk.ActionReject))
	return cmd
}

func newBulkActionCmd(app *App, action bulk.Action) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   string(action) + " <expense-id>...",
		Short: fmt.Sprintf("Bulk %s expenses from the approvals list", action),
		Long: strings.TrimSpace(`
Selects the given ids from the current approvals list and sends one
conditional request per expense. Ids that are not in the list or not
eligible (not pending, or your own) are skipped. Every request runs to
completion; the list is refreshed once afterwards.

Exit status is 3 when any expense was modified by someone else and 1 when
any request failed.
`),
		Example: fmt.Sprintf("  expensectl bulk %s 42 43 44 --yes", action),
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			seen := map[int64]bool{}
			for _, a := range args {
				id, err := parseID(a)
				if err != nil {
					return writeErr(cmd, err)
				}
				if !seen[id] {
					seen[id] = true
					ids = append(ids, id)
				}
			}

			sess, c, err := app.connect()
			if err != nil {
				return writeErr(cmd, err)
			}
			who := sess.Identity
			if !who.IsManager() {
				return writeErr(cmd, fmt.Errorf("permission denied: bulk %s is for managers", action))
			}

			vc := model.DefaultViewContext(who.Role)
			vc.Tab = model.TabApprovals
			journal := newJournal(who.UserID, true)
			defer journal.flush(cmd, app)
			opts := viewOpts{journal: journal}
			if !yes {
				opts.confirmer = stdinConfirmer(cmd.InOrStdin(), cmd.ErrOrStderr())
			}
			v := app.newView(c, who, vc, opts)
			defer v.Stop()
			if err := loadView(cmd.Context(), v); err != nil {
				return writeErr(cmd, err)
			}

			var notSelectable []int64
			for _, id := range ids {
				if !v.Toggle(id) {
					notSelectable = append(notSelectable, id)
				}
			}

			sum, err := v.Bulk(cmd.Context(), action)
			if errors.Is(err, bulk.ErrEmptySelection) && len(notSelectable) > 0 {
				return writeErr(cmd, fmt.Errorf("%w: not selectable: %v", err, notSelectable))
			}
			if err != nil {
				return writeErr(cmd, err)
			}
			app.metrics.ObserveBulk(sum)
			v.Wait()

			if err := writeOut(cmd, app, map[string]any{
				"data": sum,
				"meta": map[string]any{
					"notice":        sum.Message(),
					"notSelectable": notSelectable,
					"remaining":     len(v.Rows()),
				},
			}); err != nil {
				return err
			}
			if err := summaryErr(sum); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// promptConfirm asks on stderr and reads one line from in. Anything but y/yes declines.
func promptConfirm(in io.Reader, out io.Writer, action bulk.Action, n int) (bool, error) {
	fmt.Fprintf(out, "%s %d expense(s)? [y/N] ", strings.ToUpper(string(action)[:1])+string(action)[1:], n)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}

// stdinConfirmer adapts promptConfirm to bulk.Confirmer.
func stdinConfirmer(in io.Reader, out io.Writer) bulk.Confirmer {
	return bulk.ConfirmFunc(func(_ context.Context, action bulk.Action, n int) (bool, error) {
		return promptConfirm(in, out, action, n)
	})
}
