package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"expensectl/internal/api"
	"expensectl/internal/model"
	"expensectl/internal/mutate"
	"expensectl/internal/perm"
	"expensectl/internal/query"
	"expensectl/internal/statusutil"
	"expensectl/internal/store"
	"expensectl/internal/view"
)

func newListCmd(app *App) *cobra.Command {
	var (
		tab, status, from, to, search, sortBy, order string
		page, pageSize                               int
		saved                                        bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List expenses for a tab (personal|approvals|history)",
		Example: strings.TrimSpace(`
  expensectl list
  expensectl list --tab approvals --sort amount --order asc
  expensectl list --tab history --from 2026-01-01 --search travel --format table
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, c, err := app.connect()
			if err != nil {
				return writeErr(cmd, err)
			}
			vc, err := parseViewContext(sess.Identity.Role, tab, status, from, to, search, sortBy, order)
			if err != nil {
				return writeErr(cmd, err)
			}
			if saved {
				vc = app.savedContext(cmd.Context(), store.PrefsKey(sess.Server, sess.Identity), sess.Identity.Role)
			}

			v := app.newView(c, sess.Identity, vc, viewOpts{})
			defer v.Stop()
			if err := loadView(cmd.Context(), v); err != nil {
				return writeErr(cmd, err)
			}

			rows := v.Rows()
			shown := view.Paginate(rows, page, pageSize)
			vc = v.Context()
			return writeOut(cmd, app, map[string]any{
				"data": expenseRows(shown),
				"meta": map[string]any{
					"tab":   vc.Tab,
					"total": len(rows),
					"count": len(shown),
					"query": query.FromContext(vc).Encode(),
				},
			})
		},
	}

	cmd.Flags().StringVar(&tab, "tab", "personal", "Tab: personal|approvals|history (employees always get personal)")
	cmd.Flags().StringVar(&status, "status", "", "Status filter: pending|approved|rejected")
	cmd.Flags().StringVar(&from, "from", "", "Created on or after (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Created on or before (YYYY-MM-DD)")
	cmd.Flags().StringVar(&search, "search", "", "Free-text search")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort field: category|amount|status|date (default date)")
	cmd.Flags().StringVar(&order, "order", "", "Sort order: asc|desc (default desc)")
	cmd.Flags().IntVar(&page, "page", 0, "Zero-based page")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Rows per page (0 = all)")
	cmd.Flags().BoolVar(&saved, "saved", false, "Use the view last saved by the TUI")
	return cmd
}

func parseViewContext(role model.Role, tab, status, from, to, search, sortBy, order string) (model.ViewContext, error) {
	vc := model.DefaultViewContext(role)
	t, err := statusutil.NormalizeTab(tab)
	if err != nil {
		return vc, err
	}
	st, err := statusutil.NormalizeStatus(status)
	if err != nil {
		return vc, err
	}
	so, err := statusutil.NormalizeSort(sortBy, order)
	if err != nil {
		return vc, err
	}
	vc.Tab = model.ClampTab(role, t)
	vc.Filters = model.Filters{Status: st, From: strings.TrimSpace(from), To: strings.TrimSpace(to), Search: search}
	vc.Sort = so
	return vc, nil
}

func newCreateCmd(app *App) *cobra.Command {
	var amount, category string

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Submit a new expense",
		Example: `  expensectl create --amount 1200 --category Travel`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(amount)
			if err != nil {
				return writeErr(cmd, err)
			}
			sess, c, err := app.connect()
			if err != nil {
				return writeErr(cmd, err)
			}
			catID, err := resolveCategory(cmd.Context(), c, category)
			if err != nil {
				return writeErr(cmd, err)
			}

			v := app.newView(c, sess.Identity, model.DefaultViewContext(sess.Identity.Role), viewOpts{})
			defer v.Stop()
			v.Attach(cmd.Context())
			e, err := v.Create(cmd.Context(), amt, catID)
			if err != nil {
				return writeErr(cmd, err)
			}
			v.Wait()
			return writeOut(cmd, app, map[string]any{
				"data": e,
				"meta": map[string]any{"personalCount": len(v.Rows())},
			})
		},
	}

	cmd.Flags().StringVar(&amount, "amount", "", "Amount, e.g. 12.50")
	cmd.Flags().StringVar(&category, "category", "", "Category name or id")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("category")
	return cmd
}

// resolveCategory accepts a numeric id or a case-insensitive category name.
func resolveCategory(ctx context.Context, c *api.Client, s string) (int64, error) {
	s = strings.TrimSpace(s)
	cats, err := c.Categories(ctx)
	if err != nil {
		return 0, err
	}
	if id, err := strconv.ParseInt(s, 10, 64); err == nil {
		for _, cat := range cats {
			if cat.ID == id {
				return id, nil
			}
		}
		return 0, fmt.Errorf("unknown category id: %d", id)
	}
	for _, cat := range cats {
		if strings.EqualFold(cat.Name, s) {
			return cat.ID, nil
		}
	}
	names := make([]string, 0, len(cats))
	for _, cat := range cats {
		names = append(names, cat.Name)
	}
	return 0, fmt.Errorf("unknown category: %q (have %s)", s, strings.Join(names, ", "))
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount: %q", s)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("amount must not be negative")
	}
	return d, nil
}

func newCategoriesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List expense categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, c, err := app.connect()
			if err != nil {
				return writeErr(cmd, err)
			}
			cats, err := c.Categories(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": categoryRows(cats)})
		},
	}
}

// rowMutation describes one single-row command.
type rowMutation struct {
	op  mutate.Op
	tab model.Tab
	// allowed is checked against the current row when no --expected is given.
	allowed func(model.Expense, model.Identity) bool
}

func newReviewCmd(app *App, verb string) *cobra.Command {
	op, _ := mutate.ParseOp(verb)
	var expected string

	cmd := &cobra.Command{
		Use:   verb + " <expense-id>",
		Short: strings.ToUpper(verb[:1]) + verb[1:] + " a pending expense (managers)",
		Long: strings.TrimSpace(`
Sends one conditional request. Without --expected the amount currently shown
in the approvals list is used as the precondition. Exits 3 when the expense
was modified by someone else in the meantime.
`),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRowMutation(cmd, app, rowMutation{op: op, tab: model.TabApprovals, allowed: perm.CanReview}, args[0], expected, nil)
		},
	}
	cmd.Flags().StringVar(&expected, "expected", "", "Amount you last saw (precondition)")
	return cmd
}

func newEditCmd(app *App) *cobra.Command {
	var expected, amount string

	cmd := &cobra.Command{
		Use:   "edit <expense-id>",
		Short: "Change the amount of one of your pending expenses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amt, err := parseAmount(amount)
			if err != nil {
				return writeErr(cmd, err)
			}
			return runRowMutation(cmd, app, rowMutation{op: mutate.OpEdit, tab: model.TabPersonal, allowed: perm.CanModify}, args[0], expected, &amt)
		},
	}
	cmd.Flags().StringVar(&amount, "amount", "", "New amount")
	cmd.Flags().StringVar(&expected, "expected", "", "Amount you last saw (precondition)")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newDeleteCmd(app *App) *cobra.Command {
	var expected string

	cmd := &cobra.Command{
		Use:   "delete <expense-id>",
		Short: "Delete one of your pending expenses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRowMutation(cmd, app, rowMutation{op: mutate.OpDelete, tab: model.TabPersonal, allowed: perm.CanModify}, args[0], expected, nil)
		},
	}
	cmd.Flags().StringVar(&expected, "expected", "", "Amount you last saw (precondition)")
	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid expense id: %q", s)
	}
	return id, nil
}

func runRowMutation(cmd *cobra.Command, app *App, rm rowMutation, rawID, rawExpected string, newAmount *decimal.Decimal) error {
	id, err := parseID(rawID)
	if err != nil {
		return writeErr(cmd, err)
	}
	sess, c, err := app.connect()
	if err != nil {
		return writeErr(cmd, err)
	}
	who := sess.Identity
	vc := model.DefaultViewContext(who.Role)
	vc.Tab = model.ClampTab(who.Role, rm.tab)

	journal := newJournal(who.UserID, false)
	defer journal.flush(cmd, app)
	v := app.newView(c, who, vc, viewOpts{journal: journal})
	defer v.Stop()

	var in mutate.Intent
	if strings.TrimSpace(rawExpected) != "" {
		exp, err := parseAmount(rawExpected)
		if err != nil {
			return writeErr(cmd, err)
		}
		v.Attach(cmd.Context())
		in = mutate.Intent{Op: rm.op, ID: id, Expected: exp, NewAmount: newAmount}
	} else {
		if err := loadView(cmd.Context(), v); err != nil {
			return writeErr(cmd, err)
		}
		row, err := v.Row(id)
		if err != nil {
			return writeErr(cmd, err)
		}
		if rm.allowed != nil && !rm.allowed(row, who) {
			return writeErr(cmd, fmt.Errorf("permission denied: cannot %s expense %d (%s)", rm.op, id, statusutil.Label(row.Status)))
		}
		in = mutate.IntentFor(rm.op, row)
		in.NewAmount = newAmount
	}

	out, notice := v.Mutate(cmd.Context(), in)
	// The mutation triggered a background refresh; report what the list shows now.
	v.Wait()
	meta := map[string]any{"notice": notice.Text}
	if row, err := v.Row(id); err == nil {
		meta["current"] = row
	}
	if err := writeOut(cmd, app, map[string]any{"data": out, "meta": meta}); err != nil {
		return err
	}
	if err := outcomeErr(out); err != nil {
		return writeErr(cmd, err)
	}
	return nil
}
