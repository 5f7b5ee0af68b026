package cli

import (
	"fmt"
	"strconv"

	"expensectl/internal/model"
	"expensectl/internal/statusutil"
	"expensectl/internal/store"
)

// expenseRows renders as a table with --format table and as a plain array otherwise.
type expenseRows []model.Expense

func (r expenseRows) TableHeader() []string {
	return []string{"ID", "DATE", "CATEGORY", "OWNER", "AMOUNT", "STATUS"}
}

func (r expenseRows) TableRows() [][]string {
	out := make([][]string, 0, len(r))
	for _, e := range r {
		owner := e.OwnerEmail
		if owner == "" {
			owner = "#" + strconv.FormatInt(e.UserID, 10)
		}
		out = append(out, []string{
			strconv.FormatInt(e.ID, 10),
			e.CreatedAt.Format("2006-01-02"),
			e.Category,
			owner,
			"$" + e.Amount.StringFixed(2),
			statusutil.Label(e.Status),
		})
	}
	return out
}

type categoryRows []model.Category

func (r categoryRows) TableHeader() []string { return []string{"ID", "NAME"} }

func (r categoryRows) TableRows() [][]string {
	out := make([][]string, 0, len(r))
	for _, c := range r {
		out = append(out, []string{strconv.FormatInt(c.ID, 10), c.Name})
	}
	return out
}

type journalRows []store.JournalEntry

func (r journalRows) TableHeader() []string {
	return []string{"AT", "OP", "EXPENSE", "EXPECTED", "OUTCOME", "REASON"}
}

func (r journalRows) TableRows() [][]string {
	out := make([][]string, 0, len(r))
	for _, e := range r {
		out = append(out, []string{
			e.At.Local().Format("2006-01-02 15:04:05"),
			e.Op,
			fmt.Sprintf("%d", e.ExpenseID),
			"$" + e.Expected.StringFixed(2),
			e.Outcome,
			e.Reason,
		})
	}
	return out
}
