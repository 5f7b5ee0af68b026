package perm

import (
	"expensectl/internal/model"
)

// CanBulkAct reports whether a row may join the bulk-action selection.
//
// Rules:
// - The row must still be PENDING.
// - Managers cannot act on their own submissions.
func CanBulkAct(e model.Expense, who model.Identity) bool {
	if e.Status != model.StatusPending {
		return false
	}
	return e.UserID != who.UserID
}

// CanReview reports whether the identity may approve or reject a single row.
// Employees never review; managers follow the same rules as bulk selection.
func CanReview(e model.Expense, who model.Identity) bool {
	if !who.IsManager() {
		return false
	}
	return CanBulkAct(e, who)
}

// CanModify reports whether the identity may edit or delete a row: only the owner,
// and only while it is still pending.
func CanModify(e model.Expense, who model.Identity) bool {
	return e.Status == model.StatusPending && e.UserID == who.UserID
}

// Eligible filters rows down to the ones that may be selected, preserving order.
func Eligible(rows []model.Expense, who model.Identity) []model.Expense {
	out := make([]model.Expense, 0, len(rows))
	for _, r := range rows {
		if CanBulkAct(r, who) {
			out = append(out, r)
		}
	}
	return out
}
