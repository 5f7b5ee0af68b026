package perm

import (
	"testing"

	"expensectl/internal/model"
)

func TestCanBulkAct(t *testing.T) {
	me := model.Identity{UserID: 7, Role: model.RoleManager}

	tests := []struct {
		name string
		row  model.Expense
		want bool
	}{
		{"pending from teammate", model.Expense{ID: 1, UserID: 3, Status: model.StatusPending}, true},
		{"own pending submission", model.Expense{ID: 2, UserID: 7, Status: model.StatusPending}, false},
		{"approved from teammate", model.Expense{ID: 3, UserID: 3, Status: model.StatusApproved}, false},
		{"rejected from teammate", model.Expense{ID: 4, UserID: 3, Status: model.StatusRejected}, false},
	}
	for _, tt := range tests {
		if got := CanBulkAct(tt.row, me); got != tt.want {
			t.Fatalf("%s: CanBulkAct=%v want %v", tt.name, got, tt.want)
		}
	}
}

func TestCanReview_EmployeesNeverReview(t *testing.T) {
	emp := model.Identity{UserID: 7, Role: model.RoleEmployee}
	row := model.Expense{ID: 1, UserID: 3, Status: model.StatusPending}
	if CanReview(row, emp) {
		t.Fatalf("expected employee to be unable to review")
	}
	mgr := model.Identity{UserID: 7, Role: model.RoleManager}
	if !CanReview(row, mgr) {
		t.Fatalf("expected manager to review a teammate's pending row")
	}
}

func TestCanModify_OwnerWhilePending(t *testing.T) {
	me := model.Identity{UserID: 7, Role: model.RoleEmployee}
	if !CanModify(model.Expense{UserID: 7, Status: model.StatusPending}, me) {
		t.Fatalf("owner should modify pending row")
	}
	if CanModify(model.Expense{UserID: 7, Status: model.StatusApproved}, me) {
		t.Fatalf("approved rows are frozen")
	}
	if CanModify(model.Expense{UserID: 8, Status: model.StatusPending}, me) {
		t.Fatalf("non-owner should not modify")
	}
}

func TestEligible_PreservesOrder(t *testing.T) {
	me := model.Identity{UserID: 7, Role: model.RoleManager}
	rows := []model.Expense{
		{ID: 3, UserID: 1, Status: model.StatusPending},
		{ID: 1, UserID: 7, Status: model.StatusPending},
		{ID: 2, UserID: 2, Status: model.StatusPending},
	}
	got := Eligible(rows, me)
	if len(got) != 2 || got[0].ID != 3 || got[1].ID != 2 {
		t.Fatalf("unexpected eligible rows: %#v", got)
	}
}
