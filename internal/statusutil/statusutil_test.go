package statusutil

import (
	"testing"

	"expensectl/internal/model"
)

func TestNormalizeStatus(t *testing.T) {
	cases := []struct {
		in      string
		want    model.Status
		wantErr bool
	}{
		{"pending", model.StatusPending, false},
		{"APPROVED", model.StatusApproved, false},
		{" rejected ", model.StatusRejected, false},
		{"", "", false},
		{"all", "", false},
		{"done", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizeStatus(tc.in)
		if tc.wantErr && err == nil {
			t.Fatalf("NormalizeStatus(%q): expected error", tc.in)
		}
		if !tc.wantErr && err != nil {
			t.Fatalf("NormalizeStatus(%q): unexpected error: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeStatus(%q): expected %q, got %q", tc.in, tc.want, got)
		}
	}
}

func TestIsEndState(t *testing.T) {
	if IsEndState(model.StatusPending) {
		t.Fatalf("pending should not be an end state")
	}
	if !IsEndState(model.StatusApproved) || !IsEndState(model.StatusRejected) {
		t.Fatalf("approved/rejected should be end states")
	}
}

func TestNormalizeSort(t *testing.T) {
	got, err := NormalizeSort("", "")
	if err != nil {
		t.Fatalf("NormalizeSort: %v", err)
	}
	if got != model.DefaultSort() {
		t.Fatalf("expected default sort, got %#v", got)
	}
	got, err = NormalizeSort("Amount", "asc")
	if err != nil {
		t.Fatalf("NormalizeSort: %v", err)
	}
	if got.Field != model.SortAmount || got.Direction != model.Asc {
		t.Fatalf("unexpected sort: %#v", got)
	}
	if _, err := NormalizeSort("owner", ""); err == nil {
		t.Fatalf("expected error for unknown field")
	}
	if _, err := NormalizeSort("date", "up"); err == nil {
		t.Fatalf("expected error for unknown order")
	}
}

func TestNormalizeTabAndRole(t *testing.T) {
	if tab, err := NormalizeTab("History"); err != nil || tab != model.TabHistory {
		t.Fatalf("NormalizeTab: got %q, %v", tab, err)
	}
	if _, err := NormalizeTab("archive"); err == nil {
		t.Fatalf("expected error for unknown tab")
	}
	if r, err := NormalizeRole("manager"); err != nil || r != model.RoleManager {
		t.Fatalf("NormalizeRole: got %q, %v", r, err)
	}
}
