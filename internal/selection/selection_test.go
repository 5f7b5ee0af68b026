package selection

import (
	"reflect"
	"testing"

	"expensectl/internal/model"
)

var me = model.Identity{UserID: 7, Role: model.RoleManager}

func pending(id, owner int64) model.Expense {
	return model.Expense{ID: id, UserID: owner, Status: model.StatusPending}
}

func TestToggle_IneligibleIsNoop(t *testing.T) {
	t.Parallel()

	m := New(me)
	if m.Toggle(pending(1, 7)) {
		t.Fatalf("own submission should not be selectable")
	}
	if m.Toggle(model.Expense{ID: 2, UserID: 3, Status: model.StatusApproved}) {
		t.Fatalf("approved row should not be selectable")
	}
	if m.Len() != 0 {
		t.Fatalf("expected empty selection, got %v", m.IDs())
	}

	if !m.Toggle(pending(3, 4)) || !m.Has(3) {
		t.Fatalf("expected eligible row to be selected")
	}
	if !m.Toggle(pending(3, 4)) || m.Has(3) {
		t.Fatalf("expected second toggle to deselect")
	}
}

func TestToggleAll_IdempotentPair(t *testing.T) {
	t.Parallel()

	page := []model.Expense{pending(1, 2), pending(2, 3), pending(3, 7)}
	m := New(me)
	m.Toggle(pending(2, 3))

	m.ToggleAll(page)
	if !reflect.DeepEqual(m.IDs(), []int64{1, 2}) {
		t.Fatalf("expected union of eligible ids, got %v", m.IDs())
	}
	m.ToggleAll(page)
	m.ToggleAll(page)
	if !reflect.DeepEqual(m.IDs(), []int64{1, 2}) {
		t.Fatalf("expected pair of toggles to restore, got %v", m.IDs())
	}

	// From an empty page state the pair returns to the starting set.
	m2 := New(me)
	m2.ToggleAll(page)
	m2.ToggleAll(page)
	if m2.Len() != 0 {
		t.Fatalf("expected empty after pair from empty, got %v", m2.IDs())
	}
}

func TestToggleAll_CrossPageAccumulation(t *testing.T) {
	t.Parallel()

	page1 := []model.Expense{pending(1, 2), pending(2, 3)}
	page2 := []model.Expense{pending(3, 2), pending(4, 3)}

	m := New(me)
	m.ToggleAll(page1)
	m.ToggleAll(page2)
	if !reflect.DeepEqual(m.IDs(), []int64{1, 2, 3, 4}) {
		t.Fatalf("expected accumulation across pages, got %v", m.IDs())
	}

	// Deselecting page 2 leaves page 1 intact.
	m.ToggleAll(page2)
	if !reflect.DeepEqual(m.IDs(), []int64{1, 2}) {
		t.Fatalf("expected page 1 to survive, got %v", m.IDs())
	}
}

func TestState_TriState(t *testing.T) {
	t.Parallel()

	page := []model.Expense{pending(1, 2), pending(2, 3), {ID: 9, UserID: 3, Status: model.StatusApproved}}
	m := New(me)
	if m.State(page) != Unchecked {
		t.Fatalf("expected unchecked")
	}
	m.Toggle(page[0])
	if m.State(page) != Indeterminate {
		t.Fatalf("expected indeterminate")
	}
	if m.IsAllSelected(page) {
		t.Fatalf("IsAllSelected should be false while indeterminate")
	}
	m.Toggle(page[1])
	if m.State(page) != Checked {
		t.Fatalf("expected checked once every eligible row is selected")
	}
}

func TestIsAllSelected_NoEligibleRows(t *testing.T) {
	t.Parallel()

	m := New(me)
	page := []model.Expense{pending(1, 7)}
	if m.IsAllSelected(page) || m.IsSomeSelected(page) {
		t.Fatalf("page without eligible rows is never selected")
	}
	m.ToggleAll(page)
	if m.Len() != 0 {
		t.Fatalf("ToggleAll over no eligible rows should be a no-op")
	}
}

func TestClear(t *testing.T) {
	t.Parallel()

	m := New(me)
	m.ToggleAll([]model.Expense{pending(1, 2), pending(2, 3)})
	m.Clear()
	if m.Len() != 0 {
		t.Fatalf("expected empty selection after Clear")
	}
}
