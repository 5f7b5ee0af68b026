// Package selection tracks rows marked for a bulk action.
package selection

import (
	"sort"

	"expensectl/internal/model"
	"expensectl/internal/perm"
)

// CheckState is the tri-state header checkbox value.
type CheckState int

const (
	Unchecked CheckState = iota
	Indeterminate
	Checked
)

// Model is the selection set for one view instance. It is not safe for
// concurrent use; the owning view serializes access.
type Model struct {
	who model.Identity
	ids map[int64]struct{}
}

func New(who model.Identity) *Model {
	return &Model{who: who, ids: map[int64]struct{}{}}
}

// Identity returns the session user eligibility is evaluated against.
func (m *Model) Identity() model.Identity { return m.who }

// Toggle flips one row. Ineligible rows are a no-op and report false.
func (m *Model) Toggle(row model.Expense) bool {
	if !perm.CanBulkAct(row, m.who) {
		return false
	}
	if _, ok := m.ids[row.ID]; ok {
		delete(m.ids, row.ID)
	} else {
		m.ids[row.ID] = struct{}{}
	}
	return true
}

// ToggleAll acts on the visible eligible rows only. If every one of them is
// selected they are all deselected (selections from other pages survive);
// otherwise they are unioned into the selection.
func (m *Model) ToggleAll(visible []model.Expense) {
	elig := perm.Eligible(visible, m.who)
	if len(elig) == 0 {
		return
	}
	if m.IsAllSelected(visible) {
		for _, r := range elig {
			delete(m.ids, r.ID)
		}
		return
	}
	for _, r := range elig {
		m.ids[r.ID] = struct{}{}
	}
}

func (m *Model) Clear() {
	m.ids = map[int64]struct{}{}
}

func (m *Model) Has(id int64) bool {
	_, ok := m.ids[id]
	return ok
}

func (m *Model) Len() int { return len(m.ids) }

// IDs returns the selected ids in ascending order.
func (m *Model) IDs() []int64 {
	out := make([]int64, 0, len(m.ids))
	for id := range m.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsAllSelected is true when the visible page has at least one eligible row and
// all of them are selected.
func (m *Model) IsAllSelected(visible []model.Expense) bool {
	elig := perm.Eligible(visible, m.who)
	if len(elig) == 0 {
		return false
	}
	for _, r := range elig {
		if !m.Has(r.ID) {
			return false
		}
	}
	return true
}

// IsSomeSelected is true when at least one visible eligible row is selected.
func (m *Model) IsSomeSelected(visible []model.Expense) bool {
	for _, r := range perm.Eligible(visible, m.who) {
		if m.Has(r.ID) {
			return true
		}
	}
	return false
}

func (m *Model) State(visible []model.Expense) CheckState {
	switch {
	case m.IsAllSelected(visible):
		return Checked
	case m.IsSomeSelected(visible):
		return Indeterminate
	default:
		return Unchecked
	}
}
