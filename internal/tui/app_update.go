package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"expensectl/internal/analytics"
	"expensectl/internal/bulk"
	"expensectl/internal/model"
	"expensectl/internal/mutate"
	"expensectl/internal/perm"
)

var statusCycle = []model.Status{"", model.StatusPending, model.StatusApproved, model.StatusRejected}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		if ps := msg.Height - chromeHeight; ps > 0 {
			m.pageSize = ps
		}
		m.clamp()
		return m, nil

	case changedMsg:
		m.snap = m.v.Snapshot()
		m.clamp()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case categoriesMsg:
		if msg.err != nil {
			m.log.Warn("load categories", zap.Error(msg.err))
			return m, nil
		}
		m.cats = msg.cats
		if m.catIdx >= len(m.cats) {
			m.catIdx = 0
		}
		return m, nil

	case mutationMsg:
		m.busy = false
		if msg.err != nil {
			return m.flashed(bulk.LevelFailure, msg.err.Error())
		}
		m.snap = m.v.Snapshot()
		return m.flashed(msg.level, msg.notice)

	case bulkMsg:
		m.busy = false
		m.snap = m.v.Snapshot()
		switch {
		case errors.Is(msg.err, bulk.ErrEmptySelection):
			return m.flashed(bulk.LevelConflict, "Nothing selected")
		case errors.Is(msg.err, bulk.ErrDeclined):
			return m, nil
		case msg.err != nil:
			return m.flashed(bulk.LevelFailure, msg.err.Error())
		}
		return m.flashed(msg.sum.Level(), msg.sum.Message())

	case createdMsg:
		m.busy = false
		if msg.err != nil {
			return m.flashed(bulk.LevelFailure, "Create failed: "+msg.err.Error())
		}
		return m.flashed(bulk.LevelSuccess, fmt.Sprintf("Created expense %d", msg.exp.ID))

	case analyticsMsg:
		m.busy = false
		m.analyticsMD, m.analyticsErr = msg.md, msg.err
		return m, nil

	case flashExpiredMsg:
		if msg.seq == m.flashSeq {
			m.flash = ""
		}
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		switch {
		case m.modal != modalNone:
			return m.updateModal(msg)
		case m.searching:
			return m.updateSearch(msg)
		case m.screen == pageAnalytics:
			return m.updateAnalytics(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

func (m appModel) quit() (tea.Model, tea.Cmd) {
	if m.savePrefs != nil {
		if err := m.savePrefs(m.v.Context()); err != nil {
			m.log.Warn("save view prefs", zap.Error(err))
		}
	}
	return m, tea.Quit
}

func (m appModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	k := m.keys
	switch {
	case key.Matches(msg, k.Quit):
		return m.quit()

	case key.Matches(msg, k.Up):
		if m.cursor > 0 {
			m.cursor--
		} else if m.page > 0 {
			m.page--
			m.cursor = len(m.pageRows()) - 1
		}
	case key.Matches(msg, k.Down):
		if m.cursor < len(m.pageRows())-1 {
			m.cursor++
		} else if m.page < m.pageCount()-1 {
			m.page++
			m.cursor = 0
		}
	case key.Matches(msg, k.NextPage):
		if m.page < m.pageCount()-1 {
			m.page++
			m.clamp()
		}
	case key.Matches(msg, k.PrevPage):
		if m.page > 0 {
			m.page--
			m.clamp()
		}

	case key.Matches(msg, k.NextTab):
		m.switchTab(1)
	case key.Matches(msg, k.PrevTab):
		m.switchTab(-1)

	case key.Matches(msg, k.Toggle):
		row, ok := m.current()
		if !ok {
			return m, nil
		}
		if !m.v.Toggle(row.ID) {
			return m.flashed(bulk.LevelConflict, fmt.Sprintf("Expense %d cannot be selected", row.ID))
		}
	case key.Matches(msg, k.ToggleAll):
		m.v.ToggleAll(m.v.VisibleEligible(m.page, m.pageSize))

	case key.Matches(msg, k.Search):
		m.searching = true
		cmd := m.search.Focus()
		return m, cmd
	case key.Matches(msg, k.Status):
		m.v.SetFilter("status", string(nextStatus(m.v.Context().Filters.Status)))
		m.snap = m.v.Snapshot()
	case key.Matches(msg, k.SortField):
		m.v.ToggleSort(nextSortField(m.v.Context().Sort.Field))
		m.snap = m.v.Snapshot()
	case key.Matches(msg, k.SortDir):
		m.v.ToggleSort(m.v.Context().Sort.Field)
		m.snap = m.v.Snapshot()

	case key.Matches(msg, k.Approve):
		return m.review(mutate.OpApprove)
	case key.Matches(msg, k.Reject):
		return m.review(mutate.OpReject)
	case key.Matches(msg, k.BulkApprove):
		return m.openBulk(bulk.ActionApprove)
	case key.Matches(msg, k.BulkReject):
		return m.openBulk(bulk.ActionReject)

	case key.Matches(msg, k.Edit):
		row, ok := m.current()
		if !ok {
			return m, nil
		}
		if !perm.CanModify(row, m.who) {
			return m.flashed(bulk.LevelFailure, "Only your own pending expenses can be edited")
		}
		m.modal = modalEditAmount
		m.pendingID = row.ID
		m.amount.SetValue(row.Amount.String())
		cmd := m.amount.Focus()
		return m, cmd
	case key.Matches(msg, k.Delete):
		row, ok := m.current()
		if !ok {
			return m, nil
		}
		if !perm.CanModify(row, m.who) {
			return m.flashed(bulk.LevelFailure, "Only your own pending expenses can be deleted")
		}
		m.modal = modalConfirmDelete
		m.pendingID = row.ID
		m.focus = confirmFocusCancel
	case key.Matches(msg, k.Create):
		if len(m.cats) == 0 {
			nm, cmd := m.flashed(bulk.LevelConflict, "Categories are still loading")
			return nm, tea.Batch(nm.loadCategoriesCmd(), cmd)
		}
		m.modal = modalCreate
		m.amount.SetValue("")
		cmd := m.amount.Focus()
		return m, cmd

	case key.Matches(msg, k.Refresh):
		if err := m.v.Refresh(false); err != nil {
			return m.flashed(bulk.LevelFailure, err.Error())
		}
		m.snap = m.v.Snapshot()
	case key.Matches(msg, k.Analytics):
		if m.src == nil {
			return m, nil
		}
		m.screen = pageAnalytics
		m.busy = true
		return m, m.loadAnalyticsCmd()
	}
	return m, nil
}

func (m *appModel) switchTab(step int) {
	tabs := model.Tabs(m.who.Role)
	cur := m.v.Context().Tab
	idx := 0
	for i, t := range tabs {
		if t == cur {
			idx = i
		}
	}
	next := tabs[(idx+step+len(tabs))%len(tabs)]
	if m.v.SetTab(next) {
		m.page, m.cursor = 0, 0
		m.search.SetValue("")
	}
	m.snap = m.v.Snapshot()
}

func nextStatus(s model.Status) model.Status {
	for i, st := range statusCycle {
		if st == s {
			return statusCycle[(i+1)%len(statusCycle)]
		}
	}
	return statusCycle[0]
}

func nextSortField(f model.SortField) model.SortField {
	for i, sf := range model.SortFields {
		if sf == f {
			return model.SortFields[(i+1)%len(model.SortFields)]
		}
	}
	return model.SortFields[0]
}

func (m appModel) review(op mutate.Op) (tea.Model, tea.Cmd) {
	row, ok := m.current()
	if !ok || m.busy {
		return m, nil
	}
	if !perm.CanReview(row, m.who) {
		return m.flashed(bulk.LevelFailure, fmt.Sprintf("You cannot %s expense %d", op, row.ID))
	}
	m.busy = true
	return m, m.mutateCmd(op, row.ID)
}

func (m appModel) openBulk(action bulk.Action) (tea.Model, tea.Cmd) {
	if !m.who.IsManager() || m.busy {
		return m, nil
	}
	if len(m.v.SelectedIDs()) == 0 {
		return m.flashed(bulk.LevelConflict, "Nothing selected")
	}
	m.modal = modalConfirmBulk
	m.pendingBulk = action
	m.focus = confirmFocusConfirm
	return m, nil
}

func (m appModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "enter":
		m.searching = false
		m.search.Blur()
		return m, nil
	}
	before := m.search.Value()
	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	if after := m.search.Value(); after != before {
		// Every keystroke updates the filter; the scheduler debounces the fetch.
		m.v.SetFilter("search", after)
		m.snap = m.v.Snapshot()
	}
	return m, cmd
}

func (m appModel) updateAnalytics(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit), msg.String() == "esc", key.Matches(msg, m.keys.Analytics):
		m.screen = pageList
	case key.Matches(msg, m.keys.Refresh):
		m.busy = true
		return m, m.loadAnalyticsCmd()
	}
	return m, nil
}

func (m appModel) updateModal(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.closeModal()
		return m, nil
	}
	switch m.modal {
	case modalConfirmBulk, modalConfirmDelete:
		switch msg.String() {
		case "tab", "shift+tab", "left", "right", "h", "l":
			m.focus = m.focus.toggle()
		case "n":
			m.closeModal()
		case "y":
			return m.confirmModal()
		case "enter":
			if m.focus == confirmFocusCancel {
				m.closeModal()
				return m, nil
			}
			return m.confirmModal()
		}
		return m, nil

	case modalEditAmount:
		if msg.String() == "enter" {
			amt, err := parseAmount(m.amount.Value())
			if err != nil {
				return m.flashed(bulk.LevelFailure, err.Error())
			}
			id := m.pendingID
			m.closeModal()
			m.busy = true
			return m, m.editCmd(id, amt)
		}

	case modalCreate:
		switch msg.String() {
		case "tab", "down":
			m.catIdx = (m.catIdx + 1) % len(m.cats)
			return m, nil
		case "shift+tab", "up":
			m.catIdx = (m.catIdx - 1 + len(m.cats)) % len(m.cats)
			return m, nil
		case "enter":
			amt, err := parseAmount(m.amount.Value())
			if err != nil {
				return m.flashed(bulk.LevelFailure, err.Error())
			}
			cat := m.cats[m.catIdx]
			m.closeModal()
			m.busy = true
			return m, m.createCmd(amt, cat.ID)
		}
	}
	var cmd tea.Cmd
	m.amount, cmd = m.amount.Update(msg)
	return m, cmd
}

func (m appModel) confirmModal() (tea.Model, tea.Cmd) {
	kind, action, id := m.modal, m.pendingBulk, m.pendingID
	m.closeModal()
	m.busy = true
	if kind == modalConfirmDelete {
		return m, m.mutateCmd(mutate.OpDelete, id)
	}
	return m, m.bulkCmd(action)
}

func (m *appModel) closeModal() {
	m.modal = modalNone
	m.pendingID = 0
	m.amount.Blur()
}

func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "$")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount: %q", s)
	}
	if !d.IsPositive() {
		return decimal.Zero, errors.New("amount must be positive")
	}
	return d, nil
}

// Commands. Each captures what it needs so it can run off the update goroutine.

func (m appModel) mutateCmd(op mutate.Op, id int64) tea.Cmd {
	v, ctx := m.v, m.ctx
	return func() tea.Msg {
		out, n, err := v.MutateRow(ctx, op, id)
		return mutationMsg{out: out, notice: n.Text, level: n.Level, err: err}
	}
}

func (m appModel) editCmd(id int64, amount decimal.Decimal) tea.Cmd {
	v, ctx := m.v, m.ctx
	return func() tea.Msg {
		out, n, err := v.EditRow(ctx, id, amount)
		return mutationMsg{out: out, notice: n.Text, level: n.Level, err: err}
	}
}

func (m appModel) bulkCmd(action bulk.Action) tea.Cmd {
	v, ctx := m.v, m.ctx
	return func() tea.Msg {
		sum, err := v.Bulk(ctx, action)
		return bulkMsg{sum: sum, err: err}
	}
}

func (m appModel) createCmd(amount decimal.Decimal, categoryID int64) tea.Cmd {
	v, ctx := m.v, m.ctx
	return func() tea.Msg {
		e, err := v.Create(ctx, amount, categoryID)
		return createdMsg{exp: e, err: err}
	}
}

func (m appModel) loadCategoriesCmd() tea.Cmd {
	v, ctx := m.v, m.ctx
	return func() tea.Msg {
		cats, err := v.Categories(ctx)
		return categoriesMsg{cats: cats, err: err}
	}
}

func (m appModel) loadAnalyticsCmd() tea.Cmd {
	src, ctx, role := m.src, m.ctx, m.who.Role
	return func() tea.Msg {
		rep, err := analytics.Load(ctx, src, role)
		if err != nil {
			return analyticsMsg{err: err}
		}
		return analyticsMsg{md: rep.Markdown()}
	}
}
