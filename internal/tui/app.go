package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"expensectl/internal/analytics"
	"expensectl/internal/bulk"
	"expensectl/internal/model"
	"expensectl/internal/perm"
	"expensectl/internal/selection"
	"expensectl/internal/statusutil"
)

// Column widths; the owner column takes the rest.
const (
	colCheck    = 3
	colID       = 6
	colDate     = 10
	colCategory = 14
	colAmount   = 12
	colStatus   = 9
	colGap      = 1
)

func (m appModel) View() string {
	width := m.width
	if width <= 0 {
		width = 100
	}

	var body string
	switch {
	case m.modal != modalNone:
		body = lipgloss.Place(width, max(m.height, 12), lipgloss.Center, lipgloss.Center, m.renderModal(width))
	case m.screen == pageAnalytics:
		body = m.renderAnalytics(width)
	default:
		body = m.renderList(width)
	}
	if m.height > 0 {
		return normalizePane(body, width, m.height)
	}
	return body
}

func (m appModel) renderHeader(width int) string {
	title := lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Render("expensectl")
	who := m.who.Email
	if who == "" {
		who = fmt.Sprintf("user %d", m.who.UserID)
	}
	meta := styleMuted().Render(fmt.Sprintf("%s · %s", who, strings.ToLower(string(m.who.Role))))
	if m.server != "" {
		meta += styleMuted().Render(" · " + m.server)
	}

	active := lipgloss.NewStyle().Bold(true).Padding(0, 1).Foreground(colorSelectedFg).Background(colorSelectedBg)
	idle := lipgloss.NewStyle().Padding(0, 1).Foreground(colorChromeMutedFg)
	var tabs []string
	for _, t := range model.Tabs(m.who.Role) {
		label := tabLabel(t)
		if t == m.snap.Context.Tab {
			tabs = append(tabs, active.Render(label))
		} else {
			tabs = append(tabs, idle.Render(label))
		}
	}
	return truncateToWidth(title+"  "+meta, width) + "\n" + strings.Join(tabs, " ")
}

func tabLabel(t model.Tab) string {
	switch t {
	case model.TabApprovals:
		return "Approvals"
	case model.TabHistory:
		return "History"
	default:
		return "My expenses"
	}
}

func (m appModel) renderControls(width int) string {
	vc := m.snap.Context
	status := "all"
	if vc.Tab == model.TabApprovals {
		status = "pending"
	} else if vc.Filters.Status != "" {
		status = strings.ToLower(statusutil.Label(vc.Filters.Status))
	}
	arrow := "↓"
	if vc.Sort.Direction == model.Asc {
		arrow = "↑"
	}
	parts := []string{
		"status: " + status,
		fmt.Sprintf("sort: %s %s", vc.Sort.Field, arrow),
		fmt.Sprintf("page %d/%d", m.page+1, m.pageCount()),
	}
	if n := len(m.v.SelectedIDs()); n > 0 {
		parts = append(parts, fmt.Sprintf("%d selected", n))
	}
	line := styleMuted().Render(strings.Join(parts, "   "))
	if m.snap.Loading || m.busy {
		line = m.spin.View() + " " + line
	}

	var search string
	switch {
	case m.searching:
		search = m.search.View()
	case vc.Filters.Search != "":
		search = styleMuted().Render("/ " + vc.Filters.Search)
	default:
		search = styleMuted().Render("/ to search")
	}
	return truncateToWidth(line, width) + "\n" + truncateToWidth(search, width)
}

func (m appModel) ownerWidth(width int) int {
	fixed := colCheck + colID + colDate + colCategory + colAmount + colStatus + 6*colGap
	if w := width - fixed; w > 8 {
		return w
	}
	return 8
}

func checkbox(s selection.CheckState) string {
	switch s {
	case selection.Checked:
		return "[x]"
	case selection.Indeterminate:
		return "[-]"
	default:
		return "[ ]"
	}
}

func (m appModel) renderRow(cells [7]string, owner int) string {
	gap := strings.Repeat(" ", colGap)
	return strings.Join([]string{
		padOrCutANSI(cells[0], colCheck),
		padLeftANSI(cells[1], colID),
		padOrCutANSI(cells[2], colDate),
		padOrCutANSI(cells[3], colCategory),
		padOrCutANSI(cells[4], owner),
		padLeftANSI(cells[5], colAmount),
		padOrCutANSI(cells[6], colStatus),
	}, gap)
}

func (m appModel) renderList(width int) string {
	owner := m.ownerWidth(width)
	rows := m.pageRows()

	head := "   "
	if m.who.IsManager() {
		head = checkbox(m.v.SelectionState(perm.Eligible(rows, m.who)))
	}
	header := lipgloss.NewStyle().Bold(true).Render(
		m.renderRow([7]string{head, "ID", "DATE", "CATEGORY", "OWNER", "AMOUNT", "STATUS"}, owner))

	lines := []string{m.renderHeader(width), m.renderControls(width), "", header}
	if len(rows) == 0 {
		msg := "No expenses"
		if m.snap.Loading {
			msg = "Loading…"
		}
		lines = append(lines, styleMuted().Render(msg))
	}
	cursorStyle := lipgloss.NewStyle().Foreground(colorSelectedFg).Background(colorSelectedBg)
	for i, r := range rows {
		box := "   "
		if m.who.IsManager() {
			switch {
			case m.v.IsSelected(r.ID):
				box = "[x]"
			case perm.CanBulkAct(r, m.who):
				box = "[ ]"
			}
		}
		who := r.OwnerEmail
		if who == "" {
			who = fmt.Sprintf("#%d", r.UserID)
		}
		line := m.renderRow([7]string{
			box,
			fmt.Sprintf("%d", r.ID),
			r.CreatedAt.Format("2006-01-02"),
			r.Category,
			who,
			"$" + r.Amount.StringFixed(2),
			styleStatus(r.Status).Render(statusutil.Label(r.Status)),
		}, owner)
		if i == m.cursor {
			line = cursorStyle.Render(line)
		}
		lines = append(lines, line)
	}

	lines = append(lines, "", m.renderFooter(width))
	return strings.Join(lines, "\n")
}

func (m appModel) renderFooter(width int) string {
	var out []string
	if err := m.snap.Err; err != nil {
		out = append(out, styleNotice(bulk.LevelFailure).Render(truncateToWidth("Load failed: "+err.Error(), width-2)))
	}
	if m.flash != "" {
		out = append(out, styleNotice(m.flashLevel).Render(truncateToWidth(m.flash, width-2)))
	}
	help := "↑/↓ move  ←/→ page  / search  f status  s/S sort  c new  e edit  d delete  r refresh  g analytics  q quit"
	if m.who.IsManager() {
		help = "tab switch  space select  * page  y/x approve/reject  Y/X bulk  " + help
	}
	out = append(out, styleMuted().Render(truncateToWidth(help, width)))
	return strings.Join(out, "\n")
}

func (m appModel) renderModal(width int) string {
	switch m.modal {
	case modalConfirmBulk:
		n := len(m.v.SelectedIDs())
		verb := "Approve"
		if m.pendingBulk == bulk.ActionReject {
			verb = "Reject"
		}
		body := fmt.Sprintf("%s %d selected expense(s)?", verb, n)
		return renderConfirmModal(width, verb+" selected", body, verb, "Cancel", m.focus)
	case modalConfirmDelete:
		body := fmt.Sprintf("Delete expense %d? This cannot be undone.", m.pendingID)
		return renderConfirmModal(width, "Delete expense", body, "Delete", "Cancel", m.focus)
	case modalEditAmount:
		content := m.amount.View() + "\n\n" + styleMuted().Render("enter: save   esc: cancel")
		return renderModalBox(width, fmt.Sprintf("Edit expense %d", m.pendingID), content)
	case modalCreate:
		cat := ""
		if len(m.cats) > 0 {
			cat = m.cats[m.catIdx].Name
		}
		content := strings.Join([]string{
			"Amount   " + m.amount.View(),
			"Category " + lipgloss.NewStyle().Bold(true).Render("‹ "+cat+" ›"),
			"",
			styleMuted().Render("tab/↑/↓: category   enter: submit   esc: cancel"),
		}, "\n")
		return renderModalBox(width, "New expense", content)
	}
	return ""
}

func (m appModel) renderAnalytics(width int) string {
	lines := []string{m.renderHeader(width), ""}
	switch {
	case m.analyticsErr != nil:
		lines = append(lines, styleNotice(bulk.LevelFailure).Render("Analytics failed: "+m.analyticsErr.Error()))
	case m.analyticsMD == "":
		lines = append(lines, m.spin.View()+" Loading analytics…")
	default:
		out, err := analytics.Render(m.analyticsMD, markdownStyle(), width-2)
		if err != nil {
			out = m.analyticsMD
		}
		lines = append(lines, strings.TrimRight(out, "\n"))
	}
	lines = append(lines, "", styleMuted().Render("r refresh   esc/g back"))
	return strings.Join(lines, "\n")
}

func markdownStyle() string {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return "notty"
	}
	if lipgloss.HasDarkBackground() {
		return "dark"
	}
	return "light"
}
