package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"expensectl/internal/bulk"
	"expensectl/internal/model"
	"expensectl/internal/mutate"
)

type modalKind int

const (
	modalNone modalKind = iota
	modalConfirmBulk
	modalConfirmDelete
	modalEditAmount
	modalCreate
)

type pageKind int

const (
	pageList pageKind = iota
	pageAnalytics
)

// Messages.
type (
	// changedMsg means the scheduler published a new snapshot; the model re-reads it.
	changedMsg struct{}

	startedMsg struct{}

	categoriesMsg struct {
		cats []model.Category
		err  error
	}

	mutationMsg struct {
		out    mutate.Outcome
		notice string
		level  bulk.Level
		err    error
	}

	bulkMsg struct {
		sum bulk.Summary
		err error
	}

	createdMsg struct {
		exp *model.Expense
		err error
	}

	analyticsMsg struct {
		md  string
		err error
	}

	flashExpiredMsg struct{ seq int }

	prefsSavedMsg struct{ err error }
)

type keyMap struct {
	Quit        key.Binding
	Up          key.Binding
	Down        key.Binding
	NextPage    key.Binding
	PrevPage    key.Binding
	NextTab     key.Binding
	PrevTab     key.Binding
	Toggle      key.Binding
	ToggleAll   key.Binding
	Search      key.Binding
	Status      key.Binding
	SortField   key.Binding
	SortDir     key.Binding
	Approve     key.Binding
	Reject      key.Binding
	BulkApprove key.Binding
	BulkReject  key.Binding
	Edit        key.Binding
	Delete      key.Binding
	Create      key.Binding
	Refresh     key.Binding
	Analytics   key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		NextPage:    key.NewBinding(key.WithKeys("right", "l", "pgdown"), key.WithHelp("→", "next page")),
		PrevPage:    key.NewBinding(key.WithKeys("left", "h", "pgup"), key.WithHelp("←", "prev page")),
		NextTab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next tab")),
		PrevTab:     key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev tab")),
		Toggle:      key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "select")),
		ToggleAll:   key.NewBinding(key.WithKeys("*"), key.WithHelp("*", "select page")),
		Search:      key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),
		Status:      key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "status filter")),
		SortField:   key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "sort field")),
		SortDir:     key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "sort order")),
		Approve:     key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "approve")),
		Reject:      key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "reject")),
		BulkApprove: key.NewBinding(key.WithKeys("Y"), key.WithHelp("Y", "approve selected")),
		BulkReject:  key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "reject selected")),
		Edit:        key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "edit amount")),
		Delete:      key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		Create:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "new expense")),
		Refresh:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
		Analytics:   key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "analytics")),
	}
}
