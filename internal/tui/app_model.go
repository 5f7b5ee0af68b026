package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"expensectl/internal/analytics"
	"expensectl/internal/bulk"
	"expensectl/internal/model"
	"expensectl/internal/scheduler"
	"expensectl/internal/view"
)

const (
	flashDuration   = 4 * time.Second
	defaultPageSize = 10
	// Lines taken by everything except table rows.
	chromeHeight = 9
)

type appModel struct {
	ctx       context.Context
	v         *view.View
	who       model.Identity
	src       analytics.Source
	log       *zap.Logger
	savePrefs func(model.ViewContext) error
	server    string
	keys      keyMap

	width    int
	height   int
	pageSize int

	snap   scheduler.Snapshot
	page   int
	cursor int

	search    textinput.Model
	searching bool
	spin      spinner.Model

	modal       modalKind
	focus       confirmModalFocus
	pendingBulk bulk.Action
	pendingID   int64
	amount      textinput.Model
	cats        []model.Category
	catIdx      int

	busy bool

	flash      string
	flashLevel bulk.Level
	flashSeq   int

	screen       pageKind
	analyticsMD  string
	analyticsErr error
}

func newAppModel(ctx context.Context, opts Options) appModel {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	search := textinput.New()
	search.Prompt = "/ "
	search.Placeholder = "category or email"
	search.CharLimit = 80

	amount := textinput.New()
	amount.Prompt = "$ "
	amount.Placeholder = "0.00"
	amount.CharLimit = 16

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styleMuted()

	m := appModel{
		ctx:       ctx,
		v:         opts.View,
		who:       opts.View.Identity(),
		src:       opts.Analytics,
		log:       log.Named("tui"),
		savePrefs: opts.SavePrefs,
		server:    opts.Server,
		keys:      defaultKeyMap(),
		pageSize:  defaultPageSize,
		search:    search,
		amount:    amount,
		spin:      sp,
	}
	m.snap = m.v.Snapshot()
	m.search.SetValue(m.snap.Context.Filters.Search)
	return m
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.loadCategoriesCmd())
}

func (m appModel) pageRows() []model.Expense {
	return view.Paginate(m.snap.Rows, m.page, m.pageSize)
}

func (m appModel) pageCount() int {
	n := len(m.snap.Rows)
	if n == 0 || m.pageSize <= 0 {
		return 1
	}
	return (n + m.pageSize - 1) / m.pageSize
}

func (m appModel) current() (model.Expense, bool) {
	rows := m.pageRows()
	if m.cursor < 0 || m.cursor >= len(rows) {
		return model.Expense{}, false
	}
	return rows[m.cursor], true
}

// clamp keeps page and cursor inside the current snapshot after rows change.
func (m *appModel) clamp() {
	if last := m.pageCount() - 1; m.page > last {
		m.page = last
	}
	if m.page < 0 {
		m.page = 0
	}
	n := len(m.pageRows())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// flashed shows a notice until flashDuration passes or a newer notice replaces it.
func (m appModel) flashed(level bulk.Level, text string) (appModel, tea.Cmd) {
	m.flashSeq++
	m.flash = text
	m.flashLevel = level
	seq := m.flashSeq
	return m, tea.Tick(flashDuration, func(time.Time) tea.Msg { return flashExpiredMsg{seq: seq} })
}
