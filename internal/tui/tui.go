// Package tui is the interactive expense list: tabs, filters, selection, and
// single and bulk review, driven by a view.View.
package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"expensectl/internal/analytics"
	"expensectl/internal/model"
	"expensectl/internal/scheduler"
	"expensectl/internal/view"
)

type Options struct {
	View      *view.View
	Analytics analytics.Source
	Logger    *zap.Logger
	// SavePrefs persists the view context on quit. Optional.
	SavePrefs func(model.ViewContext) error
	// Notifier must be the one whose OnChange was passed to the view.
	Notifier *Notifier
	Server   string
}

// Notifier forwards scheduler snapshots to a running program. Scheduler
// callbacks can fire from inside Update, so sends never block the caller.
type Notifier struct {
	mu sync.Mutex
	p  *tea.Program
}

func (n *Notifier) OnChange(scheduler.Snapshot) {
	n.mu.Lock()
	p := n.p
	n.mu.Unlock()
	if p != nil {
		go p.Send(changedMsg{})
	}
}

func (n *Notifier) attach(p *tea.Program) {
	n.mu.Lock()
	n.p = p
	n.mu.Unlock()
}

func Run(ctx context.Context, opts Options) error {
	applyColorProfilePreference()
	applyThemePreference()

	m := newAppModel(ctx, opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if opts.Notifier != nil {
		opts.Notifier.attach(p)
	}
	opts.View.Start(ctx)
	defer opts.View.Stop()

	_, err := p.Run()
	if opts.Notifier != nil {
		opts.Notifier.attach(nil)
	}
	return err
}
