// Package view owns the state of one list view instance: the row set (through
// the fetch scheduler), the selection, and the mutation paths that refresh it.
package view

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"expensectl/internal/api"
	"expensectl/internal/bulk"
	"expensectl/internal/model"
	"expensectl/internal/mutate"
	"expensectl/internal/perm"
	"expensectl/internal/scheduler"
	"expensectl/internal/selection"
)

// Backend is everything a view needs from the server.
type Backend interface {
	scheduler.Fetcher
	mutate.Backend
	Create(ctx context.Context, req api.CreateRequest) (*model.Expense, error)
	Categories(ctx context.Context) ([]model.Category, error)
}

// Notice is a one-line user notification.
type Notice struct {
	Level bulk.Level
	Text  string
}

var ErrUnknownRow = errors.New("expense is not in the current list")

type Options struct {
	Backend  Backend
	Identity model.Identity
	// Context restores a saved view; zero means defaults for the role.
	Context   model.ViewContext
	Clock     scheduler.Clock
	Policy    scheduler.PolicyFunc
	Logger    *zap.Logger
	Confirmer bulk.Confirmer
	BulkLimit int
	OnChange  func(scheduler.Snapshot)
	OnFetch   func(scheduler.FetchEvent)
	// OnOutcome observes every single-row outcome, bulk included.
	OnOutcome func(mutate.Outcome)
}

type View struct {
	who     model.Identity
	backend Backend
	log     *zap.Logger
	sched   *scheduler.Scheduler
	mut     *mutate.Client
	bulk    *bulk.Orchestrator

	mu  sync.Mutex
	sel *selection.Model
}

func New(opts Options) *View {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	vc := opts.Context
	if vc.Role == "" {
		vc = model.DefaultViewContext(opts.Identity.Role)
	}
	vc.Role = opts.Identity.Role

	v := &View{
		who:     opts.Identity,
		backend: opts.Backend,
		log:     log,
		sel:     selection.New(opts.Identity),
	}
	v.sched = scheduler.New(scheduler.Options{
		Fetcher:  opts.Backend,
		Clock:    opts.Clock,
		Policy:   opts.Policy,
		Logger:   log.Named("scheduler"),
		Context:  vc,
		OnChange: opts.OnChange,
		OnFetch:  opts.OnFetch,
	})
	mopts := []mutate.Option{mutate.WithLogger(log.Named("mutate"))}
	if opts.OnOutcome != nil {
		mopts = append(mopts, mutate.WithObserver(opts.OnOutcome))
	}
	v.mut = mutate.NewClient(opts.Backend, mopts...)
	v.bulk = bulk.New(bulk.Options{
		Mutator:   v.mut,
		Confirmer: opts.Confirmer,
		Refresher: v.sched,
		Selection: v,
		Limit:     opts.BulkLimit,
		Logger:    log.Named("bulk"),
	})
	return v
}

func (v *View) Start(ctx context.Context)  { v.sched.Start(ctx) }
func (v *View) Attach(ctx context.Context) { v.sched.Attach(ctx) }
func (v *View) Stop()                      { v.sched.Stop() }

// Load attaches v, issues one foreground fetch and blocks until it lands. It
// returns the fetch error, if any. No debounced initial load is armed.
func (v *View) Load(ctx context.Context) error {
	v.sched.Attach(ctx)
	if err := v.sched.Refresh(false); err != nil {
		return err
	}
	v.sched.Wait()
	return v.sched.Err()
}

// Wait blocks until in-flight fetches complete.
func (v *View) Wait() { v.sched.Wait() }

func (v *View) Identity() model.Identity         { return v.who }
func (v *View) Snapshot() scheduler.Snapshot     { return v.sched.Snapshot() }
func (v *View) Rows() []model.Expense            { return v.sched.Rows() }
func (v *View) Context() model.ViewContext       { return v.sched.Context() }
func (v *View) Policy() scheduler.Policy         { return v.sched.CurrentPolicy() }
func (v *View) Refresh(background bool) error    { return v.sched.Refresh(background) }
func (v *View) SetFilter(key, value string)      { v.sched.SetFilter(key, value) }
func (v *View) SetFilters(f model.Filters)       { v.sched.SetFilters(f) }
func (v *View) ToggleSort(field model.SortField) { v.sched.ToggleSort(field) }
func (v *View) SetSort(s model.Sort)             { v.sched.SetSort(s) }
func (v *View) Categories(ctx context.Context) ([]model.Category, error) {
	return v.backend.Categories(ctx)
}

// SetTab switches tab. Filters reset and the selection is cleared when the
// tab actually changes.
func (v *View) SetTab(t model.Tab) bool {
	if !v.sched.SetTab(t) {
		return false
	}
	v.Clear()
	return true
}

// Clear empties the selection.
func (v *View) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sel.Clear()
}

// Toggle flips selection for id in the current rows. Ineligible or unknown rows
// report false.
func (v *View) Toggle(id int64) bool {
	row, ok := v.find(id)
	if !ok {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sel.Toggle(row)
}

func (v *View) ToggleAll(visible []model.Expense) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sel.ToggleAll(visible)
}

func (v *View) IsSelected(id int64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sel.Has(id)
}

func (v *View) SelectedIDs() []int64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sel.IDs()
}

func (v *View) SelectionState(visible []model.Expense) selection.CheckState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.sel.State(visible)
}

// Page returns the rows on a zero-based page of the current snapshot.
func (v *View) Page(page, size int) []model.Expense {
	return Paginate(v.sched.Rows(), page, size)
}

// VisibleEligible returns the rows on a page that the current user may bulk act on.
func (v *View) VisibleEligible(page, size int) []model.Expense {
	return perm.Eligible(v.Page(page, size), v.who)
}

// Paginate slices rows into a zero-based page. size <= 0 returns everything.
func Paginate(rows []model.Expense, page, size int) []model.Expense {
	if size <= 0 {
		return rows
	}
	start := page * size
	if page < 0 || start >= len(rows) {
		return nil
	}
	end := start + size
	if end > len(rows) {
		end = len(rows)
	}
	return rows[start:end]
}

func (v *View) find(id int64) (model.Expense, bool) {
	for _, r := range v.sched.Rows() {
		if r.ID == id {
			return r, true
		}
	}
	return model.Expense{}, false
}

// Row returns the current snapshot of one row.
func (v *View) Row(id int64) (model.Expense, error) {
	row, ok := v.find(id)
	if !ok {
		return model.Expense{}, fmt.Errorf("expense %d: %w", id, ErrUnknownRow)
	}
	return row, nil
}

// Mutate applies one intent. The local row is never patched: on Applied or
// Conflict a background refresh is issued and the new value arrives from the
// server.
func (v *View) Mutate(ctx context.Context, in mutate.Intent) (mutate.Outcome, Notice) {
	out := v.mut.Apply(ctx, in)
	if out.NeedsRefresh() {
		if err := v.sched.Refresh(true); err != nil {
			v.log.Debug("refresh after mutation skipped", zap.Error(err))
		}
	}
	return out, NoticeFor(out)
}

// MutateRow builds the intent from the row currently shown for id.
func (v *View) MutateRow(ctx context.Context, op mutate.Op, id int64) (mutate.Outcome, Notice, error) {
	row, err := v.Row(id)
	if err != nil {
		return mutate.Outcome{}, Notice{}, err
	}
	out, n := v.Mutate(ctx, mutate.IntentFor(op, row))
	return out, n, nil
}

// EditRow changes the amount of a row using its current snapshot as precondition.
func (v *View) EditRow(ctx context.Context, id int64, amount decimal.Decimal) (mutate.Outcome, Notice, error) {
	row, err := v.Row(id)
	if err != nil {
		return mutate.Outcome{}, Notice{}, err
	}
	out, n := v.Mutate(ctx, mutate.EditIntent(row, amount))
	return out, n, nil
}

// Bulk runs a bulk action over the current selection against the current rows.
func (v *View) Bulk(ctx context.Context, action bulk.Action) (bulk.Summary, error) {
	return v.bulk.Apply(ctx, action, v.SelectedIDs(), v.sched.Rows())
}

// Create submits a new expense owned by the current user, then reloads.
func (v *View) Create(ctx context.Context, amount decimal.Decimal, categoryID int64) (*model.Expense, error) {
	e, err := v.backend.Create(ctx, api.CreateRequest{Amount: amount, CategoryID: categoryID})
	if err != nil {
		return nil, err
	}
	if err := v.sched.Refresh(false); err != nil {
		v.log.Debug("refresh after create skipped", zap.Error(err))
	}
	return e, nil
}

func NoticeFor(o mutate.Outcome) Notice {
	switch o.Kind {
	case mutate.Applied:
		return Notice{Level: bulk.LevelSuccess, Text: mutate.Describe(o)}
	case mutate.Conflict:
		return Notice{Level: bulk.LevelConflict, Text: mutate.Describe(o)}
	default:
		return Notice{Level: bulk.LevelFailure, Text: mutate.Describe(o)}
	}
}
