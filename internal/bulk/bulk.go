// Package bulk fans one approve/reject decision out over a selection of rows
// and folds the per-row outcomes into a single summary.
package bulk

//go:generate mockgen -destination=mock_mutator_test.go -package=bulk expensectl/internal/mutate Mutator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"expensectl/internal/model"
	"expensectl/internal/mutate"
)

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

func ParseAction(s string) (Action, error) {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionApprove:
		return ActionApprove, nil
	case ActionReject:
		return ActionReject, nil
	default:
		return "", fmt.Errorf("unknown bulk action %q (want approve|reject)", s)
	}
}

func (a Action) Op() mutate.Op {
	if a == ActionReject {
		return mutate.OpReject
	}
	return mutate.OpApprove
}

func (a Action) pastTense() string {
	if a == ActionReject {
		return "Rejected"
	}
	return "Approved"
}

var (
	ErrDeclined       = errors.New("bulk action declined")
	ErrEmptySelection = errors.New("nothing selected")
)

// Confirmer asks the user before anything is sent.
type Confirmer interface {
	Confirm(ctx context.Context, action Action, count int) (bool, error)
}

type ConfirmFunc func(ctx context.Context, action Action, count int) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, action Action, count int) (bool, error) {
	return f(ctx, action, count)
}

// AlwaysConfirm is used by non-interactive callers (`bulk --yes`).
var AlwaysConfirm Confirmer = ConfirmFunc(func(context.Context, Action, int) (bool, error) { return true, nil })

type Refresher interface {
	Refresh(background bool) error
}

type Clearer interface {
	Clear()
}

type Options struct {
	Mutator   mutate.Mutator
	Confirmer Confirmer
	Refresher Refresher
	Selection Clearer
	// Limit caps in-flight mutations; <= 0 means one goroutine per row.
	Limit  int
	Logger *zap.Logger
}

type Orchestrator struct {
	mut     mutate.Mutator
	confirm Confirmer
	refresh Refresher
	sel     Clearer
	limit   int
	log     *zap.Logger
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		mut:     opts.Mutator,
		confirm: opts.Confirmer,
		refresh: opts.Refresher,
		sel:     opts.Selection,
		limit:   opts.Limit,
		log:     opts.Logger,
	}
	if o.confirm == nil {
		o.confirm = AlwaysConfirm
	}
	if o.log == nil {
		o.log = zap.NewNop()
	}
	return o
}

// Apply confirms the ids present in rows, then issues one conditional mutation
// per id using the amount from rows as precondition. Ids missing from rows are
// skipped and not counted in the confirmation. Every mutation runs to
// completion; one failure does not cancel the others. Afterwards the list is
// refreshed exactly once and the selection cleared.
func (o *Orchestrator) Apply(ctx context.Context, action Action, ids []int64, rows []model.Expense) (Summary, error) {
	sum := Summary{Action: action}
	if len(ids) == 0 {
		return sum, ErrEmptySelection
	}

	byID := make(map[int64]model.Expense, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	intents := make([]mutate.Intent, 0, len(ids))
	for _, id := range ids {
		row, found := byID[id]
		if !found {
			sum.Skipped = append(sum.Skipped, id)
			continue
		}
		intents = append(intents, mutate.IntentFor(action.Op(), row))
	}
	if len(intents) == 0 {
		return sum, ErrEmptySelection
	}

	ok, err := o.confirm.Confirm(ctx, action, len(intents))
	if err != nil {
		return sum, err
	}
	if !ok {
		return sum, ErrDeclined
	}

	outcomes := make([]mutate.Outcome, len(intents))
	var g errgroup.Group
	if o.limit > 0 {
		g.SetLimit(o.limit)
	}
	for i, in := range intents {
		i, in := i, in
		g.Go(func() error {
			outcomes[i] = o.mut.Apply(ctx, in)
			return nil
		})
	}
	_ = g.Wait()

	sum.add(outcomes)
	o.log.Info("bulk action finished",
		zap.String("action", string(action)),
		zap.Int("total", sum.Total),
		zap.Int("applied", sum.Applied),
		zap.Int("conflicts", sum.Conflicts),
		zap.Int("failures", sum.Failures),
		zap.Int("skipped", len(sum.Skipped)),
	)

	if o.refresh != nil {
		if err := o.refresh.Refresh(true); err != nil {
			o.log.Warn("refresh after bulk action failed", zap.Error(err))
		}
	}
	if o.sel != nil {
		o.sel.Clear()
	}
	return sum, nil
}
