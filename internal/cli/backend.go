package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"expensectl/internal/api"
	"expensectl/internal/bulk"
	"expensectl/internal/model"
	"expensectl/internal/mutate"
	"expensectl/internal/scheduler"
	"expensectl/internal/store"
	"expensectl/internal/view"
)

// session returns the saved session with --server/--token (or their config
// and env equivalents) layered on top.
func (app *App) session() (*store.Session, error) {
	sess, err := app.store.Sessions().Load()
	if err != nil && !errors.Is(err, store.ErrNoSession) {
		return nil, err
	}
	if sess == nil {
		sess = &store.Session{}
	}
	if app.cfg.Server != "" {
		sess.Server = app.cfg.Server
	}
	if app.cfg.Token != "" {
		sess.Token = app.cfg.Token
	}
	if sess.Server == "" {
		return nil, api.ErrNoServer
	}
	if sess.Token == "" || sess.Identity.Role == "" {
		return nil, store.ErrNoSession
	}
	return sess, nil
}

func (app *App) client(sess *store.Session) (*api.Client, error) {
	return api.New(api.Options{
		BaseURL: sess.Server,
		Token:   sess.Token,
		Timeout: app.cfg.RequestTimeout,
		Logger:  app.log.Named("api"),
	})
}

// connect resolves the session and builds a client for it.
func (app *App) connect() (*store.Session, *api.Client, error) {
	sess, err := app.session()
	if err != nil {
		return nil, nil, err
	}
	c, err := app.client(sess)
	if err != nil {
		return nil, nil, err
	}
	return sess, c, nil
}

// oneShot never polls: scripted commands fetch once and exit.
func oneShot(model.Role, model.Tab) scheduler.Policy {
	return scheduler.Policy{Debounce: scheduler.DefaultDebounce}
}

type viewOpts struct {
	policy    scheduler.PolicyFunc
	onChange  func(scheduler.Snapshot)
	onFetch   func(scheduler.FetchEvent)
	confirmer bulk.Confirmer
	journal   *journalRecorder
}

func (app *App) newView(c *api.Client, who model.Identity, vc model.ViewContext, o viewOpts) *view.View {
	if o.policy == nil {
		o.policy = oneShot
	}
	onOutcome := app.metrics.ObserveOutcome
	if o.journal != nil {
		onOutcome = func(out mutate.Outcome) {
			app.metrics.ObserveOutcome(out)
			o.journal.observe(out)
		}
	}
	onFetch := app.metrics.ObserveFetch
	if o.onFetch != nil {
		onFetch = func(e scheduler.FetchEvent) {
			app.metrics.ObserveFetch(e)
			o.onFetch(e)
		}
	}
	return view.New(view.Options{
		Backend:   c,
		Identity:  who,
		Context:   vc,
		Policy:    o.policy,
		Logger:    app.log,
		Confirmer: o.confirmer,
		BulkLimit: app.cfg.BulkConcurrency,
		OnChange:  o.onChange,
		OnFetch:   onFetch,
		OnOutcome: onOutcome,
	})
}

// loadView blocks until v's single foreground fetch has landed.
func loadView(ctx context.Context, v *view.View) error {
	if err := v.Load(ctx); err != nil {
		return fmt.Errorf("list expenses: %w", err)
	}
	return nil
}

// journalRecorder buffers outcomes (bulk mutations report concurrently) and
// writes them to the local journal in one transaction.
type journalRecorder struct {
	actorID int64
	batchID string

	mu      sync.Mutex
	entries []store.JournalEntry
}

func newJournal(actorID int64, batch bool) *journalRecorder {
	j := &journalRecorder{actorID: actorID}
	if batch {
		j.batchID = uuid.NewString()
	}
	return j
}

func (j *journalRecorder) observe(o mutate.Outcome) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, store.EntryFor(o, j.actorID, j.batchID))
}

// flush is best effort: a journal failure never fails the command.
func (j *journalRecorder) flush(cmd *cobra.Command, app *App) {
	j.mu.Lock()
	entries := j.entries
	j.entries = nil
	j.mu.Unlock()
	if len(entries) == 0 {
		return
	}
	if err := app.store.AppendJournal(cmd.Context(), entries...); err != nil {
		app.log.Warn("append journal", zap.Error(err), zap.Int("entries", len(entries)))
	}
}
