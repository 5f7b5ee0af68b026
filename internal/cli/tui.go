package cli

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"expensectl/internal/model"
	"expensectl/internal/scheduler"
	"expensectl/internal/store"
	"expensectl/internal/tui"
)

func runTUI(cmd *cobra.Command, app *App) error {
	sess, c, err := app.connect()
	if err != nil {
		return writeErr(cmd, err)
	}
	ctx := cmd.Context()
	who := sess.Identity
	key := store.PrefsKey(sess.Server, who)

	notifier := &tui.Notifier{}
	journal := newJournal(who.UserID, false)
	defer journal.flush(cmd, app)
	v := app.newView(c, who, app.savedContext(ctx, key, who.Role), viewOpts{
		policy:   scheduler.DefaultPolicy,
		onChange: notifier.OnChange,
		journal:  journal,
	})

	return tui.Run(ctx, tui.Options{
		View:      v,
		Analytics: c,
		Logger:    app.log,
		Notifier:  notifier,
		Server:    sess.Server,
		SavePrefs: func(vc model.ViewContext) error {
			p := store.PrefsFrom(vc)
			return app.store.SaveViewPrefs(ctx, key, &p)
		},
	})
}

// savedContext restores the last view for this user; unreadable prefs mean defaults.
func (app *App) savedContext(ctx context.Context, key string, role model.Role) model.ViewContext {
	p, err := app.store.LoadViewPrefs(ctx, key)
	if err != nil {
		app.log.Warn("load view prefs", zap.Error(err))
		return model.DefaultViewContext(role)
	}
	return p.Apply(role)
}
