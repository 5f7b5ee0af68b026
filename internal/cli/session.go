package cli

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"expensectl/internal/model"
	"expensectl/internal/statusutil"
	"expensectl/internal/store"
)

func newSessionCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Manage the saved login (server, token, identity)",
	}

	var (
		userID int64
		email  string
		role   string
	)
	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Save the session used by other commands",
		Example: strings.TrimSpace(`
  expensectl session set --server https://expenses.example.com --token $TOKEN --user-id 7 --role manager --email me@example.com
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.cfg.Server == "" || app.cfg.Token == "" {
				return writeErr(cmd, errors.New("session set needs --server and --token"))
			}
			r, err := statusutil.NormalizeRole(role)
			if err != nil {
				return writeErr(cmd, err)
			}
			if userID <= 0 {
				return writeErr(cmd, errors.New("session set needs --user-id"))
			}
			sess := store.Session{
				Server:   app.cfg.Server,
				Token:    app.cfg.Token,
				Identity: model.Identity{UserID: userID, Email: strings.TrimSpace(email), Role: r},
			}
			if err := app.store.Sessions().Save(sess); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": redacted(sess)})
		},
	}
	setCmd.Flags().Int64Var(&userID, "user-id", 0, "Your user id")
	setCmd.Flags().StringVar(&email, "email", "", "Your email (display only)")
	setCmd.Flags().StringVar(&role, "role", "employee", "Your role: employee|manager")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Show the saved session (token redacted)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.store.Sessions().Load()
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": redacted(*sess)})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.store.Sessions().Clear(); err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, map[string]any{"data": map[string]any{"cleared": true}})
		},
	}

	cmd.AddCommand(setCmd, showCmd, clearCmd)
	return cmd
}

func redacted(s store.Session) store.Session {
	if n := len(s.Token); n > 4 {
		s.Token = strings.Repeat("*", n-4) + s.Token[n-4:]
	} else {
		s.Token = strings.Repeat("*", n)
	}
	return s
}
