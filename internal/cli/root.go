// Package cli is the expensectl command tree. Every command writes a
// {"data": ...} envelope to stdout and errors to stderr.
package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"expensectl/internal/config"
	"expensectl/internal/format"
	"expensectl/internal/logging"
	"expensectl/internal/metrics"
	"expensectl/internal/store"
)

type App struct {
	Server          string
	Token           string
	StateDir        string
	PrettyJSON      bool
	Format          string
	LogFile         string
	LogLevel        string
	Verbose         bool
	BulkConcurrency int
	Timeout         time.Duration

	cfg      *config.Config
	log      *zap.Logger
	closeLog func() error
	store    store.Store
	metrics  *metrics.Metrics
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "expensectl",
		Short:        "Expense list client: review, bulk approve, analytics",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Save a session, then start the interactive TUI
  expensectl session set --server https://expenses.example.com --token $TOKEN --user-id 7 --role manager
  expensectl

  # Scriptable commands
  expensectl list --tab approvals --sort amount --order desc
  expensectl approve 42
  expensectl bulk approve 42 43 44 --yes
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive TUI.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(cmd, app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return app.init(cmd)
	}
	cmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return app.close()
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&app.Server, "server", "", "Backend base URL (overrides the saved session)")
	pf.StringVar(&app.Token, "token", "", "Bearer token (overrides the saved session)")
	pf.StringVar(&app.StateDir, "state-dir", envOr("EXPENSECTL_STATE_DIR", ""), "Local state directory (default ~/.expensectl)")
	pf.BoolVar(&app.PrettyJSON, "pretty", false, "Pretty-print JSON output")
	pf.StringVar(&app.Format, "format", envOr("EXPENSECTL_FORMAT", format.JSON), "Output format (json|edn|table)")
	pf.StringVar(&app.LogFile, "log-file", "", "Write JSON logs to this file")
	pf.StringVar(&app.LogLevel, "log-level", envOr("EXPENSECTL_LOG_LEVEL", "info"), "Log level (debug|info|warn|error)")
	pf.BoolVarP(&app.Verbose, "verbose", "v", false, "Also log to stderr")
	pf.IntVar(&app.BulkConcurrency, "bulk-concurrency", 8, "Max in-flight requests for bulk actions (0 = unlimited)")
	pf.DurationVar(&app.Timeout, "timeout", 15*time.Second, "Per-request timeout")

	cmd.AddCommand(newListCmd(app))
	cmd.AddCommand(newCreateCmd(app))
	cmd.AddCommand(newCategoriesCmd(app))
	cmd.AddCommand(newReviewCmd(app, "approve"))
	cmd.AddCommand(newReviewCmd(app, "reject"))
	cmd.AddCommand(newEditCmd(app))
	cmd.AddCommand(newDeleteCmd(app))
	cmd.AddCommand(newBulkCmd(app))
	cmd.AddCommand(newAnalyticsCmd(app))
	cmd.AddCommand(newWatchCmd(app))
	cmd.AddCommand(newJournalCmd(app))
	cmd.AddCommand(newSessionCmd(app))
	cmd.AddCommand(newVersionCmd(app))

	return cmd
}

// init resolves config (flags > env > file), opens the state dir, and builds
// the logger. Logs never go to stdout.
func (app *App) init(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return writeErr(cmd, err)
	}
	app.cfg = cfg
	app.Format = cfg.Format

	st, err := store.Open(cfg.StateDir)
	if err != nil {
		return writeErr(cmd, err)
	}
	app.store = st

	var stderr = cmd.ErrOrStderr()
	if !app.Verbose {
		stderr = nil
	}
	log, closer, err := logging.New(logging.Options{File: cfg.LogFile, Stderr: stderr, Level: app.LogLevel})
	if err != nil {
		return writeErr(cmd, err)
	}
	app.log, app.closeLog = log, closer
	app.metrics = metrics.New()
	return nil
}

func (app *App) close() error {
	if app.log != nil {
		_ = app.log.Sync()
	}
	if app.closeLog != nil {
		return app.closeLog()
	}
	return nil
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// writeOut writes v in the selected format. With --format table, a "data"
// value that knows how to render itself as rows is printed as a table.
func writeOut(cmd *cobra.Command, app *App, v any) error {
	if app.Format == format.Table {
		if env, ok := v.(map[string]any); ok {
			if t, ok := env["data"].(format.Tabular); ok {
				return format.WriteTable(cmd.OutOrStdout(), t, format.TableOptions{})
			}
		}
	}
	return format.Write(cmd.OutOrStdout(), v, app.Format, app.PrettyJSON)
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
