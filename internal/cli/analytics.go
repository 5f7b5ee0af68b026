package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"expensectl/internal/analytics"
)

func newAnalyticsCmd(app *App) *cobra.Command {
	var (
		markdown bool
		style    string
		width    int
	)

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Show expense totals, monthly trend, category breakdown (and approval stats for managers)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, c, err := app.connect()
			if err != nil {
				return writeErr(cmd, err)
			}
			rep, err := analytics.Load(cmd.Context(), c, sess.Identity.Role)
			if err != nil {
				return writeErr(cmd, err)
			}
			if markdown {
				out, err := analytics.Render(rep.Markdown(), style, width)
				if err != nil {
					return writeErr(cmd, err)
				}
				_, err = fmt.Fprint(cmd.OutOrStdout(), out)
				return err
			}
			return writeOut(cmd, app, map[string]any{"data": rep})
		},
	}
	cmd.Flags().BoolVar(&markdown, "markdown", false, "Render a markdown report instead of structured output")
	cmd.Flags().StringVar(&style, "style", "notty", "Markdown style: notty|dark|light")
	cmd.Flags().IntVar(&width, "width", 80, "Wrap width for --markdown")
	return cmd
}
