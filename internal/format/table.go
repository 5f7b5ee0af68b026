package format

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"expensectl/internal/model"
)

type TableOptions struct {
	// MaxColWidth truncates wide cells; 0 keeps the default.
	MaxColWidth uint
	// Color forces color on or off; nil follows the terminal.
	Color *bool
}

// WriteTable renders t with a bold header row and status-colored cells.
func WriteTable(w io.Writer, t Tabular, opts TableOptions) error {
	if opts.Color != nil {
		prev := color.NoColor
		color.NoColor = !*opts.Color
		defer func() { color.NoColor = prev }()
	}

	tbl := uitable.New()
	tbl.MaxColWidth = 48
	if opts.MaxColWidth > 0 {
		tbl.MaxColWidth = opts.MaxColWidth
	}
	tbl.Separator = "  "

	header := t.TableHeader()
	bold := color.New(color.Bold).SprintFunc()
	tbl.AddRow(cells(header, func(s string) string { return bold(s) })...)
	for _, row := range t.TableRows() {
		tbl.AddRow(cells(row, Colorize)...)
	}
	_, err := fmt.Fprintln(w, tbl)
	return err
}

func cells(in []string, fn func(string) string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = fn(s)
	}
	return out
}

var statusColors = map[string]*color.Color{
	string(model.StatusPending):  color.New(color.FgYellow),
	string(model.StatusApproved): color.New(color.FgGreen),
	string(model.StatusRejected): color.New(color.FgRed),
	"applied":                    color.New(color.FgGreen),
	"conflict":                   color.New(color.FgYellow),
	"failed":                     color.New(color.FgRed),
}

// Colorize colors status and outcome cells; other text passes through.
func Colorize(s string) string {
	if c, ok := statusColors[s]; ok {
		return c.Sprint(s)
	}
	return s
}
