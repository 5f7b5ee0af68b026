// Package analytics loads the dashboard figures and renders them as a
// markdown report.
package analytics

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"expensectl/internal/model"
)

type Source interface {
	TotalExpense(ctx context.Context) (decimal.Decimal, error)
	CurrentMonthExpense(ctx context.Context) (decimal.Decimal, error)
	MonthlyTrend(ctx context.Context) ([]model.MonthlyPoint, error)
	CategoryBreakdown(ctx context.Context) ([]model.CategoryTotal, error)
	Stats(ctx context.Context) (model.Stats, error)
}

type Report struct {
	Role         model.Role            `json:"role"`
	Total        decimal.Decimal       `json:"totalExpense"`
	CurrentMonth decimal.Decimal       `json:"monthlyExpense"`
	Monthly      []model.MonthlyPoint  `json:"monthly"`
	Categories   []model.CategoryTotal `json:"categories"`
	// Stats and the rates are only loaded for managers.
	Stats         *model.Stats `json:"stats,omitempty"`
	ApprovalRate  int          `json:"approvalRate,omitempty"`
	RejectionRate int          `json:"rejectionRate,omitempty"`
}

// Load fetches all endpoints concurrently; any failure fails the whole report.
func Load(ctx context.Context, src Source, role model.Role) (*Report, error) {
	r := &Report{Role: role}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		r.Total, err = src.TotalExpense(ctx)
		return err
	})
	g.Go(func() (err error) {
		r.CurrentMonth, err = src.CurrentMonthExpense(ctx)
		return err
	})
	g.Go(func() (err error) {
		r.Monthly, err = src.MonthlyTrend(ctx)
		return err
	})
	g.Go(func() (err error) {
		r.Categories, err = src.CategoryBreakdown(ctx)
		return err
	})
	if role == model.RoleManager {
		g.Go(func() error {
			st, err := src.Stats(ctx)
			if err != nil {
				return err
			}
			r.Stats = &st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load analytics: %w", err)
	}
	if r.Monthly == nil {
		r.Monthly = []model.MonthlyPoint{}
	}
	if r.Categories == nil {
		r.Categories = []model.CategoryTotal{}
	}
	if r.Stats != nil {
		r.ApprovalRate, r.RejectionRate = Rates(*r.Stats)
	}
	return r, nil
}

// Rates returns approved and rejected shares of total as rounded percentages.
// A zero total is treated as one.
func Rates(s model.Stats) (approved, rejected int) {
	total := float64(s.Total)
	if total == 0 {
		total = 1
	}
	approved = int(math.Round(float64(s.Approved) / total * 100))
	rejected = int(math.Round(float64(s.Rejected) / total * 100))
	return approved, rejected
}

func money(d decimal.Decimal) string { return "$" + d.StringFixed(2) }

// Markdown renders the report for glamour.
func (r *Report) Markdown() string {
	var b strings.Builder
	totalTitle, monthTitle := "Total Approved Expense", "Current Month Expense"
	if r.Role == model.RoleManager {
		totalTitle, monthTitle = "Team Total Expenses", "Team Monthly Spend"
	}
	b.WriteString("# Analytics\n\n")
	fmt.Fprintf(&b, "| %s | %s |", totalTitle, monthTitle)
	if r.Stats != nil {
		b.WriteString(" Approval Rate | Rejection Rate |")
	}
	b.WriteString("\n|---|---|")
	if r.Stats != nil {
		b.WriteString("---|---|")
	}
	fmt.Fprintf(&b, "\n| %s | %s |", money(r.Total), money(r.CurrentMonth))
	if r.Stats != nil {
		fmt.Fprintf(&b, " %d%% | %d%% |", r.ApprovalRate, r.RejectionRate)
	}
	b.WriteString("\n\n## Monthly trend\n\n")
	if len(r.Monthly) == 0 {
		b.WriteString("_No data._\n")
	} else {
		b.WriteString("| Month | Total |\n|---|---:|\n")
		for _, p := range r.Monthly {
			fmt.Fprintf(&b, "| %s | %s |\n", p.Month, money(p.TotalExpense))
		}
	}
	b.WriteString("\n## By category\n\n")
	if len(r.Categories) == 0 {
		b.WriteString("_No data._\n")
	} else {
		b.WriteString("| Category | Total |\n|---|---:|\n")
		for _, c := range r.Categories {
			fmt.Fprintf(&b, "| %s | %s |\n", c.Category, money(c.TotalExpense))
		}
	}
	if r.Stats != nil {
		fmt.Fprintf(&b, "\n## Approvals\n\n- Pending: %d\n- Approved: %d\n- Rejected: %d\n- Total: %d\n",
			r.Stats.Pending, r.Stats.Approved, r.Stats.Rejected, r.Stats.Total)
	}
	return b.String()
}

var (
	rendererMu sync.Mutex
	renderers  = map[string]*glamour.TermRenderer{}
)

// Render runs markdown through glamour with a fixed style ("dark", "light",
// "notty"). Auto style is avoided because it queries the terminal.
func Render(md, style string, width int) (string, error) {
	if style == "" {
		style = "notty"
	}
	if width < 20 {
		width = 20
	}
	key := fmt.Sprintf("%s:%d", style, width)

	rendererMu.Lock()
	defer rendererMu.Unlock()
	r := renderers[key]
	if r == nil {
		var err error
		r, err = glamour.NewTermRenderer(glamour.WithStandardStyle(style), glamour.WithWordWrap(width))
		if err != nil {
			return "", err
		}
		renderers[key] = r
	}
	return r.Render(md)
}
