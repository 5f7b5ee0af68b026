package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"expensectl/internal/model"
)

func (c *Client) TotalExpense(ctx context.Context) (decimal.Decimal, error) {
	var out struct {
		Total decimal.Decimal `json:"totalExpense"`
	}
	err := c.do(ctx, http.MethodGet, "/analytics/total", nil, nil, &out)
	return out.Total, err
}

func (c *Client) CurrentMonthExpense(ctx context.Context) (decimal.Decimal, error) {
	var out struct {
		Monthly decimal.Decimal `json:"monthlyExpense"`
	}
	err := c.do(ctx, http.MethodGet, "/analytics/current-month", nil, nil, &out)
	return out.Monthly, err
}

func (c *Client) MonthlyTrend(ctx context.Context) ([]model.MonthlyPoint, error) {
	var out struct {
		Data []model.MonthlyPoint `json:"data"`
	}
	err := c.do(ctx, http.MethodGet, "/analytics/monthly", nil, nil, &out)
	return out.Data, err
}

func (c *Client) CategoryBreakdown(ctx context.Context) ([]model.CategoryTotal, error) {
	var out struct {
		Categories []model.CategoryTotal `json:"categories"`
	}
	err := c.do(ctx, http.MethodGet, "/analytics/category", nil, nil, &out)
	return out.Categories, err
}

// Stats is manager-only; employees get a 403. Counts may arrive as JSON numbers
// or as strings (aggregate queries often return text).
func (c *Client) Stats(ctx context.Context) (model.Stats, error) {
	var raw struct {
		Total    json.RawMessage `json:"total"`
		Approved json.RawMessage `json:"approved"`
		Rejected json.RawMessage `json:"rejected"`
		Pending  json.RawMessage `json:"pending"`
	}
	if err := c.do(ctx, http.MethodGet, "/analytics/stats", nil, nil, &raw); err != nil {
		return model.Stats{}, err
	}
	var out model.Stats
	var err error
	if out.Total, err = parseCount(raw.Total); err != nil {
		return model.Stats{}, fmt.Errorf("stats.total: %w", err)
	}
	if out.Approved, err = parseCount(raw.Approved); err != nil {
		return model.Stats{}, fmt.Errorf("stats.approved: %w", err)
	}
	if out.Rejected, err = parseCount(raw.Rejected); err != nil {
		return model.Stats{}, fmt.Errorf("stats.rejected: %w", err)
	}
	if out.Pending, err = parseCount(raw.Pending); err != nil {
		return model.Stats{}, fmt.Errorf("stats.pending: %w", err)
	}
	return out, nil
}

func parseCount(raw json.RawMessage) (int64, error) {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	if s == "" || s == "null" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
