package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"expensectl/internal/fakeapi"
	"expensectl/internal/model"
)

func newTestClient(t *testing.T, token string) (*Client, *fakeapi.Server) {
	t.Helper()
	s := fakeapi.New()
	s.AddUser("emp", model.Identity{UserID: 2, Email: "emp@example.com", Role: model.RoleEmployee})
	s.AddUser("mgr", model.Identity{UserID: 1, Email: "mgr@example.com", Role: model.RoleManager})
	ts := fakeapi.Start(t, s)
	c, err := New(Options{BaseURL: ts.URL, Token: token, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c, s
}

func TestNew_RequiresServer(t *testing.T) {
	t.Parallel()

	if _, err := New(Options{}); !errors.Is(err, ErrNoServer) {
		t.Fatalf("expected ErrNoServer, got %v", err)
	}
	if _, err := New(Options{BaseURL: "ftp://example.com"}); err == nil {
		t.Fatalf("expected scheme error")
	}
}

func TestListExpenses_SendsParams(t *testing.T) {
	t.Parallel()

	var got url.Values
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing bearer token: %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("missing request id")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"expenses":[{"id":42,"user_id":3,"category":"Travel","amount":500,"status":"PENDING","created_at":"2024-03-01T10:00:00Z"}]}`))
	}))
	defer ts.Close()

	c, err := New(Options{BaseURL: ts.URL + "/", Token: "tok"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rows, err := c.ListExpenses(context.Background(), url.Values{"view": {"team"}, "status": {"PENDING"}})
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if got.Get("view") != "team" || got.Get("status") != "PENDING" {
		t.Fatalf("unexpected query: %v", got)
	}
	if len(rows) != 1 || rows[0].ID != 42 || !rows[0].Amount.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}

func TestListExpenses_EmptyIsNonNil(t *testing.T) {
	t.Parallel()

	c, _ := newTestClient(t, "emp")
	rows, err := c.ListExpenses(context.Background(), url.Values{"view": {"personal"}})
	if err != nil {
		t.Fatalf("ListExpenses: %v", err)
	}
	if rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", rows)
	}
}

func TestApprove_ConflictIsDistinguished(t *testing.T) {
	t.Parallel()

	c, s := newTestClient(t, "mgr")
	e := s.Seed(model.Expense{UserID: 2, Category: "Travel", Amount: decimal.NewFromInt(500)})

	err := c.Approve(context.Background(), e.ID, decimal.NewFromInt(450))
	if !IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if err := c.Approve(context.Background(), e.ID, decimal.NewFromInt(500)); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	got, _ := s.Get(e.ID)
	if got.Status != model.StatusApproved {
		t.Fatalf("expected approved, got %q", got.Status)
	}
}

func TestStatusError_Message(t *testing.T) {
	t.Parallel()

	c, s := newTestClient(t, "emp")
	e := s.Seed(model.Expense{UserID: 3, Amount: decimal.NewFromInt(10)})

	err := c.Reject(context.Background(), e.ID, decimal.NewFromInt(10))
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %T %v", err, err)
	}
	if se.Code != http.StatusForbidden || se.Message != "managers only" {
		t.Fatalf("unexpected status error: %#v", se)
	}
	if IsConflict(err) {
		t.Fatalf("403 must not classify as conflict")
	}
	if !IsUnauthorized(err) {
		t.Fatalf("403 should classify as unauthorized")
	}
}

func TestCreate_ValidatesAndDecodes(t *testing.T) {
	t.Parallel()

	c, s := newTestClient(t, "emp")

	_, err := c.Create(context.Background(), CreateRequest{Amount: decimal.NewFromInt(-1), CategoryID: 1})
	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for negative amount, got %v", err)
	}
	if _, err := c.Create(context.Background(), CreateRequest{Amount: decimal.NewFromInt(5)}); !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for missing category, got %v", err)
	}
	if s.Hits("create") != 0 {
		t.Fatalf("invalid requests must not reach the server")
	}

	e, err := c.Create(context.Background(), CreateRequest{Amount: decimal.NewFromInt(1200), CategoryID: 1})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if e.Category != "Travel" || e.Status != model.StatusPending || e.UserID != 2 {
		t.Fatalf("unexpected created row: %#v", e)
	}
}

func TestDelete_PreconditionInQuery(t *testing.T) {
	t.Parallel()

	c, s := newTestClient(t, "emp")
	e := s.Seed(model.Expense{UserID: 2, Amount: decimal.RequireFromString("12.50")})

	if err := c.Delete(context.Background(), e.ID, decimal.RequireFromString("12.5")); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := s.Get(e.ID); ok {
		t.Fatalf("expected row to be deleted")
	}
}

func TestEdit_RejectsNegativeBeforeSending(t *testing.T) {
	t.Parallel()

	c, s := newTestClient(t, "emp")
	e := s.Seed(model.Expense{UserID: 2, Amount: decimal.NewFromInt(10)})
	err := c.Edit(context.Background(), e.ID, decimal.NewFromInt(10), decimal.NewFromInt(-3))
	var ve ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if s.Hits("edit") != 0 {
		t.Fatalf("expected no edit request")
	}
}

func TestAnalytics(t *testing.T) {
	t.Parallel()

	c, s := newTestClient(t, "mgr")
	s.Seed(model.Expense{UserID: 2, Category: "Travel", Amount: decimal.NewFromInt(100), Status: model.StatusApproved})
	s.Seed(model.Expense{UserID: 3, Category: "Meals", Amount: decimal.NewFromInt(50), Status: model.StatusRejected})
	s.Seed(model.Expense{UserID: 3, Category: "Meals", Amount: decimal.NewFromInt(25)})

	total, err := c.TotalExpense(context.Background())
	if err != nil || !total.Equal(decimal.NewFromInt(175)) {
		t.Fatalf("TotalExpense: %v %v", total, err)
	}
	cats, err := c.CategoryBreakdown(context.Background())
	if err != nil || len(cats) != 2 || cats[0].Category != "Meals" {
		t.Fatalf("CategoryBreakdown: %#v %v", cats, err)
	}
	st, err := c.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st != (model.Stats{Total: 3, Approved: 1, Rejected: 1, Pending: 1}) {
		t.Fatalf("unexpected stats: %#v", st)
	}
}
