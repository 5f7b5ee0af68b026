package mutate

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"

	"expensectl/internal/api"
	"expensectl/internal/fakeapi"
	"expensectl/internal/model"
)

func setup(t *testing.T, token string) (*Client, *fakeapi.Server, *[]Outcome) {
	t.Helper()
	s := fakeapi.New()
	s.AddUser("mgr", model.Identity{UserID: 1, Role: model.RoleManager})
	s.AddUser("emp", model.Identity{UserID: 2, Role: model.RoleEmployee})
	ts := fakeapi.Start(t, s)
	ac, err := api.New(api.Options{BaseURL: ts.URL, Token: token})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	var seen []Outcome
	c := NewClient(ac, WithObserver(func(o Outcome) { seen = append(seen, o) }))
	return c, s, &seen
}

func TestApply_Classification(t *testing.T) {
	c, s, seen := setup(t, "mgr")
	row := s.Seed(model.Expense{UserID: 2, Category: "Travel", Amount: decimal.NewFromInt(500)})
	ctx := context.Background()

	stale := row
	stale.Amount = decimal.NewFromInt(400)
	if got := c.Apply(ctx, IntentFor(OpApprove, stale)); got.Kind != Conflict || got.Code != http.StatusConflict {
		t.Fatalf("expected conflict, got %#v", got)
	}

	s.Inject(row.ID, http.StatusUnprocessableEntity)
	got := c.Apply(ctx, IntentFor(OpReject, row))
	if got.Kind != Failed || got.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected failed 422, got %#v", got)
	}
	if got.NeedsRefresh() {
		t.Fatalf("failed outcomes do not require refresh")
	}

	got = c.Apply(ctx, IntentFor(OpApprove, row))
	if got.Kind != Applied || !got.NeedsRefresh() {
		t.Fatalf("expected applied, got %#v", got)
	}
	if len(*seen) != 3 {
		t.Fatalf("expected observer to see 3 outcomes, got %d", len(*seen))
	}
}

func TestApply_NeverRetries(t *testing.T) {
	c, s, _ := setup(t, "mgr")
	row := s.Seed(model.Expense{UserID: 2, Amount: decimal.NewFromInt(500)})
	s.Inject(row.ID, http.StatusConflict)

	got := c.Apply(context.Background(), IntentFor(OpApprove, row))
	if got.Kind != Conflict {
		t.Fatalf("expected conflict, got %#v", got)
	}
	if s.Hits("approve") != 1 {
		t.Fatalf("expected exactly one request, got %d", s.Hits("approve"))
	}
	if r, _ := s.Get(row.ID); r.Status != model.StatusPending {
		t.Fatalf("row should still be pending, got %q", r.Status)
	}
}

func TestApply_PreconditionFailedIsConflict(t *testing.T) {
	c, s, _ := setup(t, "mgr")
	row := s.Seed(model.Expense{UserID: 2, Amount: decimal.NewFromInt(5)})
	s.Inject(row.ID, http.StatusPreconditionFailed)
	if got := c.Apply(context.Background(), IntentFor(OpApprove, row)); got.Kind != Conflict {
		t.Fatalf("expected 412 to classify as conflict, got %#v", got)
	}
}

func TestApply_EditAndDelete(t *testing.T) {
	c, s, _ := setup(t, "emp")
	row := s.Seed(model.Expense{UserID: 2, Amount: decimal.NewFromInt(100)})
	ctx := context.Background()

	if got := c.Apply(ctx, EditIntent(row, decimal.NewFromInt(120))); got.Kind != Applied {
		t.Fatalf("edit: expected applied, got %#v", got)
	}
	// The old snapshot is now stale.
	if got := c.Apply(ctx, IntentFor(OpDelete, row)); got.Kind != Conflict {
		t.Fatalf("delete with stale amount: expected conflict, got %#v", got)
	}
	fresh, _ := s.Get(row.ID)
	if got := c.Apply(ctx, IntentFor(OpDelete, fresh)); got.Kind != Applied {
		t.Fatalf("delete: expected applied, got %#v", got)
	}
}

func TestApply_InvalidIntentSendsNothing(t *testing.T) {
	c, s, _ := setup(t, "emp")
	row := s.Seed(model.Expense{UserID: 2, Amount: decimal.NewFromInt(100)})

	tests := []Intent{
		{Op: OpApprove, ID: 0, Expected: decimal.NewFromInt(1)},
		{Op: OpEdit, ID: row.ID, Expected: row.Amount},
		{Op: Op(99), ID: row.ID, Expected: row.Amount},
	}
	for _, in := range tests {
		got := c.Apply(context.Background(), in)
		var ie InvalidIntentError
		if got.Kind != Failed || !errors.As(got.Err, &ie) {
			t.Fatalf("intent %#v: expected invalid-intent failure, got %#v", in, got)
		}
	}
	if s.Hits("edit") != 0 || s.Hits("approve") != 0 {
		t.Fatalf("invalid intents must not reach the server")
	}
}

func TestApply_TransportErrorIsFailed(t *testing.T) {
	ac, err := api.New(api.Options{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("api.New: %v", err)
	}
	c := NewClient(ac)
	got := c.Apply(context.Background(), Intent{Op: OpApprove, ID: 1, Expected: decimal.NewFromInt(1)})
	if got.Kind != Failed || got.Code != 0 {
		t.Fatalf("expected transport failure, got %#v", got)
	}
}

func TestParseOp(t *testing.T) {
	for _, op := range []Op{OpApprove, OpReject, OpEdit, OpDelete} {
		got, err := ParseOp(op.String())
		if err != nil || got != op {
			t.Fatalf("ParseOp(%q) = %v, %v", op.String(), got, err)
		}
	}
	if _, err := ParseOp("archive"); err == nil {
		t.Fatalf("expected error for unknown op")
	}
}
