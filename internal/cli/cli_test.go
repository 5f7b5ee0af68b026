package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"expensectl/internal/bulk"
	"expensectl/internal/fakeapi"
	"expensectl/internal/model"
)

var (
	manager  = model.Identity{UserID: 1, Email: "boss@example.com", Role: model.RoleManager}
	employee = model.Identity{UserID: 2, Email: "emp@example.com", Role: model.RoleEmployee}
)

func runCLI(t *testing.T, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()
	return runCLIWithInput(t, nil, args)
}

func runCLIWithInput(t *testing.T, in io.Reader, args []string) (stdout []byte, stderr []byte, err error) {
	t.Helper()

	cmd := NewRootCmd()

	var outBuf bytes.Buffer
	var errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	if in != nil {
		cmd.SetIn(in)
	}
	cmd.SetArgs(args)

	e := cmd.Execute()
	return outBuf.Bytes(), errBuf.Bytes(), e
}

type fixture struct {
	srv *fakeapi.Server
	url string
	dir string
}

func newFixture(t *testing.T, seed ...model.Expense) *fixture {
	t.Helper()
	srv := fakeapi.New()
	srv.AddUser("mgr-token", manager)
	srv.AddUser("emp-token", employee)
	for _, e := range seed {
		srv.Seed(e)
	}
	ts := fakeapi.Start(t, srv)
	return &fixture{srv: srv, url: ts.URL, dir: t.TempDir()}
}

// as saves a session for who in a fresh state dir and returns the dir.
func (f *fixture) as(t *testing.T, who model.Identity) string {
	t.Helper()
	dir := t.TempDir()
	token, role := "emp-token", "employee"
	if who.IsManager() {
		token, role = "mgr-token", "manager"
	}
	_, stderr, err := runCLI(t, []string{
		"--state-dir", dir, "--server", f.url, "--token", token,
		"session", "set", "--user-id", strconv.FormatInt(who.UserID, 10), "--email", who.Email, "--role", role,
	})
	if err != nil {
		t.Fatalf("session set: %v\nstderr:\n%s", err, stderr)
	}
	return dir
}

func decode(t *testing.T, out []byte) map[string]any {
	t.Helper()
	var env map[string]any
	if err := json.Unmarshal(out, &env); err != nil {
		t.Fatalf("unmarshal output: %v\nstdout:\n%s", err, out)
	}
	return env
}

func pendingFrom(id int64, who model.Identity, category string, amount int64) model.Expense {
	return model.Expense{
		ID:         id,
		UserID:     who.UserID,
		OwnerEmail: who.Email,
		Category:   category,
		Amount:     decimal.NewFromInt(amount),
		Status:     model.StatusPending,
		CreatedAt:  time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestSessionSetShowClear(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dir := f.as(t, manager)

	out, stderr, err := runCLI(t, []string{"--state-dir", dir, "session", "show"})
	if err != nil {
		t.Fatalf("session show: %v\nstderr:\n%s", err, stderr)
	}
	data := decode(t, out)["data"].(map[string]any)
	if got := data["token"]; got != "*****oken" {
		t.Fatalf("token not redacted: %v", got)
	}
	id := data["identity"].(map[string]any)
	if id["role"] != string(model.RoleManager) || id["userId"] != float64(1) {
		t.Fatalf("identity: %#v", id)
	}

	if _, stderr, err := runCLI(t, []string{"--state-dir", dir, "session", "clear"}); err != nil {
		t.Fatalf("session clear: %v\nstderr:\n%s", err, stderr)
	}
	_, stderr, err = runCLI(t, []string{"--state-dir", dir, "list"})
	if err == nil {
		t.Fatalf("expected error without a session")
	}
	if !strings.Contains(string(stderr), "no saved session") && !strings.Contains(string(stderr), "server") {
		t.Fatalf("unexpected stderr: %s", stderr)
	}
}

func TestListApprovalsForManager(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		pendingFrom(1, employee, "Travel", 100),
		pendingFrom(2, employee, "Meals", 20),
		pendingFrom(3, manager, "Office", 50),
	)
	dir := f.as(t, manager)

	out, stderr, err := runCLI(t, []string{"--state-dir", dir, "list", "--tab", "approvals", "--sort", "amount", "--order", "asc"})
	if err != nil {
		t.Fatalf("list: %v\nstderr:\n%s", err, stderr)
	}
	env := decode(t, out)
	rows := env["data"].([]any)
	if len(rows) != 3 {
		t.Fatalf("want 3 team pending rows, got %d: %v", len(rows), rows)
	}
	if first := rows[0].(map[string]any); first["id"] != float64(2) {
		t.Fatalf("amount asc should put #2 first, got %v", first["id"])
	}
	q := env["meta"].(map[string]any)["query"].(string)
	for _, want := range []string{"view=team", "status=PENDING", "sortBy=amount", "order=asc"} {
		if !strings.Contains(q, want) {
			t.Fatalf("query %q missing %q", q, want)
		}
	}
}

func TestEmployeeListIsClampedToPersonal(t *testing.T) {
	t.Parallel()

	f := newFixture(t, pendingFrom(1, employee, "Travel", 100), pendingFrom(2, manager, "Office", 50))
	dir := f.as(t, employee)

	out, stderr, err := runCLI(t, []string{"--state-dir", dir, "list", "--tab", "approvals"})
	if err != nil {
		t.Fatalf("list: %v\nstderr:\n%s", err, stderr)
	}
	env := decode(t, out)
	if tab := env["meta"].(map[string]any)["tab"]; tab != string(model.TabPersonal) {
		t.Fatalf("tab: %v", tab)
	}
	if rows := env["data"].([]any); len(rows) != 1 {
		t.Fatalf("employee should only see own rows: %v", rows)
	}
}

func TestHistoryDefaultsToApproved(t *testing.T) {
	t.Parallel()

	approved := pendingFrom(4, employee, "Travel", 10)
	approved.Status = model.StatusApproved
	f := newFixture(t, pendingFrom(1, employee, "Travel", 100), approved)
	dir := f.as(t, manager)

	out, stderr, err := runCLI(t, []string{"--state-dir", dir, "list", "--tab", "history"})
	if err != nil {
		t.Fatalf("list: %v\nstderr:\n%s", err, stderr)
	}
	env := decode(t, out)
	rows := env["data"].([]any)
	if len(rows) != 1 || rows[0].(map[string]any)["id"] != float64(4) {
		t.Fatalf("history rows: %v", rows)
	}
	if q := env["meta"].(map[string]any)["query"].(string); !strings.Contains(q, "status=APPROVED") {
		t.Fatalf("query: %s", q)
	}
}

func TestApproveTwiceSecondConflicts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, pendingFrom(42, employee, "Travel", 500))
	first := f.as(t, manager)
	second := f.as(t, manager)

	out, stderr, err := runCLI(t, []string{"--state-dir", first, "approve", "42", "--expected", "500"})
	if err != nil {
		t.Fatalf("first approve: %v\nstderr:\n%s", err, stderr)
	}
	if got := decode(t, out)["data"].(map[string]any)["outcome"]; got != "applied" {
		t.Fatalf("first outcome: %v", got)
	}

	out, stderr, err = runCLI(t, []string{"--state-dir", second, "approve", "42", "--expected", "500"})
	if err == nil {
		t.Fatalf("second approve should fail with a conflict")
	}
	if code := ExitCode(err); code != ExitConflict {
		t.Fatalf("exit code: got %d want %d", code, ExitConflict)
	}
	if got := decode(t, out)["data"].(map[string]any)["outcome"]; got != "conflict" {
		t.Fatalf("second outcome: %v", got)
	}
	if !strings.Contains(string(stderr), "modified by others") {
		t.Fatalf("stderr: %s", stderr)
	}
	if e, _ := f.srv.Get(42); e.Status != model.StatusApproved {
		t.Fatalf("server status: %s", e.Status)
	}

	out, stderr, err = runCLI(t, []string{"--state-dir", second, "journal", "--outcome", "conflict"})
	if err != nil {
		t.Fatalf("journal: %v\nstderr:\n%s", err, stderr)
	}
	entries := decode(t, out)["data"].([]any)
	if len(entries) != 1 || entries[0].(map[string]any)["expenseId"] != float64(42) {
		t.Fatalf("journal entries: %v", entries)
	}
}

func TestApproveUsesListedAmountWithoutExpected(t *testing.T) {
	t.Parallel()

	f := newFixture(t, pendingFrom(7, employee, "Meals", 35))
	dir := f.as(t, manager)

	if _, stderr, err := runCLI(t, []string{"--state-dir", dir, "reject", "7"}); err != nil {
		t.Fatalf("reject: %v\nstderr:\n%s", err, stderr)
	}
	if e, _ := f.srv.Get(7); e.Status != model.StatusRejected {
		t.Fatalf("status: %s", e.Status)
	}

	_, stderr, err := runCLI(t, []string{"--state-dir", dir, "approve", "7"})
	if err == nil || !strings.Contains(string(stderr), "not in the current list") {
		t.Fatalf("expected unknown-row error, got %v\nstderr:\n%s", err, stderr)
	}
}

func TestCreateByCategoryName(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dir := f.as(t, employee)

	out, stderr, err := runCLI(t, []string{"--state-dir", dir, "create", "--amount", "1200", "--category", "travel"})
	if err != nil {
		t.Fatalf("create: %v\nstderr:\n%s", err, stderr)
	}
	env := decode(t, out)
	data := env["data"].(map[string]any)
	if data["category"] != "Travel" || data["status"] != string(model.StatusPending) {
		t.Fatalf("created: %#v", data)
	}
	if n := env["meta"].(map[string]any)["personalCount"]; n != float64(1) {
		t.Fatalf("personal rows after create: %v", n)
	}
}

func TestCreateUnknownCategory(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	dir := f.as(t, employee)

	_, stderr, err := runCLI(t, []string{"--state-dir", dir, "create", "--amount", "5", "--category", "Yachts"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(string(stderr), "unknown category") {
		t.Fatalf("stderr: %s", stderr)
	}
}

func TestEditThenStaleDeleteConflicts(t *testing.T) {
	t.Parallel()

	f := newFixture(t, pendingFrom(9, employee, "Meals", 40))
	dir := f.as(t, employee)

	out, stderr, err := runCLI(t, []string{"--state-dir", dir, "edit", "9", "--amount", "45"})
	if err != nil {
		t.Fatalf("edit: %v\nstderr:\n%s", err, stderr)
	}
	if got := decode(t, out)["data"].(map[string]any)["outcome"]; got != "applied" {
		t.Fatalf("edit outcome: %v", got)
	}
	if e, _ := f.srv.Get(9); !e.Amount.Equal(decimal.NewFromInt(45)) {
		t.Fatalf("amount: %s", e.Amount)
	}

	_, _, err = runCLI(t, []string{"--state-dir", dir, "delete", "9", "--expected", "40"})
	if ExitCode(err) != ExitConflict {
		t.Fatalf("stale delete: got %v", err)
	}
	if _, ok := f.srv.Get(9); !ok {
		t.Fatalf("row deleted despite conflict")
	}
}

func TestBulkApproveMixedOutcomes(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		pendingFrom(1, employee, "Travel", 100),
		pendingFrom(2, employee, "Meals", 200),
		pendingFrom(3, employee, "Office", 300),
		pendingFrom(4, manager, "Office", 400),
	)
	f.srv.Inject(1, http.StatusConflict)
	f.srv.Inject(2, http.StatusInternalServerError)
	dir := f.as(t, manager)

	out, stderr, err := runCLI(t, []string{"--state-dir", dir, "bulk", "approve", "1", "2", "3", "4", "99", "--yes"})
	if ExitCode(err) != ExitConflict {
		t.Fatalf("exit: %v\nstderr:\n%s", err, stderr)
	}
	env := decode(t, out)
	data := env["data"].(map[string]any)
	if data["applied"] != float64(1) || data["conflicts"] != float64(1) || data["failures"] != float64(1) {
		t.Fatalf("summary: %#v", data)
	}
	meta := env["meta"].(map[string]any)
	if meta["notice"] != "1 item(s) were modified by others; list refreshed" {
		t.Fatalf("notice: %v", meta["notice"])
	}
	if ns := meta["notSelectable"].([]any); len(ns) != 2 {
		t.Fatalf("notSelectable: %v", ns)
	}
	if e, _ := f.srv.Get(3); e.Status != model.StatusApproved {
		t.Fatalf("#3 status: %s", e.Status)
	}
	if e, _ := f.srv.Get(4); e.Status != model.StatusPending {
		t.Fatalf("own expense must not be touched: %s", e.Status)
	}

	out, _, err = runCLI(t, []string{"--state-dir", dir, "journal"})
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	entries := decode(t, out)["data"].([]any)
	if len(entries) != 3 {
		t.Fatalf("journal entries: %d", len(entries))
	}
	batch := entries[0].(map[string]any)["batchId"]
	for _, e := range entries {
		if e.(map[string]any)["batchId"] != batch || batch == "" {
			t.Fatalf("bulk entries should share a batch id: %v", entries)
		}
	}
}

func TestBulkDeclinedSendsNothing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, pendingFrom(1, employee, "Travel", 100))
	dir := f.as(t, manager)

	_, stderr, err := runCLIWithInput(t, strings.NewReader("n\n"), []string{"--state-dir", dir, "bulk", "reject", "1"})
	if !errors.Is(err, bulk.ErrDeclined) {
		t.Fatalf("expected declined, got %v\nstderr:\n%s", err, stderr)
	}
	if !strings.Contains(string(stderr), "Reject 1 expense(s)? [y/N]") {
		t.Fatalf("prompt missing: %s", stderr)
	}
	if f.srv.Hits("reject") != 0 {
		t.Fatalf("declined bulk sent requests")
	}
}

func TestBulkRequiresManager(t *testing.T) {
	t.Parallel()

	f := newFixture(t, pendingFrom(1, employee, "Travel", 100))
	dir := f.as(t, employee)

	_, stderr, err := runCLI(t, []string{"--state-dir", dir, "bulk", "approve", "1", "--yes"})
	if err == nil || !strings.Contains(string(stderr), "permission denied") {
		t.Fatalf("got %v\nstderr:\n%s", err, stderr)
	}
}

func TestAnalyticsManager(t *testing.T) {
	t.Parallel()

	approved := pendingFrom(2, employee, "Meals", 300)
	approved.Status = model.StatusApproved
	f := newFixture(t, pendingFrom(1, employee, "Travel", 100), approved)
	dir := f.as(t, manager)

	out, stderr, err := runCLI(t, []string{"--state-dir", dir, "analytics"})
	if err != nil {
		t.Fatalf("analytics: %v\nstderr:\n%s", err, stderr)
	}
	data := decode(t, out)["data"].(map[string]any)
	if _, ok := data["stats"]; !ok {
		t.Fatalf("manager report should include stats: %#v", data)
	}

	out, stderr, err = runCLI(t, []string{"--state-dir", dir, "analytics", "--markdown"})
	if err != nil {
		t.Fatalf("analytics --markdown: %v\nstderr:\n%s", err, stderr)
	}
	if !strings.Contains(string(out), "Team Total Expenses") {
		t.Fatalf("markdown:\n%s", out)
	}
}

func TestListTableFormat(t *testing.T) {
	t.Parallel()

	f := newFixture(t, pendingFrom(1, employee, "Travel", 100))
	dir := f.as(t, employee)

	out, stderr, err := runCLI(t, []string{"--state-dir", dir, "--format", "table", "list"})
	if err != nil {
		t.Fatalf("list: %v\nstderr:\n%s", err, stderr)
	}
	for _, want := range []string{"CATEGORY", "Travel", "$100.00"} {
		if !strings.Contains(string(out), want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}
}

func TestWatchPrintsRefreshes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, pendingFrom(1, employee, "Travel", 100))
	dir := f.as(t, manager)

	out, stderr, err := runCLI(t, []string{"--state-dir", dir, "watch", "--tab", "approvals", "--count", "2", "--speed", "20"})
	if err != nil {
		t.Fatalf("watch: %v\nstderr:\n%s", err, stderr)
	}
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d:\n%s", len(lines), out)
	}
	second := decode(t, []byte(lines[1]))
	if kind := second["meta"].(map[string]any)["kind"]; kind != "background" {
		t.Fatalf("second refresh should be a poll, got %v", kind)
	}
}

func TestVersion(t *testing.T) {
	t.Parallel()

	out, stderr, err := runCLI(t, []string{"--state-dir", t.TempDir(), "version"})
	if err != nil {
		t.Fatalf("version: %v\nstderr:\n%s", err, stderr)
	}
	if !strings.Contains(string(out), Version) {
		t.Fatalf("version output: %s", out)
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{errors.New("boom"), ExitError},
		{conflictError{msg: "x"}, ExitConflict},
		{failedError{msg: "x"}, ExitError},
	}
	for _, tc := range tests {
		if got := ExitCode(tc.err); got != tc.want {
			t.Fatalf("ExitCode(%v) = %d want %d", tc.err, got, tc.want)
		}
	}
}
