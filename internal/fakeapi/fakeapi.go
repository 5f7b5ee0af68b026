// Package fakeapi is an in-memory expense backend used by tests. It implements
// the conditional-update contract the client relies on: every mutation carries
// the caller's expected amount and is rejected with 409 when the row changed.
package fakeapi

import (
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"expensectl/internal/model"
)

type Server struct {
	mu         sync.Mutex
	rows       map[int64]model.Expense
	nextID     int64
	users      map[string]model.Identity
	categories []model.Category
	inject     map[int64][]int
	hits       map[string]int
	listGate   func(n int)
	now        func() time.Time
}

func New() *Server {
	return &Server{
		rows:   map[int64]model.Expense{},
		nextID: 1,
		users:  map[string]model.Identity{},
		categories: []model.Category{
			{ID: 1, Name: "Travel"},
			{ID: 2, Name: "Meals"},
			{ID: 3, Name: "Office"},
		},
		inject: map[int64][]int{},
		hits:   map[string]int{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AddUser registers a bearer token for an identity.
func (s *Server) AddUser(token string, who model.Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[token] = who
}

// Seed inserts a row as-is, assigning an id when it has none.
func (s *Server) Seed(e model.Expense) model.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == 0 {
		e.ID = s.nextID
	}
	if e.ID >= s.nextID {
		s.nextID = e.ID + 1
	}
	if e.Status == "" {
		e.Status = model.StatusPending
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	s.rows[e.ID] = e
	return e
}

func (s *Server) Get(id int64) (model.Expense, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	return e, ok
}

// Update changes a row out of band, as another session would.
func (s *Server) Update(id int64, fn func(*model.Expense)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.rows[id]
	if !ok {
		return
	}
	fn(&e)
	s.rows[id] = e
}

// Inject queues status codes returned by the next mutations on id, before any
// precondition check runs.
func (s *Server) Inject(id int64, codes ...int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inject[id] = append(s.inject[id], codes...)
}

// OnList is called (outside the lock) with the 1-based list call number before
// each list response is written. Tests use it to hold responses back.
func (s *Server) OnList(fn func(n int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listGate = fn
}

// Hits returns how many times a route key ("list", "approve", ...) was served.
func (s *Server) Hits(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[route]
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.auth)
	r.Get("/expenses", s.list)
	r.Post("/expenses", s.create)
	r.Patch("/expenses/{id}/approve", s.review(model.StatusApproved, "approve"))
	r.Patch("/expenses/{id}/reject", s.review(model.StatusRejected, "reject"))
	r.Put("/expenses/{id}", s.edit)
	r.Delete("/expenses/{id}", s.remove)
	r.Get("/categories", s.listCategories)
	r.Route("/analytics", func(a chi.Router) {
		a.Get("/total", s.total)
		a.Get("/current-month", s.currentMonth)
		a.Get("/monthly", s.monthly)
		a.Get("/category", s.byCategory)
		a.Get("/stats", s.stats)
	})
	return r
}

type ctxKey struct{}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		who, ok := s.users[tok]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), who)))
	})
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	who := identityFrom(r.Context())
	q := r.URL.Query()

	s.mu.Lock()
	s.hits["list"]++
	n := s.hits["list"]
	gate := s.listGate
	out := make([]model.Expense, 0, len(s.rows))
	for _, e := range s.rows {
		if !matches(e, who, q) {
			continue
		}
		out = append(out, e)
	}
	s.mu.Unlock()

	sortRows(out, q.Get("sortBy"), q.Get("order"))
	if gate != nil {
		gate(n)
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": out})
}

func matches(e model.Expense, who model.Identity, q map[string][]string) bool {
	get := func(k string) string {
		if v := q[k]; len(v) > 0 {
			return v[0]
		}
		return ""
	}
	switch get("view") {
	case "team":
		if who.Role != model.RoleManager {
			return false
		}
	default:
		if e.UserID != who.UserID {
			return false
		}
	}
	if st := get("status"); st != "" && string(e.Status) != st {
		return false
	}
	day := e.CreatedAt.UTC().Format("2006-01-02")
	if from := get("from"); from != "" && day < from {
		return false
	}
	if to := get("to"); to != "" && day > to {
		return false
	}
	if search := strings.ToLower(strings.TrimSpace(get("search"))); search != "" {
		hay := strings.ToLower(e.Category + " " + e.OwnerEmail)
		if !strings.Contains(hay, search) {
			return false
		}
	}
	return true
}

func sortRows(rows []model.Expense, field, order string) {
	less := func(a, b model.Expense) bool { return a.CreatedAt.Before(b.CreatedAt) }
	switch field {
	case "category":
		less = func(a, b model.Expense) bool { return a.Category < b.Category }
	case "amount":
		less = func(a, b model.Expense) bool { return a.Amount.LessThan(b.Amount) }
	case "status":
		less = func(a, b model.Expense) bool { return a.Status < b.Status }
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if order == "asc" {
			return less(rows[i], rows[j]) || (!less(rows[j], rows[i]) && rows[i].ID < rows[j].ID)
		}
		return less(rows[j], rows[i]) || (!less(rows[i], rows[j]) && rows[i].ID > rows[j].ID)
	})
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	who := identityFrom(r.Context())
	var body struct {
		Amount     decimal.Decimal `json:"amount"`
		CategoryID int64           `json:"category_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if body.Amount.IsNegative() {
		writeError(w, http.StatusUnprocessableEntity, "amount must be non-negative")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.hits["create"]++
	var cat *model.Category
	for i := range s.categories {
		if s.categories[i].ID == body.CategoryID {
			cat = &s.categories[i]
		}
	}
	if cat == nil {
		writeError(w, http.StatusUnprocessableEntity, "unknown category")
		return
	}
	e := model.Expense{
		ID:         s.nextID,
		UserID:     who.UserID,
		OwnerEmail: who.Email,
		CategoryID: cat.ID,
		Category:   cat.Name,
		Amount:     body.Amount,
		Status:     model.StatusPending,
		CreatedAt:  s.now(),
	}
	s.nextID++
	s.rows[e.ID] = e
	writeJSON(w, http.StatusCreated, map[string]any{"expense": e})
}

type precondition struct {
	ExpectedAmount *decimal.Decimal `json:"expectedAmount"`
	Amount         *decimal.Decimal `json:"amount"`
}

// guard runs the shared preamble of every conditional mutation with s.mu held.
// It returns the row, or writes an error response and returns false.
func (s *Server) guard(w http.ResponseWriter, route string, id int64, expected *decimal.Decimal) (model.Expense, bool) {
	s.hits[route]++
	if q := s.inject[id]; len(q) > 0 {
		code := q[0]
		s.inject[id] = q[1:]
		writeError(w, code, http.StatusText(code))
		return model.Expense{}, false
	}
	e, ok := s.rows[id]
	if !ok {
		writeError(w, http.StatusNotFound, "expense not found")
		return model.Expense{}, false
	}
	if expected == nil {
		writeError(w, http.StatusBadRequest, "expectedAmount required")
		return model.Expense{}, false
	}
	if e.Status != model.StatusPending || !e.Amount.Equal(*expected) {
		writeError(w, http.StatusConflict, "expense was modified by another user")
		return model.Expense{}, false
	}
	return e, true
}

func (s *Server) review(to model.Status, route string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		who := identityFrom(r.Context())
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		var body precondition
		_ = json.NewDecoder(r.Body).Decode(&body)

		s.mu.Lock()
		defer s.mu.Unlock()
		if who.Role != model.RoleManager {
			s.hits[route]++
			writeError(w, http.StatusForbidden, "managers only")
			return
		}
		e, ok := s.guard(w, route, id, body.ExpectedAmount)
		if !ok {
			return
		}
		if e.UserID == who.UserID {
			writeError(w, http.StatusForbidden, "cannot review own expense")
			return
		}
		e.Status = to
		s.rows[id] = e
		writeJSON(w, http.StatusOK, map[string]any{"expense": e})
	}
}

func (s *Server) edit(w http.ResponseWriter, r *http.Request) {
	who := identityFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body precondition
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.guard(w, "edit", id, body.ExpectedAmount)
	if !ok {
		return
	}
	if e.UserID != who.UserID {
		writeError(w, http.StatusForbidden, "owner only")
		return
	}
	if body.Amount == nil || body.Amount.IsNegative() {
		writeError(w, http.StatusUnprocessableEntity, "amount must be non-negative")
		return
	}
	e.Amount = *body.Amount
	s.rows[id] = e
	writeJSON(w, http.StatusOK, map[string]any{"expense": e})
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	who := identityFrom(r.Context())
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var expected *decimal.Decimal
	if raw := r.URL.Query().Get("expectedAmount"); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid expectedAmount")
			return
		}
		expected = &d
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.guard(w, "delete", id, expected)
	if !ok {
		return
	}
	if e.UserID != who.UserID {
		writeError(w, http.StatusForbidden, "owner only")
		return
	}
	delete(s.rows, id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"categories": s.categories})
}

// scoped returns the rows analytics aggregate over: the whole team for
// managers, only approved own rows for employees.
func (s *Server) scoped(who model.Identity) []model.Expense {
	out := []model.Expense{}
	for _, e := range s.rows {
		if who.Role == model.RoleManager || (e.UserID == who.UserID && e.Status == model.StatusApproved) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Server) total(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sum := decimal.Zero
	for _, e := range s.scoped(identityFrom(r.Context())) {
		sum = sum.Add(e.Amount)
	}
	writeJSON(w, http.StatusOK, map[string]any{"totalExpense": sum})
}

func (s *Server) currentMonth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	month := s.now().Format("2006-01")
	sum := decimal.Zero
	for _, e := range s.scoped(identityFrom(r.Context())) {
		if e.CreatedAt.UTC().Format("2006-01") == month {
			sum = sum.Add(e.Amount)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"monthlyExpense": sum})
}

func (s *Server) monthly(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	by := map[string]decimal.Decimal{}
	for _, e := range s.scoped(identityFrom(r.Context())) {
		k := e.CreatedAt.UTC().Format("2006-01")
		by[k] = by[k].Add(e.Amount)
	}
	out := make([]model.MonthlyPoint, 0, len(by))
	for k, v := range by {
		out = append(out, model.MonthlyPoint{Month: k, TotalExpense: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

func (s *Server) byCategory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	by := map[string]decimal.Decimal{}
	for _, e := range s.scoped(identityFrom(r.Context())) {
		by[e.Category] = by[e.Category].Add(e.Amount)
	}
	out := make([]model.CategoryTotal, 0, len(by))
	for k, v := range by {
		out = append(out, model.CategoryTotal{Category: k, TotalExpense: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	who := identityFrom(r.Context())
	if who.Role != model.RoleManager {
		writeError(w, http.StatusForbidden, "managers only")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var st model.Stats
	for _, e := range s.rows {
		st.Total++
		switch e.Status {
		case model.StatusApproved:
			st.Approved++
		case model.StatusRejected:
			st.Rejected++
		default:
			st.Pending++
		}
	}
	// Counts go out as strings, the way aggregate queries usually return them.
	writeJSON(w, http.StatusOK, map[string]string{
		"total":    strconv.FormatInt(st.Total, 10),
		"approved": strconv.FormatInt(st.Approved, 10),
		"rejected": strconv.FormatInt(st.Rejected, 10),
		"pending":  strconv.FormatInt(st.Pending, 10),
	})
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"message": msg})
}
