package model

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

type Role string

const (
	RoleEmployee Role = "EMPLOYEE"
	RoleManager  Role = "MANAGER"
)

// Tab is the active list view. Employees only ever see TabPersonal.
type Tab string

const (
	TabPersonal  Tab = "personal"
	TabApprovals Tab = "approvals"
	TabHistory   Tab = "history"
)

// Tabs returns the tabs available to a role, in display order.
func Tabs(r Role) []Tab {
	if r == RoleManager {
		return []Tab{TabPersonal, TabApprovals, TabHistory}
	}
	return []Tab{TabPersonal}
}

// ClampTab pins employees to the personal tab and maps unknown tabs to personal.
func ClampTab(r Role, t Tab) Tab {
	for _, ok := range Tabs(r) {
		if ok == t {
			return t
		}
	}
	return TabPersonal
}

// Expense is a server-owned record. Clients hold read-only snapshots that are
// replaced wholesale on every refresh.
type Expense struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	OwnerEmail string          `json:"email,omitempty"`
	CategoryID int64           `json:"category_id,omitempty"`
	Category   string          `json:"category"`
	Amount     decimal.Decimal `json:"amount"`
	Status     Status          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Identity is the current session user. It is passed explicitly to anything
// that needs to know "who am I" rather than read from ambient state.
type Identity struct {
	UserID int64  `json:"userId"`
	Email  string `json:"email,omitempty"`
	Role   Role   `json:"role"`
}

func (id Identity) IsManager() bool { return id.Role == RoleManager }

type Filters struct {
	Status Status `json:"status,omitempty"`
	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Search string `json:"search,omitempty"`
}

// Active reports whether any filter is set.
func (f Filters) Active() bool {
	return f.Status != "" || f.From != "" || f.To != "" || strings.TrimSpace(f.Search) != ""
}

// With returns a copy of f with one filter replaced. Unknown keys are ignored.
func (f Filters) With(key, value string) Filters {
	switch strings.ToLower(strings.TrimSpace(key)) {
	case "status":
		f.Status = Status(strings.ToUpper(strings.TrimSpace(value)))
	case "from":
		f.From = strings.TrimSpace(value)
	case "to":
		f.To = strings.TrimSpace(value)
	case "search":
		f.Search = value
	}
	return f
}

type SortField string

const (
	SortCategory SortField = "category"
	SortAmount   SortField = "amount"
	SortStatus   SortField = "status"
	SortDate     SortField = "date"
)

var SortFields = []SortField{SortCategory, SortAmount, SortStatus, SortDate}

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type Sort struct {
	Field     SortField `json:"sortBy"`
	Direction Direction `json:"order"`
}

func DefaultSort() Sort { return Sort{Field: SortDate, Direction: Desc} }

// Toggle flips the direction when field is already active; a new field starts descending.
func (s Sort) Toggle(field SortField) Sort {
	if s.Field == field {
		if s.Direction == Asc {
			s.Direction = Desc
		} else {
			s.Direction = Asc
		}
		return s
	}
	return Sort{Field: field, Direction: Desc}
}

// ViewContext is everything that shapes a list request for one view instance.
type ViewContext struct {
	Role    Role    `json:"role"`
	Tab     Tab     `json:"tab"`
	Filters Filters `json:"filters"`
	Sort    Sort    `json:"sort"`
}

func DefaultViewContext(r Role) ViewContext {
	return ViewContext{Role: r, Tab: TabPersonal, Sort: DefaultSort()}
}

type MonthlyPoint struct {
	Month        string          `json:"month"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
}

type CategoryTotal struct {
	Category     string          `json:"category"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
}

// Stats is the manager-only approval breakdown.
type Stats struct {
	Total    int64 `json:"total"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
	Pending  int64 `json:"pending"`
}
