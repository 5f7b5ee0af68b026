package mutate

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"expensectl/internal/model"
)

// Op is the tagged set of conditional mutations.
type Op int

const (
	OpApprove Op = iota + 1
	OpReject
	OpEdit
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpApprove:
		return "approve"
	case OpReject:
		return "reject"
	case OpEdit:
		return "edit"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

func (o Op) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func ParseOp(s string) (Op, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "approve":
		return OpApprove, nil
	case "reject":
		return OpReject, nil
	case "edit":
		return OpEdit, nil
	case "delete":
		return OpDelete, nil
	default:
		return 0, fmt.Errorf("unknown operation: %q", s)
	}
}

// Intent is CAS(id, expected, new): the target row, the amount the caller last
// observed, and for edits the replacement amount.
type Intent struct {
	Op        Op               `json:"op"`
	ID        int64            `json:"id"`
	Expected  decimal.Decimal  `json:"expectedAmount"`
	NewAmount *decimal.Decimal `json:"amount,omitempty"`
}

// IntentFor builds an intent from the row snapshot the caller is looking at.
func IntentFor(op Op, row model.Expense) Intent {
	return Intent{Op: op, ID: row.ID, Expected: row.Amount}
}

// EditIntent builds an edit intent carrying the new amount.
func EditIntent(row model.Expense, amount decimal.Decimal) Intent {
	in := IntentFor(OpEdit, row)
	in.NewAmount = &amount
	return in
}

func (in Intent) validate() error {
	switch {
	case in.ID <= 0:
		return InvalidIntentError{Op: in.Op, ID: in.ID, Reason: "missing id"}
	case in.Op < OpApprove || in.Op > OpDelete:
		return InvalidIntentError{Op: in.Op, ID: in.ID, Reason: "unknown operation"}
	case in.Expected.IsNegative():
		return InvalidIntentError{Op: in.Op, ID: in.ID, Reason: "expected amount must be non-negative"}
	case in.Op == OpEdit && in.NewAmount == nil:
		return InvalidIntentError{Op: in.Op, ID: in.ID, Reason: "new amount required"}
	case in.Op == OpEdit && in.NewAmount.IsNegative():
		return InvalidIntentError{Op: in.Op, ID: in.ID, Reason: "new amount must be non-negative"}
	}
	return nil
}
