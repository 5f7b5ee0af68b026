package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"expensectl/internal/mutate"
)

// JournalEntry records one mutation outcome as seen by this client. Bulk
// actions share a BatchID.
type JournalEntry struct {
	ID        string           `json:"id"`
	BatchID   string           `json:"batchId,omitempty"`
	Op        string           `json:"op"`
	ExpenseID int64            `json:"expenseId"`
	Expected  decimal.Decimal  `json:"expectedAmount"`
	NewAmount *decimal.Decimal `json:"amount,omitempty"`
	Outcome   string           `json:"outcome"`
	Code      int              `json:"status,omitempty"`
	Reason    string           `json:"reason,omitempty"`
	ActorID   int64            `json:"actorId,omitempty"`
	At        time.Time        `json:"at"`
}

// EntryFor builds a journal entry from an outcome.
func EntryFor(o mutate.Outcome, actorID int64, batchID string) JournalEntry {
	return JournalEntry{
		ID:        uuid.NewString(),
		BatchID:   batchID,
		Op:        o.Intent.Op.String(),
		ExpenseID: o.Intent.ID,
		Expected:  o.Intent.Expected,
		NewAmount: o.Intent.NewAmount,
		Outcome:   o.Kind.String(),
		Code:      o.Code,
		Reason:    o.Reason,
		ActorID:   actorID,
		At:        time.Now().UTC(),
	}
}

func (s Store) AppendJournal(ctx context.Context, entries ...JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range entries {
		if strings.TrimSpace(e.ID) == "" {
			e.ID = uuid.NewString()
		}
		if e.At.IsZero() {
			e.At = time.Now().UTC()
		}
		var newAmount sql.NullString
		if e.NewAmount != nil {
			newAmount = sql.NullString{String: e.NewAmount.String(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO mutation_journal(
				entry_id, batch_id, op, expense_id, expected_amount, new_amount,
				outcome, status_code, reason, actor_id, created_at_unixms
			) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.BatchID, e.Op, e.ExpenseID, e.Expected.String(), newAmount,
			e.Outcome, e.Code, e.Reason, e.ActorID, e.At.UnixMilli()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// JournalFilter narrows ListJournal. Zero values match everything.
type JournalFilter struct {
	ExpenseID int64
	Outcome   string
	Limit     int
}

// ListJournal returns entries newest first.
func (s Store) ListJournal(ctx context.Context, f JournalFilter) ([]JournalEntry, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	q := `SELECT entry_id, batch_id, op, expense_id, expected_amount, new_amount,
	             outcome, status_code, reason, actor_id, created_at_unixms
	      FROM mutation_journal`
	var where []string
	var args []any
	if f.ExpenseID > 0 {
		where = append(where, "expense_id = ?")
		args = append(args, f.ExpenseID)
	}
	if o := strings.TrimSpace(f.Outcome); o != "" {
		where = append(where, "outcome = ?")
		args = append(args, strings.ToLower(o))
	}
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at_unixms DESC, rowid DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []JournalEntry{}
	for rows.Next() {
		var (
			e         JournalEntry
			expected  string
			newAmount sql.NullString
			atMs      int64
		)
		if err := rows.Scan(&e.ID, &e.BatchID, &e.Op, &e.ExpenseID, &expected, &newAmount,
			&e.Outcome, &e.Code, &e.Reason, &e.ActorID, &atMs); err != nil {
			return nil, err
		}
		if e.Expected, err = decimal.NewFromString(expected); err != nil {
			return nil, err
		}
		if newAmount.Valid {
			d, err := decimal.NewFromString(newAmount.String)
			if err != nil {
				return nil, err
			}
			e.NewAmount = &d
		}
		e.At = time.UnixMilli(atMs).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
