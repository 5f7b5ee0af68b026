package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"expensectl/internal/model"
	"expensectl/internal/statusutil"
)

// ViewPrefs is the last view a user had open, restored on the next launch.
// It is best effort: callers treat missing or unreadable prefs as defaults.
type ViewPrefs struct {
	Version int           `json:"version"`
	Tab     model.Tab     `json:"tab,omitempty"`
	Sort    model.Sort    `json:"sort"`
	Filters model.Filters `json:"filters"`
}

// PrefsKey scopes prefs to one user on one server.
func PrefsKey(server string, who model.Identity) string {
	return fmt.Sprintf("%s#%d", strings.TrimRight(strings.TrimSpace(server), "/"), who.UserID)
}

// Apply overlays prefs on a role's default view context. Tabs the role may not
// open are clamped.
func (p ViewPrefs) Apply(role model.Role) model.ViewContext {
	vc := model.DefaultViewContext(role)
	if t, err := statusutil.NormalizeTab(string(p.Tab)); err == nil && p.Tab != "" {
		vc.Tab = model.ClampTab(role, t)
	}
	if so, err := statusutil.NormalizeSort(string(p.Sort.Field), string(p.Sort.Direction)); err == nil && p.Sort.Field != "" {
		vc.Sort = so
	}
	if st, err := statusutil.NormalizeStatus(string(p.Filters.Status)); err == nil {
		vc.Filters = p.Filters
		vc.Filters.Status = st
	}
	return vc
}

func PrefsFrom(vc model.ViewContext) ViewPrefs {
	return ViewPrefs{Version: 1, Tab: vc.Tab, Sort: vc.Sort, Filters: vc.Filters}
}

func (s Store) LoadViewPrefs(ctx context.Context, key string) (*ViewPrefs, error) {
	db, err := s.openSQLite(ctx)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var raw string
	err = db.QueryRowContext(ctx, `SELECT json FROM view_prefs WHERE identity_key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return &ViewPrefs{Version: 1}, nil
	}
	if err != nil {
		return nil, err
	}
	var p ViewPrefs
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		// Corrupt prefs are treated as missing.
		return &ViewPrefs{Version: 1}, nil
	}
	if p.Version == 0 {
		p.Version = 1
	}
	return &p, nil
}

func (s Store) SaveViewPrefs(ctx context.Context, key string, p *ViewPrefs) error {
	if p == nil {
		return nil
	}
	if p.Version == 0 {
		p.Version = 1
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	db, err := s.openSQLite(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.ExecContext(ctx,
		`INSERT OR REPLACE INTO view_prefs(identity_key, json, updated_at_unixms) VALUES(?, ?, ?)`,
		key, string(b), time.Now().UTC().UnixMilli())
	return err
}
