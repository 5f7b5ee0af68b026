// Package query derives list request parameters from the view state.
package query

import (
	"net/url"

	"expensectl/internal/model"
)

const (
	ScopePersonal = "personal"
	ScopeTeam     = "team"
)

// Param keys understood by the list endpoint.
const (
	KeyScope  = "view"
	KeyStatus = "status"
	KeyFrom   = "from"
	KeyTo     = "to"
	KeySearch = "search"
	KeySortBy = "sortBy"
	KeyOrder  = "order"
)

// Build maps (role, tab, filters, sort) to the canonical list parameters.
// It is pure: the same inputs always produce the same values.
func Build(role model.Role, tab model.Tab, f model.Filters, s model.Sort) url.Values {
	tab = model.ClampTab(role, tab)
	v := url.Values{}

	status := f.Status
	switch tab {
	case model.TabApprovals:
		v.Set(KeyScope, ScopeTeam)
		status = model.StatusPending
	case model.TabHistory:
		v.Set(KeyScope, ScopeTeam)
		if status == "" {
			status = model.StatusApproved
		}
	default:
		v.Set(KeyScope, ScopePersonal)
	}

	setIf(v, KeyStatus, string(status))
	setIf(v, KeyFrom, f.From)
	setIf(v, KeyTo, f.To)
	setIf(v, KeySearch, f.Search)
	setIf(v, KeySortBy, string(s.Field))
	setIf(v, KeyOrder, string(s.Direction))
	return v
}

// FromContext is Build over a ViewContext.
func FromContext(vc model.ViewContext) url.Values {
	return Build(vc.Role, vc.Tab, vc.Filters, vc.Sort)
}

func setIf(v url.Values, k, val string) {
	if val != "" {
		v.Set(k, val)
	}
}
