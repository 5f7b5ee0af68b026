package statusutil

import (
	"fmt"
	"strings"

	"expensectl/internal/model"
)

// NormalizeStatus parses a user-supplied status filter. "", "all" and "any" mean
// no status filter and normalize to the empty status.
func NormalizeStatus(s string) (model.Status, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "ALL", "ANY":
		return "", nil
	case "PENDING":
		return model.StatusPending, nil
	case "APPROVED":
		return model.StatusApproved, nil
	case "REJECTED":
		return model.StatusRejected, nil
	default:
		return "", fmt.Errorf("invalid status: %q (want pending|approved|rejected)", strings.TrimSpace(s))
	}
}

// IsEndState reports whether a status can no longer be acted on.
func IsEndState(s model.Status) bool {
	return s == model.StatusApproved || s == model.StatusRejected
}

// Label is the short human label used in tables and the TUI.
func Label(s model.Status) string {
	switch s {
	case model.StatusPending:
		return "Pending"
	case model.StatusApproved:
		return "Approved"
	case model.StatusRejected:
		return "Rejected"
	case "":
		return "All"
	default:
		return string(s)
	}
}

func NormalizeRole(s string) (model.Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "EMPLOYEE", "":
		return model.RoleEmployee, nil
	case "MANAGER":
		return model.RoleManager, nil
	default:
		return "", fmt.Errorf("invalid role: %q (want employee|manager)", strings.TrimSpace(s))
	}
}

func NormalizeTab(s string) (model.Tab, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "personal", "":
		return model.TabPersonal, nil
	case "approvals":
		return model.TabApprovals, nil
	case "history":
		return model.TabHistory, nil
	default:
		return "", fmt.Errorf("invalid tab: %q (want personal|approvals|history)", strings.TrimSpace(s))
	}
}

func NormalizeSort(field, order string) (model.Sort, error) {
	out := model.DefaultSort()
	if f := strings.ToLower(strings.TrimSpace(field)); f != "" {
		ok := false
		for _, sf := range model.SortFields {
			if string(sf) == f {
				out.Field = sf
				ok = true
				break
			}
		}
		if !ok {
			return model.Sort{}, fmt.Errorf("invalid sort field: %q", f)
		}
	}
	switch strings.ToLower(strings.TrimSpace(order)) {
	case "":
	case "asc":
		out.Direction = model.Asc
	case "desc":
		out.Direction = model.Desc
	default:
		return model.Sort{}, fmt.Errorf("invalid sort order: %q", strings.TrimSpace(order))
	}
	return out, nil
}
