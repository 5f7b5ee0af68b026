package scheduler

import (
	"time"

	"expensectl/internal/model"
)

const (
	DefaultDebounce     = 300 * time.Millisecond
	ApprovalsPollPeriod = 10 * time.Second
	PersonalPollPeriod  = 15 * time.Second
)

// Policy is the timing for one (role, tab) pair. Poll <= 0 disables polling.
type Policy struct {
	Debounce time.Duration
	Poll     time.Duration
}

// PolicyFunc resolves the policy for a view. It is re-evaluated, and the timers
// rebuilt, on every role or tab change.
type PolicyFunc func(role model.Role, tab model.Tab) Policy

// DefaultPolicy polls the actionable manager queue fastest, the personal list
// slower, and history not at all.
func DefaultPolicy(role model.Role, tab model.Tab) Policy {
	p := Policy{Debounce: DefaultDebounce}
	switch model.ClampTab(role, tab) {
	case model.TabApprovals:
		if role == model.RoleManager {
			p.Poll = ApprovalsPollPeriod
		}
	case model.TabPersonal:
		p.Poll = PersonalPollPeriod
	}
	return p
}

// Scaled returns a PolicyFunc whose durations are multiplied by f. Used by
// `watch --speed` and tests that want real timers without real waits.
func Scaled(base PolicyFunc, f float64) PolicyFunc {
	return func(role model.Role, tab model.Tab) Policy {
		p := base(role, tab)
		p.Debounce = time.Duration(float64(p.Debounce) * f)
		p.Poll = time.Duration(float64(p.Poll) * f)
		return p
	}
}
