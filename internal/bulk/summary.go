package bulk

import (
	"fmt"

	"go.uber.org/multierr"

	"expensectl/internal/mutate"
)

type Level string

const (
	LevelSuccess  Level = "success"
	LevelConflict Level = "conflict"
	LevelFailure  Level = "failure"
)

// Summary is the aggregate of one bulk action. Applied is always
// Total - Conflicts - Failures.
type Summary struct {
	Action    Action           `json:"action"`
	Total     int              `json:"total"`
	Applied   int              `json:"applied"`
	Conflicts int              `json:"conflicts"`
	Failures  int              `json:"failures"`
	Skipped   []int64          `json:"skipped,omitempty"`
	Outcomes  []mutate.Outcome `json:"outcomes"`

	errs error
}

func (s *Summary) add(outcomes []mutate.Outcome) {
	s.Outcomes = outcomes
	s.Total = len(outcomes)
	for _, o := range outcomes {
		switch o.Kind {
		case mutate.Conflict:
			s.Conflicts++
		case mutate.Failed:
			s.Failures++
			s.errs = multierr.Append(s.errs, fmt.Errorf("expense %d: %s", o.Intent.ID, o.Reason))
		}
	}
	s.Applied = s.Total - s.Conflicts - s.Failures
}

// Err joins the failure reasons; conflicts are not errors.
func (s Summary) Err() error { return s.errs }

func (s Summary) Level() Level {
	switch {
	case s.Conflicts > 0:
		return LevelConflict
	case s.Failures > 0:
		return LevelFailure
	default:
		return LevelSuccess
	}
}

// Message is the single user-facing notification. Conflicts outrank failures.
func (s Summary) Message() string {
	switch s.Level() {
	case LevelConflict:
		return fmt.Sprintf("%d item(s) were modified by others; list refreshed", s.Conflicts)
	case LevelFailure:
		return fmt.Sprintf("%d item(s) failed", s.Failures)
	default:
		return fmt.Sprintf("%s %d item(s)", s.Action.pastTense(), s.Applied)
	}
}
