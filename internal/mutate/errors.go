package mutate

import "fmt"

// InvalidIntentError is returned (as a Failed outcome) for intents that are
// rejected before any request is sent.
type InvalidIntentError struct {
	Op     Op
	ID     int64
	Reason string
}

func (e InvalidIntentError) Error() string {
	return fmt.Sprintf("invalid %s intent for expense %d: %s", e.Op, e.ID, e.Reason)
}
