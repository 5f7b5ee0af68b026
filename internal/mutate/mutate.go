// Package mutate issues conditional single-row mutations and classifies the
// result as applied, conflict, or failed.
package mutate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"expensectl/internal/api"
)

type Kind int

const (
	Applied Kind = iota + 1
	Conflict
	Failed
)

func (k Kind) String() string {
	switch k {
	case Applied:
		return "applied"
	case Conflict:
		return "conflict"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Outcome is the typed result of one conditional mutation. Network errors never
// escape as Go errors; they land here as Failed.
type Outcome struct {
	Intent Intent `json:"intent"`
	Kind   Kind   `json:"outcome"`
	Code   int    `json:"status,omitempty"`
	Reason string `json:"reason,omitempty"`
	Err    error  `json:"-"`
}

// NeedsRefresh is true when the local snapshot is known stale: the row changed
// (Applied) or somebody else changed it (Conflict).
func (o Outcome) NeedsRefresh() bool {
	return o.Kind == Applied || o.Kind == Conflict
}

// Backend is the subset of the HTTP client mutations need.
type Backend interface {
	Approve(ctx context.Context, id int64, expected decimal.Decimal) error
	Reject(ctx context.Context, id int64, expected decimal.Decimal) error
	Edit(ctx context.Context, id int64, expected, amount decimal.Decimal) error
	Delete(ctx context.Context, id int64, expected decimal.Decimal) error
}

// Mutator applies one intent. The bulk orchestrator depends on this, not on Client.
type Mutator interface {
	Apply(ctx context.Context, in Intent) Outcome
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithObserver registers a callback invoked after every outcome (metrics, journal).
func WithObserver(fn func(Outcome)) Option {
	return func(c *Client) {
		if fn != nil {
			c.observers = append(c.observers, fn)
		}
	}
}

type Client struct {
	backend   Backend
	log       *zap.Logger
	observers []func(Outcome)
}

func NewClient(b Backend, opts ...Option) *Client {
	c := &Client{backend: b, log: zap.NewNop()}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Apply sends exactly one request for in. It never retries: a conflict means the
// caller has to look at the new value and decide again.
func (c *Client) Apply(ctx context.Context, in Intent) Outcome {
	out := c.apply(ctx, in)
	fields := []zap.Field{
		zap.Stringer("op", in.Op),
		zap.Int64("id", in.ID),
		zap.String("expected", in.Expected.String()),
		zap.Stringer("outcome", out.Kind),
	}
	switch out.Kind {
	case Conflict:
		c.log.Info("mutation conflict", fields...)
	case Failed:
		c.log.Warn("mutation failed", append(fields, zap.String("reason", out.Reason))...)
	default:
		c.log.Debug("mutation applied", fields...)
	}
	for _, fn := range c.observers {
		fn(out)
	}
	return out
}

func (c *Client) apply(ctx context.Context, in Intent) Outcome {
	if err := in.validate(); err != nil {
		return failed(in, err)
	}
	var err error
	switch in.Op {
	case OpApprove:
		err = c.backend.Approve(ctx, in.ID, in.Expected)
	case OpReject:
		err = c.backend.Reject(ctx, in.ID, in.Expected)
	case OpEdit:
		err = c.backend.Edit(ctx, in.ID, in.Expected, *in.NewAmount)
	case OpDelete:
		err = c.backend.Delete(ctx, in.ID, in.Expected)
	}
	return Classify(in, err)
}

// Classify maps a backend error onto an outcome.
func Classify(in Intent, err error) Outcome {
	if err == nil {
		return Outcome{Intent: in, Kind: Applied}
	}
	if api.IsConflict(err) {
		out := Outcome{Intent: in, Kind: Conflict, Reason: "modified by others", Err: err}
		var se *api.StatusError
		if errors.As(err, &se) {
			out.Code = se.Code
		}
		return out
	}
	return failed(in, err)
}

func failed(in Intent, err error) Outcome {
	out := Outcome{Intent: in, Kind: Failed, Reason: reasonOf(err), Err: err}
	var se *api.StatusError
	if errors.As(err, &se) {
		out.Code = se.Code
	}
	return out
}

func reasonOf(err error) string {
	var se *api.StatusError
	if errors.As(err, &se) && strings.TrimSpace(se.Message) != "" {
		return se.Message
	}
	switch {
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out"
	}
	return err.Error()
}

// Describe renders a one-line user message for a single outcome.
func Describe(o Outcome) string {
	switch o.Kind {
	case Applied:
		return fmt.Sprintf("Expense %d: %s applied", o.Intent.ID, o.Intent.Op)
	case Conflict:
		return fmt.Sprintf("Expense %d was modified by others; refreshing", o.Intent.ID)
	default:
		return fmt.Sprintf("Expense %d: %s failed: %s", o.Intent.ID, o.Intent.Op, o.Reason)
	}
}
