package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"reflect"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"expensectl/internal/model"
)

// wireAmount encodes a decimal as a bare JSON number.
type wireAmount decimal.Decimal

func (a wireAmount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

type CreateRequest struct {
	Amount     decimal.Decimal `json:"-" validate:"gte=0"`
	CategoryID int64           `json:"-" validate:"required,gt=0"`
}

type createBody struct {
	Amount     wireAmount `json:"amount"`
	CategoryID int64      `json:"category_id"`
}

type preconditionBody struct {
	ExpectedAmount wireAmount `json:"expectedAmount"`
}

type editBody struct {
	Amount         wireAmount `json:"amount"`
	ExpectedAmount wireAmount `json:"expectedAmount"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(f reflect.Value) interface{} {
		if d, ok := f.Interface().(decimal.Decimal); ok {
			x, _ := d.Float64()
			return x
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// ValidationError wraps validator failures for create/edit payloads.
type ValidationError struct {
	Err error
}

func (e ValidationError) Error() string { return "invalid request: " + e.Err.Error() }
func (e ValidationError) Unwrap() error { return e.Err }

// ListExpenses fetches one page of expenses for the given list parameters.
func (c *Client) ListExpenses(ctx context.Context, params url.Values) ([]model.Expense, error) {
	var out struct {
		Expenses []model.Expense `json:"expenses"`
	}
	if err := c.do(ctx, http.MethodGet, "/expenses", params, nil, &out); err != nil {
		return nil, err
	}
	if out.Expenses == nil {
		out.Expenses = []model.Expense{}
	}
	return out.Expenses, nil
}

func (c *Client) Approve(ctx context.Context, id int64, expected decimal.Decimal) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/expenses/%d/approve", id), nil,
		preconditionBody{ExpectedAmount: wireAmount(expected)}, nil)
}

func (c *Client) Reject(ctx context.Context, id int64, expected decimal.Decimal) error {
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/expenses/%d/reject", id), nil,
		preconditionBody{ExpectedAmount: wireAmount(expected)}, nil)
}

func (c *Client) Edit(ctx context.Context, id int64, expected, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ValidationError{Err: fmt.Errorf("amount must be >= 0, got %s", amount)}
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/expenses/%d", id), nil,
		editBody{Amount: wireAmount(amount), ExpectedAmount: wireAmount(expected)}, nil)
}

// Delete carries the precondition as a query parameter; DELETE bodies are not
// reliably forwarded by proxies.
func (c *Client) Delete(ctx context.Context, id int64, expected decimal.Decimal) error {
	q := url.Values{"expectedAmount": {expected.String()}}
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/expenses/%d", id), q, nil, nil)
}

func (c *Client) Create(ctx context.Context, req CreateRequest) (*model.Expense, error) {
	if err := validate.Struct(req); err != nil {
		return nil, ValidationError{Err: err}
	}
	var raw json.RawMessage
	body := createBody{Amount: wireAmount(req.Amount), CategoryID: req.CategoryID}
	if err := c.do(ctx, http.MethodPost, "/expenses", nil, body, &raw); err != nil {
		return nil, err
	}
	return decodeCreated(raw)
}

// decodeCreated accepts both {"expense": {...}} and a bare expense object.
func decodeCreated(raw []byte) (*model.Expense, error) {
	var env struct {
		Expense *model.Expense `json:"expense"`
	}
	if err := json.Unmarshal(raw, &env); err == nil && env.Expense != nil {
		return env.Expense, nil
	}
	var e model.Expense
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, fmt.Errorf("decode created expense: %w", err)
	}
	return &e, nil
}

func (c *Client) Categories(ctx context.Context) ([]model.Category, error) {
	var out struct {
		Categories []model.Category `json:"categories"`
	}
	if err := c.do(ctx, http.MethodGet, "/categories", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Categories, nil
}
