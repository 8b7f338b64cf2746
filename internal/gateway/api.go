package gateway

import (
	"context"
	"encoding/json"
)

// Typed convenience wrappers over Invoke. Each fixes an action name and
// shapes the payload; no state or validation lives here.

// Action names understood by the gateway.
const (
	ActionBalanceGet     = "balance.get"
	ActionOrderPlace     = "order.place"
	ActionOrderCancel    = "order.cancel"
	ActionTriggerPlace   = "trigger.place"
	ActionTriggerCancel  = "trigger.cancel"
	ActionPlanCreate     = "plan.create"
	ActionPlanCancel     = "plan.cancel"
	ActionSettingsGet    = "settings.get"
	ActionSettingsUpdate = "settings.update"
	ActionUsersList      = "admin.users.list"
)

// Side of an order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Balance is the account balance snapshot.
type Balance struct {
	Currency  string  `json:"currency"`
	Available float64 `json:"available"`
	Hold      float64 `json:"hold"`
}

// OrderParams describes a market or limit order.
type OrderParams struct {
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price,omitempty"` // 0 = market order
}

// Order is the gateway's acknowledgement of a placed order.
type Order struct {
	ID       string  `json:"id"`
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side"`
	Quantity float64 `json:"quantity"`
	Price    float64 `json:"price"`
	Status   string  `json:"status"`
}

// TriggerParams describes a conditional order: executed server-side when
// the trigger price is crossed.
type TriggerParams struct {
	Symbol       string  `json:"symbol"`
	Side         Side    `json:"side"`
	Quantity     float64 `json:"quantity"`
	TriggerPrice float64 `json:"trigger_price"`
}

// PlanParams describes a recurring purchase plan.
type PlanParams struct {
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	Interval string  `json:"interval"` // e.g. "daily", "weekly"
}

// Plan is the gateway's acknowledgement of a recurring plan.
type Plan struct {
	ID       string  `json:"id"`
	Symbol   string  `json:"symbol"`
	Quantity float64 `json:"quantity"`
	Interval string  `json:"interval"`
	NextRun  string  `json:"next_run,omitempty"`
}

// User is an account visible through the admin surface.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type orderRef struct {
	OrderID string `json:"order_id"`
}

type planRef struct {
	PlanID string `json:"plan_id"`
}

// GetBalance queries the account balance.
func (c *Client) GetBalance(ctx context.Context) (*Balance, error) {
	var b Balance
	if err := c.Invoke(ActionBalanceGet, nil).Decode(ctx, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// PlaceOrder submits a buy or sell order.
func (c *Client) PlaceOrder(ctx context.Context, p OrderParams) (*Order, error) {
	var o Order
	if err := c.Invoke(ActionOrderPlace, p).Decode(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// CancelOrder cancels an open order by id.
func (c *Client) CancelOrder(ctx context.Context, orderID string) error {
	_, err := c.Invoke(ActionOrderCancel, orderRef{OrderID: orderID}).Wait(ctx)
	return err
}

// PlaceTrigger places a conditional order.
func (c *Client) PlaceTrigger(ctx context.Context, p TriggerParams) (*Order, error) {
	var o Order
	if err := c.Invoke(ActionTriggerPlace, p).Decode(ctx, &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// CancelTrigger cancels a conditional order by id.
func (c *Client) CancelTrigger(ctx context.Context, orderID string) error {
	_, err := c.Invoke(ActionTriggerCancel, orderRef{OrderID: orderID}).Wait(ctx)
	return err
}

// CreatePlan creates a recurring purchase plan.
func (c *Client) CreatePlan(ctx context.Context, p PlanParams) (*Plan, error) {
	var plan Plan
	if err := c.Invoke(ActionPlanCreate, p).Decode(ctx, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// CancelPlan cancels a recurring plan by id.
func (c *Client) CancelPlan(ctx context.Context, planID string) error {
	_, err := c.Invoke(ActionPlanCancel, planRef{PlanID: planID}).Wait(ctx)
	return err
}

// GetSettings fetches account settings as a raw key/value document.
func (c *Client) GetSettings(ctx context.Context) (map[string]json.RawMessage, error) {
	var s map[string]json.RawMessage
	if err := c.Invoke(ActionSettingsGet, nil).Decode(ctx, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateSettings applies a partial settings update.
func (c *Client) UpdateSettings(ctx context.Context, patch map[string]any) error {
	_, err := c.Invoke(ActionSettingsUpdate, patch).Wait(ctx)
	return err
}

// ListUsers lists accounts (admin only).
func (c *Client) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.Invoke(ActionUsersList, nil).Decode(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}
