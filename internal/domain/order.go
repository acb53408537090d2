package domain

import (
	"fmt"
	"strings"
	"time"
)

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType is market or limit.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// OrderStatus tracks the order lifecycle: pending, then exactly one of
// filled, canceled or rejected.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusCanceled OrderStatus = "canceled"
	OrderStatusRejected OrderStatus = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected:
		return true
	}
	return false
}

// ParseOrderStatus maps an upstream or query status onto the local
// lifecycle. Anything unrecognized counts as still working.
func ParseOrderStatus(s string) OrderStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "filled", "executed", "complete", "completed":
		return OrderStatusFilled
	case "canceled", "cancelled":
		return OrderStatusCanceled
	case "rejected", "failed", "expired":
		return OrderStatusRejected
	}
	return OrderStatusPending
}

// Order is a locally recorded order attempt.
type Order struct {
	ID               string      `json:"id"`
	UserID           string      `json:"userId"`
	BondID           string      `json:"bondId"`
	Side             OrderSide   `json:"side"`
	OrderType        OrderType   `json:"orderType"`
	Quantity         Num         `json:"quantity"`
	LimitPrice       Num         `json:"limitPrice"`
	Status           OrderStatus `json:"status"`
	FilledQuantity   Num         `json:"filledQuantity"`
	AverageFillPrice Num         `json:"averageFillPrice"`
	UpstreamOrderID  string      `json:"upstreamOrderId,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        time.Time   `json:"updatedAt"`
	FilledAt         *time.Time  `json:"filledAt,omitempty"`
	CanceledAt       *time.Time  `json:"canceledAt,omitempty"`
}

// OrderPatch carries a partial order update.
type OrderPatch struct {
	Status           *OrderStatus
	FilledQuantity   *Num
	AverageFillPrice *Num
	UpstreamOrderID  *string
}

// Apply merges p onto o at time now. A terminal order only accepts patches
// that leave its status unchanged.
func (p OrderPatch) Apply(o Order, now time.Time) (Order, error) {
	if p.Status != nil && *p.Status != o.Status {
		if o.Status.Terminal() {
			return o, fmt.Errorf("%w: %s is %s", ErrTerminalOrder, o.ID, o.Status)
		}
		o.Status = *p.Status
		switch o.Status {
		case OrderStatusFilled:
			o.FilledAt = &now
		case OrderStatusCanceled:
			o.CanceledAt = &now
		}
	}
	if p.FilledQuantity != nil {
		o.FilledQuantity = *p.FilledQuantity
	}
	if p.AverageFillPrice != nil {
		o.AverageFillPrice = *p.AverageFillPrice
	}
	if p.UpstreamOrderID != nil {
		o.UpstreamOrderID = *p.UpstreamOrderID
	}
	o.UpdatedAt = now
	return o, nil
}

// OrderRequest is the input for submitting an order.
type OrderRequest struct {
	UserID     string    `json:"userId"`
	BondID     string    `json:"bondId"`
	Side       OrderSide `json:"side"`
	OrderType  OrderType `json:"orderType"`
	Quantity   Num       `json:"quantity"`
	LimitPrice Num       `json:"limitPrice"`
}

// Validate rejects requests that must never reach the upstream API.
func (r OrderRequest) Validate() error {
	if strings.TrimSpace(r.BondID) == "" {
		return fmt.Errorf("%w: bondId is required", ErrInvalidInput)
	}
	if !r.Quantity.Positive() {
		return fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidInput)
	}
	switch r.Side {
	case OrderSideBuy, OrderSideSell:
	default:
		return fmt.Errorf("%w: side must be buy or sell", ErrInvalidInput)
	}
	switch r.OrderType {
	case OrderTypeMarket:
	case OrderTypeLimit:
		if !r.LimitPrice.Positive() {
			return fmt.Errorf("%w: limit orders need a positive limitPrice", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: orderType must be market or limit", ErrInvalidInput)
	}
	return nil
}

// UpstreamOrder is the upstream API's view of an order.
type UpstreamOrder struct {
	ID               string
	InstrumentID     string
	Side             OrderSide
	Status           OrderStatus
	Quantity         Num
	FilledQuantity   Num
	AverageFillPrice Num
}
