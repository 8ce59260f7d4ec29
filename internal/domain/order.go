package domain

import (
	"fmt"
	"strings"
	"time"
)

// Market selects the venue segment an order group trades on.
type Market string

const (
	MarketSpot    Market = "spot"
	MarketFutures Market = "futures"
)

func (m Market) Valid() bool {
	return m == MarketSpot || m == MarketFutures
}

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// OrderType is the abstract intent vocabulary. Stop intents carry no
// stop-loss/take-profit distinction; that is inferred at translation time
// from the trigger price relative to the live price.
type OrderType string

const (
	OrderTypeMarket         OrderType = "market"
	OrderTypeLimit          OrderType = "limit"
	OrderTypeStopLossLimit  OrderType = "stop_loss_limit"
	OrderTypeStopLossMarket OrderType = "stop_loss_market"
)

func (t OrderType) Valid() bool {
	switch t {
	case OrderTypeMarket, OrderTypeLimit, OrderTypeStopLossLimit, OrderTypeStopLossMarket:
		return true
	}
	return false
}

// RequiresPrice reports whether a limit price must be present.
func (t OrderType) RequiresPrice() bool {
	return strings.HasSuffix(string(t), "limit")
}

// RequiresStopPrice reports whether a trigger price must be present.
func (t OrderType) RequiresStopPrice() bool {
	return strings.HasPrefix(string(t), "stop_loss")
}

// OrderIntent is one abstract order leg inside a batch.
type OrderIntent struct {
	OrderID       string   `json:"orderId"`
	ParentOrderID string   `json:"parentOrderId,omitempty"`
	Side          Side     `json:"side"`
	Type          OrderType `json:"type"`
	Quantity      float64  `json:"quantity"`
	Price         *float64 `json:"price,omitempty"`
	StopPrice     *float64 `json:"stopPrice,omitempty"`
}

// Validate enforces the per-leg invariants: positive quantity, known
// side/type, price iff the type is a limit variant, stop price iff the type
// is a stop variant.
func (o OrderIntent) Validate() error {
	if o.OrderID == "" {
		return fmt.Errorf("order id is required")
	}
	if !o.Side.Valid() {
		return fmt.Errorf("order %s: invalid side %q", o.OrderID, o.Side)
	}
	if !o.Type.Valid() {
		return fmt.Errorf("order %s: invalid type %q", o.OrderID, o.Type)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("order %s: quantity must be positive", o.OrderID)
	}
	if o.Type.RequiresPrice() && (o.Price == nil || *o.Price <= 0) {
		return fmt.Errorf("order %s: type %s requires a positive price", o.OrderID, o.Type)
	}
	if o.Type.RequiresStopPrice() && (o.StopPrice == nil || *o.StopPrice <= 0) {
		return fmt.Errorf("order %s: type %s requires a positive stop price", o.OrderID, o.Type)
	}
	return nil
}

// SubList is a nested batch attached to a group. Depth is bounded: sub-lists
// never nest further.
type SubList struct {
	BatchOrders []OrderIntent `json:"batchOrders"`
}

// OrderGroup ties a market+symbol to one primary batch plus optional
// sub-lists. It exists only transiently during a submission request.
type OrderGroup struct {
	Market       Market        `json:"market"`
	Symbol       string        `json:"symbol"`
	BatchOrders  []OrderIntent `json:"batchOrders"`
	SubOrderList []SubList     `json:"subOrderList"`
}

// Validate rejects malformed trees server-side: every batch at every level
// must be non-empty and every leg must satisfy its own invariants.
func (g OrderGroup) Validate() error {
	if !g.Market.Valid() {
		return fmt.Errorf("invalid market %q", g.Market)
	}
	if g.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}
	if len(g.BatchOrders) == 0 {
		return fmt.Errorf("batch is empty")
	}
	for _, o := range g.BatchOrders {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	for i, sub := range g.SubOrderList {
		if len(sub.BatchOrders) == 0 {
			return fmt.Errorf("sub-list %d batch is empty", i)
		}
		for _, o := range sub.BatchOrders {
			if err := o.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// ValidateOrderGroups checks the whole submission payload.
func ValidateOrderGroups(groups []OrderGroup) error {
	if len(groups) == 0 {
		return fmt.Errorf("order list is empty")
	}
	for _, g := range groups {
		if err := g.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// OrderRecordStatus is the persisted order lifecycle.
type OrderRecordStatus string

const (
	OrderStatusPending   OrderRecordStatus = "pending"
	OrderStatusOpen      OrderRecordStatus = "open"
	OrderStatusFilled    OrderRecordStatus = "filled"
	OrderStatusCancelled OrderRecordStatus = "cancelled"
	OrderStatusRejected  OrderRecordStatus = "rejected"
)

// OrderRecord is a flattened, persistable order row.
type OrderRecord struct {
	ID            string            `json:"id"`
	ParentOrderID string            `json:"parentOrderId,omitempty"`
	BrokerID      string            `json:"brokerId"`
	Market        Market            `json:"market"`
	Symbol        string            `json:"symbol"`
	Side          Side              `json:"side"`
	Type          OrderType         `json:"type"`
	Quantity      float64           `json:"quantity"`
	Price         *float64          `json:"price,omitempty"`
	StopPrice     *float64          `json:"stopPrice,omitempty"`
	Status        OrderRecordStatus `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}
