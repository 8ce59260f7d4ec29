package domain

import "time"

// Holding is one non-zero spot balance, free plus locked.
type Holding struct {
	Symbol string  `json:"symbol"`
	Amount float64 `json:"amount"`
}

// PositionSide is the hedge-mode side of a futures position.
type PositionSide string

const (
	PositionSideBoth  PositionSide = "both"
	PositionSideLong  PositionSide = "long"
	PositionSideShort PositionSide = "short"
)

// Position is a normalized futures position snapshot.
type Position struct {
	Symbol           string       `json:"symbol"`
	PositionSide     PositionSide `json:"positionSide"`
	Quantity         float64      `json:"quantity"`
	LiquidationPrice float64      `json:"liquidationPrice"`
	UnrealizedPnl    float64      `json:"unrealizedPnl"`
	Amount           float64      `json:"amount"`
	EntryPrice       float64      `json:"entryPrice"`
	MarkPrice        float64      `json:"markPrice"`
	UpdatedAt        time.Time    `json:"updatedAt"`
}

// OpenOrder is a normalized resting exchange order. Price and StopPrice are
// omitted when the exchange reports them as zero.
type OpenOrder struct {
	OrderID        string       `json:"orderId"`
	Symbol         string       `json:"symbol"`
	Side           Side         `json:"side"`
	PositionSide   PositionSide `json:"positionSide,omitempty"`
	Type           string       `json:"type"`
	Price          *float64     `json:"price,omitempty"`
	StopPrice      *float64     `json:"stopPrice,omitempty"`
	Quantity       float64      `json:"quantity"`
	FilledQuantity float64      `json:"filledQuantity"`
	Status         string       `json:"status"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// AccountType distinguishes the wallets a daily balance entry covers.
type AccountType string

const (
	AccountTypeSpot    AccountType = "spot"
	AccountTypeFutures AccountType = "futures"
)

// WalletBalance is one wallet's balance at snapshot time.
type WalletBalance struct {
	Account AccountType `json:"account"`
	Balance float64     `json:"balance"`
}

// DailyBalance is one day in a balance history series. Balance is nil when
// no snapshot was cached for that day; a missing day is never fabricated as
// zero.
type DailyBalance struct {
	Date    string          `json:"date"`
	Balance []WalletBalance `json:"balance"`
}
