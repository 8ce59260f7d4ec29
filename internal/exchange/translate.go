package exchange

import "github.com/tradingflow/server/internal/domain"

// ConcreteType is an exchange-native order type name.
type ConcreteType string

const (
	TypeLimit  ConcreteType = "LIMIT"
	TypeMarket ConcreteType = "MARKET"

	// Spot stop variants.
	TypeStopLoss        ConcreteType = "STOP_LOSS"
	TypeStopLossLimit   ConcreteType = "STOP_LOSS_LIMIT"
	TypeTakeProfit      ConcreteType = "TAKE_PROFIT"
	TypeTakeProfitLimit ConcreteType = "TAKE_PROFIT_LIMIT"

	// Futures stop variants. Futures reuses TAKE_PROFIT for the limit
	// variant.
	TypeStop             ConcreteType = "STOP"
	TypeStopMarket       ConcreteType = "STOP_MARKET"
	TypeTakeProfitMarket ConcreteType = "TAKE_PROFIT_MARKET"
)

type direction int

const (
	stopEntry direction = iota
	takeProfit
)

type variant int

const (
	variantLimit variant = iota
	variantMarket
)

type stopKey struct {
	market domain.Market
	dir    direction
	vrt    variant
}

// Exchanges expose no stop-loss/take-profit flag; the concrete name encodes
// it, and the names differ between spot and futures. Keeping the full matrix
// in one table keeps the mapping exhaustive.
var stopTypes = map[stopKey]ConcreteType{
	{domain.MarketSpot, stopEntry, variantLimit}:      TypeStopLossLimit,
	{domain.MarketSpot, stopEntry, variantMarket}:     TypeStopLoss,
	{domain.MarketSpot, takeProfit, variantLimit}:     TypeTakeProfitLimit,
	{domain.MarketSpot, takeProfit, variantMarket}:    TypeTakeProfit,
	{domain.MarketFutures, stopEntry, variantLimit}:   TypeStop,
	{domain.MarketFutures, stopEntry, variantMarket}:  TypeStopMarket,
	{domain.MarketFutures, takeProfit, variantLimit}:  TypeTakeProfit,
	{domain.MarketFutures, takeProfit, variantMarket}: TypeTakeProfitMarket,
}

// Translate maps an abstract order intent to a concrete exchange order type.
// For stop intents the stop-entry/take-profit direction is inferred from the
// trigger price relative to the live price, crossed with the side: a buy
// triggering above the market enters a position, a buy triggering at or below
// it takes profit, and symmetrically for sells. Callers must validate the
// intent and have a fresh price before calling; this function does no I/O.
func Translate(market domain.Market, side domain.Side, typ domain.OrderType, stopPrice, currentPrice float64) ConcreteType {
	switch typ {
	case domain.OrderTypeLimit:
		return TypeLimit
	case domain.OrderTypeMarket:
		return TypeMarket
	}

	dir := takeProfit
	stopAbove := stopPrice > currentPrice
	if (side == domain.SideBuy) == stopAbove {
		dir = stopEntry
	}

	vrt := variantMarket
	if typ == domain.OrderTypeStopLossLimit {
		vrt = variantLimit
	}
	return stopTypes[stopKey{market, dir, vrt}]
}
