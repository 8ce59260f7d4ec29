package binance

import (
	"context"
	"net/url"

	"github.com/tradingflow/server/internal/domain"
	"github.com/tradingflow/server/internal/exchange"
)

// FuturesClient talks to the Binance USDⓈ-M futures REST API
// (fapi.binance.com).
type FuturesClient struct {
	*restClient
}

func (c *FuturesClient) Price(ctx context.Context, symbol string) (float64, error) {
	var ticker priceTicker
	params := url.Values{"symbol": {symbol}}
	if err := c.public(ctx, "/fapi/v2/ticker/price", params, &ticker); err != nil {
		return 0, err
	}
	return num(ticker.Price), nil
}

func (c *FuturesClient) SubmitOrder(ctx context.Context, req exchange.OrderRequest) (domain.SubmissionAck, error) {
	var ack orderAck
	if err := c.signedPost(ctx, "/fapi/v1/order", orderParams(req), &ack); err != nil {
		return domain.SubmissionAck{}, err
	}
	return domain.SubmissionAck{
		ExchangeOrderID: ack.ClientOrderID,
		Status:          ack.Status,
		Filled:          ack.Status == "FILLED",
	}, nil
}

// Positions returns every position row the exchange reports, zero or not;
// the caller projects away flat positions.
func (c *FuturesClient) Positions(ctx context.Context) ([]domain.Position, error) {
	var raw []futuresPosition
	if err := c.signedGet(ctx, "/fapi/v3/positionRisk", nil, &raw); err != nil {
		return nil, err
	}
	positions := make([]domain.Position, 0, len(raw))
	for _, p := range raw {
		positions = append(positions, domain.Position{
			Symbol:           p.Symbol,
			PositionSide:     normalizePositionSide(p.PositionSide),
			Quantity:         num(p.PositionAmt),
			LiquidationPrice: num(p.LiquidationPrice),
			UnrealizedPnl:    num(p.UnRealizedProfit),
			Amount:           num(p.Notional),
			EntryPrice:       num(p.EntryPrice),
			MarkPrice:        num(p.MarkPrice),
			UpdatedAt:        ms(p.UpdateTime),
		})
	}
	return positions, nil
}

func (c *FuturesClient) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	var raw []futuresOpenOrder
	if err := c.signedGet(ctx, "/fapi/v1/openOrders", nil, &raw); err != nil {
		return nil, err
	}
	orders := make([]domain.OpenOrder, 0, len(raw))
	for _, o := range raw {
		orders = append(orders, domain.OpenOrder{
			OrderID:        o.ClientOrderID,
			Symbol:         o.Symbol,
			Side:           normalizeSide(o.Side),
			PositionSide:   normalizePositionSide(o.PositionSide),
			Type:           normalizeFuturesOrderType(o.Type),
			Price:          optional(num(o.Price)),
			StopPrice:      optional(num(o.StopPrice)),
			Quantity:       num(o.OrigQty),
			FilledQuantity: num(o.ExecutedQty),
			Status:         normalizeStatus(o.Status),
			CreatedAt:      ms(o.Time),
			UpdatedAt:      ms(o.UpdateTime),
		})
	}
	return orders, nil
}
