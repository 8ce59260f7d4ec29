package binance

import (
	"context"
	"net/url"

	"github.com/tradingflow/server/internal/domain"
	"github.com/tradingflow/server/internal/exchange"
)

// SpotClient talks to the Binance spot REST API (api.binance.com).
type SpotClient struct {
	*restClient
}

func (c *SpotClient) Price(ctx context.Context, symbol string) (float64, error) {
	var ticker priceTicker
	params := url.Values{"symbol": {symbol}}
	if err := c.public(ctx, "/api/v3/ticker/price", params, &ticker); err != nil {
		return 0, err
	}
	return num(ticker.Price), nil
}

func (c *SpotClient) SubmitOrder(ctx context.Context, req exchange.OrderRequest) (domain.SubmissionAck, error) {
	var ack orderAck
	if err := c.signedPost(ctx, "/api/v3/order", orderParams(req), &ack); err != nil {
		return domain.SubmissionAck{}, err
	}
	return domain.SubmissionAck{
		ExchangeOrderID: ack.ClientOrderID,
		Status:          ack.Status,
		Filled:          ack.Status == "FILLED",
	}, nil
}

func (c *SpotClient) Permissions(ctx context.Context) (exchange.Permissions, error) {
	var restrictions apiRestrictions
	if err := c.signedGet(ctx, "/sapi/v1/account/apiRestrictions", nil, &restrictions); err != nil {
		return exchange.Permissions{}, err
	}
	return exchange.Permissions{
		IPRestricted:               restrictions.IPRestrict,
		EnableReading:              restrictions.EnableReading,
		EnableSpotAndMarginTrade:   restrictions.EnableSpotAndMarginTrading,
		EnableFutures:              restrictions.EnableFutures,
		EnablePortfolioMarginTrade: restrictions.EnablePortfolioMarginTrading,
		CreatedAt:                  ms(restrictions.CreateTime),
	}, nil
}

// Holdings returns every spot balance, free plus locked. Zero-amount
// filtering is the caller's projection, not the transport's.
func (c *SpotClient) Holdings(ctx context.Context) ([]domain.Holding, error) {
	var account accountInformation
	if err := c.signedGet(ctx, "/api/v3/account", nil, &account); err != nil {
		return nil, err
	}
	holdings := make([]domain.Holding, 0, len(account.Balances))
	for _, b := range account.Balances {
		holdings = append(holdings, domain.Holding{
			Symbol: b.Asset,
			Amount: num(b.Free) + num(b.Locked),
		})
	}
	return holdings, nil
}

// WalletBalances reports the spot and USDⓈ-M futures wallet totals; other
// wallet types are dropped here since nothing downstream reads them.
func (c *SpotClient) WalletBalances(ctx context.Context) ([]domain.WalletBalance, error) {
	var wallets []walletBalance
	if err := c.signedGet(ctx, "/sapi/v1/asset/wallet/balance", nil, &wallets); err != nil {
		return nil, err
	}
	out := make([]domain.WalletBalance, 0, 2)
	for _, w := range wallets {
		switch w.WalletName {
		case "Spot":
			out = append(out, domain.WalletBalance{Account: domain.AccountTypeSpot, Balance: num(w.Balance)})
		case "USDⓈ-M Futures":
			out = append(out, domain.WalletBalance{Account: domain.AccountTypeFutures, Balance: num(w.Balance)})
		}
	}
	return out, nil
}

func (c *SpotClient) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	var raw []spotOpenOrder
	if err := c.signedGet(ctx, "/api/v3/openOrders", nil, &raw); err != nil {
		return nil, err
	}
	orders := make([]domain.OpenOrder, 0, len(raw))
	for _, o := range raw {
		orders = append(orders, domain.OpenOrder{
			OrderID:        o.ClientOrderID,
			Symbol:         o.Symbol,
			Side:           normalizeSide(o.Side),
			Type:           normalizeSpotOrderType(o.Type),
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
