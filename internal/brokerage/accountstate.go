package brokerage

import (
	"context"
	"fmt"
	"time"

	"github.com/tradingflow/server/internal/domain"
	"github.com/tradingflow/server/internal/exchange"
)

// Account-state snapshots are cached for 30 seconds: exchange rate limits
// make per-request live queries infeasible, so reads inside the window must
// never re-query the exchange. Daily balances are cached per calendar day
// for 30 days; a past day's balance never changes.
const (
	snapshotTTL     = 30 * time.Second
	dailyBalanceTTL = 30 * 24 * time.Hour
)

func holdingsKey(brokerID string) string {
	return fmt.Sprintf("broker:%s:holdings", brokerID)
}

func positionsKey(brokerID string) string {
	return fmt.Sprintf("broker:%s:positions", brokerID)
}

func openOrdersKey(brokerID string, market domain.Market) string {
	return fmt.Sprintf("broker:%s:%s:open_orders", brokerID, market)
}

func dailyBalanceKey(brokerID, date string) string {
	return fmt.Sprintf("broker:%s:balance:%s", brokerID, date)
}

func (c *Coordinator) brokerFactory(ctx context.Context, brokerID string) (*domain.Broker, exchange.Factory, error) {
	broker, err := c.GetBroker(ctx, brokerID)
	if err != nil {
		return nil, nil, err
	}
	factory, err := c.factoryFor(broker.Exchange)
	if err != nil {
		return nil, nil, err
	}
	return broker, factory, nil
}

// Holdings returns the broker's non-zero spot balances, cache-aside.
func (c *Coordinator) Holdings(ctx context.Context, brokerID string) ([]domain.Holding, error) {
	var cached []domain.Holding
	if hit, err := c.cache.Get(holdingsKey(brokerID), &cached); err != nil {
		return nil, err
	} else if hit {
		return cached, nil
	}

	broker, factory, err := c.brokerFactory(ctx, brokerID)
	if err != nil {
		return nil, err
	}
	all, err := factory.Spot(credsOf(broker)).Holdings(ctx)
	if err != nil {
		return nil, upstream("holdings", err)
	}
	holdings := make([]domain.Holding, 0, len(all))
	for _, h := range all {
		if h.Amount != 0 {
			holdings = append(holdings, h)
		}
	}
	if err := c.cache.Set(holdingsKey(brokerID), holdings, snapshotTTL); err != nil {
		return nil, err
	}
	return holdings, nil
}

// Positions returns the broker's non-flat futures positions, cache-aside.
func (c *Coordinator) Positions(ctx context.Context, brokerID string) ([]domain.Position, error) {
	var cached []domain.Position
	if hit, err := c.cache.Get(positionsKey(brokerID), &cached); err != nil {
		return nil, err
	} else if hit {
		return cached, nil
	}

	broker, factory, err := c.brokerFactory(ctx, brokerID)
	if err != nil {
		return nil, err
	}
	all, err := factory.Futures(credsOf(broker)).Positions(ctx)
	if err != nil {
		return nil, upstream("positions", err)
	}
	positions := make([]domain.Position, 0, len(all))
	for _, p := range all {
		if p.Quantity != 0 {
			positions = append(positions, p)
		}
	}
	if err := c.cache.Set(positionsKey(brokerID), positions, snapshotTTL); err != nil {
		return nil, err
	}
	return positions, nil
}

// OpenOrders returns the broker's resting orders on one market, cache-aside.
func (c *Coordinator) OpenOrders(ctx context.Context, brokerID string, market domain.Market) ([]domain.OpenOrder, error) {
	if !market.Valid() {
		return nil, validationf("unsupported market %q", market)
	}
	key := openOrdersKey(brokerID, market)
	var cached []domain.OpenOrder
	if hit, err := c.cache.Get(key, &cached); err != nil {
		return nil, err
	} else if hit {
		return cached, nil
	}

	broker, factory, err := c.brokerFactory(ctx, brokerID)
	if err != nil {
		return nil, err
	}
	creds := credsOf(broker)
	var orders []domain.OpenOrder
	if market == domain.MarketSpot {
		orders, err = factory.Spot(creds).OpenOrders(ctx)
	} else {
		orders, err = factory.Futures(creds).OpenOrders(ctx)
	}
	if err != nil {
		return nil, upstream("open orders", err)
	}
	if orders == nil {
		orders = []domain.OpenOrder{}
	}
	if err := c.cache.Set(key, orders, snapshotTTL); err != nil {
		return nil, err
	}
	return orders, nil
}

func credsOf(b *domain.Broker) exchange.Credentials {
	return exchange.Credentials{Key: b.APIKey, Secret: b.APISecret}
}
