// Package brokerage orchestrates credential validation, market routing,
// order submission and persistence for user-attached exchange brokers, and
// serves cached account-state views.
package brokerage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tradingflow/server/internal/domain"
	"github.com/tradingflow/server/internal/exchange"
	"github.com/tradingflow/server/pkg/logger"
)

// StateCache is the key-value store holding derived account snapshots. The
// production implementation is statecache.Store; tests substitute fakes.
type StateCache interface {
	Get(key string, out any) (bool, error)
	Set(key string, v any, ttl time.Duration) error
	GetMany(keys []string) ([][]byte, error)
}

// Coordinator owns the write path (brokers, order submission) and the cached
// read path. All dependencies are injected; it holds no global state.
type Coordinator struct {
	store     *Store
	cache     StateCache
	exchanges map[domain.Exchange]exchange.Factory
}

func NewCoordinator(store *Store, cache StateCache, factories map[domain.Exchange]exchange.Factory) *Coordinator {
	return &Coordinator{store: store, cache: cache, exchanges: factories}
}

func (c *Coordinator) factoryFor(exch domain.Exchange) (exchange.Factory, error) {
	if !exch.Valid() {
		return nil, validationf("unknown exchange %q", exch)
	}
	factory, ok := c.exchanges[exch]
	if !ok {
		return nil, validationf("exchange %q is not supported", exch)
	}
	return factory, nil
}

// checkPermissions queries the exchange for the key pair's capabilities and
// enforces the acceptance gate: reading, spot-and-margin trading and futures
// trading enabled, portfolio-margin trading disabled.
func (c *Coordinator) checkPermissions(ctx context.Context, factory exchange.Factory, creds exchange.Credentials) (exchange.Permissions, error) {
	perms, err := factory.Spot(creds).Permissions(ctx)
	if err != nil {
		return exchange.Permissions{}, upstream("permissions", err)
	}
	ok := perms.EnableReading &&
		perms.EnableSpotAndMarginTrade &&
		perms.EnableFutures &&
		!perms.EnablePortfolioMarginTrade
	if !ok {
		return exchange.Permissions{}, &CredentialError{Reason: "api key lacks required permissions (reading, spot and margin trading, futures) or has portfolio margin enabled"}
	}
	return perms, nil
}

// RegisterBroker validates the credential pair against the exchange and
// persists the broker on acceptance. Permission rejections are client
// faults; nothing is stored on any failure path.
func (c *Coordinator) RegisterBroker(ctx context.Context, userID string, exch domain.Exchange, label, apiKey, apiSecret string) (*domain.Broker, error) {
	label = strings.TrimSpace(label)
	if label == "" || apiKey == "" || apiSecret == "" {
		return nil, validationf("label, api key and api secret are required")
	}
	factory, err := c.factoryFor(exch)
	if err != nil {
		return nil, err
	}

	perms, err := c.checkPermissions(ctx, factory, exchange.Credentials{Key: apiKey, Secret: apiSecret})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	broker := domain.Broker{
		ID:                   uuid.NewString(),
		UserID:               userID,
		Exchange:             exch,
		Label:                label,
		APIKey:               apiKey,
		APISecret:            apiSecret,
		Status:               domain.BrokerStatusOK,
		IPRestricted:         perms.IPRestricted,
		CredentialsCreatedAt: perms.CreatedAt,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if err := c.store.insertBroker(ctx, broker); err != nil {
		if isUniqueViolation(err) {
			return nil, validationf("a broker with this label or credential pair already exists")
		}
		return nil, err
	}
	logger.WithFields(logrus.Fields{"broker": broker.ID, "exchange": exch}).Info("broker registered")
	return &broker, nil
}

// UpdateBroker applies a label-only update without touching the exchange
// when the credential fields are unchanged. Any credential change re-runs
// the full permission check first; on rejection the stored broker keeps its
// prior valid state.
func (c *Coordinator) UpdateBroker(ctx context.Context, brokerID string, exch domain.Exchange, label, apiKey, apiSecret string) error {
	label = strings.TrimSpace(label)
	if label == "" || apiKey == "" || apiSecret == "" {
		return validationf("label, api key and api secret are required")
	}
	current, err := c.store.getBroker(ctx, brokerID)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrBrokerNotFound
	}

	credentialsChanged := exch != current.Exchange || apiKey != current.APIKey || apiSecret != current.APISecret
	if !credentialsChanged {
		return c.store.updateBrokerLabel(ctx, brokerID, label)
	}

	factory, err := c.factoryFor(exch)
	if err != nil {
		return err
	}
	perms, err := c.checkPermissions(ctx, factory, exchange.Credentials{Key: apiKey, Secret: apiSecret})
	if err != nil {
		return err
	}
	updated := *current
	updated.Exchange = exch
	updated.Label = label
	updated.APIKey = apiKey
	updated.APISecret = apiSecret
	updated.Status = domain.BrokerStatusOK
	updated.IPRestricted = perms.IPRestricted
	updated.CredentialsCreatedAt = perms.CreatedAt
	if err := c.store.updateBrokerCredentials(ctx, updated); err != nil {
		if isUniqueViolation(err) {
			return validationf("a broker with this label or credential pair already exists")
		}
		return err
	}
	logger.WithField("broker", brokerID).Info("broker credentials rotated")
	return nil
}

// GetBroker resolves a broker or reports ErrBrokerNotFound.
func (c *Coordinator) GetBroker(ctx context.Context, brokerID string) (*domain.Broker, error) {
	broker, err := c.store.getBroker(ctx, brokerID)
	if err != nil {
		return nil, err
	}
	if broker == nil {
		return nil, ErrBrokerNotFound
	}
	return broker, nil
}

// ListBrokers returns the caller's brokers.
func (c *Coordinator) ListBrokers(ctx context.Context, userID string) ([]domain.Broker, error) {
	return c.store.listBrokers(ctx, userID)
}

// DeleteBroker removes the broker; its order rows cascade.
func (c *Coordinator) DeleteBroker(ctx context.Context, brokerID string) error {
	if _, err := c.GetBroker(ctx, brokerID); err != nil {
		return err
	}
	return c.store.deleteBroker(ctx, brokerID)
}

// ListOrders returns the persisted order records for a broker.
func (c *Coordinator) ListOrders(ctx context.Context, brokerID string) ([]domain.OrderRecord, error) {
	if _, err := c.GetBroker(ctx, brokerID); err != nil {
		return nil, err
	}
	return c.store.listOrdersByBroker(ctx, brokerID)
}

// marketClient is the subset of the per-market capability the submission
// path needs.
type marketClient interface {
	Price(ctx context.Context, symbol string) (float64, error)
	SubmitOrder(ctx context.Context, req exchange.OrderRequest) (domain.SubmissionAck, error)
}

// SubmitOrderGroups validates the order tree, executes the first leg of the
// first group on the exchange, then flattens and persists the entire tree.
// The steps are strictly sequential: price fetch, translate, submit,
// flatten, persist — the price must be fresh at submission time.
func (c *Coordinator) SubmitOrderGroups(ctx context.Context, brokerID string, groups []domain.OrderGroup) ([]domain.OrderRecord, error) {
	if err := domain.ValidateOrderGroups(groups); err != nil {
		return nil, &ValidationError{Reason: err.Error()}
	}
	broker, err := c.GetBroker(ctx, brokerID)
	if err != nil {
		return nil, err
	}
	factory, err := c.factoryFor(broker.Exchange)
	if err != nil {
		return nil, err
	}

	head := groups[0]
	leg := head.BatchOrders[0]
	creds := exchange.Credentials{Key: broker.APIKey, Secret: broker.APISecret}

	var client marketClient
	switch head.Market {
	case domain.MarketSpot:
		client = factory.Spot(creds)
	case domain.MarketFutures:
		client = factory.Futures(creds)
	default:
		return nil, validationf("unsupported market %q", head.Market)
	}

	currentPrice, err := client.Price(ctx, head.Symbol)
	if err != nil {
		return nil, upstream("price", err)
	}

	var stopPrice float64
	if leg.StopPrice != nil {
		stopPrice = *leg.StopPrice
	}
	concreteType := exchange.Translate(head.Market, leg.Side, leg.Type, stopPrice, currentPrice)

	req := exchange.OrderRequest{
		Symbol:        head.Symbol,
		Side:          leg.Side,
		Type:          concreteType,
		Quantity:      leg.Quantity,
		ClientOrderID: leg.OrderID,
	}
	if leg.Type.RequiresPrice() {
		req.Price = leg.Price
		req.TimeInForce = "GTC"
	}
	if leg.Type.RequiresStopPrice() {
		req.StopPrice = leg.StopPrice
	}

	ack, err := client.SubmitOrder(ctx, req)
	if err != nil {
		return nil, upstream("submit order", err)
	}
	logger.WithFields(logrus.Fields{
		"broker": broker.ID,
		"symbol": head.Symbol,
		"type":   string(concreteType),
		"status": ack.Status,
	}).Info("order submitted")

	records := domain.FlattenOrderGroups(groups, ack, broker.ID)
	if err := c.store.insertOrders(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}
