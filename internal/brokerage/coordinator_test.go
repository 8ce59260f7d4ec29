package brokerage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradingflow/server/internal/domain"
	"github.com/tradingflow/server/internal/exchange"
	"github.com/tradingflow/server/internal/statecache"
)

func ptr(v float64) *float64 { return &v }

func goodPermissions() exchange.Permissions {
	return exchange.Permissions{
		EnableReading:            true,
		EnableSpotAndMarginTrade: true,
		EnableFutures:            true,
		CreatedAt:                time.UnixMilli(1700000000000),
	}
}

type fakeSpot struct {
	perms    exchange.Permissions
	permsErr error
	price    float64
	priceErr error
	ack      domain.SubmissionAck
	holdings []domain.Holding
	wallets  []domain.WalletBalance
	open     []domain.OpenOrder

	permsCalls    int
	priceCalls    int
	submitCalls   int
	holdingsCalls int
	walletCalls   int
	openCalls     int
	lastOrder     exchange.OrderRequest
}

func (f *fakeSpot) Price(ctx context.Context, symbol string) (float64, error) {
	f.priceCalls++
	return f.price, f.priceErr
}

func (f *fakeSpot) SubmitOrder(ctx context.Context, req exchange.OrderRequest) (domain.SubmissionAck, error) {
	f.submitCalls++
	f.lastOrder = req
	return f.ack, nil
}

func (f *fakeSpot) Permissions(ctx context.Context) (exchange.Permissions, error) {
	f.permsCalls++
	return f.perms, f.permsErr
}

func (f *fakeSpot) Holdings(ctx context.Context) ([]domain.Holding, error) {
	f.holdingsCalls++
	return f.holdings, nil
}

func (f *fakeSpot) WalletBalances(ctx context.Context) ([]domain.WalletBalance, error) {
	f.walletCalls++
	return f.wallets, nil
}

func (f *fakeSpot) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	f.openCalls++
	return f.open, nil
}

type fakeFutures struct {
	price     float64
	ack       domain.SubmissionAck
	positions []domain.Position
	open      []domain.OpenOrder

	positionsCalls int
	lastOrder      exchange.OrderRequest
}

func (f *fakeFutures) Price(ctx context.Context, symbol string) (float64, error) {
	return f.price, nil
}

func (f *fakeFutures) SubmitOrder(ctx context.Context, req exchange.OrderRequest) (domain.SubmissionAck, error) {
	f.lastOrder = req
	return f.ack, nil
}

func (f *fakeFutures) Positions(ctx context.Context) ([]domain.Position, error) {
	f.positionsCalls++
	return f.positions, nil
}

func (f *fakeFutures) OpenOrders(ctx context.Context) ([]domain.OpenOrder, error) {
	return f.open, nil
}

type fakeFactory struct {
	spot    *fakeSpot
	futures *fakeFutures
}

func (f *fakeFactory) Spot(exchange.Credentials) exchange.SpotClient       { return f.spot }
func (f *fakeFactory) Futures(exchange.Credentials) exchange.FuturesClient { return f.futures }

func newTestCoordinator(t *testing.T, factory *fakeFactory) *Coordinator {
	t.Helper()
	store, err := OpenStoreInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cache, err := statecache.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	return NewCoordinator(store, cache, map[domain.Exchange]exchange.Factory{
		domain.ExchangeBinance: factory,
	})
}

func registerTestBroker(t *testing.T, c *Coordinator) *domain.Broker {
	t.Helper()
	broker, err := c.RegisterBroker(context.Background(), "user-1", domain.ExchangeBinance, "main", "key-1", "secret-1")
	require.NoError(t, err)
	return broker
}

func TestRegisterBroker(t *testing.T) {
	spot := &fakeSpot{perms: goodPermissions()}
	spot.perms.IPRestricted = true
	c := newTestCoordinator(t, &fakeFactory{spot: spot, futures: &fakeFutures{}})

	broker := registerTestBroker(t, c)
	require.NotEmpty(t, broker.ID)
	require.Equal(t, domain.BrokerStatusOK, broker.Status)
	require.True(t, broker.IPRestricted)
	require.Equal(t, time.UnixMilli(1700000000000).Unix(), broker.CredentialsCreatedAt.Unix())

	stored, err := c.GetBroker(context.Background(), broker.ID)
	require.NoError(t, err)
	require.Equal(t, "main", stored.Label)
	require.Equal(t, "key-1", stored.APIKey)
}

func TestRegisterBrokerRejectsInsufficientPermissions(t *testing.T) {
	perms := goodPermissions()
	perms.EnableFutures = false
	spot := &fakeSpot{perms: perms}
	c := newTestCoordinator(t, &fakeFactory{spot: spot, futures: &fakeFutures{}})

	_, err := c.RegisterBroker(context.Background(), "user-1", domain.ExchangeBinance, "main", "key-1", "secret-1")
	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)

	// Nothing is stored on a rejected registration.
	brokers, err := c.ListBrokers(context.Background(), "user-1")
	require.NoError(t, err)
	require.Empty(t, brokers)
}

func TestRegisterBrokerRejectsPortfolioMargin(t *testing.T) {
	perms := goodPermissions()
	perms.EnablePortfolioMarginTrade = true
	c := newTestCoordinator(t, &fakeFactory{spot: &fakeSpot{perms: perms}, futures: &fakeFutures{}})

	_, err := c.RegisterBroker(context.Background(), "user-1", domain.ExchangeBinance, "main", "key-1", "secret-1")
	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)
}

func TestRegisterBrokerUnsupportedExchange(t *testing.T) {
	spot := &fakeSpot{perms: goodPermissions()}
	c := newTestCoordinator(t, &fakeFactory{spot: spot, futures: &fakeFutures{}})

	_, err := c.RegisterBroker(context.Background(), "user-1", domain.ExchangeBybit, "main", "key-1", "secret-1")
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	// Rejected before any exchange I/O.
	require.Zero(t, spot.permsCalls)
}

func TestRegisterBrokerDuplicateCredentials(t *testing.T) {
	spot := &fakeSpot{perms: goodPermissions()}
	c := newTestCoordinator(t, &fakeFactory{spot: spot, futures: &fakeFutures{}})
	registerTestBroker(t, c)

	_, err := c.RegisterBroker(context.Background(), "user-2", domain.ExchangeBinance, "other", "key-1", "secret-1")
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestUpdateBrokerLabelOnly(t *testing.T) {
	spot := &fakeSpot{perms: goodPermissions()}
	c := newTestCoordinator(t, &fakeFactory{spot: spot, futures: &fakeFutures{}})
	broker := registerTestBroker(t, c)
	permsCallsAfterRegister := spot.permsCalls

	err := c.UpdateBroker(context.Background(), broker.ID, broker.Exchange, "renamed", broker.APIKey, broker.APISecret)
	require.NoError(t, err)
	// Unchanged credentials skip the exchange round trip.
	require.Equal(t, permsCallsAfterRegister, spot.permsCalls)

	stored, err := c.GetBroker(context.Background(), broker.ID)
	require.NoError(t, err)
	require.Equal(t, "renamed", stored.Label)
	require.Equal(t, broker.APIKey, stored.APIKey)
	require.Equal(t, domain.BrokerStatusOK, stored.Status)
	require.True(t, stored.CredentialsCreatedAt.Equal(broker.CredentialsCreatedAt))
}

func TestUpdateBrokerRotationRejectedKeepsState(t *testing.T) {
	spot := &fakeSpot{perms: goodPermissions()}
	c := newTestCoordinator(t, &fakeFactory{spot: spot, futures: &fakeFutures{}})
	broker := registerTestBroker(t, c)

	spot.perms.EnableReading = false
	err := c.UpdateBroker(context.Background(), broker.ID, broker.Exchange, "main", "key-2", "secret-2")
	var credErr *CredentialError
	require.ErrorAs(t, err, &credErr)

	stored, getErr := c.GetBroker(context.Background(), broker.ID)
	require.NoError(t, getErr)
	require.Equal(t, "key-1", stored.APIKey)
	require.Equal(t, domain.BrokerStatusOK, stored.Status)
}

func TestUpdateBrokerNotFound(t *testing.T) {
	c := newTestCoordinator(t, &fakeFactory{spot: &fakeSpot{perms: goodPermissions()}, futures: &fakeFutures{}})
	err := c.UpdateBroker(context.Background(), "nope", domain.ExchangeBinance, "x", "k", "s")
	require.True(t, errors.Is(err, ErrBrokerNotFound))
}

func TestDeleteBrokerCascadesOrders(t *testing.T) {
	spot := &fakeSpot{perms: goodPermissions(), price: 49000, ack: domain.SubmissionAck{Status: "NEW"}}
	c := newTestCoordinator(t, &fakeFactory{spot: spot, futures: &fakeFutures{}})
	broker := registerTestBroker(t, c)

	_, err := c.SubmitOrderGroups(context.Background(), broker.ID, []domain.OrderGroup{{
		Market:      domain.MarketSpot,
		Symbol:      "BTCUSDT",
		BatchOrders: []domain.OrderIntent{{OrderID: "o-1", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: 1}},
	}})
	require.NoError(t, err)

	require.NoError(t, c.DeleteBroker(context.Background(), broker.ID))
	_, err = c.GetBroker(context.Background(), broker.ID)
	require.True(t, errors.Is(err, ErrBrokerNotFound))
	_, err = c.ListOrders(context.Background(), broker.ID)
	require.True(t, errors.Is(err, ErrBrokerNotFound))
}

func TestSubmitOrderGroups(t *testing.T) {
	spot := &fakeSpot{perms: goodPermissions(), price: 49000, ack: domain.SubmissionAck{Status: "NEW"}}
	c := newTestCoordinator(t, &fakeFactory{spot: spot, futures: &fakeFutures{}})
	broker := registerTestBroker(t, c)

	groups := []domain.OrderGroup{{
		Market: domain.MarketSpot,
		Symbol: "BTCUSDT",
		BatchOrders: []domain.OrderIntent{
			{OrderID: "entry", Side: domain.SideBuy, Type: domain.OrderTypeStopLossMarket, Quantity: 0.5, StopPrice: ptr(50000)},
			{OrderID: "exit", ParentOrderID: "entry", Side: domain.SideSell, Type: domain.OrderTypeLimit, Quantity: 0.5, Price: ptr(52000)},
		},
		SubOrderList: []domain.SubList{{BatchOrders: []domain.OrderIntent{
			{OrderID: "stop", ParentOrderID: "entry", Side: domain.SideSell, Type: domain.OrderTypeStopLossMarket, Quantity: 0.5, StopPrice: ptr(48000)},
		}}},
	}}

	records, err := c.SubmitOrderGroups(context.Background(), broker.ID, groups)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Only the first leg goes live, against the fresh price.
	require.Equal(t, 1, spot.priceCalls)
	require.Equal(t, 1, spot.submitCalls)
	// Buy with the trigger above market is a stop entry.
	require.Equal(t, exchange.TypeStopLoss, spot.lastOrder.Type)
	require.Equal(t, "entry", spot.lastOrder.ClientOrderID)
	require.Empty(t, spot.lastOrder.TimeInForce)
	require.NotNil(t, spot.lastOrder.StopPrice)
	require.Equal(t, 50000.0, *spot.lastOrder.StopPrice)

	persisted, err := c.ListOrders(context.Background(), broker.ID)
	require.NoError(t, err)
	require.Len(t, persisted, 3)
	for _, r := range persisted {
		require.Equal(t, domain.OrderStatusPending, r.Status)
		require.Equal(t, broker.ID, r.BrokerID)
	}
}

func TestSubmitOrderGroupsLimitLegIsGTC(t *testing.T) {
	spot := &fakeSpot{perms: goodPermissions(), price: 100, ack: domain.SubmissionAck{Status: "NEW"}}
	c := newTestCoordinator(t, &fakeFactory{spot: spot, futures: &fakeFutures{}})
	broker := registerTestBroker(t, c)

	_, err := c.SubmitOrderGroups(context.Background(), broker.ID, []domain.OrderGroup{{
		Market:      domain.MarketSpot,
		Symbol:      "ETHUSDT",
		BatchOrders: []domain.OrderIntent{{OrderID: "l-1", Side: domain.SideBuy, Type: domain.OrderTypeLimit, Quantity: 2, Price: ptr(95)}},
	}})
	require.NoError(t, err)
	require.Equal(t, exchange.TypeLimit, spot.lastOrder.Type)
	require.Equal(t, "GTC", spot.lastOrder.TimeInForce)
	require.NotNil(t, spot.lastOrder.Price)
}

func TestSubmitOrderGroupsFilledAck(t *testing.T) {
	spot := &fakeSpot{perms: goodPermissions(), price: 100, ack: domain.SubmissionAck{Status: "FILLED", Filled: true}}
	c := newTestCoordinator(t, &fakeFactory{spot: spot, futures: &fakeFutures{}})
	broker := registerTestBroker(t, c)

	records, err := c.SubmitOrderGroups(context.Background(), broker.ID, []domain.OrderGroup{{
		Market: domain.MarketSpot,
		Symbol: "ETHUSDT",
		BatchOrders: []domain.OrderIntent{
			{OrderID: "m-1", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: 1},
			{OrderID: "m-2", ParentOrderID: "m-1", Side: domain.SideSell, Type: domain.OrderTypeLimit, Quantity: 1, Price: ptr(110)},
		},
	}})
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusFilled, records[0].Status)
	require.Equal(t, domain.OrderStatusPending, records[1].Status)
}

func TestSubmitOrderGroupsRoutesFuturesMarket(t *testing.T) {
	futures := &fakeFutures{price: 2000, ack: domain.SubmissionAck{Status: "NEW"}}
	spot := &fakeSpot{perms: goodPermissions()}
	c := newTestCoordinator(t, &fakeFactory{spot: spot, futures: futures})
	broker := registerTestBroker(t, c)

	_, err := c.SubmitOrderGroups(context.Background(), broker.ID, []domain.OrderGroup{{
		Market:      domain.MarketFutures,
		Symbol:      "ETHUSDT",
		BatchOrders: []domain.OrderIntent{{OrderID: "f-1", Side: domain.SideSell, Type: domain.OrderTypeStopLossMarket, Quantity: 1, StopPrice: ptr(1900)}},
	}})
	require.NoError(t, err)
	// Sell with the trigger below market is a protective stop.
	require.Equal(t, exchange.TypeStopMarket, futures.lastOrder.Type)
	require.Zero(t, spot.priceCalls)
}

func TestSubmitOrderGroupsRejectsInvalidTree(t *testing.T) {
	spot := &fakeSpot{perms: goodPermissions(), price: 100}
	c := newTestCoordinator(t, &fakeFactory{spot: spot, futures: &fakeFutures{}})
	broker := registerTestBroker(t, c)

	_, err := c.SubmitOrderGroups(context.Background(), broker.ID, []domain.OrderGroup{{
		Market:      domain.MarketSpot,
		Symbol:      "BTCUSDT",
		BatchOrders: []domain.OrderIntent{{OrderID: "bad", Side: domain.SideBuy, Type: domain.OrderTypeMarket, Quantity: 0}},
	}})
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	// Validation runs before any exchange I/O.
	require.Zero(t, spot.priceCalls)
	require.Zero(t, spot.submitCalls)

	orders, listErr := c.ListOrders(context.Background(), broker.ID)
	require.NoError(t, listErr)
	require.Empty(t, orders)
}

func TestHoldingsCachedWithinWindow(t *testing.T) {
	spot := &fakeSpot{
		perms: goodPermissions(),
		holdings: []domain.Holding{
			{Symbol: "BTC", Amount: 0.5},
			{Symbol: "DUST", Amount: 0},
			{Symbol: "ETH", Amount: 3},
		},
	}
	c := newTestCoordinator(t, &fakeFactory{spot: spot, futures: &fakeFutures{}})
	broker := registerTestBroker(t, c)

	first, err := c.Holdings(context.Background(), broker.ID)
	require.NoError(t, err)
	require.Len(t, first, 2)

	second, err := c.Holdings(context.Background(), broker.ID)
	require.NoError(t, err)
	require.Equal(t, first, second)
	// The second read is served from cache.
	require.Equal(t, 1, spot.holdingsCalls)
}

func TestPositionsFiltersFlat(t *testing.T) {
	futures := &fakeFutures{positions: []domain.Position{
		{Symbol: "BTCUSDT", PositionSide: domain.PositionSideLong, Quantity: 0.1},
		{Symbol: "ETHUSDT", PositionSide: domain.PositionSideBoth, Quantity: 0},
	}}
	c := newTestCoordinator(t, &fakeFactory{spot: &fakeSpot{perms: goodPermissions()}, futures: futures})
	broker := registerTestBroker(t, c)

	positions, err := c.Positions(context.Background(), broker.ID)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	require.Equal(t, "BTCUSDT", positions[0].Symbol)

	_, err = c.Positions(context.Background(), broker.ID)
	require.NoError(t, err)
	require.Equal(t, 1, futures.positionsCalls)
}

func TestOpenOrdersPerMarket(t *testing.T) {
	spot := &fakeSpot{perms: goodPermissions(), open: []domain.OpenOrder{{OrderID: "s-1", Symbol: "BTCUSDT"}}}
	futures := &fakeFutures{open: []domain.OpenOrder{{OrderID: "f-1", Symbol: "ETHUSDT"}}}
	c := newTestCoordinator(t, &fakeFactory{spot: spot, futures: futures})
	broker := registerTestBroker(t, c)

	spotOrders, err := c.OpenOrders(context.Background(), broker.ID, domain.MarketSpot)
	require.NoError(t, err)
	require.Len(t, spotOrders, 1)
	require.Equal(t, "s-1", spotOrders[0].OrderID)

	futuresOrders, err := c.OpenOrders(context.Background(), broker.ID, domain.MarketFutures)
	require.NoError(t, err)
	require.Equal(t, "f-1", futuresOrders[0].OrderID)

	_, err = c.OpenOrders(context.Background(), broker.ID, "margin")
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
}

func TestBalanceHistory(t *testing.T) {
	spot := &fakeSpot{
		perms: goodPermissions(),
		wallets: []domain.WalletBalance{
			{Account: domain.AccountTypeSpot, Balance: 1000},
			{Account: domain.AccountTypeFutures, Balance: 250},
		},
	}
	c := newTestCoordinator(t, &fakeFactory{spot: spot, futures: &fakeFutures{}})
	broker := registerTestBroker(t, c)

	// Seed two past days; the rest of the window stays unknown.
	today := time.Now().UTC().Truncate(24 * time.Hour)
	for _, daysAgo := range []int{2, 5} {
		date := today.AddDate(0, 0, -daysAgo).Format(dateLayout)
		err := c.cache.Set(dailyBalanceKey(broker.ID, date), []domain.WalletBalance{
			{Account: domain.AccountTypeSpot, Balance: 900},
		}, dailyBalanceTTL)
		require.NoError(t, err)
	}

	series, err := c.BalanceHistory(context.Background(), broker.ID, 7)
	require.NoError(t, err)
	require.Len(t, series, 7)
	require.Equal(t, 1, spot.walletCalls)

	// Ascending by date, ending today.
	for i := 1; i < len(series); i++ {
		require.Less(t, series[i-1].Date, series[i].Date)
	}
	last := series[len(series)-1]
	require.Equal(t, today.Format(dateLayout), last.Date)
	require.Len(t, last.Balance, 2)
	require.Equal(t, 1000.0, last.Balance[0].Balance)

	known := 0
	for _, day := range series {
		if day.Balance != nil {
			known++
		}
	}
	require.Equal(t, 3, known)
}

func TestBalanceHistoryDaysOutOfRange(t *testing.T) {
	c := newTestCoordinator(t, &fakeFactory{spot: &fakeSpot{perms: goodPermissions()}, futures: &fakeFutures{}})
	broker := registerTestBroker(t, c)

	var valErr *ValidationError
	_, err := c.BalanceHistory(context.Background(), broker.ID, 0)
	require.ErrorAs(t, err, &valErr)
	_, err = c.BalanceHistory(context.Background(), broker.ID, 31)
	require.ErrorAs(t, err, &valErr)
}

func TestBalanceHistoryTodayRefreshed(t *testing.T) {
	spot := &fakeSpot{
		perms:   goodPermissions(),
		wallets: []domain.WalletBalance{{Account: domain.AccountTypeSpot, Balance: 500}},
	}
	c := newTestCoordinator(t, &fakeFactory{spot: spot, futures: &fakeFutures{}})
	broker := registerTestBroker(t, c)

	_, err := c.BalanceHistory(context.Background(), broker.ID, 1)
	require.NoError(t, err)

	// The live fetch is written through to the daily key.
	today := time.Now().UTC().Truncate(24 * time.Hour).Format(dateLayout)
	raw, err := c.cache.GetMany([]string{dailyBalanceKey(broker.ID, today)})
	require.NoError(t, err)
	require.NotNil(t, raw[0])
	var cached []domain.WalletBalance
	require.NoError(t, json.Unmarshal(raw[0], &cached))
	require.Equal(t, 500.0, cached[0].Balance)
}
