// Package exchange defines the capability contract this service expects from
// a venue: price lookup, order submission and account-state reads per market,
// plus the abstract-to-concrete order-type translation shared by all callers.
package exchange

import (
	"context"
	"time"

	"github.com/tradingflow/server/internal/domain"
)

// Credentials is an exchange API key pair.
type Credentials struct {
	Key    string
	Secret string
}

// Permissions is the normalized capability report for a key pair.
type Permissions struct {
	IPRestricted               bool
	EnableReading              bool
	EnableSpotAndMarginTrade   bool
	EnableFutures              bool
	EnablePortfolioMarginTrade bool
	CreatedAt                  time.Time
}

// OrderRequest is a concrete, venue-ready order. Type is the translated
// exchange order type, not the abstract intent vocabulary.
type OrderRequest struct {
	Symbol        string
	Side          domain.Side
	Type          ConcreteType
	Quantity      float64
	Price         *float64
	StopPrice     *float64
	TimeInForce   string
	ClientOrderID string
}

// SpotClient is the spot-market capability.
type SpotClient interface {
	Price(ctx context.Context, symbol string) (float64, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (domain.SubmissionAck, error)
	Permissions(ctx context.Context) (Permissions, error)
	Holdings(ctx context.Context) ([]domain.Holding, error)
	WalletBalances(ctx context.Context) ([]domain.WalletBalance, error)
	OpenOrders(ctx context.Context) ([]domain.OpenOrder, error)
}

// FuturesClient is the futures-market capability.
type FuturesClient interface {
	Price(ctx context.Context, symbol string) (float64, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (domain.SubmissionAck, error)
	Positions(ctx context.Context) ([]domain.Position, error)
	OpenOrders(ctx context.Context) ([]domain.OpenOrder, error)
}

// Factory builds per-credential market clients for one exchange. The
// coordinator resolves a factory by domain.Exchange and fails before any I/O
// when the exchange is unsupported.
type Factory interface {
	Spot(creds Credentials) SpotClient
	Futures(creds Credentials) FuturesClient
}
