package binance

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tradingflow/server/internal/domain"
)

// Binance serializes most numbers as strings. num parses them exactly and
// projects to float64; malformed values project to zero rather than failing
// a whole snapshot.
func num(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

func ms(t int64) time.Time {
	return time.UnixMilli(t)
}

func optional(v float64) *float64 {
	if v == 0 {
		return nil
	}
	return &v
}

type priceTicker struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

type orderAck struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
}

type apiRestrictions struct {
	IPRestrict                   bool  `json:"ipRestrict"`
	CreateTime                   int64 `json:"createTime"`
	EnableReading                bool  `json:"enableReading"`
	EnableSpotAndMarginTrading   bool  `json:"enableSpotAndMarginTrading"`
	EnableFutures                bool  `json:"enableFutures"`
	EnablePortfolioMarginTrading bool  `json:"enablePortfolioMarginTrading"`
}

type accountInformation struct {
	Balances []struct {
		Asset  string `json:"asset"`
		Free   string `json:"free"`
		Locked string `json:"locked"`
	} `json:"balances"`
}

type walletBalance struct {
	WalletName string `json:"walletName"`
	Balance    string `json:"balance"`
}

type spotOpenOrder struct {
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	Price         string `json:"price"`
	StopPrice     string `json:"stopPrice"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	Status        string `json:"status"`
	Time          int64  `json:"time"`
	UpdateTime    int64  `json:"updateTime"`
}

type futuresOpenOrder struct {
	ClientOrderID string `json:"clientOrderId"`
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	PositionSide  string `json:"positionSide"`
	Type          string `json:"type"`
	Price         string `json:"price"`
	StopPrice     string `json:"stopPrice"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	Status        string `json:"status"`
	Time          int64  `json:"time"`
	UpdateTime    int64  `json:"updateTime"`
}

type futuresPosition struct {
	Symbol           string `json:"symbol"`
	PositionSide     string `json:"positionSide"`
	PositionAmt      string `json:"positionAmt"`
	LiquidationPrice string `json:"liquidationPrice"`
	UnRealizedProfit string `json:"unRealizedProfit"`
	Notional         string `json:"notional"`
	EntryPrice       string `json:"entryPrice"`
	MarkPrice        string `json:"markPrice"`
	UpdateTime       int64  `json:"updateTime"`
}

func normalizeSide(s string) domain.Side {
	if s == "BUY" {
		return domain.SideBuy
	}
	return domain.SideSell
}

func normalizePositionSide(s string) domain.PositionSide {
	switch s {
	case "LONG":
		return domain.PositionSideLong
	case "SHORT":
		return domain.PositionSideShort
	default:
		return domain.PositionSideBoth
	}
}

func normalizeStatus(s string) string {
	if s == "NEW" {
		return "open"
	}
	return strings.ToLower(s)
}

// normalizeSpotOrderType maps spot exchange names back to the abstract
// vocabulary used everywhere else in the service.
func normalizeSpotOrderType(t string) string {
	switch t {
	case "STOP_LOSS":
		return "stop_loss_market"
	case "TAKE_PROFIT":
		return "take_profit_market"
	default:
		return strings.ToLower(t)
	}
}

// normalizeFuturesOrderType does the same for the futures naming scheme.
func normalizeFuturesOrderType(t string) string {
	switch t {
	case "STOP":
		return "stop_loss_limit"
	case "STOP_MARKET":
		return "stop_loss_market"
	case "TAKE_PROFIT":
		return "take_profit_limit"
	default:
		return strings.ToLower(t)
	}
}
