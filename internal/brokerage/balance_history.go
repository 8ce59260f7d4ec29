package brokerage

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/tradingflow/server/internal/domain"
)

const dateLayout = "2006-01-02"

// BalanceHistory builds a fixed-length series of daily wallet balances
// ending today (UTC). Today's entry is always refreshed from a live fetch
// first, so it is present whenever the exchange call succeeds; any other day
// without a cached snapshot comes back with a nil balance — a missing day is
// reported as unknown, never fabricated as zero.
func (c *Coordinator) BalanceHistory(ctx context.Context, brokerID string, days int) ([]domain.DailyBalance, error) {
	if days < 1 || days > 30 {
		return nil, validationf("days must be between 1 and 30")
	}

	broker, factory, err := c.brokerFactory(ctx, brokerID)
	if err != nil {
		return nil, err
	}
	live, err := factory.Spot(credsOf(broker)).WalletBalances(ctx)
	if err != nil {
		return nil, upstream("wallet balances", err)
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	todayKey := today.Format(dateLayout)
	if err := c.cache.Set(dailyBalanceKey(brokerID, todayKey), live, dailyBalanceTTL); err != nil {
		return nil, err
	}

	keys := make([]string, 0, days)
	series := make([]domain.DailyBalance, 0, days)
	for i := 0; i < days; i++ {
		date := today.AddDate(0, 0, -i).Format(dateLayout)
		keys = append(keys, dailyBalanceKey(brokerID, date))
		series = append(series, domain.DailyBalance{Date: date})
	}

	values, err := c.cache.GetMany(keys)
	if err != nil {
		return nil, err
	}
	for i, raw := range values {
		if raw == nil {
			continue
		}
		var balances []domain.WalletBalance
		if err := json.Unmarshal(raw, &balances); err != nil {
			continue
		}
		series[i].Balance = balances
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Date < series[j].Date
	})
	return series, nil
}
