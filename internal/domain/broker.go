package domain

import "time"

// Exchange identifies the venue a broker's credentials belong to.
type Exchange string

const (
	ExchangeBinance Exchange = "binance"
	ExchangeBybit   Exchange = "bybit"
)

func (e Exchange) Valid() bool {
	return e == ExchangeBinance || e == ExchangeBybit
}

// BrokerStatus reflects the last credential validation outcome.
type BrokerStatus string

const (
	BrokerStatusOK  BrokerStatus = "ok"
	BrokerStatusBad BrokerStatus = "bad"
)

// Broker is a user-owned credential pair for one exchange. Identity is
// immutable; credentials may be rotated, which forces re-validation.
type Broker struct {
	ID                   string       `json:"id"`
	UserID               string       `json:"userId"`
	Exchange             Exchange     `json:"exchange"`
	Label                string       `json:"label"`
	APIKey               string       `json:"apiKey"`
	APISecret            string       `json:"-"`
	Status               BrokerStatus `json:"status"`
	IPRestricted         bool         `json:"ipRestricted"`
	CredentialsCreatedAt time.Time    `json:"credentialsCreatedAt"`
	CreatedAt            time.Time    `json:"createdAt"`
	UpdatedAt            time.Time    `json:"updatedAt"`
}
