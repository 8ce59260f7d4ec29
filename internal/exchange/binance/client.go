// Package binance implements the exchange capability contract against the
// Binance spot and USDⓈ-M futures REST APIs.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/tradingflow/server/internal/exchange"
)

const (
	DefaultSpotBaseURL    = "https://api.binance.com"
	DefaultFuturesBaseURL = "https://fapi.binance.com"

	recvWindowMS = 5000
)

// APIError is a non-2xx Binance response body.
type APIError struct {
	Code int64  `json:"code"`
	Msg  string `json:"msg"`
	HTTP int    `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance: http %d code %d: %s", e.HTTP, e.Code, e.Msg)
}

// Factory builds spot and futures clients from per-broker credentials.
type Factory struct {
	SpotBaseURL    string
	FuturesBaseURL string
}

func NewFactory(spotBaseURL, futuresBaseURL string) *Factory {
	if spotBaseURL == "" {
		spotBaseURL = DefaultSpotBaseURL
	}
	if futuresBaseURL == "" {
		futuresBaseURL = DefaultFuturesBaseURL
	}
	return &Factory{SpotBaseURL: spotBaseURL, FuturesBaseURL: futuresBaseURL}
}

func (f *Factory) Spot(creds exchange.Credentials) exchange.SpotClient {
	return &SpotClient{restClient: newRestClient(f.SpotBaseURL, creds)}
}

func (f *Factory) Futures(creds exchange.Credentials) exchange.FuturesClient {
	return &FuturesClient{restClient: newRestClient(f.FuturesBaseURL, creds)}
}

// restClient wraps resty with Binance request signing. Signed endpoints get
// a timestamp/recvWindow pair and an HMAC-SHA256 signature over the encoded
// query string, with the key sent in the X-MBX-APIKEY header.
type restClient struct {
	http   *resty.Client
	key    string
	secret string
	// now is swappable for deterministic signing tests.
	now func() time.Time
}

func newRestClient(baseURL string, creds exchange.Credentials) *restClient {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(30 * time.Second).
		SetHeader("Accept", "application/json")
	return &restClient{http: client, key: creds.Key, secret: creds.Secret, now: time.Now}
}

func (c *restClient) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *restClient) signedQuery(params url.Values) string {
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
	params.Set("recvWindow", strconv.Itoa(recvWindowMS))
	encoded := params.Encode()
	return encoded + "&signature=" + c.sign(encoded)
}

// public issues an unsigned GET and decodes the JSON body into out.
func (c *restClient) public(ctx context.Context, path string, params url.Values, out any) error {
	req := c.http.R().SetContext(ctx)
	if params != nil {
		req.SetQueryString(params.Encode())
	}
	resp, err := req.Get(path)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	return decode(resp, out)
}

// signedGet issues a signed GET and decodes the JSON body into out.
func (c *restClient) signedGet(ctx context.Context, path string, params url.Values, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", c.key).
		SetQueryString(c.signedQuery(params)).
		Get(path)
	if err != nil {
		return errors.Wrapf(err, "GET %s", path)
	}
	return decode(resp, out)
}

// signedPost issues a signed POST with parameters in the query string, the
// form Binance accepts for order placement.
func (c *restClient) signedPost(ctx context.Context, path string, params url.Values, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("X-MBX-APIKEY", c.key).
		SetQueryString(c.signedQuery(params)).
		Post(path)
	if err != nil {
		return errors.Wrapf(err, "POST %s", path)
	}
	return decode(resp, out)
}

func decode(resp *resty.Response, out any) error {
	if resp.IsError() {
		apiErr := &APIError{HTTP: resp.StatusCode()}
		if err := json.Unmarshal(resp.Body(), apiErr); err != nil || apiErr.Msg == "" {
			apiErr.Msg = strings.TrimSpace(string(resp.Body()))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func orderParams(req exchange.OrderRequest) url.Values {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", strings.ToUpper(string(req.Side)))
	params.Set("type", string(req.Type))
	params.Set("quantity", strconv.FormatFloat(req.Quantity, 'f', -1, 64))
	if req.Price != nil {
		params.Set("price", strconv.FormatFloat(*req.Price, 'f', -1, 64))
	}
	if req.StopPrice != nil {
		params.Set("stopPrice", strconv.FormatFloat(*req.StopPrice, 'f', -1, 64))
	}
	if req.TimeInForce != "" {
		params.Set("timeInForce", req.TimeInForce)
	}
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}
	params.Set("newOrderRespType", "RESULT")
	return params
}
