package polygon

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/models"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/domain/repository"
	"github.com/louwilcox-cloud/Selling-optionscom/internal/service/ratelimit"
	xhttp "github.com/louwilcox-cloud/Selling-optionscom/pkg/http"
	applogger "github.com/louwilcox-cloud/Selling-optionscom/pkg/logger"
)

const rateKey = "polygon"

// Client is a Polygon.io REST client implementing the ChainProvider and
// MarketStatusSource interfaces.
type Client struct {
	apiKey    string
	baseURL   string
	http      *xhttp.Client
	limiter   *ratelimit.Limiter
	maxRPS    float64
	pageLimit int
	log       *applogger.Logger
}

// Option configures Client.
type Option func(*Client)

// WithRateLimit bounds outgoing request rate.
func WithRateLimit(l *ratelimit.Limiter, maxRPS float64) Option {
	return func(c *Client) {
		c.limiter = l
		if maxRPS > 0 {
			c.maxRPS = maxRPS
		}
	}
}

// WithPageLimit sets the per-page record count requested from the API.
func WithPageLimit(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageLimit = n
		}
	}
}

// WithRequestTimeout sets the per-request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http = xhttp.NewClient(xhttp.WithTimeout(d))
		}
	}
}

// WithLogger injects a structured logger.
func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a Polygon REST client.
func New(apiKey, baseURL string, opts ...Option) *Client {
	c := &Client{
		apiKey:    apiKey,
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      xhttp.NewClient(xhttp.WithTimeout(15 * time.Second)),
		maxRPS:    5,
		pageLimit: 250,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listEnvelope struct {
	Status  string                 `json:"status"`
	Results []repository.RawRecord `json:"results"`
	NextURL string                 `json:"next_url"`
}

// ChainSnapshot fetches one page of the option chain snapshot for symbol
// filtered by expiration date. Nested snapshot records are flattened so the
// normalizer sees one flat key space.
func (c *Client) ChainSnapshot(ctx context.Context, symbol, expiration, cursor string) (*repository.ChainPage, error) {
	params := map[string][]string{
		"expiration_date": {expiration},
	}
	env, err := c.getList(ctx, "/v3/snapshot/options/"+url.PathEscape(symbol), params, cursor)
	if err != nil {
		return nil, fmt.Errorf("chain snapshot %s: %w", symbol, err)
	}

	records := make([]repository.RawRecord, 0, len(env.Results))
	for _, r := range env.Results {
		records = append(records, flattenSnapshot(r))
	}
	return &repository.ChainPage{Records: records, Cursor: nextCursor(env.NextURL)}, nil
}

// ContractListing fetches one page of reference contract records for symbol
// and expiration. These carry no trade data.
func (c *Client) ContractListing(ctx context.Context, symbol, expiration, cursor string) (*repository.ChainPage, error) {
	params := map[string][]string{
		"underlying_ticker": {symbol},
	}
	if expiration != "" {
		params["expiration_date"] = []string{expiration}
	}
	env, err := c.getList(ctx, "/v3/reference/options/contracts", params, cursor)
	if err != nil {
		return nil, fmt.Errorf("contract listing %s: %w", symbol, err)
	}
	return &repository.ChainPage{Records: env.Results, Cursor: nextCursor(env.NextURL)}, nil
}

type prevAggEnvelope struct {
	Status  string `json:"status"`
	Results []struct {
		Close  float64 `json:"c"`
		Volume float64 `json:"v"`
	} `json:"results"`
}

// PrevSession returns a contract's previous-session close and volume, or
// (nil, nil) when Polygon has no aggregate for it.
func (c *Client) PrevSession(ctx context.Context, identifier string) (*models.PrevSession, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	var env prevAggEnvelope
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + "/v2/aggs/ticker/" + url.PathEscape(identifier) + "/prev",
		QueryParams: c.auth(nil),
	}, &env)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.StatusCode == 404 {
			return nil, nil
		}
		return nil, fmt.Errorf("prev session %s: %w", identifier, err)
	}
	if len(env.Results) == 0 {
		return nil, nil
	}
	r := env.Results[0]
	return &models.PrevSession{
		Close:     r.Close,
		Volume:    int64(r.Volume),
		HasVolume: r.Volume > 0,
	}, nil
}

// Expirations lists the expiration dates of the symbol's option contracts,
// possibly duplicated and unordered; callers dedupe and sort.
func (c *Client) Expirations(ctx context.Context, symbol string) ([]string, error) {
	var dates []string
	cursor := ""
	for page := 0; page < 10; page++ {
		env, err := c.getList(ctx, "/v3/reference/options/contracts", map[string][]string{
			"underlying_ticker": {symbol},
		}, cursor)
		if err != nil {
			return nil, fmt.Errorf("expirations %s: %w", symbol, err)
		}
		for _, r := range env.Results {
			if d, ok := r["expiration_date"].(string); ok && d != "" {
				dates = append(dates, d)
			}
		}
		cursor = nextCursor(env.NextURL)
		if cursor == "" {
			break
		}
	}
	return dates, nil
}

type lastTradeEnvelope struct {
	Status  string `json:"status"`
	Results struct {
		Price float64 `json:"p"`
	} `json:"results"`
}

// Quote returns the underlying's most recent price. It asks for the last
// trade first and falls back to the previous-session close when the plan or
// the session does not supply one.
func (c *Client) Quote(ctx context.Context, symbol string) (float64, string, error) {
	if err := c.wait(ctx); err != nil {
		return 0, "", err
	}

	var lt lastTradeEnvelope
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + "/v2/last/trade/" + url.PathEscape(symbol),
		QueryParams: c.auth(nil),
	}, &lt)
	if err == nil && lt.Results.Price > 0 {
		return lt.Results.Price, "last-trade", nil
	}

	prev, perr := c.PrevSession(ctx, symbol)
	if perr != nil {
		return 0, "", fmt.Errorf("quote %s: %w", symbol, perr)
	}
	if prev == nil || prev.Close <= 0 {
		return 0, "", fmt.Errorf("quote %s: %w", symbol, models.ErrDataUnavailable)
	}
	return prev.Close, "prev-close", nil
}

type marketStatusEnvelope struct {
	Market string `json:"market"`
}

// MarketOpen reports whether the regular equities session is open per
// Polygon's market status endpoint.
func (c *Client) MarketOpen(ctx context.Context) (bool, error) {
	if err := c.wait(ctx); err != nil {
		return false, err
	}

	var env marketStatusEnvelope
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + "/v1/marketstatus/now",
		QueryParams: c.auth(nil),
	}, &env)
	if err != nil {
		return false, fmt.Errorf("market status: %w", err)
	}
	return strings.EqualFold(env.Market, "open"), nil
}

func (c *Client) getList(ctx context.Context, path string, params map[string][]string, cursor string) (*listEnvelope, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	q := map[string][]string{
		"limit": {fmt.Sprintf("%d", c.pageLimit)},
	}
	for k, v := range params {
		q[k] = v
	}
	if cursor != "" {
		// Continuation requests carry only the cursor; Polygon rejects
		// repeated filter params alongside it.
		q = map[string][]string{"cursor": {cursor}}
	}

	var env listEnvelope
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: c.auth(q),
	}, &env)
	if err != nil {
		return nil, err
	}
	return &env, nil
}

func (c *Client) auth(q map[string][]string) map[string][]string {
	if q == nil {
		q = map[string][]string{}
	}
	q["apiKey"] = []string{c.apiKey}
	return q
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx, rateKey, c.maxRPS, c.maxRPS)
}

// nextCursor extracts the continuation cursor from Polygon's next_url.
func nextCursor(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return ""
	}
	return u.Query().Get("cursor")
}

// flattenSnapshot lifts the nested snapshot record shape into one flat key
// space: details (ticker, contract_type, strike_price), day (close, volume),
// last_trade price, and top-level open_interest.
func flattenSnapshot(r repository.RawRecord) repository.RawRecord {
	out := repository.RawRecord{}
	for k, v := range r {
		switch k {
		case "details", "day", "last_trade", "last_quote", "greeks", "underlying_asset":
			// handled below
		default:
			out[k] = v
		}
	}
	if details, ok := r["details"].(map[string]interface{}); ok {
		for k, v := range details {
			out[k] = v
		}
	}
	if day, ok := r["day"].(map[string]interface{}); ok {
		if v, ok := day["close"]; ok {
			out["close"] = v
		}
		if v, ok := day["volume"]; ok {
			out["volume"] = v
		}
	}
	if lt, ok := r["last_trade"].(map[string]interface{}); ok {
		if v, ok := lt["price"]; ok {
			if _, has := out["lastPrice"]; !has {
				out["lastPrice"] = v
			}
		}
	}
	return out
}
