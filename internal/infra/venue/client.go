package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"trade_dash/internal/domain"
	"trade_dash/internal/infra"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Client is the venue REST client used for the bootstrap load, trader re-fetch
// and operator mutations. It applies no request timeout of its own; callers
// bound requests with their context.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *infra.Metrics
	logger     *slog.Logger
}

// NewClient creates a client for the venue at baseURL (e.g. http://localhost:8080).
func NewClient(baseURL string, metrics *infra.Metrics) *Client {
	if metrics == nil {
		metrics = infra.GlobalMetrics
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 30 * time.Second,
			},
		},
		metrics: metrics,
		logger:  slog.Default().With("module", "venue_client"),
	}
}

// orderPayload is the POST /orders body. Prices go out as JSON numbers.
type orderPayload struct {
	TraderID    string   `json:"traderId"`
	OrderType   string   `json:"orderType"`
	Side        string   `json:"side"`
	Price       *float64 `json:"price"`
	Quantity    int64    `json:"quantity"`
	DisplaySize *int64   `json:"displaySize,omitempty"`
	LimitPrice  *float64 `json:"limitPrice,omitempty"`
	BestPrice   *float64 `json:"bestPrice,omitempty"`
}

type riskLimitsPayload struct {
	MaxOpenPosition *int64   `json:"maxOpenPosition,omitempty"`
	MaxOrderSize    *int64   `json:"maxOrderSize,omitempty"`
	MaxOrdersPerMin *int64   `json:"maxOrdersPerMin,omitempty"`
	MaxDailyLoss    *float64 `json:"maxDailyLoss,omitempty"`
	MaxDrawdown     *float64 `json:"maxDrawdown,omitempty"`
	MaxRiskPerOrder *float64 `json:"maxRiskPerOrder,omitempty"`
}

// riskPayload is the PUT /risk body.
type riskPayload struct {
	Scope    string            `json:"scope"`
	TraderID string            `json:"traderId,omitempty"`
	Override bool              `json:"override"`
	Limits   riskLimitsPayload `json:"limits"`
}

func toFloat(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	f := d.InexactFloat64()
	return &f
}

// GetMarket fetches the current market snapshot.
func (c *Client) GetMarket(ctx context.Context) (domain.MarketSnapshot, error) {
	var resp struct {
		MarketData domain.MarketSnapshot `json:"marketData"`
	}
	if err := c.getJSON(ctx, "/market", nil, &resp); err != nil {
		return domain.MarketSnapshot{}, err
	}
	return resp.MarketData, nil
}

// GetOrders fetches one page of the order book.
func (c *Client) GetOrders(ctx context.Context, start, limit int) (domain.OrderBook, error) {
	var book domain.OrderBook
	if err := c.getJSON(ctx, "/orders", pageQuery(start, limit), &book); err != nil {
		return domain.OrderBook{}, err
	}
	return book, nil
}

// GetTrades fetches one page of the trade history.
func (c *Client) GetTrades(ctx context.Context, start, limit int) ([]domain.Trade, error) {
	var resp struct {
		Trades []domain.Trade `json:"trades"`
	}
	if err := c.getJSON(ctx, "/trades", pageQuery(start, limit), &resp); err != nil {
		return nil, err
	}
	if resp.Trades == nil {
		resp.Trades = []domain.Trade{}
	}
	return resp.Trades, nil
}

// GetTrader fetches a trader profile.
func (c *Client) GetTrader(ctx context.Context, id string) (domain.TraderProfile, error) {
	var resp struct {
		Trader domain.TraderProfile `json:"trader"`
	}
	if err := c.getJSON(ctx, "/traders/"+url.PathEscape(id), nil, &resp); err != nil {
		return domain.TraderProfile{}, err
	}
	return resp.Trader, nil
}

// GetRiskLimits fetches the effective limits for a trader.
func (c *Client) GetRiskLimits(ctx context.Context, traderID string) (domain.RiskLimits, error) {
	var resp struct {
		Limits domain.RiskLimits `json:"limits"`
	}
	if err := c.getJSON(ctx, "/risk", url.Values{"traderId": {traderID}}, &resp); err != nil {
		return domain.RiskLimits{}, err
	}
	return resp.Limits, nil
}

// CreateOrder submits an order. The request is expected to be normalized.
func (c *Client) CreateOrder(ctx context.Context, traderID string, req domain.OrderRequest) error {
	payload := orderPayload{
		TraderID:    traderID,
		OrderType:   string(req.Type),
		Side:        string(req.Side),
		Price:       toFloat(req.Price),
		Quantity:    req.Quantity,
		DisplaySize: req.DisplaySize,
		LimitPrice:  toFloat(req.LimitPrice),
		BestPrice:   toFloat(req.BestPrice),
	}
	_, err := c.doRequest(ctx, http.MethodPost, "/orders", nil, payload)
	return err
}

// UpdateRiskLimits submits a risk limit change.
func (c *Client) UpdateRiskLimits(ctx context.Context, update domain.RiskUpdate) error {
	l := update.Limits
	payload := riskPayload{
		Scope:    string(update.Scope),
		TraderID: update.TraderID,
		Override: update.Override,
		Limits: riskLimitsPayload{
			MaxOpenPosition: l.MaxOpenPosition,
			MaxOrderSize:    l.MaxOrderSize,
			MaxOrdersPerMin: l.MaxOrdersPerMin,
			MaxDailyLoss:    toFloat(l.MaxDailyLoss),
			MaxDrawdown:     toFloat(l.MaxDrawdown),
			MaxRiskPerOrder: toFloat(l.MaxRiskPerOrder),
		},
	}
	_, err := c.doRequest(ctx, http.MethodPut, "/risk", nil, payload)
	return err
}

func pageQuery(start, limit int) url.Values {
	return url.Values{
		"start": {strconv.Itoa(start)},
		"limit": {strconv.Itoa(limit)},
	}
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	body, err := c.doRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("GET %s: failed to parse response: %w", path, err)
	}
	return nil
}

// doRequest handles serialization, tracing headers and status mapping.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	op := method + " " + path

	var bodyReader io.Reader
	if body != nil {
		jsonBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBytes)
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return nil, domain.NewFatalNetworkError(op, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordRequestError()
		return nil, domain.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.RecordRequestError()
		return nil, domain.NewNetworkError(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.RecordRequestError()
		c.logger.Warn("Venue request failed",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
			slog.String("request_id", reqID))
		return nil, &domain.RequestError{
			Op:     op,
			Status: resp.StatusCode,
			Body:   strings.TrimSpace(string(respBody)),
		}
	}

	c.logger.Debug("Venue request", slog.String("op", op), slog.String("request_id", reqID))
	return respBody, nil
}
