// Package binance 通过原生签名 REST 接口直连币安 USDT 永续合约。
// 所有私有接口按查询串原样签名，重试时重新取时间戳并重新签名。
package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trade-gate/internal/config"
	"trade-gate/internal/core"
)

const (
	mainnetBaseURL = "https://fapi.binance.com"
	testnetBaseURL = "https://testnet.binancefuture.com"
)

// Client 是币安合约的原生 REST 后端。
type Client struct {
	transport *transport
	logger    *zap.Logger
}

// NewClient 根据配置构建 REST 后端。沙盒模式指向币安测试网。
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("binance 后端需要 api_key 与 api_secret")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	baseURL := cfg.Rest.BaseURL
	if baseURL == "" {
		if cfg.Sandbox {
			baseURL = testnetBaseURL
		} else {
			baseURL = mainnetBaseURL
		}
	}

	logger.Info("初始化币安 REST 后端",
		zap.String("base_url", baseURL),
		zap.Bool("sandbox", cfg.Sandbox),
	)

	return &Client{
		transport: newTransport(cfg, baseURL, logger),
		logger:    logger,
	}, nil
}

// CreateOrder 提交订单并返回交易所回执。
func (c *Client) CreateOrder(ctx context.Context, req core.OrderRequest) (core.Order, error) {
	params := NewParams()
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("type", string(req.Type))
	params.Set("quantity", req.Quantity.String())
	if req.Type == core.TypeLimit {
		params.Set("price", req.Price.String())
		params.Set("timeInForce", "GTC")
	}

	body, err := c.transport.send(ctx, http.MethodPost, "/fapi/v1/order", params, authSigned)
	if err != nil {
		return core.Order{}, err
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Order{}, fmt.Errorf("decode order response: %w", err)
	}

	order := resp.toOrder()
	c.logger.Info("订单已提交",
		zap.Int64("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("status", string(order.Status)),
	)
	return order, nil
}

// CancelOrder 撤销指定订单。订单不存在或已终结时返回 NotFoundError。
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) (core.Order, error) {
	params := NewParams()
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	body, err := c.transport.send(ctx, http.MethodDelete, "/fapi/v1/order", params, authSigned)
	if err != nil {
		return core.Order{}, refineOrderRef(err, orderID)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Order{}, fmt.Errorf("decode cancel response: %w", err)
	}

	order := resp.toOrder()
	c.logger.Info("订单已撤销",
		zap.Int64("order_id", order.ID),
		zap.String("symbol", order.Symbol),
	)
	return order, nil
}

// FetchOrder 查询单个订单的当前状态。
func (c *Client) FetchOrder(ctx context.Context, symbol string, orderID int64) (core.Order, error) {
	params := NewParams()
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	body, err := c.transport.send(ctx, http.MethodGet, "/fapi/v1/order", params, authSigned)
	if err != nil {
		return core.Order{}, refineOrderRef(err, orderID)
	}

	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.Order{}, fmt.Errorf("decode order response: %w", err)
	}
	return resp.toOrder(), nil
}

// FetchOpenOrders 返回全部未终结订单，symbol 为空时查询所有交易对。
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	params := NewParams()
	if symbol != "" {
		params.Set("symbol", symbol)
	}

	body, err := c.transport.send(ctx, http.MethodGet, "/fapi/v1/openOrders", params, authSigned)
	if err != nil {
		return nil, err
	}

	var resp []orderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode open orders response: %w", err)
	}

	orders := make([]core.Order, 0, len(resp))
	for _, r := range resp {
		orders = append(orders, r.toOrder())
	}
	return orders, nil
}

// FetchBalance 返回账户内全部非零资产余额。
func (c *Client) FetchBalance(ctx context.Context) (core.Balances, error) {
	body, err := c.transport.send(ctx, http.MethodGet, "/fapi/v2/account", NewParams(), authSigned)
	if err != nil {
		return nil, err
	}

	var resp accountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode account response: %w", err)
	}

	balances := make(core.Balances, len(resp.Assets))
	for _, asset := range resp.Assets {
		total, err := decimal.NewFromString(asset.WalletBalance)
		if err != nil {
			continue
		}
		free, err := decimal.NewFromString(asset.AvailableBalance)
		if err != nil {
			continue
		}
		if total.IsZero() && free.IsZero() {
			continue
		}
		used := total.Sub(free)
		if used.IsNegative() {
			used = decimal.Zero
		}
		balances[asset.Asset] = core.Balance{Free: free, Used: used, Total: total}
	}
	return balances, nil
}

// FetchTicker 合并最优挂单与最新成交价两个行情接口。
func (c *Client) FetchTicker(ctx context.Context, symbol string) (core.Ticker, error) {
	params := NewParams()
	params.Set("symbol", symbol)

	body, err := c.transport.send(ctx, http.MethodGet, "/fapi/v1/ticker/bookTicker", params, authNone)
	if err != nil {
		return core.Ticker{}, err
	}
	var book bookTickerResponse
	if err := json.Unmarshal(body, &book); err != nil {
		return core.Ticker{}, fmt.Errorf("decode book ticker response: %w", err)
	}

	body, err = c.transport.send(ctx, http.MethodGet, "/fapi/v1/ticker/price", params.Clone(), authNone)
	if err != nil {
		return core.Ticker{}, err
	}
	var price priceResponse
	if err := json.Unmarshal(body, &price); err != nil {
		return core.Ticker{}, fmt.Errorf("decode price response: %w", err)
	}

	bid, err := strconv.ParseFloat(book.BidPrice, 64)
	if err != nil {
		return core.Ticker{}, fmt.Errorf("parse bid price %q: %w", book.BidPrice, err)
	}
	ask, err := strconv.ParseFloat(book.AskPrice, 64)
	if err != nil {
		return core.Ticker{}, fmt.Errorf("parse ask price %q: %w", book.AskPrice, err)
	}
	last, err := strconv.ParseFloat(price.Price, 64)
	if err != nil {
		return core.Ticker{}, fmt.Errorf("parse last price %q: %w", price.Price, err)
	}

	ts := time.Now().UTC()
	if book.Time > 0 {
		ts = time.UnixMilli(book.Time).UTC()
	}
	return core.Ticker{
		Symbol:    symbol,
		Bid:       bid,
		Ask:       ask,
		Last:      last,
		Timestamp: ts,
	}, nil
}

// FetchOrderBook 返回指定档位深度的盘口快照。
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, depth int) (core.OrderBook, error) {
	params := NewParams()
	params.Set("symbol", symbol)
	if depth > 0 {
		params.Set("limit", strconv.Itoa(depth))
	}

	body, err := c.transport.send(ctx, http.MethodGet, "/fapi/v1/depth", params, authNone)
	if err != nil {
		return core.OrderBook{}, err
	}

	var resp depthResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return core.OrderBook{}, fmt.Errorf("decode depth response: %w", err)
	}
	return resp.toOrderBook(symbol), nil
}

// FetchOHLCV 返回指定周期的 K 线序列。
func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]core.Candle, error) {
	params := NewParams()
	params.Set("symbol", symbol)
	params.Set("interval", timeframe)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	body, err := c.transport.send(ctx, http.MethodGet, "/fapi/v1/klines", params, authNone)
	if err != nil {
		return nil, err
	}
	return parseKlines(body)
}

// TestConnection 先探测公共接口连通性，再用签名接口校验凭据。
func (c *Client) TestConnection(ctx context.Context) error {
	if _, err := c.transport.send(ctx, http.MethodGet, "/fapi/v1/ping", nil, authNone); err != nil {
		return fmt.Errorf("ping exchange: %w", err)
	}
	if _, err := c.transport.send(ctx, http.MethodGet, "/fapi/v2/account", NewParams(), authSigned); err != nil {
		return fmt.Errorf("verify credentials: %w", err)
	}
	c.logger.Info("币安连接校验通过")
	return nil
}

// refineOrderRef 把订单类 NotFoundError 的引用替换为可读的订单号。
func refineOrderRef(err error, orderID int64) error {
	var nf *core.NotFoundError
	if errors.As(err, &nf) && nf.Resource == "order" {
		nf.Ref = strconv.FormatInt(orderID, 10)
	}
	return err
}
