// Package ccxt 通过 ccxt 库适配币安 USDⓈ-M 合约。
// 符号、状态与错误都在此归一化，上层只看到统一的订单视图与错误类型。
package ccxt

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	ccxtgo "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"trade-gate/internal/config"
	"trade-gate/internal/core"
)

// Client 负责与交易所交互并实现重试机制。
type Client struct {
	cfg      config.ExchangeConfig
	logger   *zap.Logger
	exchange *ccxtgo.Binanceusdm

	marketsMu     sync.Mutex
	marketsLoaded bool
}

// NewClient 构造 Binance USDⓈ-M 客户端。沙盒模式指向交易所测试网。
func NewClient(cfg config.ExchangeConfig, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("ccxt 后端需要 api_key 与 api_secret")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	userConfig := map[string]interface{}{
		"apiKey":          cfg.APIKey,
		"secret":          cfg.APISecret,
		"enableRateLimit": true,
		"options": map[string]interface{}{
			"adjustForTimeDifference": true,
			"defaultType":             "future",
		},
	}

	ex := ccxtgo.NewBinanceusdm(userConfig)
	if cfg.Sandbox {
		ex.SetSandboxMode(true)
	}

	logger.Info("初始化 ccxt 后端", zap.Bool("sandbox", cfg.Sandbox))

	return &Client{
		cfg:      cfg,
		logger:   logger,
		exchange: ex,
	}, nil
}

// CreateOrder 提交订单。市价单忽略价格，限价单以 GTC 方式挂单。
func (c *Client) CreateOrder(ctx context.Context, req core.OrderRequest) (core.Order, error) {
	symbol := unifiedSymbol(req.Symbol)
	side := strings.ToLower(string(req.Side))
	amount, _ := req.Quantity.Float64()

	var raw ccxtgo.Order
	err := c.callWithRetry(ctx, "create_order", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}

		var (
			result ccxtgo.Order
			err    error
		)
		if req.Type == core.TypeLimit {
			price, _ := req.Price.Float64()
			result, err = c.exchange.CreateLimitOrder(symbol, side, amount, price)
		} else {
			result, err = c.exchange.CreateMarketOrder(symbol, side, amount)
		}
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return core.Order{}, err
	}

	order := convertOrder(req, raw)
	c.logger.Info("订单已提交",
		zap.Int64("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("status", string(order.Status)),
	)
	return order, nil
}

// CancelOrder 撤销指定订单。
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) (core.Order, error) {
	id := strconv.FormatInt(orderID, 10)

	var raw ccxtgo.Order
	err := c.callWithRetry(ctx, "cancel_order", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := c.exchange.CancelOrder(id, ccxtgo.WithCancelOrderSymbol(unifiedSymbol(symbol)))
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return core.Order{}, refineOrderRef(err, orderID)
	}

	order := convertOrder(core.OrderRequest{Symbol: symbol}, raw)
	if order.Status == core.StatusNew || order.Status == core.StatusOpen {
		order.Status = core.StatusCanceled
	}
	c.logger.Info("订单已撤销",
		zap.Int64("order_id", order.ID),
		zap.String("symbol", order.Symbol),
	)
	return order, nil
}

// FetchOrder 查询单个订单的当前状态。
func (c *Client) FetchOrder(ctx context.Context, symbol string, orderID int64) (core.Order, error) {
	id := strconv.FormatInt(orderID, 10)

	var raw ccxtgo.Order
	err := c.callWithRetry(ctx, "fetch_order", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := c.exchange.FetchOrder(id, ccxtgo.WithFetchOrderSymbol(unifiedSymbol(symbol)))
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return core.Order{}, refineOrderRef(err, orderID)
	}

	return convertOrder(core.OrderRequest{Symbol: symbol}, raw), nil
}

// FetchOpenOrders 返回未终结订单，symbol 为空时查询所有交易对。
func (c *Client) FetchOpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	var raw []ccxtgo.Order
	err := c.callWithRetry(ctx, "fetch_open_orders", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}

		var (
			result []ccxtgo.Order
			err    error
		)
		if symbol != "" {
			result, err = c.exchange.FetchOpenOrders(ccxtgo.WithFetchOpenOrdersSymbol(unifiedSymbol(symbol)))
		} else {
			result, err = c.exchange.FetchOpenOrders()
		}
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return nil, err
	}

	orders := make([]core.Order, 0, len(raw))
	for _, item := range raw {
		orders = append(orders, convertOrder(core.OrderRequest{Symbol: symbol}, item))
	}
	return orders, nil
}

// FetchBalance 返回账户内全部非零资产余额。
func (c *Client) FetchBalance(ctx context.Context) (core.Balances, error) {
	var raw ccxtgo.Balances
	err := c.callWithRetry(ctx, "fetch_balance", func() error {
		result, err := c.exchange.FetchBalance()
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return convertBalances(raw), nil
}

// FetchTicker 返回最优买卖价与最新成交价。
func (c *Client) FetchTicker(ctx context.Context, symbol string) (core.Ticker, error) {
	var raw ccxtgo.Ticker
	err := c.callWithRetry(ctx, "fetch_ticker", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := c.exchange.FetchTicker(unifiedSymbol(symbol))
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return core.Ticker{}, err
	}
	return convertTicker(symbol, raw), nil
}

// FetchOrderBook 获取订单簿快照。
func (c *Client) FetchOrderBook(ctx context.Context, symbol string, depth int) (core.OrderBook, error) {
	if depth <= 0 {
		depth = 20
	}

	var raw ccxtgo.OrderBook
	err := c.callWithRetry(ctx, "fetch_order_book", func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := c.exchange.FetchOrderBook(
			unifiedSymbol(symbol),
			ccxtgo.WithFetchOrderBookLimit(int64(depth)),
		)
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return core.OrderBook{}, err
	}
	return convertOrderBook(symbol, raw), nil
}

// FetchOHLCV 获取指定周期的K线数据。
func (c *Client) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]core.Candle, error) {
	if limit <= 0 {
		limit = 1
	}

	var raw []ccxtgo.OHLCV
	err := c.callWithRetry(ctx, fmt.Sprintf("fetch_ohlcv_%s", timeframe), func() error {
		if err := c.ensureMarketsLoaded(ctx); err != nil {
			return err
		}
		result, err := c.exchange.FetchOHLCV(
			unifiedSymbol(symbol),
			ccxtgo.WithFetchOHLCVTimeframe(timeframe),
			ccxtgo.WithFetchOHLCVLimit(int64(limit)),
		)
		if err != nil {
			return err
		}
		raw = result
		return nil
	})
	if err != nil {
		return nil, err
	}
	return convertCandles(raw), nil
}

// TestConnection 加载市场元数据验证连通性，再查询余额验证凭据。
func (c *Client) TestConnection(ctx context.Context) error {
	if err := c.ensureMarketsLoaded(ctx); err != nil {
		return fmt.Errorf("load markets: %w", err)
	}
	if _, err := c.FetchBalance(ctx); err != nil {
		return fmt.Errorf("verify credentials: %w", err)
	}
	c.logger.Info("ccxt 连接校验通过")
	return nil
}

// ensureMarketsLoaded 按需加载一次市场元数据。
// 行情快照会并发调用多个查询，整个检查必须在锁内完成。
func (c *Client) ensureMarketsLoaded(ctx context.Context) error {
	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if c.marketsLoaded {
		return nil
	}

	loadErr := c.callWithRetry(ctx, "load_markets", func() error {
		_, err := c.exchange.LoadMarkets()
		return err
	})
	if loadErr != nil {
		return loadErr
	}

	c.marketsLoaded = true
	c.logger.Info("已完成市场元数据加载")
	return nil
}

func (c *Client) callWithRetry(ctx context.Context, operation string, fn func() error) error {
	attempt := 0
	delay := c.cfg.Retry.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := c.cfg.Retry.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	maxAttempts := c.cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	var deadline time.Time
	if c.cfg.Retry.MaxElapsed > 0 {
		deadline = time.Now().Add(c.cfg.Retry.MaxElapsed)
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		latency := time.Since(start)
		if err == nil {
			if attempt > 1 {
				c.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", latency),
				)
			}
			return nil
		}

		normalized, retry := classifyError(operation, err)

		if !retry || attempt >= maxAttempts {
			c.logger.Error("交易所调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", latency),
				zap.Error(normalized),
			)
			return normalized
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		if !deadline.IsZero() && time.Now().Add(wait).After(deadline) {
			c.logger.Error("交易所调用超出重试时间预算",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Error(normalized),
			)
			return normalized
		}

		c.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalized),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// refineOrderRef 把订单类 NotFoundError 的引用替换为可读的订单号。
func refineOrderRef(err error, orderID int64) error {
	var nf *core.NotFoundError
	if errors.As(err, &nf) && nf.Resource == "order" {
		nf.Ref = strconv.FormatInt(orderID, 10)
	}
	return err
}
