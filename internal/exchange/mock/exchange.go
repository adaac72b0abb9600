// Package mock 实现完全离线的模拟交易所。
// 订单即时撮合，资金账本用精确小数记账，行情由确定性随机游走合成。
package mock

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trade-gate/internal/config"
	"trade-gate/internal/core"
)

// startOrderSeq 之后的第一个订单号为 1001。
const startOrderSeq = 1000

var defaultBalances = map[string]string{
	"USDT": "10000",
	"BTC":  "0.05",
	"ETH":  "1.5",
	"BNB":  "10",
}

// Exchange 是内存撮合引擎。所有公开方法都可以并发调用，
// 内部由单把互斥锁串行化，任意时刻账本满足 Total = Free + Used。
type Exchange struct {
	mu       sync.Mutex
	logger   *zap.Logger
	seed     int64
	balances map[string]core.Balance
	orders   map[int64]*core.Order
	orderSeq int64
	markets  map[string]*symbolMarket
}

// NewExchange 按配置构造模拟交易所。未配置余额时使用默认种子资金。
func NewExchange(cfg config.MockConfig, logger *zap.Logger) *Exchange {
	if logger == nil {
		logger = zap.NewNop()
	}

	balances := make(map[string]core.Balance)
	if len(cfg.Balances) == 0 {
		for asset, amount := range defaultBalances {
			balances[asset] = core.NewBalance(decimal.RequireFromString(amount), decimal.Zero)
		}
	} else {
		for asset, amount := range cfg.Balances {
			balances[strings.ToUpper(asset)] = core.NewBalance(amount, decimal.Zero)
		}
	}

	e := &Exchange{
		logger:   logger,
		seed:     cfg.Seed,
		balances: balances,
		orders:   make(map[int64]*core.Order),
		orderSeq: startOrderSeq,
		markets:  make(map[string]*symbolMarket),
	}

	logger.Info("模拟交易所初始化完成",
		zap.Int64("seed", cfg.Seed),
		zap.Int("assets", len(balances)),
	)
	return e
}

// market 返回交易对的模拟行情，未知交易对返回 NotFoundError。
// 调用方必须持有 e.mu。
func (e *Exchange) market(symbol string) (*symbolMarket, error) {
	if m, ok := e.markets[symbol]; ok {
		return m, nil
	}
	base, ok := defaultPrices[symbol]
	if !ok {
		return nil, &core.NotFoundError{Resource: "symbol", Ref: symbol}
	}
	m := newSymbolMarket(symbol, e.seed, base)
	e.markets[symbol] = m
	return m, nil
}

// CreateOrder 即时撮合订单。市价单按带滑点的行情价全额成交，
// 限价单可成交时按限价成交，否则冻结资金挂单等待撤销。
// 资金不足时订单以 REJECTED 状态留档并返回 ExchangeError。
func (e *Exchange) CreateOrder(ctx context.Context, req core.OrderRequest) (core.Order, error) {
	if err := ctx.Err(); err != nil {
		return core.Order{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	market, err := e.market(req.Symbol)
	if err != nil {
		return core.Order{}, err
	}
	base, quote, ok := core.SplitSymbol(req.Symbol)
	if !ok {
		return core.Order{}, &core.NotFoundError{Resource: "symbol", Ref: req.Symbol}
	}

	e.orderSeq++
	order := &core.Order{
		ID:        e.orderSeq,
		Symbol:    req.Symbol,
		Side:      req.Side,
		Type:      req.Type,
		Quantity:  req.Quantity,
		Price:     req.Price,
		CreatedAt: time.Now().UTC(),
	}

	if req.Type == core.TypeMarket {
		price := decimal.NewFromFloat(market.fillPrice(req.Side))
		if err := e.settle(order, base, quote, price); err != nil {
			return core.Order{}, err
		}
		e.logger.Info("模拟市价单已成交",
			zap.Int64("order_id", order.ID),
			zap.String("symbol", order.Symbol),
			zap.String("side", string(order.Side)),
			zap.String("avg_price", order.AvgPrice.String()),
		)
		return *order, nil
	}

	// 限价单先看一次行情判断能否立即成交。
	observed := decimal.NewFromFloat(market.nextPrice())
	crossable := (req.Side == core.SideBuy && req.Price.GreaterThanOrEqual(observed)) ||
		(req.Side == core.SideSell && req.Price.LessThanOrEqual(observed))

	if crossable {
		if err := e.settle(order, base, quote, req.Price); err != nil {
			return core.Order{}, err
		}
		e.logger.Info("模拟限价单立即成交",
			zap.Int64("order_id", order.ID),
			zap.String("symbol", order.Symbol),
			zap.String("price", order.Price.String()),
		)
		return *order, nil
	}

	if err := e.hold(order, base, quote); err != nil {
		return core.Order{}, err
	}
	order.Status = core.StatusOpen
	e.orders[order.ID] = order
	e.logger.Info("模拟限价单已挂单",
		zap.Int64("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("price", order.Price.String()),
	)
	return *order, nil
}

// settle 全额成交订单并调整双边余额。调用方必须持有 e.mu。
func (e *Exchange) settle(order *core.Order, base, quote string, price decimal.Decimal) error {
	cost := order.Quantity.Mul(price)

	if order.Side == core.SideBuy {
		if !e.spend(quote, cost) {
			return e.reject(order, quote, cost)
		}
		e.credit(base, order.Quantity)
	} else {
		if !e.spend(base, order.Quantity) {
			return e.reject(order, base, order.Quantity)
		}
		e.credit(quote, cost)
	}

	order.Status = core.StatusFilled
	order.ExecutedQty = order.Quantity
	order.AvgPrice = price
	e.orders[order.ID] = order
	return nil
}

// hold 为挂单冻结资金，Free 转入 Used，Total 不变。调用方必须持有 e.mu。
func (e *Exchange) hold(order *core.Order, base, quote string) error {
	if order.Side == core.SideBuy {
		cost := order.Quantity.Mul(order.Price)
		if !e.reserve(quote, cost) {
			return e.reject(order, quote, cost)
		}
		return nil
	}
	if !e.reserve(base, order.Quantity) {
		return e.reject(order, base, order.Quantity)
	}
	return nil
}

// reject 将资金不足的订单留档为 REJECTED 并返回对应错误。
func (e *Exchange) reject(order *core.Order, asset string, needed decimal.Decimal) error {
	order.Status = core.StatusRejected
	e.orders[order.ID] = order

	available := e.balances[asset].Free
	e.logger.Warn("模拟下单被拒绝",
		zap.Int64("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("asset", asset),
		zap.String("needed", needed.String()),
		zap.String("available", available.String()),
	)
	return &core.ExchangeError{
		Code:    core.CodeMarginInsufficient,
		Message: "insufficient " + asset + " balance: need " + needed.String() + ", have " + available.String(),
	}
}

// CancelOrder 撤销挂单并原额解冻资金。未知或已终结的订单返回 NotFoundError。
func (e *Exchange) CancelOrder(ctx context.Context, symbol string, orderID int64) (core.Order, error) {
	if err := ctx.Err(); err != nil {
		return core.Order{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok || order.Status.IsTerminal() {
		return core.Order{}, &core.NotFoundError{Resource: "order", Ref: strconv.FormatInt(orderID, 10)}
	}
	if symbol != "" && order.Symbol != symbol {
		return core.Order{}, &core.NotFoundError{Resource: "order", Ref: strconv.FormatInt(orderID, 10)}
	}

	base, quote, _ := core.SplitSymbol(order.Symbol)
	if order.Side == core.SideBuy {
		e.release(quote, order.Quantity.Mul(order.Price))
	} else {
		e.release(base, order.Quantity)
	}

	order.Status = core.StatusCanceled
	e.logger.Info("模拟订单已撤销",
		zap.Int64("order_id", order.ID),
		zap.String("symbol", order.Symbol),
	)
	return *order, nil
}

// FetchOrder 返回订单当前状态的副本。
func (e *Exchange) FetchOrder(ctx context.Context, symbol string, orderID int64) (core.Order, error) {
	if err := ctx.Err(); err != nil {
		return core.Order{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok {
		return core.Order{}, &core.NotFoundError{Resource: "order", Ref: strconv.FormatInt(orderID, 10)}
	}
	if symbol != "" && order.Symbol != symbol {
		return core.Order{}, &core.NotFoundError{Resource: "order", Ref: strconv.FormatInt(orderID, 10)}
	}
	return *order, nil
}

// FetchOpenOrders 按订单号升序返回全部未终结订单。
func (e *Exchange) FetchOpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	open := make([]core.Order, 0)
	for _, order := range e.orders {
		if order.Status.IsTerminal() {
			continue
		}
		if symbol != "" && order.Symbol != symbol {
			continue
		}
		open = append(open, *order)
	}
	sort.Slice(open, func(i, j int) bool { return open[i].ID < open[j].ID })
	return open, nil
}

// FetchBalance 返回账本快照，修改返回值不影响内部状态。
func (e *Exchange) FetchBalance(ctx context.Context) (core.Balances, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	snapshot := make(core.Balances, len(e.balances))
	for asset, balance := range e.balances {
		snapshot[asset] = balance
	}
	return snapshot, nil
}

// FetchTicker 推进随机游走并返回买卖价差为固定比例的行情快照。
func (e *Exchange) FetchTicker(ctx context.Context, symbol string) (core.Ticker, error) {
	if err := ctx.Err(); err != nil {
		return core.Ticker{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	market, err := e.market(symbol)
	if err != nil {
		return core.Ticker{}, err
	}
	return market.ticker(), nil
}

// FetchOrderBook 合成围绕当前中间价的盘口快照。
func (e *Exchange) FetchOrderBook(ctx context.Context, symbol string, depth int) (core.OrderBook, error) {
	if err := ctx.Err(); err != nil {
		return core.OrderBook{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	market, err := e.market(symbol)
	if err != nil {
		return core.OrderBook{}, err
	}
	return market.orderBook(depth), nil
}

// FetchOHLCV 合成指定周期的K线序列。
func (e *Exchange) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]core.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	market, err := e.market(symbol)
	if err != nil {
		return nil, err
	}
	return market.candles(timeframe, limit), nil
}

// TestConnection 永远成功，模拟交易所没有外部依赖。
func (e *Exchange) TestConnection(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.logger.Info("模拟交易所连接正常")
	return nil
}

func (e *Exchange) credit(asset string, amount decimal.Decimal) {
	b := e.balances[asset]
	e.balances[asset] = core.NewBalance(b.Free.Add(amount), b.Used)
}

func (e *Exchange) spend(asset string, amount decimal.Decimal) bool {
	b := e.balances[asset]
	if b.Free.LessThan(amount) {
		return false
	}
	e.balances[asset] = core.NewBalance(b.Free.Sub(amount), b.Used)
	return true
}

func (e *Exchange) reserve(asset string, amount decimal.Decimal) bool {
	b := e.balances[asset]
	if b.Free.LessThan(amount) {
		return false
	}
	e.balances[asset] = core.NewBalance(b.Free.Sub(amount), b.Used.Add(amount))
	return true
}

func (e *Exchange) release(asset string, amount decimal.Decimal) {
	b := e.balances[asset]
	used := b.Used.Sub(amount)
	if used.IsNegative() {
		used = decimal.Zero
	}
	e.balances[asset] = core.NewBalance(b.Free.Add(amount), used)
}
