package exchange

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"trade-gate/internal/config"
	"trade-gate/internal/core"
	"trade-gate/internal/exchange/binance"
	"trade-gate/internal/exchange/ccxt"
	"trade-gate/internal/exchange/mock"
	"trade-gate/internal/journal"
	"trade-gate/internal/validate"
)

// CredentialProvider 在构造实盘后端时解析 API 凭据，
// 用于从环境变量或密钥管理器等外部来源注入，避免把密钥写进配置文件。
type CredentialProvider func() (apiKey, apiSecret string, err error)

// Options 携带 Manager 的可选依赖。
type Options struct {
	// Credentials 非空时覆盖配置中的凭据，仅对实盘后端生效。
	Credentials CredentialProvider
	// Journal 非空时记录订单生命周期流水，nil 表示不落盘。
	Journal *journal.Recorder
}

// Manager 是统一的交易入口：先在本地完成请求校验，再路由到选定后端，
// 并把订单生命周期写入流水。Manager 自身满足 Backend 契约，
// 调用方可以在任何接受 Backend 的位置直接使用它。
type Manager struct {
	mode    Mode
	backend Backend
	bounds  validate.Bounds
	journal *journal.Recorder
	logger  *zap.Logger
}

// NewManager 根据配置选择并构造后端。
func NewManager(cfg *config.Config, logger *zap.Logger, opts Options) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("exchange: 配置不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	mode := Mode(cfg.Exchange.Mode)
	exchangeCfg := cfg.Exchange
	if mode != ModeMock && opts.Credentials != nil {
		apiKey, apiSecret, err := opts.Credentials()
		if err != nil {
			return nil, fmt.Errorf("解析交易所凭据失败: %w", err)
		}
		exchangeCfg.APIKey = apiKey
		exchangeCfg.APISecret = apiSecret
	}

	var (
		backend Backend
		err     error
	)
	switch mode {
	case ModeMock:
		backend = mock.NewExchange(cfg.Mock, logger)
	case ModeCCXT:
		backend, err = ccxt.NewClient(exchangeCfg, logger)
	case ModeREST:
		backend, err = binance.NewClient(exchangeCfg, logger)
	default:
		return nil, fmt.Errorf("不支持的交易所模式 %q", cfg.Exchange.Mode)
	}
	if err != nil {
		return nil, err
	}

	bounds := validate.Bounds{
		MinQuantity: cfg.Limits.MinQuantity,
		MaxQuantity: cfg.Limits.MaxQuantity,
	}
	if !bounds.MinQuantity.IsPositive() || !bounds.MaxQuantity.IsPositive() {
		bounds = validate.DefaultBounds()
	}

	logger.Info("交易入口初始化完成",
		zap.String("mode", string(mode)),
		zap.Bool("sandbox", cfg.Exchange.Sandbox),
		zap.Bool("journal", opts.Journal != nil),
	)

	return newManager(mode, backend, bounds, opts.Journal, logger), nil
}

func newManager(mode Mode, backend Backend, bounds validate.Bounds, recorder *journal.Recorder, logger *zap.Logger) *Manager {
	return &Manager{
		mode:    mode,
		backend: backend,
		bounds:  bounds,
		journal: recorder,
		logger:  logger,
	}
}

// Mode 返回当前后端模式。
func (m *Manager) Mode() Mode {
	return m.mode
}

// CreateOrder 校验并规范化请求后交给后端执行。
// 校验失败的请求不会产生任何网络调用；校验失败与后端拒单都会写入流水。
func (m *Manager) CreateOrder(ctx context.Context, req core.OrderRequest) (core.Order, error) {
	normalized, err := validate.OrderRequest(req, m.bounds)
	if err != nil {
		m.journal.RecordOrderRejected(ctx, req, err)
		return core.Order{}, err
	}

	order, err := m.backend.CreateOrder(ctx, normalized)
	if err != nil {
		m.journal.RecordOrderRejected(ctx, normalized, err)
		return core.Order{}, err
	}

	m.journal.RecordOrderCreated(ctx, order)
	m.logger.Info("订单已受理",
		zap.Int64("order_id", order.ID),
		zap.String("symbol", order.Symbol),
		zap.String("side", string(order.Side)),
		zap.String("type", string(order.Type)),
		zap.String("status", string(order.Status)),
	)
	return order, nil
}

// CancelOrder 撤销指定订单，成功后写入流水。
func (m *Manager) CancelOrder(ctx context.Context, symbol string, orderID int64) (core.Order, error) {
	canonical, err := validate.Symbol(symbol)
	if err != nil {
		return core.Order{}, err
	}
	if orderID <= 0 {
		return core.Order{}, &core.ValidationError{Field: "order_id", Reason: "order id must be positive"}
	}

	order, err := m.backend.CancelOrder(ctx, canonical, orderID)
	if err != nil {
		m.journal.RecordError(ctx, "cancel_order", canonical, err)
		return core.Order{}, err
	}

	m.journal.RecordOrderCanceled(ctx, order)
	m.logger.Info("订单已撤销",
		zap.Int64("order_id", order.ID),
		zap.String("symbol", order.Symbol),
	)
	return order, nil
}

// FetchOrder 查询单个订单的当前状态。
func (m *Manager) FetchOrder(ctx context.Context, symbol string, orderID int64) (core.Order, error) {
	canonical, err := validate.Symbol(symbol)
	if err != nil {
		return core.Order{}, err
	}
	if orderID <= 0 {
		return core.Order{}, &core.ValidationError{Field: "order_id", Reason: "order id must be positive"}
	}
	return m.backend.FetchOrder(ctx, canonical, orderID)
}

// FetchOpenOrders 返回未完结订单，symbol 为空时不过滤。
func (m *Manager) FetchOpenOrders(ctx context.Context, symbol string) ([]core.Order, error) {
	if symbol == "" {
		return m.backend.FetchOpenOrders(ctx, "")
	}
	canonical, err := validate.Symbol(symbol)
	if err != nil {
		return nil, err
	}
	return m.backend.FetchOpenOrders(ctx, canonical)
}

// FetchBalance 返回账户余额快照。
func (m *Manager) FetchBalance(ctx context.Context) (core.Balances, error) {
	return m.backend.FetchBalance(ctx)
}

// FetchTicker 返回指定交易对的最新行情。
func (m *Manager) FetchTicker(ctx context.Context, symbol string) (core.Ticker, error) {
	canonical, err := validate.Symbol(symbol)
	if err != nil {
		return core.Ticker{}, err
	}
	return m.backend.FetchTicker(ctx, canonical)
}

// FetchOrderBook 返回盘口深度，depth 不为正时由后端采用默认档位。
func (m *Manager) FetchOrderBook(ctx context.Context, symbol string, depth int) (core.OrderBook, error) {
	canonical, err := validate.Symbol(symbol)
	if err != nil {
		return core.OrderBook{}, err
	}
	return m.backend.FetchOrderBook(ctx, canonical, depth)
}

// FetchOHLCV 返回指定周期的K线序列。
func (m *Manager) FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]core.Candle, error) {
	canonical, err := validate.Symbol(symbol)
	if err != nil {
		return nil, err
	}
	return m.backend.FetchOHLCV(ctx, canonical, timeframe, limit)
}

// TestConnection 校验后端可达且凭据有效。
func (m *Manager) TestConnection(ctx context.Context) error {
	return m.backend.TestConnection(ctx)
}
