// Package exchange 在多个交易所实现之上提供统一的下单与行情入口。
// 具体后端由配置决定，调用方只依赖本包的 Backend 契约。
package exchange

import (
	"context"

	"trade-gate/internal/core"
)

// Mode 标识订单路由的后端实现，构造后不可更换。
type Mode string

const (
	// ModeMock 使用离线模拟撮合，适合开发与测试。
	ModeMock Mode = "mock"
	// ModeCCXT 通过 ccxt 统一库访问交易所。
	ModeCCXT Mode = "ccxt"
	// ModeREST 直连币安合约 REST 接口并自行签名。
	ModeREST Mode = "rest"
)

// Backend 是所有交易所实现共同遵守的契约。
// 实现必须把底层错误归一化为 core 包定义的错误类型，
// 并保证同一请求在不同后端上返回语义一致的结果。
type Backend interface {
	CreateOrder(ctx context.Context, req core.OrderRequest) (core.Order, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) (core.Order, error)
	FetchOrder(ctx context.Context, symbol string, orderID int64) (core.Order, error)
	FetchOpenOrders(ctx context.Context, symbol string) ([]core.Order, error)
	FetchBalance(ctx context.Context) (core.Balances, error)
	FetchTicker(ctx context.Context, symbol string) (core.Ticker, error)
	FetchOrderBook(ctx context.Context, symbol string, depth int) (core.OrderBook, error)
	FetchOHLCV(ctx context.Context, symbol, timeframe string, limit int) ([]core.Candle, error)
	TestConnection(ctx context.Context) error
}
