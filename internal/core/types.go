package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side 表示订单方向。
type Side string

// OrderType 表示订单类型。
type OrderType string

// OrderStatus 表示订单生命周期状态。
type OrderStatus string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

const (
	TypeMarket OrderType = "MARKET"
	TypeLimit  OrderType = "LIMIT"
)

const (
	StatusNew             OrderStatus = "NEW"
	StatusOpen            OrderStatus = "OPEN"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusRejected        OrderStatus = "REJECTED"
)

// IsTerminal 判断订单是否已进入终态，终态订单不再变化。
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected:
		return true
	default:
		return false
	}
}

// OrderRequest 描述调用方发起的一次下单请求。
// Price 为零值表示未提供价格，仅限价单要求价格。
type OrderRequest struct {
	Symbol   string
	Side     Side
	Type     OrderType
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// Order 是三种后端共享的统一订单视图。
type Order struct {
	ID          int64
	Symbol      string
	Side        Side
	Type        OrderType
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	Status      OrderStatus
	ExecutedQty decimal.Decimal
	AvgPrice    decimal.Decimal
	CreatedAt   time.Time
}

// Balance 表示单一资产余额。模拟账本严格维持 Total 等于 Free 加 Used，
// 实盘后端按交易所返回值原样呈现。
type Balance struct {
	Free  decimal.Decimal
	Used  decimal.Decimal
	Total decimal.Decimal
}

// NewBalance 按不变式构造余额。
func NewBalance(free, used decimal.Decimal) Balance {
	return Balance{Free: free, Used: used, Total: free.Add(used)}
}

// Balances 按资产代码聚合账户余额。
type Balances map[string]Balance

// Ticker 表示最优买卖价快照，仅作展示参考，不参与余额不变式。
type Ticker struct {
	Symbol    string
	Bid       float64
	Ask       float64
	Last      float64
	Timestamp time.Time
}

// PriceLevel 表示盘口单个档位。
type PriceLevel struct {
	Price  float64
	Amount float64
}

// OrderBook 为订单簿快照，Bids 按价格降序、Asks 按价格升序。
type OrderBook struct {
	Symbol    string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// Candle 代表单根K线，按时间升序排列。
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}
