package mock

import (
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"trade-gate/internal/core"
)

// 模拟行情的固定参数。成交价在随机游走观测值上叠加固定滑点。
const (
	buySlippage  = 1.001
	sellSlippage = 0.999
	driftLow     = 0.9995
	driftHigh    = 1.0005
	halfSpread   = 0.00025
	levelStep    = 0.0001

	defaultDepth       = 20
	defaultCandleLimit = 24
)

// defaultPrices 是模拟交易所认识的交易对及其初始中间价。
var defaultPrices = map[string]float64{
	"BTCUSDT": 45000,
	"ETHUSDT": 2500,
	"BNBUSDT": 450,
	"ADAUSDT": 1.20,
	"SOLUSDT": 180,
}

var timeframes = map[string]time.Duration{
	"1m":  time.Minute,
	"3m":  3 * time.Minute,
	"5m":  5 * time.Minute,
	"15m": 15 * time.Minute,
	"30m": 30 * time.Minute,
	"1h":  time.Hour,
	"2h":  2 * time.Hour,
	"4h":  4 * time.Hour,
	"6h":  6 * time.Hour,
	"12h": 12 * time.Hour,
	"1d":  24 * time.Hour,
}

func timeframeDuration(timeframe string) time.Duration {
	if d, ok := timeframes[timeframe]; ok {
		return d
	}
	return time.Hour
}

// symbolMarket 为单个交易对维护一条确定性随机游走。
// 成交、行情、盘口与K线消耗同一条观测序列，相同种子下相同调用序列产生相同数值。
// 并发保护由持有方的互斥锁提供。
type symbolMarket struct {
	symbol string
	mid    float64
	rng    *rand.Rand
}

func newSymbolMarket(symbol string, seed int64, basePrice float64) *symbolMarket {
	h := fnv.New64a()
	h.Write([]byte(symbol))
	return &symbolMarket{
		symbol: symbol,
		mid:    basePrice,
		rng:    rand.New(rand.NewSource(seed ^ int64(h.Sum64()))),
	}
}

func (m *symbolMarket) uniform(low, high float64) float64 {
	return low + m.rng.Float64()*(high-low)
}

// nextPrice 推进随机游走并返回新的中间价。
func (m *symbolMarket) nextPrice() float64 {
	m.mid *= m.uniform(driftLow, driftHigh)
	return m.mid
}

// fillPrice 返回带滑点的成交价，买单略高于中间价，卖单略低。
func (m *symbolMarket) fillPrice(side core.Side) float64 {
	p := m.nextPrice()
	if side == core.SideBuy {
		return p * buySlippage
	}
	return p * sellSlippage
}

func (m *symbolMarket) ticker() core.Ticker {
	p := m.nextPrice()
	return core.Ticker{
		Symbol:    m.symbol,
		Bid:       p * (1 - halfSpread),
		Ask:       p * (1 + halfSpread),
		Last:      p,
		Timestamp: time.Now().UTC(),
	}
}

func (m *symbolMarket) orderBook(depth int) core.OrderBook {
	if depth <= 0 {
		depth = defaultDepth
	}
	p := m.nextPrice()
	book := core.OrderBook{
		Symbol:    m.symbol,
		Bids:      make([]core.PriceLevel, 0, depth),
		Asks:      make([]core.PriceLevel, 0, depth),
		Timestamp: time.Now().UTC(),
	}
	for i := 0; i < depth; i++ {
		offset := levelStep * float64(i+1)
		book.Bids = append(book.Bids, core.PriceLevel{Price: p * (1 - offset), Amount: m.uniform(0.1, 10)})
		book.Asks = append(book.Asks, core.PriceLevel{Price: p * (1 + offset), Amount: m.uniform(0.1, 10)})
	}
	return book
}

// candles 每次调用都从当前中间价的 95% 起合成一段新的K线序列。
func (m *symbolMarket) candles(timeframe string, limit int) []core.Candle {
	if limit <= 0 {
		limit = defaultCandleLimit
	}
	step := timeframeDuration(timeframe)
	now := time.Now().UTC().Truncate(step)

	out := make([]core.Candle, 0, limit)
	price := m.mid * 0.95
	for i := 0; i < limit; i++ {
		open := price
		closePrice := open * m.uniform(0.98, 1.02)
		high := math.Max(open, closePrice) * m.uniform(1.0, 1.01)
		low := math.Min(open, closePrice) * m.uniform(0.99, 1.0)
		out = append(out, core.Candle{
			Timestamp: now.Add(-time.Duration(limit-i) * step),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    m.uniform(100, 1000),
		})
		price = closePrice
	}
	return out
}
