package ccxt

import (
	"strconv"
	"strings"
	"time"

	ccxtgo "github.com/ccxt/ccxt/go/v4"
	"github.com/shopspring/decimal"

	"trade-gate/internal/core"
)

// unifiedSymbol 把 BTCUSDT 转成 ccxt 线性合约的统一符号 BTC/USDT:USDT。
func unifiedSymbol(symbol string) string {
	base, quote, ok := core.SplitSymbol(symbol)
	if !ok {
		return symbol
	}
	return base + "/" + quote + ":" + quote
}

// plainSymbol 去掉结算后缀与斜杠，还原为 BTCUSDT 形式。
func plainSymbol(unified string) string {
	if idx := strings.IndexByte(unified, ':'); idx >= 0 {
		unified = unified[:idx]
	}
	return strings.ToUpper(strings.ReplaceAll(unified, "/", ""))
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func derefFloat(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

// convertOrder 将 ccxt 回执归一化为统一订单视图。
// ccxt 的字段都是指针，缺失时以请求值回填。
func convertOrder(req core.OrderRequest, raw ccxtgo.Order) core.Order {
	order := core.Order{
		Symbol:   req.Symbol,
		Side:     req.Side,
		Type:     req.Type,
		Quantity: req.Quantity,
		Price:    req.Price,
	}

	if raw.Id != nil {
		if id, err := strconv.ParseInt(*raw.Id, 10, 64); err == nil {
			order.ID = id
		}
	}
	if s := derefString(raw.Symbol); s != "" {
		order.Symbol = plainSymbol(s)
	}
	if s := derefString(raw.Side); s != "" {
		order.Side = core.Side(strings.ToUpper(s))
	}
	if s := derefString(raw.Type); s != "" {
		order.Type = core.OrderType(strings.ToUpper(s))
	}
	if raw.Amount != nil && *raw.Amount > 0 {
		order.Quantity = decimal.NewFromFloat(*raw.Amount)
	}
	if raw.Price != nil && *raw.Price > 0 {
		order.Price = decimal.NewFromFloat(*raw.Price)
	}
	if raw.Filled != nil {
		order.ExecutedQty = decimal.NewFromFloat(*raw.Filled)
	}
	if raw.Average != nil {
		order.AvgPrice = decimal.NewFromFloat(*raw.Average)
	}

	order.Status = normalizeStatus(derefString(raw.Status), order.ExecutedQty)

	if raw.Timestamp != nil && *raw.Timestamp > 0 {
		order.CreatedAt = time.UnixMilli(*raw.Timestamp).UTC()
	} else {
		order.CreatedAt = time.Now().UTC()
	}
	return order
}

// normalizeStatus 把 ccxt 统一状态映射到本系统状态。
// 留在盘口的订单视为 OPEN，有部分成交时提升为 PARTIALLY_FILLED。
func normalizeStatus(status string, executed decimal.Decimal) core.OrderStatus {
	switch strings.ToLower(status) {
	case "open":
		if executed.IsPositive() {
			return core.StatusPartiallyFilled
		}
		return core.StatusOpen
	case "closed":
		return core.StatusFilled
	case "canceled", "cancelled", "expired":
		return core.StatusCanceled
	case "rejected":
		return core.StatusRejected
	default:
		if executed.IsPositive() {
			return core.StatusPartiallyFilled
		}
		return core.StatusNew
	}
}

func convertTicker(symbol string, raw ccxtgo.Ticker) core.Ticker {
	ts := time.Now().UTC()
	if raw.Timestamp != nil && *raw.Timestamp > 0 {
		ts = time.UnixMilli(*raw.Timestamp).UTC()
	}
	return core.Ticker{
		Symbol:    symbol,
		Bid:       derefFloat(raw.Bid),
		Ask:       derefFloat(raw.Ask),
		Last:      derefFloat(raw.Last),
		Timestamp: ts,
	}
}

func convertOrderBook(symbol string, raw ccxtgo.OrderBook) core.OrderBook {
	bids := make([]core.PriceLevel, 0, len(raw.Bids))
	for _, level := range raw.Bids {
		if len(level) < 2 {
			continue
		}
		bids = append(bids, core.PriceLevel{Price: level[0], Amount: level[1]})
	}

	asks := make([]core.PriceLevel, 0, len(raw.Asks))
	for _, level := range raw.Asks {
		if len(level) < 2 {
			continue
		}
		asks = append(asks, core.PriceLevel{Price: level[0], Amount: level[1]})
	}

	ts := time.Now().UTC()
	if raw.Timestamp != nil {
		ts = time.UnixMilli(*raw.Timestamp).UTC()
	}

	return core.OrderBook{
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: ts,
	}
}

func convertCandles(raw []ccxtgo.OHLCV) []core.Candle {
	candles := make([]core.Candle, 0, len(raw))
	for _, item := range raw {
		candles = append(candles, core.Candle{
			Timestamp: time.UnixMilli(item.Timestamp).UTC(),
			Open:      item.Open,
			High:      item.High,
			Low:       item.Low,
			Close:     item.Close,
			Volume:    item.Volume,
		})
	}
	return candles
}

// convertBalances 跳过全零资产，资产代码统一为大写。
func convertBalances(raw ccxtgo.Balances) core.Balances {
	out := make(core.Balances)
	for asset, total := range raw.Total {
		t := derefFloat(total)
		var free, used float64
		if raw.Free != nil {
			free = derefFloat(raw.Free[asset])
		}
		if raw.Used != nil {
			used = derefFloat(raw.Used[asset])
		}
		if t == 0 && free == 0 && used == 0 {
			continue
		}
		out[strings.ToUpper(asset)] = core.Balance{
			Free:  decimal.NewFromFloat(free),
			Used:  decimal.NewFromFloat(used),
			Total: decimal.NewFromFloat(t),
		}
	}
	return out
}
