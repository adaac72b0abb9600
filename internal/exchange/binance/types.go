package binance

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"trade-gate/internal/core"
)

// orderResponse 对应 /fapi/v1/order 的下单、撤单与查询响应。
type orderResponse struct {
	OrderID       int64  `json:"orderId"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	ClientOrderID string `json:"clientOrderId"`
	Price         string `json:"price"`
	AvgPrice      string `json:"avgPrice"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	TimeInForce   string `json:"timeInForce"`
	Time          int64  `json:"time"`
	UpdateTime    int64  `json:"updateTime"`
}

func (r orderResponse) toOrder() core.Order {
	price, _ := decimal.NewFromString(r.Price)
	qty, _ := decimal.NewFromString(r.OrigQty)
	executed, _ := decimal.NewFromString(r.ExecutedQty)
	avg, _ := decimal.NewFromString(r.AvgPrice)

	order := core.Order{
		ID:          r.OrderID,
		Symbol:      r.Symbol,
		Side:        core.Side(strings.ToUpper(r.Side)),
		Type:        core.OrderType(strings.ToUpper(r.Type)),
		Quantity:    qty,
		Price:       price,
		Status:      normalizeStatus(r.Status),
		ExecutedQty: executed,
		AvgPrice:    avg,
	}

	switch {
	case r.Time > 0:
		order.CreatedAt = time.UnixMilli(r.Time).UTC()
	case r.UpdateTime > 0:
		order.CreatedAt = time.UnixMilli(r.UpdateTime).UTC()
	}

	return order
}

// normalizeStatus 将交易所状态映射到统一状态。
// 交易所的 NEW 表示订单已挂入订单簿，对应统一视图中的 OPEN。
func normalizeStatus(s string) core.OrderStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "NEW":
		return core.StatusOpen
	case "PARTIALLY_FILLED":
		return core.StatusPartiallyFilled
	case "FILLED":
		return core.StatusFilled
	case "CANCELED", "EXPIRED", "PENDING_CANCEL":
		return core.StatusCanceled
	case "REJECTED":
		return core.StatusRejected
	default:
		return core.StatusNew
	}
}

// accountResponse 对应 /fapi/v2/account。
type accountResponse struct {
	Assets []accountAsset `json:"assets"`
}

type accountAsset struct {
	Asset            string `json:"asset"`
	WalletBalance    string `json:"walletBalance"`
	AvailableBalance string `json:"availableBalance"`
}

// bookTickerResponse 对应 /fapi/v1/ticker/bookTicker。
type bookTickerResponse struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	AskPrice string `json:"askPrice"`
	Time     int64  `json:"time"`
}

// priceResponse 对应 /fapi/v1/ticker/price。
type priceResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// depthResponse 对应 /fapi/v1/depth，档位为 [价格, 数量] 的字符串对。
type depthResponse struct {
	EventTime int64      `json:"E"`
	Bids      [][]string `json:"bids"`
	Asks      [][]string `json:"asks"`
}

func (r depthResponse) toOrderBook(symbol string) core.OrderBook {
	book := core.OrderBook{
		Symbol: symbol,
		Bids:   parseLevels(r.Bids),
		Asks:   parseLevels(r.Asks),
	}
	if r.EventTime > 0 {
		book.Timestamp = time.UnixMilli(r.EventTime).UTC()
	} else {
		book.Timestamp = time.Now().UTC()
	}
	return book
}

func parseLevels(raw [][]string) []core.PriceLevel {
	levels := make([]core.PriceLevel, 0, len(raw))
	for _, lvl := range raw {
		if len(lvl) < 2 {
			continue
		}
		price, err1 := strconv.ParseFloat(lvl[0], 64)
		amount, err2 := strconv.ParseFloat(lvl[1], 64)
		if err1 != nil || err2 != nil {
			continue
		}
		levels = append(levels, core.PriceLevel{Price: price, Amount: amount})
	}
	return levels
}

// parseKlines 解析 /fapi/v1/klines 的混合类型数组：
// [开盘时间, "开", "高", "低", "收", "量", ...]。
func parseKlines(body []byte) ([]core.Candle, error) {
	var rows [][]interface{}
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode klines response: %w", err)
	}

	candles := make([]core.Candle, 0, len(rows))
	for _, row := range rows {
		if len(row) < 6 {
			continue
		}
		candles = append(candles, core.Candle{
			Timestamp: time.UnixMilli(int64(parseNumeric(row[0]))).UTC(),
			Open:      parseNumeric(row[1]),
			High:      parseNumeric(row[2]),
			Low:       parseNumeric(row[3]),
			Close:     parseNumeric(row[4]),
			Volume:    parseNumeric(row[5]),
		})
	}
	return candles, nil
}

func parseNumeric(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
	}
	return 0
}
