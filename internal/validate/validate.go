// Package validate 在任何网络调用或账本变更之前对订单请求做本地校验。
// 所有函数均为纯函数，失败时返回 *core.ValidationError 并指明出错字段。
package validate

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"trade-gate/internal/core"
)

// Bounds 控制数量校验区间。
type Bounds struct {
	MinQuantity decimal.Decimal
	MaxQuantity decimal.Decimal
}

// DefaultBounds 返回默认数量区间。
func DefaultBounds() Bounds {
	return Bounds{
		MinQuantity: decimal.NewFromFloat(0.001),
		MaxQuantity: decimal.NewFromInt(1000),
	}
}

// OrderRequest 校验并规范化一次下单请求。
// 返回的请求中符号、方向与类型均已统一为大写标准形式。
func OrderRequest(req core.OrderRequest, bounds Bounds) (core.OrderRequest, error) {
	symbol, err := Symbol(req.Symbol)
	if err != nil {
		return core.OrderRequest{}, err
	}

	side, err := Side(string(req.Side))
	if err != nil {
		return core.OrderRequest{}, err
	}

	orderType, err := OrderType(string(req.Type))
	if err != nil {
		return core.OrderRequest{}, err
	}

	if err := Quantity(req.Quantity, bounds); err != nil {
		return core.OrderRequest{}, err
	}

	if err := Price(orderType, req.Price); err != nil {
		return core.OrderRequest{}, err
	}

	return core.OrderRequest{
		Symbol:   symbol,
		Side:     side,
		Type:     orderType,
		Quantity: req.Quantity,
		Price:    req.Price,
	}, nil
}

// Symbol 校验交易对符号并返回标准形式。
func Symbol(raw string) (string, error) {
	symbol := core.CanonicalSymbol(raw)
	if symbol == "" {
		return "", &core.ValidationError{Field: "symbol", Reason: "symbol is required"}
	}
	for _, r := range symbol {
		if (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return "", &core.ValidationError{Field: "symbol", Reason: "symbol must contain only letters and digits"}
		}
	}
	if len(symbol) < 6 {
		return "", &core.ValidationError{Field: "symbol", Reason: "symbol must be at least 6 characters"}
	}
	if _, _, ok := core.SplitSymbol(symbol); !ok {
		return "", &core.ValidationError{
			Field:  "symbol",
			Reason: fmt.Sprintf("symbol must end with a supported quote asset (%s)", strings.Join(core.QuoteAssets(), ", ")),
		}
	}
	return symbol, nil
}

// Side 校验订单方向，大小写不敏感。
func Side(raw string) (core.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(core.SideBuy):
		return core.SideBuy, nil
	case string(core.SideSell):
		return core.SideSell, nil
	default:
		return "", &core.ValidationError{Field: "side", Reason: "side must be BUY or SELL"}
	}
}

// OrderType 校验订单类型，大小写不敏感。
func OrderType(raw string) (core.OrderType, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case string(core.TypeMarket):
		return core.TypeMarket, nil
	case string(core.TypeLimit):
		return core.TypeLimit, nil
	default:
		return "", &core.ValidationError{Field: "type", Reason: "type must be MARKET or LIMIT"}
	}
}

// Quantity 校验下单数量落在配置区间内。
func Quantity(qty decimal.Decimal, bounds Bounds) error {
	if !qty.IsPositive() {
		return &core.ValidationError{Field: "quantity", Reason: "quantity must be positive"}
	}
	if bounds.MinQuantity.IsPositive() && qty.LessThan(bounds.MinQuantity) {
		return &core.ValidationError{
			Field:  "quantity",
			Reason: fmt.Sprintf("quantity below minimum %s", bounds.MinQuantity),
		}
	}
	if bounds.MaxQuantity.IsPositive() && qty.GreaterThan(bounds.MaxQuantity) {
		return &core.ValidationError{
			Field:  "quantity",
			Reason: fmt.Sprintf("quantity above maximum %s", bounds.MaxQuantity),
		}
	}
	return nil
}

// Price 校验价格与订单类型的约束：限价单必须携带正价格，市价单不得携带价格。
func Price(orderType core.OrderType, price decimal.Decimal) error {
	switch orderType {
	case core.TypeLimit:
		if price.IsZero() {
			return &core.ValidationError{Field: "price", Reason: "price is required for LIMIT orders"}
		}
		if price.IsNegative() {
			return &core.ValidationError{Field: "price", Reason: "price must be positive"}
		}
	case core.TypeMarket:
		if !price.IsZero() {
			return &core.ValidationError{Field: "price", Reason: "price is not allowed for MARKET orders"}
		}
	}
	return nil
}
