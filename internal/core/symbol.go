package core

import "strings"

// 支持的计价资产，按匹配优先级排列。
var quoteAssets = []string{"USDT", "BUSD", "BTC", "ETH", "BNB"}

// QuoteAssets 返回计价资产白名单副本。
func QuoteAssets() []string {
	out := make([]string, len(quoteAssets))
	copy(out, quoteAssets)
	return out
}

// SplitSymbol 将标准符号拆分为基础资产与计价资产，
// 例如 BTCUSDT 拆为 BTC 与 USDT。无法识别计价资产时 ok 为 false。
func SplitSymbol(symbol string) (base, quote string, ok bool) {
	for _, q := range quoteAssets {
		if strings.HasSuffix(symbol, q) && len(symbol) > len(q) {
			return symbol[:len(symbol)-len(q)], q, true
		}
	}
	return "", "", false
}

// SlashSymbol 将 BTCUSDT 形式转换为 ccxt 使用的 BTC/USDT 形式。
func SlashSymbol(symbol string) string {
	if strings.Contains(symbol, "/") {
		return symbol
	}
	base, quote, ok := SplitSymbol(symbol)
	if !ok {
		return symbol
	}
	return base + "/" + quote
}

// CanonicalSymbol 去掉分隔符并统一为大写的内部标准形式。
func CanonicalSymbol(symbol string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	return strings.ReplaceAll(symbol, "/", "")
}
