package binance

import (
	"net/url"
	"strings"
)

// Params 是保持插入顺序的查询参数集合。
// 签名串与实际发送串必须逐字节一致，url.Values 会按键名排序，故不可使用。
type Params struct {
	pairs []pair
}

type pair struct {
	key   string
	value string
}

// NewParams 创建空参数集合。
func NewParams() *Params {
	return &Params{}
}

// Set 写入参数。键已存在时原位替换，否则追加到末尾。
func (p *Params) Set(key, value string) {
	for i := range p.pairs {
		if p.pairs[i].key == key {
			p.pairs[i].value = value
			return
		}
	}
	p.pairs = append(p.pairs, pair{key: key, value: value})
}

// Get 返回键对应的值，不存在时返回空串。
func (p *Params) Get(key string) string {
	for _, kv := range p.pairs {
		if kv.key == key {
			return kv.value
		}
	}
	return ""
}

// Encode 按插入顺序编码为 key=value&key=value 形式，键与值均做 URL 转义。
func (p *Params) Encode() string {
	if p == nil || len(p.pairs) == 0 {
		return ""
	}
	var b strings.Builder
	for i, kv := range p.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(kv.key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(kv.value))
	}
	return b.String()
}

// Clone 复制参数集合。重试时每次在副本上追加时间戳与签名，原集合保持不变。
func (p *Params) Clone() *Params {
	if p == nil {
		return NewParams()
	}
	out := &Params{pairs: make([]pair, len(p.pairs))}
	copy(out.pairs, p.pairs)
	return out
}
