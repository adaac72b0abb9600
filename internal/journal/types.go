package journal

import (
	"encoding/json"
	"time"

	"trade-gate/internal/core"
)

// EventType 表示订单流水事件类型。
type EventType string

const (
	EventOrderCreated  EventType = "order_created"
	EventOrderCanceled EventType = "order_canceled"
	EventOrderRejected EventType = "order_rejected"
	EventError         EventType = "error"
)

// Event 封装一次待写入的流水事件。
type Event struct {
	Type      EventType   `json:"type"`
	Symbol    string      `json:"symbol"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// OrderPayload 记录下单与撤单后的订单回执。
type OrderPayload struct {
	Order core.Order `json:"order"`
}

// RejectionPayload 记录被拒绝的下单请求及原因。
type RejectionPayload struct {
	Request core.OrderRequest `json:"request"`
	Reason  string            `json:"reason"`
}

// ErrorPayload 记录订单操作执行失败的现场信息。
type ErrorPayload struct {
	Operation string `json:"operation"`
	Error     string `json:"error"`
}

// StoredEvent 是从流水表读出的一条记录，Payload 保持原始 JSON。
type StoredEvent struct {
	ID        int64           `json:"id"`
	Type      EventType       `json:"type"`
	Symbol    string          `json:"symbol"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
