// Package journal 把订单生命周期事件持久化到 SQLite，供事后审计与排查。
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"trade-gate/internal/core"
	"trade-gate/internal/store"
)

// Recorder 负责写入并查询订单流水。空指针 Recorder 上的记录方法是安全的空操作，
// 因此调用方无需关心流水是否开启。
type Recorder struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRecorder 初始化流水记录器并创建所需表结构。
func NewRecorder(store *store.Store, logger *zap.Logger) (*Recorder, error) {
	if store == nil {
		return nil, fmt.Errorf("journal: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Recorder{
		db:     store.DB(),
		logger: logger,
	}

	if err := r.initSchema(); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Recorder) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS order_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	symbol TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_events_type ON order_events(event_type);
CREATE INDEX IF NOT EXISTS idx_order_events_symbol ON order_events(symbol);
`
	if _, err := r.db.Exec(stmt); err != nil {
		return fmt.Errorf("journal: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (r *Recorder) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("journal: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO order_events (event_type, symbol, payload, created_at) VALUES (?, ?, ?, ?)`,
		string(event.Type), event.Symbol, string(payload), event.Timestamp.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("journal: 写入事件失败: %w", err)
	}

	return nil
}

// RecordOrderCreated 记录一笔成功受理的订单。
func (r *Recorder) RecordOrderCreated(ctx context.Context, order core.Order) {
	if r == nil {
		return
	}
	if err := r.Record(ctx, Event{
		Type:      EventOrderCreated,
		Symbol:    order.Symbol,
		Timestamp: time.Now().UTC(),
		Payload:   OrderPayload{Order: order},
	}); err != nil {
		r.logger.Warn("记录下单事件失败", zap.Error(err))
	}
}

// RecordOrderCanceled 记录一次成功的撤单。
func (r *Recorder) RecordOrderCanceled(ctx context.Context, order core.Order) {
	if r == nil {
		return
	}
	if err := r.Record(ctx, Event{
		Type:      EventOrderCanceled,
		Symbol:    order.Symbol,
		Timestamp: time.Now().UTC(),
		Payload:   OrderPayload{Order: order},
	}); err != nil {
		r.logger.Warn("记录撤单事件失败", zap.Error(err))
	}
}

// RecordOrderRejected 记录被校验或交易所拒绝的下单请求。
func (r *Recorder) RecordOrderRejected(ctx context.Context, req core.OrderRequest, cause error) {
	if r == nil {
		return
	}
	reason := ""
	if cause != nil {
		reason = cause.Error()
	}
	if err := r.Record(ctx, Event{
		Type:      EventOrderRejected,
		Symbol:    req.Symbol,
		Timestamp: time.Now().UTC(),
		Payload:   RejectionPayload{Request: req, Reason: reason},
	}); err != nil {
		r.logger.Warn("记录拒单事件失败", zap.Error(err))
	}
}

// RecordError 记录一次执行失败的订单操作。
func (r *Recorder) RecordError(ctx context.Context, operation, symbol string, cause error) {
	if r == nil {
		return
	}
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	if err := r.Record(ctx, Event{
		Type:      EventError,
		Symbol:    symbol,
		Timestamp: time.Now().UTC(),
		Payload:   ErrorPayload{Operation: operation, Error: message},
	}); err != nil {
		r.logger.Warn("记录异常事件失败", zap.Error(err))
	}
}

// ListEvents 按时间倒序返回最近的流水，symbol 为空时不过滤。
func (r *Recorder) ListEvents(ctx context.Context, symbol string, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, event_type, symbol, payload, created_at FROM order_events`
	args := make([]interface{}, 0, 2)
	if symbol != "" {
		query += ` WHERE symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: 查询流水失败: %w", err)
	}
	defer rows.Close()

	var events []StoredEvent
	for rows.Next() {
		var (
			event   StoredEvent
			rawType string
			rawTime string
		)
		if err := rows.Scan(&event.ID, &rawType, &event.Symbol, &event.Payload, &rawTime); err != nil {
			return nil, fmt.Errorf("journal: 读取流水失败: %w", err)
		}
		event.Type = EventType(rawType)
		createdAt, err := time.Parse(time.RFC3339, rawTime)
		if err != nil {
			return nil, fmt.Errorf("journal: 解析流水时间失败: %w", err)
		}
		event.CreatedAt = createdAt
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("journal: 遍历流水失败: %w", err)
	}

	return events, nil
}
