package exchange

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"trade-gate/internal/core"
	"trade-gate/internal/validate"
)

// SnapshotRequest 控制行情快照的抓取范围。
type SnapshotRequest struct {
	Symbol          string
	CandleTimeframe string
	CandleLimit     int
	OrderBookDepth  int
}

// DefaultSnapshotRequest 返回默认抓取参数。
func DefaultSnapshotRequest(symbol string) SnapshotRequest {
	return SnapshotRequest{
		Symbol:          symbol,
		CandleTimeframe: "1h",
		CandleLimit:     24,
		OrderBookDepth:  20,
	}
}

func (r SnapshotRequest) withDefaults() SnapshotRequest {
	defaults := DefaultSnapshotRequest(r.Symbol)
	if r.CandleTimeframe == "" {
		r.CandleTimeframe = defaults.CandleTimeframe
	}
	if r.CandleLimit <= 0 {
		r.CandleLimit = defaults.CandleLimit
	}
	if r.OrderBookDepth <= 0 {
		r.OrderBookDepth = defaults.OrderBookDepth
	}
	return r
}

// MarketSnapshot 汇总同一交易对的行情、盘口与K线。
type MarketSnapshot struct {
	Symbol      string
	Ticker      core.Ticker
	OrderBook   core.OrderBook
	Candles     []core.Candle
	RetrievedAt time.Time
}

// MarketSnapshot 并发抓取行情、盘口与K线并汇总为一次快照。
// 任意一路失败都会取消其余抓取并返回该错误。
func (m *Manager) MarketSnapshot(ctx context.Context, req SnapshotRequest) (MarketSnapshot, error) {
	symbol, err := validate.Symbol(req.Symbol)
	if err != nil {
		return MarketSnapshot{}, err
	}
	req.Symbol = symbol
	req = req.withDefaults()

	var (
		ticker  core.Ticker
		book    core.OrderBook
		candles []core.Candle
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		result, err := m.backend.FetchTicker(groupCtx, req.Symbol)
		if err != nil {
			return err
		}
		ticker = result
		return nil
	})

	group.Go(func() error {
		result, err := m.backend.FetchOrderBook(groupCtx, req.Symbol, req.OrderBookDepth)
		if err != nil {
			return err
		}
		book = result
		return nil
	})

	group.Go(func() error {
		result, err := m.backend.FetchOHLCV(groupCtx, req.Symbol, req.CandleTimeframe, req.CandleLimit)
		if err != nil {
			return err
		}
		candles = result
		return nil
	})

	if err := group.Wait(); err != nil {
		return MarketSnapshot{}, err
	}

	snapshot := MarketSnapshot{
		Symbol:      req.Symbol,
		Ticker:      ticker,
		OrderBook:   book,
		Candles:     candles,
		RetrievedAt: time.Now().UTC(),
	}

	m.logger.Debug("市场数据快照获取完成",
		zap.String("symbol", req.Symbol),
		zap.String("timeframe", req.CandleTimeframe),
		zap.Int("candles", len(snapshot.Candles)),
		zap.Int("bids", len(snapshot.OrderBook.Bids)),
		zap.Int("asks", len(snapshot.OrderBook.Asks)),
	)

	return snapshot, nil
}
