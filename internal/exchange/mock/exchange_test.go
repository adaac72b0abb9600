package mock

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"trade-gate/internal/config"
	"trade-gate/internal/core"
)

func newTestExchange(t *testing.T, seed int64) *Exchange {
	t.Helper()
	return NewExchange(config.MockConfig{Seed: seed}, zap.NewNop())
}

func marketBuy(qty string) core.OrderRequest {
	return core.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     core.SideBuy,
		Type:     core.TypeMarket,
		Quantity: decimal.RequireFromString(qty),
	}
}

func TestCreateOrderMarketBuyFillsInstantly(t *testing.T) {
	e := newTestExchange(t, 1)
	ctx := context.Background()

	before, err := e.FetchBalance(ctx)
	if err != nil {
		t.Fatalf("FetchBalance() error = %v", err)
	}

	order, err := e.CreateOrder(ctx, marketBuy("0.001"))
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	if order.ID != 1001 {
		t.Errorf("ID = %d, want 1001 (sequence starts above 1000)", order.ID)
	}
	if order.Status != core.StatusFilled {
		t.Errorf("Status = %s, want %s", order.Status, core.StatusFilled)
	}
	if !order.ExecutedQty.Equal(order.Quantity) {
		t.Errorf("ExecutedQty = %s, want full quantity %s", order.ExecutedQty, order.Quantity)
	}

	// 一次漂移加买单滑点后的成交价区间: 45000 * [0.9995, 1.0005] * 1.001。
	low := decimal.RequireFromString("45022.47")
	high := decimal.RequireFromString("45067.53")
	if order.AvgPrice.LessThan(low) || order.AvgPrice.GreaterThan(high) {
		t.Errorf("AvgPrice = %s, want within [%s, %s]", order.AvgPrice, low, high)
	}

	after, err := e.FetchBalance(ctx)
	if err != nil {
		t.Fatalf("FetchBalance() error = %v", err)
	}

	cost := order.AvgPrice.Mul(order.Quantity)
	if got := before["USDT"].Free.Sub(after["USDT"].Free); !got.Equal(cost) {
		t.Errorf("USDT debit = %s, want exactly %s", got, cost)
	}
	if got := after["BTC"].Free.Sub(before["BTC"].Free); !got.Equal(order.Quantity) {
		t.Errorf("BTC credit = %s, want exactly %s", got, order.Quantity)
	}
	for asset, balance := range after {
		if !balance.Total.Equal(balance.Free.Add(balance.Used)) {
			t.Errorf("%s: Total = %s, want Free+Used = %s", asset, balance.Total, balance.Free.Add(balance.Used))
		}
	}
}

func TestCreateOrderMarketSellCreditsQuote(t *testing.T) {
	e := newTestExchange(t, 1)
	ctx := context.Background()

	order, err := e.CreateOrder(ctx, core.OrderRequest{
		Symbol:   "ETHUSDT",
		Side:     core.SideSell,
		Type:     core.TypeMarket,
		Quantity: decimal.RequireFromString("0.5"),
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}

	// 卖单滑点压低成交价: 2500 * [0.9995, 1.0005] * 0.999。
	low := decimal.RequireFromString("2494.37")
	high := decimal.RequireFromString("2498.76")
	if order.AvgPrice.LessThan(low) || order.AvgPrice.GreaterThan(high) {
		t.Errorf("AvgPrice = %s, want within [%s, %s]", order.AvgPrice, low, high)
	}

	balances, _ := e.FetchBalance(ctx)
	if !balances["ETH"].Free.Equal(decimal.RequireFromString("1")) {
		t.Errorf("ETH.Free = %s, want 1", balances["ETH"].Free)
	}
	wantUSDT := decimal.RequireFromString("10000").Add(order.AvgPrice.Mul(order.Quantity))
	if !balances["USDT"].Free.Equal(wantUSDT) {
		t.Errorf("USDT.Free = %s, want %s", balances["USDT"].Free, wantUSDT)
	}
}

func TestLimitOrderRestsAndReservesFunds(t *testing.T) {
	e := newTestExchange(t, 1)
	ctx := context.Background()

	// 卖出限价远高于行情，不可成交，挂单冻结基础资产。
	order, err := e.CreateOrder(ctx, core.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     core.SideSell,
		Type:     core.TypeLimit,
		Quantity: decimal.RequireFromString("0.01"),
		Price:    decimal.RequireFromString("50000"),
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if order.Status != core.StatusOpen {
		t.Fatalf("Status = %s, want %s", order.Status, core.StatusOpen)
	}

	balances, _ := e.FetchBalance(ctx)
	btc := balances["BTC"]
	if !btc.Free.Equal(decimal.RequireFromString("0.04")) {
		t.Errorf("BTC.Free = %s, want 0.04", btc.Free)
	}
	if !btc.Used.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("BTC.Used = %s, want 0.01", btc.Used)
	}
	if !btc.Total.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("BTC.Total = %s, want unchanged 0.05", btc.Total)
	}

	open, err := e.FetchOpenOrders(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("FetchOpenOrders() error = %v", err)
	}
	if len(open) != 1 || open[0].ID != order.ID {
		t.Fatalf("open orders = %+v, want the resting order only", open)
	}
}

func TestLimitOrderCrossableFillsAtLimitPrice(t *testing.T) {
	e := newTestExchange(t, 1)
	ctx := context.Background()

	// 买入限价远高于行情，立即按限价成交。
	limit := decimal.RequireFromString("50000")
	order, err := e.CreateOrder(ctx, core.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     core.SideBuy,
		Type:     core.TypeLimit,
		Quantity: decimal.RequireFromString("0.001"),
		Price:    limit,
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if order.Status != core.StatusFilled {
		t.Fatalf("Status = %s, want %s", order.Status, core.StatusFilled)
	}
	if !order.AvgPrice.Equal(limit) {
		t.Errorf("AvgPrice = %s, want limit price %s", order.AvgPrice, limit)
	}

	balances, _ := e.FetchBalance(ctx)
	wantUSDT := decimal.RequireFromString("10000").Sub(limit.Mul(order.Quantity))
	if !balances["USDT"].Free.Equal(wantUSDT) {
		t.Errorf("USDT.Free = %s, want %s", balances["USDT"].Free, wantUSDT)
	}
}

func TestCancelOrderReleasesExactReservation(t *testing.T) {
	e := newTestExchange(t, 1)
	ctx := context.Background()

	before, _ := e.FetchBalance(ctx)

	order, err := e.CreateOrder(ctx, core.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     core.SideBuy,
		Type:     core.TypeLimit,
		Quantity: decimal.RequireFromString("0.002"),
		Price:    decimal.RequireFromString("40000"),
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if order.Status != core.StatusOpen {
		t.Fatalf("Status = %s, want %s", order.Status, core.StatusOpen)
	}

	canceled, err := e.CancelOrder(ctx, "BTCUSDT", order.ID)
	if err != nil {
		t.Fatalf("CancelOrder() error = %v", err)
	}
	if canceled.Status != core.StatusCanceled {
		t.Errorf("Status = %s, want %s", canceled.Status, core.StatusCanceled)
	}

	after, _ := e.FetchBalance(ctx)
	for asset, want := range before {
		got := after[asset]
		if !got.Free.Equal(want.Free) || !got.Used.Equal(want.Used) || !got.Total.Equal(want.Total) {
			t.Errorf("%s balance = %+v, want restored %+v", asset, got, want)
		}
	}

	// 第二次撤销必须失败，订单已终结。
	if _, err := e.CancelOrder(ctx, "BTCUSDT", order.ID); err == nil {
		t.Fatal("second CancelOrder() error = nil, want NotFoundError")
	} else {
		var nf *core.NotFoundError
		if !errors.As(err, &nf) {
			t.Fatalf("second CancelOrder() error = %v, want NotFoundError", err)
		}
	}

	final, _ := e.FetchBalance(ctx)
	for asset, want := range after {
		got := final[asset]
		if !got.Free.Equal(want.Free) || !got.Used.Equal(want.Used) {
			t.Errorf("%s balance changed by failed cancel: %+v -> %+v", asset, want, got)
		}
	}
}

func TestLimitSellRestsWithTotalsUnchangedUntilCanceled(t *testing.T) {
	e := newTestExchange(t, 1)
	ctx := context.Background()

	before, _ := e.FetchBalance(ctx)

	order, err := e.CreateOrder(ctx, core.OrderRequest{
		Symbol:   "ETHUSDT",
		Side:     core.SideSell,
		Type:     core.TypeLimit,
		Quantity: decimal.RequireFromString("1"),
		Price:    decimal.RequireFromString("100000"),
	})
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if order.Status != core.StatusOpen {
		t.Fatalf("Status = %s, want %s", order.Status, core.StatusOpen)
	}

	// 挂单期间只发生 Free 与 Used 之间的转移，各资产 Total 不变。
	resting, _ := e.FetchBalance(ctx)
	for asset, want := range before {
		if !resting[asset].Total.Equal(want.Total) {
			t.Errorf("%s.Total = %s, want unchanged %s", asset, resting[asset].Total, want.Total)
		}
	}
	if !resting["ETH"].Used.Equal(decimal.RequireFromString("1")) {
		t.Errorf("ETH.Used = %s, want 1", resting["ETH"].Used)
	}

	if _, err := e.CancelOrder(ctx, "ETHUSDT", order.ID); err != nil {
		t.Fatalf("CancelOrder() error = %v", err)
	}

	after, _ := e.FetchBalance(ctx)
	for asset, want := range before {
		got := after[asset]
		if !got.Free.Equal(want.Free) || !got.Used.Equal(want.Used) || !got.Total.Equal(want.Total) {
			t.Errorf("%s balance = %+v, want restored %+v", asset, got, want)
		}
	}
}

func TestCancelOrderUnknownID(t *testing.T) {
	e := newTestExchange(t, 1)

	_, err := e.CancelOrder(context.Background(), "BTCUSDT", 99999)
	var nf *core.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("CancelOrder() error = %v, want NotFoundError", err)
	}
	if nf.Resource != "order" {
		t.Errorf("Resource = %q, want order", nf.Resource)
	}
}

func TestCreateOrderInsufficientFunds(t *testing.T) {
	e := newTestExchange(t, 1)
	ctx := context.Background()

	before, _ := e.FetchBalance(ctx)

	_, err := e.CreateOrder(ctx, marketBuy("10"))

	var exErr *core.ExchangeError
	if !errors.As(err, &exErr) {
		t.Fatalf("CreateOrder() error = %v, want ExchangeError", err)
	}
	if exErr.Code != core.CodeMarginInsufficient {
		t.Errorf("Code = %d, want %d", exErr.Code, core.CodeMarginInsufficient)
	}

	after, _ := e.FetchBalance(ctx)
	for asset, want := range before {
		got := after[asset]
		if !got.Free.Equal(want.Free) || !got.Used.Equal(want.Used) {
			t.Errorf("%s balance changed by rejected order: %+v -> %+v", asset, want, got)
		}
	}

	// 被拒订单留档可查，状态为 REJECTED。
	rejected, err := e.FetchOrder(ctx, "BTCUSDT", 1001)
	if err != nil {
		t.Fatalf("FetchOrder() error = %v", err)
	}
	if rejected.Status != core.StatusRejected {
		t.Errorf("Status = %s, want %s", rejected.Status, core.StatusRejected)
	}
}

func TestUnknownSymbolIsNotFound(t *testing.T) {
	e := newTestExchange(t, 1)
	ctx := context.Background()

	_, err := e.CreateOrder(ctx, core.OrderRequest{
		Symbol:   "DOGEUSDT",
		Side:     core.SideBuy,
		Type:     core.TypeMarket,
		Quantity: decimal.RequireFromString("1"),
	})
	var nf *core.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("CreateOrder() error = %v, want NotFoundError", err)
	}
	if nf.Resource != "symbol" {
		t.Errorf("Resource = %q, want symbol", nf.Resource)
	}

	if _, err := e.FetchTicker(ctx, "DOGEUSDT"); !errors.As(err, &nf) {
		t.Errorf("FetchTicker() error = %v, want NotFoundError", err)
	}
}

func TestWalkIsDeterministicPerSeed(t *testing.T) {
	ctx := context.Background()
	a := newTestExchange(t, 7)
	b := newTestExchange(t, 7)

	for i := 0; i < 5; i++ {
		ta, err := a.FetchTicker(ctx, "BTCUSDT")
		if err != nil {
			t.Fatalf("FetchTicker() error = %v", err)
		}
		tb, err := b.FetchTicker(ctx, "BTCUSDT")
		if err != nil {
			t.Fatalf("FetchTicker() error = %v", err)
		}
		if ta.Last != tb.Last || ta.Bid != tb.Bid || ta.Ask != tb.Ask {
			t.Fatalf("tick %d diverged: %+v vs %+v", i, ta, tb)
		}
	}

	oa, err := a.CreateOrder(ctx, marketBuy("0.001"))
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	ob, err := b.CreateOrder(ctx, marketBuy("0.001"))
	if err != nil {
		t.Fatalf("CreateOrder() error = %v", err)
	}
	if !oa.AvgPrice.Equal(ob.AvgPrice) {
		t.Errorf("fill prices diverged: %s vs %s", oa.AvgPrice, ob.AvgPrice)
	}

	other := newTestExchange(t, 8)
	to, err := other.FetchTicker(ctx, "BTCUSDT")
	if err != nil {
		t.Fatalf("FetchTicker() error = %v", err)
	}
	ta, _ := a.FetchTicker(ctx, "BTCUSDT")
	if to.Last == ta.Last {
		t.Error("different seeds produced identical walks")
	}
}

func TestFetchBalanceReturnsSnapshot(t *testing.T) {
	e := newTestExchange(t, 1)
	ctx := context.Background()

	first, _ := e.FetchBalance(ctx)
	first["USDT"] = core.NewBalance(decimal.Zero, decimal.Zero)

	second, _ := e.FetchBalance(ctx)
	if !second["USDT"].Free.Equal(decimal.RequireFromString("10000")) {
		t.Errorf("USDT.Free = %s, want 10000 (snapshot must be isolated)", second["USDT"].Free)
	}
}

func TestFetchOrderBookShape(t *testing.T) {
	e := newTestExchange(t, 1)

	book, err := e.FetchOrderBook(context.Background(), "BTCUSDT", 0)
	if err != nil {
		t.Fatalf("FetchOrderBook() error = %v", err)
	}
	if len(book.Bids) != defaultDepth || len(book.Asks) != defaultDepth {
		t.Fatalf("depth = %d/%d, want %d/%d", len(book.Bids), len(book.Asks), defaultDepth, defaultDepth)
	}
	if book.Bids[0].Price >= book.Asks[0].Price {
		t.Errorf("best bid %v >= best ask %v", book.Bids[0].Price, book.Asks[0].Price)
	}
	for i := 1; i < len(book.Bids); i++ {
		if book.Bids[i].Price >= book.Bids[i-1].Price {
			t.Errorf("bids not descending at %d: %v >= %v", i, book.Bids[i].Price, book.Bids[i-1].Price)
		}
		if book.Asks[i].Price <= book.Asks[i-1].Price {
			t.Errorf("asks not ascending at %d: %v <= %v", i, book.Asks[i].Price, book.Asks[i-1].Price)
		}
	}
	for _, level := range append(append([]core.PriceLevel{}, book.Bids...), book.Asks...) {
		if level.Amount < 0.1 || level.Amount > 10 {
			t.Errorf("level amount %v outside [0.1, 10]", level.Amount)
		}
	}
}

func TestFetchOHLCVShape(t *testing.T) {
	e := newTestExchange(t, 1)

	candles, err := e.FetchOHLCV(context.Background(), "ETHUSDT", "1h", 0)
	if err != nil {
		t.Fatalf("FetchOHLCV() error = %v", err)
	}
	if len(candles) != defaultCandleLimit {
		t.Fatalf("len(candles) = %d, want %d", len(candles), defaultCandleLimit)
	}
	for i, candle := range candles {
		if candle.High < candle.Open || candle.High < candle.Close {
			t.Errorf("candle %d: high %v below open/close %v/%v", i, candle.High, candle.Open, candle.Close)
		}
		if candle.Low > candle.Open || candle.Low > candle.Close {
			t.Errorf("candle %d: low %v above open/close %v/%v", i, candle.Low, candle.Open, candle.Close)
		}
		if i > 0 {
			if candle.Open != candles[i-1].Close {
				t.Errorf("candle %d: open %v != previous close %v", i, candle.Open, candles[i-1].Close)
			}
			if !candle.Timestamp.After(candles[i-1].Timestamp) {
				t.Errorf("candle %d: timestamps not ascending", i)
			}
		}
	}
}

func TestConcurrentOrdersKeepLedgerConsistent(t *testing.T) {
	e := newTestExchange(t, 1)
	ctx := context.Background()

	const workers = 8
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, _ = e.CreateOrder(ctx, marketBuy("0.001"))
			_, _ = e.FetchTicker(ctx, "BTCUSDT")
		}()
	}
	wg.Wait()

	balances, err := e.FetchBalance(ctx)
	if err != nil {
		t.Fatalf("FetchBalance() error = %v", err)
	}
	for asset, balance := range balances {
		if !balance.Total.Equal(balance.Free.Add(balance.Used)) {
			t.Errorf("%s: Total = %s, want Free+Used = %s", asset, balance.Total, balance.Free.Add(balance.Used))
		}
	}

	wantBTC := decimal.RequireFromString("0.05").Add(decimal.RequireFromString("0.008"))
	if !balances["BTC"].Free.Equal(wantBTC) {
		t.Errorf("BTC.Free = %s, want %s after %d fills", balances["BTC"].Free, wantBTC, workers)
	}
}

func TestCustomSeedBalances(t *testing.T) {
	e := NewExchange(config.MockConfig{
		Seed: 1,
		Balances: map[string]decimal.Decimal{
			"usdt": decimal.RequireFromString("500"),
			"sol":  decimal.RequireFromString("3"),
		},
	}, zap.NewNop())

	balances, _ := e.FetchBalance(context.Background())
	if !balances["USDT"].Free.Equal(decimal.RequireFromString("500")) {
		t.Errorf("USDT.Free = %s, want 500 (asset codes normalize to upper case)", balances["USDT"].Free)
	}
	if _, ok := balances["BTC"]; ok {
		t.Error("default balances must not leak when custom balances are configured")
	}
}
