package validate

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"trade-gate/internal/core"
)

func TestOrderRequest_Valid(t *testing.T) {
	tests := []struct {
		name string
		req  core.OrderRequest
	}{
		{
			name: "market buy",
			req: core.OrderRequest{
				Symbol:   "BTCUSDT",
				Side:     core.SideBuy,
				Type:     core.TypeMarket,
				Quantity: decimal.NewFromFloat(0.001),
			},
		},
		{
			name: "limit sell",
			req: core.OrderRequest{
				Symbol:   "ETHUSDT",
				Side:     core.SideSell,
				Type:     core.TypeLimit,
				Quantity: decimal.NewFromFloat(1.5),
				Price:    decimal.NewFromInt(3000),
			},
		},
		{
			name: "lowercase side and type are normalized",
			req: core.OrderRequest{
				Symbol:   "bnbusdt",
				Side:     "buy",
				Type:     "limit",
				Quantity: decimal.NewFromInt(1),
				Price:    decimal.NewFromInt(400),
			},
		},
		{
			name: "slash symbol is canonicalized",
			req: core.OrderRequest{
				Symbol:   "BTC/USDT",
				Side:     core.SideSell,
				Type:     core.TypeMarket,
				Quantity: decimal.NewFromFloat(0.01),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OrderRequest(tt.req, DefaultBounds())
			if err != nil {
				t.Fatalf("OrderRequest returned error: %v", err)
			}
			if got.Symbol != core.CanonicalSymbol(tt.req.Symbol) {
				t.Errorf("symbol = %q, want %q", got.Symbol, core.CanonicalSymbol(tt.req.Symbol))
			}
			if got.Side != core.SideBuy && got.Side != core.SideSell {
				t.Errorf("side not normalized: %q", got.Side)
			}
			if got.Type != core.TypeMarket && got.Type != core.TypeLimit {
				t.Errorf("type not normalized: %q", got.Type)
			}
		})
	}
}

func TestOrderRequest_Invalid(t *testing.T) {
	valid := core.OrderRequest{
		Symbol:   "BTCUSDT",
		Side:     core.SideBuy,
		Type:     core.TypeMarket,
		Quantity: decimal.NewFromFloat(0.5),
	}

	tests := []struct {
		name      string
		mutate    func(core.OrderRequest) core.OrderRequest
		wantField string
	}{
		{
			name:      "empty symbol",
			mutate:    func(r core.OrderRequest) core.OrderRequest { r.Symbol = ""; return r },
			wantField: "symbol",
		},
		{
			name:      "symbol with invalid characters",
			mutate:    func(r core.OrderRequest) core.OrderRequest { r.Symbol = "BTC-USDT"; return r },
			wantField: "symbol",
		},
		{
			name:      "symbol too short",
			mutate:    func(r core.OrderRequest) core.OrderRequest { r.Symbol = "XUSDT"; return r },
			wantField: "symbol",
		},
		{
			name:      "unsupported quote asset",
			mutate:    func(r core.OrderRequest) core.OrderRequest { r.Symbol = "BTCDOGE"; return r },
			wantField: "symbol",
		},
		{
			name:      "invalid side",
			mutate:    func(r core.OrderRequest) core.OrderRequest { r.Side = "HOLD"; return r },
			wantField: "side",
		},
		{
			name:      "invalid type",
			mutate:    func(r core.OrderRequest) core.OrderRequest { r.Type = "STOP"; return r },
			wantField: "type",
		},
		{
			name:      "zero quantity",
			mutate:    func(r core.OrderRequest) core.OrderRequest { r.Quantity = decimal.Zero; return r },
			wantField: "quantity",
		},
		{
			name: "negative quantity",
			mutate: func(r core.OrderRequest) core.OrderRequest {
				r.Quantity = decimal.NewFromInt(-1)
				return r
			},
			wantField: "quantity",
		},
		{
			name: "quantity below minimum",
			mutate: func(r core.OrderRequest) core.OrderRequest {
				r.Quantity = decimal.NewFromFloat(0.0001)
				return r
			},
			wantField: "quantity",
		},
		{
			name: "quantity above maximum",
			mutate: func(r core.OrderRequest) core.OrderRequest {
				r.Quantity = decimal.NewFromInt(5000)
				return r
			},
			wantField: "quantity",
		},
		{
			name: "limit order without price",
			mutate: func(r core.OrderRequest) core.OrderRequest {
				r.Type = core.TypeLimit
				return r
			},
			wantField: "price",
		},
		{
			name: "limit order with negative price",
			mutate: func(r core.OrderRequest) core.OrderRequest {
				r.Type = core.TypeLimit
				r.Price = decimal.NewFromInt(-5)
				return r
			},
			wantField: "price",
		},
		{
			name: "market order with price",
			mutate: func(r core.OrderRequest) core.OrderRequest {
				r.Price = decimal.NewFromInt(45000)
				return r
			},
			wantField: "price",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := OrderRequest(tt.mutate(valid), DefaultBounds())
			if err == nil {
				t.Fatalf("expected validation error")
			}
			var vErr *core.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected *core.ValidationError, got %T: %v", err, err)
			}
			if vErr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", vErr.Field, tt.wantField)
			}
		})
	}
}

func TestQuantity_BoundsAreInclusive(t *testing.T) {
	bounds := DefaultBounds()

	if err := Quantity(bounds.MinQuantity, bounds); err != nil {
		t.Errorf("minimum quantity should be accepted: %v", err)
	}
	if err := Quantity(bounds.MaxQuantity, bounds); err != nil {
		t.Errorf("maximum quantity should be accepted: %v", err)
	}
}
