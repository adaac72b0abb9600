package core

import "testing"

func TestSplitSymbol(t *testing.T) {
	tests := []struct {
		symbol string
		base   string
		quote  string
		ok     bool
	}{
		{"BTCUSDT", "BTC", "USDT", true},
		{"ETHUSDT", "ETH", "USDT", true},
		{"SOLBUSD", "SOL", "BUSD", true},
		{"ETHBTC", "ETH", "BTC", true},
		{"ADABNB", "ADA", "BNB", true},
		{"USDT", "", "", false},
		{"BTCUSD", "", "", false},
		{"", "", "", false},
	}

	for _, tt := range tests {
		base, quote, ok := SplitSymbol(tt.symbol)
		if ok != tt.ok {
			t.Errorf("SplitSymbol(%q) ok = %v, want %v", tt.symbol, ok, tt.ok)
			continue
		}
		if base != tt.base || quote != tt.quote {
			t.Errorf("SplitSymbol(%q) = (%q, %q), want (%q, %q)", tt.symbol, base, quote, tt.base, tt.quote)
		}
	}
}

func TestSlashSymbol(t *testing.T) {
	if got := SlashSymbol("BTCUSDT"); got != "BTC/USDT" {
		t.Errorf("SlashSymbol(BTCUSDT) = %q, want BTC/USDT", got)
	}
	if got := SlashSymbol("BTC/USDT"); got != "BTC/USDT" {
		t.Errorf("SlashSymbol(BTC/USDT) = %q, want BTC/USDT", got)
	}
	// Unknown quote assets pass through untouched.
	if got := SlashSymbol("FOOBARX"); got != "FOOBARX" {
		t.Errorf("SlashSymbol(FOOBARX) = %q, want FOOBARX", got)
	}
}

func TestCanonicalSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"BTC/USDT", "BTCUSDT"},
		{" btcusdt ", "BTCUSDT"},
		{"eth/usdt", "ETHUSDT"},
		{"BTCUSDT", "BTCUSDT"},
	}
	for _, tt := range tests {
		if got := CanonicalSymbol(tt.in); got != tt.want {
			t.Errorf("CanonicalSymbol(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
