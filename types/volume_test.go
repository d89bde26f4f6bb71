package types

import "testing"

func TestVolumeConstructors(t *testing.T) {
	tests := []struct {
		name    string
		volume  Volume
		asset   string
		amount  int64
		display string
	}{
		{"USD", USD(4900), "USD", 4900, "USD 4900"},
		{"EUR", EUR(19900), "EUR", 19900, "EUR 19900"},
		{"GBP", GBP(9900), "GBP", 9900, "GBP 9900"},
		{"BTC", BTC(100000000), "BTC", 100000000, "BTC 100000000"},
		{"Zero", ZeroVolume("USD"), "USD", 0, "USD 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.volume.Asset != tt.asset {
				t.Errorf("Asset: got %s, want %s", tt.volume.Asset, tt.asset)
			}
			if tt.volume.Amount != tt.amount {
				t.Errorf("Amount: got %d, want %d", tt.volume.Amount, tt.amount)
			}
			if tt.volume.String() != tt.display {
				t.Errorf("String: got %s, want %s", tt.volume.String(), tt.display)
			}
		})
	}
}

func TestVolumeArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Volume
		expected Volume
	}{
		{"Add", func() Volume { return USD(100).Add(USD(200)) }, USD(300)},
		{"Subtract", func() Volume { return USD(500).Subtract(USD(200)) }, USD(300)},
		{"Negate", func() Volume { return USD(100).Negate() }, USD(-100)},
		{"SubtractBelowZero", func() Volume { return USD(100).Subtract(USD(300)) }, USD(-200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.op()
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestVolumeAssetMismatch(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for asset mismatch")
		}
	}()

	_ = USD(100).Add(EUR(100))
}

func TestBalancesApply(t *testing.T) {
	b := Balances{}
	b.Apply("USD", 10000)
	b.Apply("USD", -2500)
	b.Apply("BTC", 500)

	if got := b.Get("USD"); got != 7500 {
		t.Errorf("USD: got %d, want 7500", got)
	}
	if got := b.Get("BTC"); got != 500 {
		t.Errorf("BTC: got %d, want 500", got)
	}
	if got := b.Get("EUR"); got != 0 {
		t.Errorf("EUR: got %d, want 0", got)
	}
}

func TestBalancesPruneZero(t *testing.T) {
	b := Balances{"USD": 100}
	b.Apply("USD", -100)

	if _, ok := b["USD"]; ok {
		t.Error("zeroed asset should be pruned")
	}
	if len(b.Assets()) != 0 {
		t.Errorf("Assets: got %v, want empty", b.Assets())
	}
}

func TestBalancesCopyIsIndependent(t *testing.T) {
	b := Balances{"USD": 100}
	c := b.Copy()
	c.Apply("USD", 50)

	if b.Get("USD") != 100 {
		t.Errorf("original mutated: got %d, want 100", b.Get("USD"))
	}
	if c.Get("USD") != 150 {
		t.Errorf("copy: got %d, want 150", c.Get("USD"))
	}
}

func TestBalancesEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Balances
		want bool
	}{
		{"BothEmpty", Balances{}, Balances{}, true},
		{"Same", Balances{"USD": 100}, Balances{"USD": 100}, true},
		{"DifferentAmount", Balances{"USD": 100}, Balances{"USD": 200}, false},
		{"DifferentAsset", Balances{"USD": 100}, Balances{"EUR": 100}, false},
		{"ExtraAsset", Balances{"USD": 100}, Balances{"USD": 100, "EUR": 1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal: got %v, want %v", got, tt.want)
			}
		})
	}
}
