package types

import (
	"fmt"
	"sort"
)

// Volume represents an amount of a single asset in its smallest unit
// (cents for USD, satoshi for BTC). All arithmetic is integer-only —
// no floating point.
//
// Examples:
//   - USD(4900) = $49.00 (4900 cents)
//   - BTC(100000000) = 1 BTC (100000000 satoshi)
type Volume struct {
	Asset  string `json:"asset"`  // Asset code, uppercase: "USD", "EUR", "BTC"
	Amount int64  `json:"amount"` // Smallest unit (cents, satoshi, etc)
}

// Common asset constructors

// USD creates a Volume in US Dollars (cents).
func USD(cents int64) Volume { return Volume{Asset: "USD", Amount: cents} }

// EUR creates a Volume in Euros (cents).
func EUR(cents int64) Volume { return Volume{Asset: "EUR", Amount: cents} }

// GBP creates a Volume in British Pounds (pence).
func GBP(pence int64) Volume { return Volume{Asset: "GBP", Amount: pence} }

// BTC creates a Volume in Bitcoin (satoshi).
func BTC(satoshi int64) Volume { return Volume{Asset: "BTC", Amount: satoshi} }

// ZeroVolume returns a zero Volume for the given asset.
func ZeroVolume(asset string) Volume { return Volume{Asset: asset, Amount: 0} }

// Add adds two Volumes. Panics if assets don't match.
func (v Volume) Add(other Volume) Volume {
	v.assertSameAsset(other)
	return Volume{Asset: v.Asset, Amount: v.Amount + other.Amount}
}

// Subtract subtracts another Volume. Panics if assets don't match.
func (v Volume) Subtract(other Volume) Volume {
	v.assertSameAsset(other)
	return Volume{Asset: v.Asset, Amount: v.Amount - other.Amount}
}

// Negate returns the negative of the Volume.
func (v Volume) Negate() Volume {
	return Volume{Asset: v.Asset, Amount: -v.Amount}
}

// IsZero returns true if the amount is zero.
func (v Volume) IsZero() bool { return v.Amount == 0 }

// IsPositive returns true if the amount is greater than zero.
func (v Volume) IsPositive() bool { return v.Amount > 0 }

// IsNegative returns true if the amount is less than zero.
func (v Volume) IsNegative() bool { return v.Amount < 0 }

// Equal returns true if both Volumes have the same asset and amount.
func (v Volume) Equal(other Volume) bool {
	return v.Asset == other.Asset && v.Amount == other.Amount
}

// String returns a human-readable "ASSET amount" form, e.g. "USD 2500".
func (v Volume) String() string {
	return fmt.Sprintf("%s %d", v.Asset, v.Amount)
}

// assertSameAsset panics if assets don't match.
func (v Volume) assertSameAsset(other Volume) {
	if v.Asset != other.Asset {
		panic(fmt.Sprintf("volume: asset mismatch: %s != %s", v.Asset, other.Asset))
	}
}

// Balances maps asset codes to signed amounts in smallest units.
// The zero value of a missing asset is 0; Get never inserts.
type Balances map[string]int64

// Get returns the balance for an asset, zero if absent.
func (b Balances) Get(asset string) int64 {
	return b[asset]
}

// Apply adjusts the balance for an asset by a signed delta,
// pruning assets that return to exactly zero.
func (b Balances) Apply(asset string, delta int64) {
	next := b[asset] + delta
	if next == 0 {
		delete(b, asset)
		return
	}
	b[asset] = next
}

// Copy returns an independent copy of the balances.
func (b Balances) Copy() Balances {
	out := make(Balances, len(b))
	for asset, amount := range b {
		out[asset] = amount
	}
	return out
}

// Equal returns true if both balance sets hold the same non-zero amounts.
func (b Balances) Equal(other Balances) bool {
	if len(b) != len(other) {
		return false
	}
	for asset, amount := range b {
		if other[asset] != amount {
			return false
		}
	}
	return true
}

// Assets returns the asset codes with non-zero balances, sorted.
func (b Balances) Assets() []string {
	assets := make([]string, 0, len(b))
	for asset := range b {
		assets = append(assets, asset)
	}
	sort.Strings(assets)
	return assets
}
