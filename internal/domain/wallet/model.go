// Package wallet defines the global deposit address configuration.
package wallet

import (
	"strings"
	"time"
)

// Address is a shared deposit target for one (coin, network) pair. It is
// global, not per-user: every investor for that asset is shown the same
// address.
type Address struct {
	Coin      string    `json:"coin"`
	Network   string    `json:"network"`
	Address   string    `json:"address"`
	UpdatedBy string    `json:"updated_by,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Key returns the composite lookup key for an address row.
func Key(coin, network string) string {
	return strings.ToLower(coin) + "/" + network
}

// Asset describes one investable asset and its allowed networks. The first
// network is the default.
type Asset struct {
	Symbol   string   `json:"symbol"`
	Label    string   `json:"label"`
	Networks []string `json:"networks"`
}

// DefaultNetwork returns the asset's default network.
func (a Asset) DefaultNetwork() string {
	if len(a.Networks) == 0 {
		return ""
	}
	return a.Networks[0]
}

// SupportsNetwork reports whether the asset can settle on the network.
func (a Asset) SupportsNetwork(network string) bool {
	for _, n := range a.Networks {
		if n == network {
			return true
		}
	}
	return false
}

// Catalog is the fixed set of investable assets.
func Catalog() []Asset {
	return []Asset{
		{Symbol: "BTC", Label: "Bitcoin", Networks: []string{"mainnet"}},
		{Symbol: "ETH", Label: "Ethereum", Networks: []string{"ERC20"}},
		{Symbol: "USDT", Label: "Tether (USDT)", Networks: []string{"BEP20", "TRC20"}},
	}
}

// LookupAsset finds a catalog asset by symbol, case-insensitively.
func LookupAsset(symbol string) (Asset, bool) {
	for _, a := range Catalog() {
		if strings.EqualFold(a.Symbol, symbol) {
			return a, true
		}
	}
	return Asset{}, false
}

// CanonicalPairs lists the (coin, network) pairs the admin dashboard
// manages deposit addresses for.
func CanonicalPairs() []Address {
	return []Address{
		{Coin: "btc", Network: "mainnet"},
		{Coin: "eth", Network: "ERC20"},
		{Coin: "usdt", Network: "BEP20"},
		{Coin: "usdt", Network: "TRC20"},
	}
}
