// Package utils holds small numeric and timing helpers shared across the
// node, mirroring taiko-client's pkg/utils package (referenced by
// blocks_inserter/pacaya.go as utils.WeiToGWei).
package utils

import (
	"math/big"
)

var gwei = big.NewInt(1_000_000_000)

// WeiToGWei converts a wei amount to a human-readable GWei float, for log
// lines only — never for on-chain math.
func WeiToGWei(wei *big.Int) *big.Float {
	if wei == nil {
		return big.NewFloat(0)
	}
	f := new(big.Float).SetInt(wei)
	return f.Quo(f, new(big.Float).SetInt(gwei))
}

// GWeiToWei converts a GWei amount (as a plain integer) to wei.
func GWeiToWei(g uint64) *big.Int {
	return new(big.Int).Mul(new(big.Int).SetUint64(g), gwei)
}

// MinUint64 is the obvious helper, kept because this codebase targets a Go
// version predating the builtin min/max for uint64 generics in some call
// sites that need an explicit named helper for readability in diffs.
func MinUint64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}

// MaxUint64 mirrors MinUint64.
func MaxUint64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// SecDiffFitsU8 reports whether b-a (assuming b>=a) fits in a uint8, per the
// batch time-shift invariant in spec.md §3.
func SecDiffFitsU8(a, b uint64) bool {
	if b < a {
		return false
	}
	return b-a <= 255
}
