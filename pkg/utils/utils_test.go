package utils

import (
	"math/big"
	"testing"
)

func TestWeiToGWei(t *testing.T) {
	got := WeiToGWei(big.NewInt(2_500_000_000))
	want := big.NewFloat(2.5)
	if got.Cmp(want) != 0 {
		t.Fatalf("WeiToGWei(2.5 gwei) = %s, want %s", got, want)
	}
}

func TestWeiToGWei_NilIsZero(t *testing.T) {
	if got := WeiToGWei(nil); got.Cmp(big.NewFloat(0)) != 0 {
		t.Fatalf("WeiToGWei(nil) = %s, want 0", got)
	}
}

func TestGWeiToWei(t *testing.T) {
	got := GWeiToWei(3)
	want := big.NewInt(3_000_000_000)
	if got.Cmp(want) != 0 {
		t.Fatalf("GWeiToWei(3) = %s, want %s", got, want)
	}
}

func TestMinMaxUint64(t *testing.T) {
	if MinUint64(3, 5) != 3 {
		t.Fatal("MinUint64(3, 5) != 3")
	}
	if MinUint64(5, 3) != 3 {
		t.Fatal("MinUint64(5, 3) != 3")
	}
	if MaxUint64(3, 5) != 5 {
		t.Fatal("MaxUint64(3, 5) != 5")
	}
	if MaxUint64(5, 3) != 5 {
		t.Fatal("MaxUint64(5, 3) != 5")
	}
}

func TestSecDiffFitsU8(t *testing.T) {
	if !SecDiffFitsU8(100, 355) {
		t.Fatal("SecDiffFitsU8(100, 355) = false, want true: diff is exactly 255")
	}
	if SecDiffFitsU8(100, 356) {
		t.Fatal("SecDiffFitsU8(100, 356) = true, want false: diff is 256")
	}
	if SecDiffFitsU8(100, 99) {
		t.Fatal("SecDiffFitsU8(100, 99) = true, want false: b < a")
	}
}
