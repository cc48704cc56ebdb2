package forcedinclusion

import (
	"testing"

	"github.com/ethereum/go-ethereum/crypto/kzg4844"
)

func TestSlotForTimestamp(t *testing.T) {
	f := &BlobFetcher{genesisTimeSec: 1000, secondsPerSlot: 12}
	if got := f.slotForTimestamp(1000); got != 0 {
		t.Errorf("slotForTimestamp(genesis) = %d, want 0", got)
	}
	if got := f.slotForTimestamp(999); got != 0 {
		t.Errorf("slotForTimestamp(before genesis) = %d, want 0", got)
	}
	if got := f.slotForTimestamp(1024); got != 2 {
		t.Errorf("slotForTimestamp(1024) = %d, want 2", got)
	}
}

func TestSlotForTimestamp_ZeroSlotDurationIsZero(t *testing.T) {
	f := &BlobFetcher{genesisTimeSec: 1000, secondsPerSlot: 0}
	if got := f.slotForTimestamp(2000); got != 0 {
		t.Errorf("slotForTimestamp with secondsPerSlot=0 = %d, want 0", got)
	}
}

func TestHexDecode(t *testing.T) {
	b, err := hexDecode("0xdeadbeef")
	if err != nil {
		t.Fatalf("hexDecode: %v", err)
	}
	if string(b) != string([]byte{0xde, 0xad, 0xbe, 0xef}) {
		t.Fatalf("hexDecode(0xdeadbeef) = %x", b)
	}
	if _, err := hexDecode("zz"); err == nil {
		t.Fatal("expected error decoding non-hex input, got nil")
	}
}

func TestDecodeBlob_StripsPaddingByte(t *testing.T) {
	var blob kzg4844.Blob
	// Two field elements: first byte of each 32-byte word must stay zero,
	// the remaining 31 bytes carry data.
	blob[1] = 0xaa
	blob[32+1] = 0xbb

	out := decodeBlob(blob)
	if len(out) != len(blob)/32*31 {
		t.Fatalf("decodeBlob length = %d, want %d", len(out), len(blob)/32*31)
	}
	if out[0] != 0xaa {
		t.Fatalf("decodeBlob()[0] = %x, want 0xaa", out[0])
	}
	if out[31] != 0xbb {
		t.Fatalf("decodeBlob()[31] = %x, want 0xbb", out[31])
	}
}

func TestKzgToVersionedHash_SetsVersionByte(t *testing.T) {
	var commitment kzg4844.Commitment
	hash := kzgToVersionedHash(commitment)
	if hash[0] != 0x01 {
		t.Fatalf("versioned hash leading byte = %x, want 0x01", hash[0])
	}
}

func TestVersionedHash_DeterministicForSameBlob(t *testing.T) {
	var blob kzg4844.Blob
	h1 := versionedHash(blob)
	h2 := versionedHash(blob)
	if h1 != h2 {
		t.Fatalf("versionedHash not deterministic: %s != %s", h1, h2)
	}
}
