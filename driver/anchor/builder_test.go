package anchor

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/taikoxyz/preconf-sequencer/l1"
	"github.com/taikoxyz/preconf-sequencer/l2"
	"github.com/taikoxyz/preconf-sequencer/pkg/fork"
	"github.com/taikoxyz/preconf-sequencer/signer"
)

type fakeNonceReader struct{ nonce uint64 }

func (f fakeNonceReader) NonceAtHash(ctx context.Context, account common.Address, blockHash common.Hash) (uint64, error) {
	return f.nonce, nil
}

func testBaseFeeConfig() l1.BaseFeeConfig {
	return l1.BaseFeeConfig{}
}

func TestConstructAnchorTx_Pacaya_RoundTrips(t *testing.T) {
	golden, err := signer.NewGoldenTouchSigner(big.NewInt(167000))
	if err != nil {
		t.Fatalf("NewGoldenTouchSigner: %v", err)
	}
	l2Anchor := common.HexToAddress("0xa0")
	b := NewBuilder(l2Anchor, common.HexToAddress("0xa1"), fakeNonceReader{nonce: 5}, golden, big.NewInt(167000), fork.Pacaya, testBaseFeeConfig())

	anchorBlock := AnchorBlock{ID: 100, StateRoot: common.HexToHash("0xaa"), Hash: common.HexToHash("0xbb")}
	slot := L2SlotInfo{BaseFee: big.NewInt(1_000_000_000), ParentHash: common.HexToHash("0xcc")}

	tx, err := b.ConstructAnchorTx(context.Background(), slot, anchorBlock, 42, nil)
	if err != nil {
		t.Fatalf("ConstructAnchorTx: %v", err)
	}
	if tx.To() == nil || *tx.To() != l2Anchor {
		t.Fatalf("tx.To() = %v, want %s", tx.To(), l2Anchor)
	}
	if tx.Nonce() != 5 {
		t.Fatalf("tx.Nonce() = %d, want 5", tx.Nonce())
	}

	gotID, gotStateRoot, gotGasUsed, err := l2.DecodePacayaAnchorV3(tx.Data())
	if err != nil {
		t.Fatalf("DecodePacayaAnchorV3: %v", err)
	}
	if gotID != anchorBlock.ID {
		t.Fatalf("decoded anchor block id = %d, want %d", gotID, anchorBlock.ID)
	}
	if gotStateRoot != anchorBlock.StateRoot {
		t.Fatalf("decoded anchor state root = %s, want %s", gotStateRoot, anchorBlock.StateRoot)
	}
	if gotGasUsed != 42 {
		t.Fatalf("decoded parent gas used = %d, want 42", gotGasUsed)
	}
}

func TestConstructAnchorTx_Shasta_UsesShastaAnchorAddress(t *testing.T) {
	golden, err := signer.NewGoldenTouchSigner(big.NewInt(167000))
	if err != nil {
		t.Fatalf("NewGoldenTouchSigner: %v", err)
	}
	shastaAnchor := common.HexToAddress("0xb1")
	b := NewBuilder(common.HexToAddress("0xb0"), shastaAnchor, fakeNonceReader{nonce: 0}, golden, big.NewInt(167000), fork.Shasta, testBaseFeeConfig())

	anchorBlock := AnchorBlock{ID: 7, StateRoot: common.HexToHash("0xaa"), Hash: common.HexToHash("0xbb")}
	slot := L2SlotInfo{BaseFee: big.NewInt(1_000_000_000), ParentHash: common.HexToHash("0xcc")}

	tx, err := b.ConstructAnchorTx(context.Background(), slot, anchorBlock, 0, [][32]byte{{0x01}})
	if err != nil {
		t.Fatalf("ConstructAnchorTx: %v", err)
	}
	if tx.To() == nil || *tx.To() != shastaAnchor {
		t.Fatalf("tx.To() = %v, want %s", tx.To(), shastaAnchor)
	}
}

// TestConstructAnchorTx_Uniqueness backs the anchor uniqueness property:
// identical inputs, including the nonce read against the same parent hash,
// must produce byte-identical signed transactions.
func TestConstructAnchorTx_Uniqueness(t *testing.T) {
	golden, err := signer.NewGoldenTouchSigner(big.NewInt(167000))
	if err != nil {
		t.Fatalf("NewGoldenTouchSigner: %v", err)
	}
	b := NewBuilder(common.HexToAddress("0xa0"), common.HexToAddress("0xa1"), fakeNonceReader{nonce: 3}, golden, big.NewInt(167000), fork.Pacaya, testBaseFeeConfig())

	anchorBlock := AnchorBlock{ID: 50, StateRoot: common.HexToHash("0xaa"), Hash: common.HexToHash("0xbb")}
	slot := L2SlotInfo{BaseFee: big.NewInt(1_000_000_000), ParentHash: common.HexToHash("0xcc")}

	tx1, err := b.ConstructAnchorTx(context.Background(), slot, anchorBlock, 10, nil)
	if err != nil {
		t.Fatalf("ConstructAnchorTx (1st): %v", err)
	}
	tx2, err := b.ConstructAnchorTx(context.Background(), slot, anchorBlock, 10, nil)
	if err != nil {
		t.Fatalf("ConstructAnchorTx (2nd): %v", err)
	}
	if tx1.Hash() != tx2.Hash() {
		t.Fatalf("tx hashes differ across identical invocations: %s != %s", tx1.Hash(), tx2.Hash())
	}
}

func TestConstructAnchorTx_UnknownForkIsCritical(t *testing.T) {
	golden, err := signer.NewGoldenTouchSigner(big.NewInt(167000))
	if err != nil {
		t.Fatalf("NewGoldenTouchSigner: %v", err)
	}
	b := NewBuilder(common.HexToAddress("0xa0"), common.HexToAddress("0xa1"), fakeNonceReader{}, golden, big.NewInt(167000), fork.Fork(99), testBaseFeeConfig())
	slot := L2SlotInfo{BaseFee: big.NewInt(1), ParentHash: common.HexToHash("0xcc")}
	if _, err := b.ConstructAnchorTx(context.Background(), slot, AnchorBlock{ID: 1}, 0, nil); err == nil {
		t.Fatal("expected error for an unrecognized fork, got nil")
	}
}
