package encoding

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"math/big"
)

func TestEncodeProposeCalldata_HasCorrectSelector(t *testing.T) {
	input := &ProposeInput{
		Deadline:            1700000000,
		NumForcedInclusions: 2,
		BlobReference:       BlobReference{BlobStartIndex: 0, NumBlobs: 1, Offset: 0},
	}
	calldata, err := EncodeProposeCalldata(nil, input)
	if err != nil {
		t.Fatalf("EncodeProposeCalldata: %v", err)
	}
	method, ok := shastaProposeABI.Methods["propose"]
	if !ok {
		t.Fatal("propose method missing from ABI")
	}
	for i, b := range method.ID {
		if calldata[i] != b {
			t.Fatalf("calldata selector = %x, want %x", calldata[:4], method.ID)
		}
	}
}

func TestEncodeAnchorV4WithSignalSlots_NilSlotsDoesNotPanic(t *testing.T) {
	cp := Checkpoint{BlockNumber: 1, BlockHash: common.HexToHash("0xaa"), StateRoot: common.HexToHash("0xbb")}
	if _, err := EncodeAnchorV4WithSignalSlots(cp, nil); err != nil {
		t.Fatalf("EncodeAnchorV4WithSignalSlots: %v", err)
	}
}

func TestProposalManifest_RoundTrips(t *testing.T) {
	tx := types.NewTx(&types.LegacyTx{Nonce: 1, GasPrice: big.NewInt(1), Gas: 21000, Value: big.NewInt(0)})
	manifest := &ProposalManifest{
		ProverAuthBytes: []byte{0x01, 0x02},
		Blocks: []BlockManifest{
			{
				Timestamp:         1700000000,
				Coinbase:          common.HexToAddress("0xaa"),
				AnchorBlockNumber: 100,
				GasLimit:          30_000_000,
				Transactions:      types.Transactions{tx},
			},
		},
	}

	encoded, err := EncodeProposalManifest(manifest)
	if err != nil {
		t.Fatalf("EncodeProposalManifest: %v", err)
	}

	decoded, err := DecodeProposalManifest(encoded)
	if err != nil {
		t.Fatalf("DecodeProposalManifest: %v", err)
	}
	if string(decoded.ProverAuthBytes) != string(manifest.ProverAuthBytes) {
		t.Fatalf("decoded ProverAuthBytes = %x, want %x", decoded.ProverAuthBytes, manifest.ProverAuthBytes)
	}
	if len(decoded.Blocks) != 1 {
		t.Fatalf("decoded %d blocks, want 1", len(decoded.Blocks))
	}
	got := decoded.Blocks[0]
	if got.Timestamp != manifest.Blocks[0].Timestamp {
		t.Fatalf("decoded Timestamp = %d, want %d", got.Timestamp, manifest.Blocks[0].Timestamp)
	}
	if got.Coinbase != manifest.Blocks[0].Coinbase {
		t.Fatalf("decoded Coinbase = %s, want %s", got.Coinbase, manifest.Blocks[0].Coinbase)
	}
	if len(got.Transactions) != 1 || got.Transactions[0].Hash() != tx.Hash() {
		t.Fatalf("decoded transactions do not round-trip")
	}
}

func TestDecodeProposalManifest_RejectsShortInput(t *testing.T) {
	if _, err := DecodeProposalManifest([]byte{0x01, 0x02}); err == nil {
		t.Fatal("expected error for input shorter than the header, got nil")
	}
}

func TestDecodeProposalManifest_RejectsWrongVersion(t *testing.T) {
	header := []byte{0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x00}
	if _, err := DecodeProposalManifest(header); err == nil {
		t.Fatal("expected error for an unsupported version, got nil")
	}
}
