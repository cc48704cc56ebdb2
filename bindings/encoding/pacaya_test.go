package encoding

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestEncodeProposeBatchCalldata_RoundTrips(t *testing.T) {
	params := &BatchParams{
		Proposer:      common.HexToAddress("0xaa"),
		Coinbase:      common.HexToAddress("0xbb"),
		AnchorBlockID: 100,
		LastBlockTimestamp: 1700000000,
		Blocks: []BlockParams{
			{NumTransactions: 3, TimeShift: 0},
			{NumTransactions: 5, TimeShift: 12},
		},
	}
	txListBytes := []byte{0xde, 0xad, 0xbe, 0xef}

	calldata, err := EncodeProposeBatchCalldata(params, txListBytes)
	if err != nil {
		t.Fatalf("EncodeProposeBatchCalldata: %v", err)
	}
	if len(calldata) < 4 {
		t.Fatalf("calldata too short: %d bytes", len(calldata))
	}

	method, ok := proposeBatchABI.Methods["proposeBatch"]
	if !ok {
		t.Fatal("proposeBatch method missing from ABI")
	}
	for i, b := range method.ID {
		if calldata[i] != b {
			t.Fatalf("calldata selector = %x, want %x", calldata[:4], method.ID)
		}
	}

	values, err := method.Inputs.UnpackValues(calldata[4:])
	if err != nil {
		t.Fatalf("unpacking proposeBatch calldata: %v", err)
	}
	if len(values) != 2 {
		t.Fatalf("unpacked %d args, want 2", len(values))
	}
	gotTxList, ok := values[1].([]byte)
	if !ok || string(gotTxList) != string(txListBytes) {
		t.Fatalf("decoded txList = %v, want %x", values[1], txListBytes)
	}
}

func TestEncodeProposeBatchParams_RoundTrips(t *testing.T) {
	params := &BatchParams{
		Proposer:           common.HexToAddress("0x01"),
		Coinbase:           common.HexToAddress("0x02"),
		AnchorBlockID:      42,
		LastBlockTimestamp: 99,
		SignalSlots:        [][32]byte{{0x01}},
		BlobParams: BlobParams{
			FirstBlobIndex: 1,
			NumBlobs:       2,
			ByteOffset:     10,
			ByteSize:       20,
		},
		Blocks: []BlockParams{{NumTransactions: 1, TimeShift: 5}},
	}

	encoded, err := EncodeProposeBatchParams(params)
	if err != nil {
		t.Fatalf("EncodeProposeBatchParams: %v", err)
	}

	values, err := batchParamsComponentsArgs.UnpackValues(encoded)
	if err != nil {
		t.Fatalf("unpacking batch params: %v", err)
	}
	if len(values) != 1 {
		t.Fatalf("UnpackValues returned %d top-level values, want 1", len(values))
	}
}

func TestEncodeAnchorV3_NilSignalSlotsDoesNotPanic(t *testing.T) {
	_, err := EncodeAnchorV3(AnchorV3Params{AnchorBlockID: 1, ParentGasUsed: 2, SignalSlots: nil})
	if err != nil {
		t.Fatalf("EncodeAnchorV3 with nil signal slots: %v", err)
	}
}
