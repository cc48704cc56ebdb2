package encoding

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rlp"
)

// manifestVersion is the version prefix written before every Shasta
// proposal manifest blob payload (spec.md §6: "[version:u32 BE = 0x01, ...]").
const manifestVersion uint32 = 0x01

// BlobReference mirrors Shasta's ProposeInput.blobReference tuple.
type BlobReference struct {
	BlobStartIndex uint16
	NumBlobs       uint16
	Offset         uint32
}

// ProposeInput mirrors the Shasta `propose(bytes _lookahead, bytes _data)`
// call's `_data` payload, abi-encoded as ProposeInput{...} per spec.md §6.
type ProposeInput struct {
	Deadline             uint64
	BlobReference        BlobReference
	NumForcedInclusions  uint8
}

// Checkpoint mirrors the {blockNumber, blockHash, stateRoot} tuple used by
// both anchorV4WithSignalSlots and BlockManifest derivation.
type Checkpoint struct {
	BlockNumber uint64
	BlockHash   common.Hash
	StateRoot   common.Hash
}

// BlockManifest mirrors Shasta's ProposalManifest.blocks[i] entry. Numeric
// widths below (u48) are represented as uint64 in Go; callers must range-check
// before encoding, since Solidity's uintN packing truncates silently.
type BlockManifest struct {
	Timestamp       uint64 // u48
	Coinbase        common.Address
	AnchorBlockNumber uint64 // u48
	GasLimit        uint64 // u48
	Transactions    types.Transactions
}

// ProposalManifest mirrors Shasta's ProposalManifest{proverAuthBytes, blocks[]}.
type ProposalManifest struct {
	ProverAuthBytes []byte
	Blocks          []BlockManifest
}

var (
	blobReferenceComponents = []abi.ArgumentMarshaling{
		{Name: "blobStartIndex", Type: "uint16"},
		{Name: "numBlobs", Type: "uint16"},
		{Name: "offset", Type: "uint32"},
	}

	proposeInputComponents = []abi.ArgumentMarshaling{
		{Name: "deadline", Type: "uint64"},
		{
			Name:       "blobReference",
			Type:       "tuple",
			Components: blobReferenceComponents,
		},
		{Name: "numForcedInclusions", Type: "uint8"},
	}
	proposeInputType, _ = abi.NewType("tuple", "ProposeInput", proposeInputComponents)
	proposeInputArgs    = abi.Arguments{{Name: "ProposeInput", Type: proposeInputType}}
)

// EncodeProposeInput performs abi.encode(ProposeInput{...}), the `_data`
// argument of a Shasta `propose` call.
func EncodeProposeInput(input *ProposeInput) ([]byte, error) {
	b, err := proposeInputArgs.Pack(input)
	if err != nil {
		return nil, fmt.Errorf("failed to abi.encode shasta ProposeInput: %w", err)
	}
	return b, nil
}

// shastaProposeABI holds the minimal Shasta inbox ABI fragment needed to
// build `propose` calldata.
var shastaProposeABI *abi.ABI

func init() {
	const proposeABIJSON = `[{
		"type":"function",
		"name":"propose",
		"inputs":[{"name":"_lookahead","type":"bytes"},{"name":"_data","type":"bytes"}],
		"outputs":[],
		"stateMutability":"nonpayable"
	}]`
	parsed, err := abi.JSON(strings.NewReader(proposeABIJSON))
	if err != nil {
		panic(fmt.Errorf("failed to parse shasta propose ABI fragment: %w", err))
	}
	shastaProposeABI = &parsed
}

// EncodeProposeCalldata builds the full calldata for a Shasta
// `propose(bytes,bytes)` transaction. lookahead is typically empty for the
// whitelist fork (permissionless lookahead is a future subsystem, spec.md §9).
func EncodeProposeCalldata(lookahead []byte, input *ProposeInput) ([]byte, error) {
	data, err := EncodeProposeInput(input)
	if err != nil {
		return nil, err
	}
	return shastaProposeABI.Pack("propose", lookahead, data)
}

// anchorV4ABI holds the Shasta anchor transaction's ABI fragment:
// anchorV4WithSignalSlots(checkpoint, signalSlots[]) (spec.md §4.4, "Payload
// (Shasta)").
var anchorV4ABI *abi.ABI

func init() {
	const anchorV4ABIJSON = `[{
		"type":"function",
		"name":"anchorV4WithSignalSlots",
		"inputs":[
			{"name":"_checkpoint","type":"tuple","components":[
				{"name":"blockNumber","type":"uint64"},
				{"name":"blockHash","type":"bytes32"},
				{"name":"stateRoot","type":"bytes32"}
			]},
			{"name":"_signalSlots","type":"bytes32[]"}
		],
		"outputs":[],
		"stateMutability":"nonpayable"
	}]`
	parsed, err := abi.JSON(strings.NewReader(anchorV4ABIJSON))
	if err != nil {
		panic(fmt.Errorf("failed to parse anchorV4WithSignalSlots ABI fragment: %w", err))
	}
	anchorV4ABI = &parsed
}

// EncodeAnchorV4WithSignalSlots builds the calldata for the Shasta anchor
// transaction, TaikoAnchor.anchorV4WithSignalSlots(checkpoint, signalSlots[]).
func EncodeAnchorV4WithSignalSlots(checkpoint Checkpoint, signalSlots [][32]byte) ([]byte, error) {
	slots := signalSlots
	if slots == nil {
		slots = [][32]byte{}
	}
	return anchorV4ABI.Pack("anchorV4WithSignalSlots", checkpoint, slots)
}

// rlpProposalManifest is the RLP-serializable shadow of ProposalManifest;
// go-ethereum's rlp package cannot encode common.Hash/Address fields nested
// inside arbitrary structs without this being the literal struct shape, so it
// doubles as the actual wire type.
type rlpBlockManifest struct {
	Timestamp         uint64
	Coinbase          common.Address
	AnchorBlockNumber uint64
	GasLimit          uint64
	Transactions      []*types.Transaction
}

type rlpProposalManifest struct {
	ProverAuthBytes []byte
	Blocks          []rlpBlockManifest
}

// EncodeProposalManifest RLP-encodes then zlib-compresses a ProposalManifest,
// and prefixes it with the [version:u32 BE, manifest_len:u32 BE] header that
// spec.md §6 says must precede the manifest inside the blob.
func EncodeProposalManifest(m *ProposalManifest) ([]byte, error) {
	shadow := rlpProposalManifest{ProverAuthBytes: m.ProverAuthBytes}
	for _, b := range m.Blocks {
		txs := make([]*types.Transaction, len(b.Transactions))
		copy(txs, b.Transactions)
		shadow.Blocks = append(shadow.Blocks, rlpBlockManifest{
			Timestamp:         b.Timestamp,
			Coinbase:          b.Coinbase,
			AnchorBlockNumber: b.AnchorBlockNumber,
			GasLimit:          b.GasLimit,
			Transactions:      txs,
		})
	}

	rlpBytes, err := rlp.EncodeToBytes(&shadow)
	if err != nil {
		return nil, fmt.Errorf("failed to rlp-encode shasta proposal manifest: %w", err)
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(rlpBytes); err != nil {
		return nil, fmt.Errorf("failed to zlib-compress shasta proposal manifest: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to close zlib writer: %w", err)
	}

	header := make([]byte, 8)
	binary.BigEndian.PutUint32(header[0:4], manifestVersion)
	binary.BigEndian.PutUint32(header[4:8], uint32(compressed.Len()))

	return append(header, compressed.Bytes()...), nil
}

// DecodeProposalManifest reverses EncodeProposalManifest, validating the
// version prefix and declared length before inflating.
func DecodeProposalManifest(blobBytes []byte) (*ProposalManifest, error) {
	if len(blobBytes) < 8 {
		return nil, fmt.Errorf("shasta manifest blob too short: %d bytes", len(blobBytes))
	}
	version := binary.BigEndian.Uint32(blobBytes[0:4])
	if version != manifestVersion {
		return nil, fmt.Errorf("unsupported shasta manifest version: %d", version)
	}
	length := binary.BigEndian.Uint32(blobBytes[4:8])
	body := blobBytes[8:]
	if uint32(len(body)) < length {
		return nil, fmt.Errorf("shasta manifest blob shorter than declared length: have %d, want %d", len(body), length)
	}
	body = body[:length]

	zr, err := zlib.NewReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to open zlib reader for shasta manifest: %w", err)
	}
	defer zr.Close()
	rlpBytes, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to inflate shasta manifest: %w", err)
	}

	var shadow rlpProposalManifest
	if err := rlp.DecodeBytes(rlpBytes, &shadow); err != nil {
		return nil, fmt.Errorf("failed to rlp-decode shasta manifest: %w", err)
	}

	m := &ProposalManifest{ProverAuthBytes: shadow.ProverAuthBytes}
	for _, b := range shadow.Blocks {
		m.Blocks = append(m.Blocks, BlockManifest{
			Timestamp:         b.Timestamp,
			Coinbase:          b.Coinbase,
			AnchorBlockNumber: b.AnchorBlockNumber,
			GasLimit:          b.GasLimit,
			Transactions:      types.Transactions(b.Transactions),
		})
	}
	return m, nil
}
