package encoding

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// BlobParams mirrors the ITaikoInbox.BlobParams Solidity tuple (spec.md §6,
// Pacaya BatchParams.blobParams) and the blobParamsComponents marshaling
// already declared in input.go.
type BlobParams struct {
	BlobHashes     [][32]byte
	FirstBlobIndex uint8
	NumBlobs       uint8
	ByteOffset     uint32
	ByteSize       uint32
}

// BlockParams mirrors one entry of ITaikoInbox.BatchParams.blocks.
type BlockParams struct {
	NumTransactions uint16
	TimeShift       uint8
}

// BatchParams mirrors ITaikoInbox.BatchParams from spec.md §6.
type BatchParams struct {
	Proposer                 common.Address
	Coinbase                 common.Address
	ParentMetaHash            [32]byte
	AnchorBlockID             uint64
	AnchorInput               [32]byte
	LastBlockTimestamp        uint64
	RevertIfNotFirstProposal  bool
	SignalSlots               [][32]byte
	BlobParams                BlobParams
	Blocks                    []BlockParams
}

// ProposeBatchWrapper mirrors the outer `params` argument taiko's inbox
// contract expects: abi.encode(ProposeBatchWrapper{bytesX, bytesY}) where
// bytesY is itself abi.encode(BatchParams{...}). BytesX is a reserved,
// currently-unused field kept for ABI forward-compatibility, per spec.md §6.
type ProposeBatchWrapper struct {
	BytesX []byte
	BytesY []byte
}

var (
	proposeBatchWrapperComponents = []abi.ArgumentMarshaling{
		{Name: "bytesX", Type: "bytes"},
		{Name: "bytesY", Type: "bytes"},
	}
	proposeBatchWrapperType, _ = abi.NewType("tuple", "ProposeBatchWrapper", proposeBatchWrapperComponents)
	proposeBatchWrapperArgs    = abi.Arguments{{Name: "ProposeBatchWrapper", Type: proposeBatchWrapperType}}
)

var (
	blobParamsComponents = []abi.ArgumentMarshaling{
		{Name: "blobHashes", Type: "bytes32[]"},
		{Name: "firstBlobIndex", Type: "uint8"},
		{Name: "numBlobs", Type: "uint8"},
		{Name: "byteOffset", Type: "uint32"},
		{Name: "byteSize", Type: "uint32"},
	}
	blockParamsComponents = []abi.ArgumentMarshaling{
		{Name: "numTransactions", Type: "uint16"},
		{Name: "timeShift", Type: "uint8"},
	}
	batchParamsComponents = []abi.ArgumentMarshaling{
		{Name: "proposer", Type: "address"},
		{Name: "coinbase", Type: "address"},
		{Name: "parentMetaHash", Type: "bytes32"},
		{Name: "anchorBlockId", Type: "uint64"},
		{Name: "anchorInput", Type: "bytes32"},
		{Name: "lastBlockTimestamp", Type: "uint64"},
		{Name: "revertIfNotFirstProposal", Type: "bool"},
		{Name: "signalSlots", Type: "bytes32[]"},
		{Name: "blobParams", Type: "tuple", Components: blobParamsComponents},
		{Name: "blocks", Type: "tuple[]", Components: blockParamsComponents},
	}
	batchParamsType, _        = abi.NewType("tuple", "BatchParams", batchParamsComponents)
	batchParamsComponentsArgs = abi.Arguments{{Name: "BatchParams", Type: batchParamsType}}
)

// EncodeProposeBatchParams performs abi.encode(BatchParams{...}), the inner
// "bytesY" payload of a Pacaya proposeBatch call.
func EncodeProposeBatchParams(params *BatchParams) ([]byte, error) {
	b, err := batchParamsComponentsArgs.Pack(params)
	if err != nil {
		return nil, fmt.Errorf("failed to abi.encode pacaya batch params: %w", err)
	}
	return b, nil
}

// EncodeProposeBatchWrapper performs abi.encode(ProposeBatchWrapper{"", bytesY}),
// the outer "params" argument of `proposeBatch(bytes params, bytes txList)`.
func EncodeProposeBatchWrapper(bytesY []byte) ([]byte, error) {
	b, err := proposeBatchWrapperArgs.Pack(&ProposeBatchWrapper{BytesX: nil, BytesY: bytesY})
	if err != nil {
		return nil, fmt.Errorf("failed to abi.encode ProposeBatchWrapper: %w", err)
	}
	return b, nil
}

// proposeBatchABI is the minimal Pacaya TaikoInbox ABI fragment the node
// needs to build calldata for `proposeBatch`, following the same pattern
// input.go uses to hold fork ABIs as package-level *abi.ABI values.
var proposeBatchABI *abi.ABI

func init() {
	const proposeBatchABIJSON = `[{
		"type":"function",
		"name":"proposeBatch",
		"inputs":[{"name":"_params","type":"bytes"},{"name":"_txList","type":"bytes"}],
		"outputs":[],
		"stateMutability":"nonpayable"
	}]`
	parsed, err := abi.JSON(strings.NewReader(proposeBatchABIJSON))
	if err != nil {
		panic(fmt.Errorf("failed to parse proposeBatch ABI fragment: %w", err))
	}
	proposeBatchABI = &parsed
}

// EncodeProposeBatchCalldata builds the full calldata for a Pacaya
// `proposeBatch(bytes,bytes)` transaction.
func EncodeProposeBatchCalldata(params *BatchParams, txListBytes []byte) ([]byte, error) {
	bytesY, err := EncodeProposeBatchParams(params)
	if err != nil {
		return nil, err
	}
	wrapper, err := EncodeProposeBatchWrapper(bytesY)
	if err != nil {
		return nil, err
	}
	return proposeBatchABI.Pack("proposeBatch", wrapper, txListBytes)
}

// BaseFeeConfig mirrors TaikoAnchor.BaseFeeConfig, the tuple anchorV3 takes
// alongside l1.BaseFeeConfig (identical field shape so the two convert
// directly at the driver/anchor boundary).
type BaseFeeConfig struct {
	AdjustmentQuotient     uint8
	SharingPctg            uint8
	GasIssuancePerSecond   uint32
	MinGasExcess           uint64
	MaxGasIssuancePerBlock uint32
}

// AnchorV3Params mirrors TaikoAnchor.anchorV3's argument list.
type AnchorV3Params struct {
	AnchorBlockID   uint64
	AnchorStateRoot common.Hash
	ParentGasUsed   uint32
	BaseFeeConfig   BaseFeeConfig
	SignalSlots     [][32]byte
}

var anchorV3ABI *abi.ABI

func init() {
	const anchorV3ABIJSON = `[{
		"type":"function",
		"name":"anchorV3",
		"inputs":[
			{"name":"_anchorBlockId","type":"uint64"},
			{"name":"_anchorStateRoot","type":"bytes32"},
			{"name":"_parentGasUsed","type":"uint32"},
			{"name":"_baseFeeConfig","type":"tuple","components":[
				{"name":"adjustmentQuotient","type":"uint8"},
				{"name":"sharingPctg","type":"uint8"},
				{"name":"gasIssuancePerSecond","type":"uint32"},
				{"name":"minGasExcess","type":"uint64"},
				{"name":"maxGasIssuancePerBlock","type":"uint32"}
			]},
			{"name":"_signalSlots","type":"bytes32[]"}
		],
		"outputs":[],
		"stateMutability":"nonpayable"
	}]`
	parsed, err := abi.JSON(strings.NewReader(anchorV3ABIJSON))
	if err != nil {
		panic(fmt.Errorf("failed to parse anchorV3 ABI fragment: %w", err))
	}
	anchorV3ABI = &parsed
}

// EncodeAnchorV3 builds the calldata for TaikoAnchor.anchorV3, the Pacaya
// anchor transaction payload (spec.md §4.4).
func EncodeAnchorV3(p AnchorV3Params) ([]byte, error) {
	slots := p.SignalSlots
	if slots == nil {
		slots = [][32]byte{}
	}
	return anchorV3ABI.Pack("anchorV3", p.AnchorBlockID, p.AnchorStateRoot, p.ParentGasUsed, p.BaseFeeConfig, slots)
}
