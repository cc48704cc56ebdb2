// Package forcedinclusion tracks the node's position in the L1
// forced-inclusion queue and decodes the transaction list a forced-inclusion
// record points at (spec.md §2 component 8, "ForcedInclusionMgr"; §4.7).
package forcedinclusion

import (
	"bytes"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"

	"github.com/taikoxyz/preconf-sequencer/bindings/encoding"
	"github.com/taikoxyz/preconf-sequencer/l1"
	"github.com/taikoxyz/preconf-sequencer/pkg/errs"
	"github.com/taikoxyz/preconf-sequencer/pkg/fork"
)

// inboxReader is the l1.InboxClient surface ForcedInclusionMgr depends on.
type inboxReader interface {
	ForcedInclusionHead(ctx context.Context) (uint64, error)
	ForcedInclusionTail(ctx context.Context) (uint64, error)
	GetForcedInclusionPacaya(ctx context.Context, index uint64) (*l1.ForcedInclusionPacaya, error)
	GetForcedInclusionShasta(ctx context.Context, index uint64) (*l1.ForcedInclusionShasta, error)
}

// Manager tracks `index` (the next forced-inclusion record the node plans to
// include) against the L1 contract's `head`/`tail` pointers. It is mutated
// only by the Orchestrator, same confinement discipline as BatchBuilder
// (spec.md §5).
type Manager struct {
	inbox  inboxReader
	blobs  *BlobFetcher
	active fork.Fork

	mu    sync.Mutex
	index uint64
}

// New constructs a Manager with index left at zero; callers MUST call
// SyncQueueIndexWithHead before first use (spec.md §4.7: "Called on builder
// reset and node start").
func New(inbox inboxReader, blobs *BlobFetcher, active fork.Fork) *Manager {
	return &Manager{inbox: inbox, blobs: blobs, active: active}
}

// SyncQueueIndexWithHead sets index := head, discarding any in-progress
// position.
func (m *Manager) SyncQueueIndexWithHead(ctx context.Context) (uint64, error) {
	head, err := m.inbox.ForcedInclusionHead(ctx)
	if err != nil {
		return 0, errs.Wrap(errs.KindTransientRpc, err, "failed to read forced inclusion head")
	}
	m.mu.Lock()
	m.index = head
	m.mu.Unlock()
	log.Debug("synced forced inclusion index with head", "head", head)
	return head, nil
}

// Index returns the node's current forced-inclusion cursor.
func (m *Manager) Index() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index
}

// DecodeCurrent returns the single forced-inclusion record's transactions, or
// nil if index has caught up with tail (spec.md §4.7: "at index==tail returns
// None"). It does not advance the cursor; callers call Consume on success.
func (m *Manager) DecodeCurrent(ctx context.Context) (types.Transactions, error) {
	index := m.Index()

	tail, err := m.inbox.ForcedInclusionTail(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransientRpc, err, "failed to read forced inclusion tail")
	}
	if index >= tail {
		return nil, nil
	}

	switch m.active {
	case fork.Pacaya:
		return m.decodeCurrentPacaya(ctx, index)
	case fork.Shasta:
		return m.decodeCurrentShasta(ctx, index)
	default:
		return nil, errs.New(errs.KindCritical, fmt.Sprintf("forced inclusion decode not supported on fork %s", m.active))
	}
}

func (m *Manager) decodeCurrentPacaya(ctx context.Context, index uint64) (types.Transactions, error) {
	record, err := m.inbox.GetForcedInclusionPacaya(ctx, index)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransientRpc, err, "failed to read forced inclusion record")
	}

	blobBytes, err := m.blobs.FetchByHash(ctx, record.BlobHash, record.BlobCreatedIn)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransientRpc, err, "failed to fetch forced inclusion blob")
	}
	if int(record.BlobByteOffset)+int(record.BlobByteSize) > len(blobBytes) {
		return nil, errs.New(errs.KindDecodeError, "forced inclusion byte range exceeds blob size")
	}
	slice := blobBytes[record.BlobByteOffset : record.BlobByteOffset+record.BlobByteSize]

	txs, err := decompressTxList(slice)
	if err != nil {
		return nil, errs.Wrap(errs.KindDecodeError, err, "failed to decode forced inclusion tx list")
	}
	return txs, nil
}

// decodeCurrentShasta reads a Shasta forced-inclusion record and decodes the
// single-block ProposalManifest its blobSlice points at (spec.md §4.7: "fail
// if ≠ 1 block").
func (m *Manager) decodeCurrentShasta(ctx context.Context, index uint64) (types.Transactions, error) {
	record, err := m.inbox.GetForcedInclusionShasta(ctx, index)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransientRpc, err, "failed to read forced inclusion record")
	}

	hashes := make([]common.Hash, len(record.BlobSlice.BlobHashes))
	for i, h := range record.BlobSlice.BlobHashes {
		hashes[i] = h
	}
	blobBytes, err := m.blobs.FetchByHashes(ctx, hashes, record.BlobSlice.Timestamp)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransientRpc, err, "failed to fetch forced inclusion blobs")
	}
	if int(record.BlobSlice.Offset) > len(blobBytes) {
		return nil, errs.New(errs.KindDecodeError, "forced inclusion offset exceeds blob size")
	}

	manifest, err := encoding.DecodeProposalManifest(blobBytes[record.BlobSlice.Offset:])
	if err != nil {
		return nil, errs.Wrap(errs.KindDecodeError, err, "failed to decode forced inclusion manifest")
	}
	if len(manifest.Blocks) != 1 {
		return nil, errs.New(errs.KindDecodeError, fmt.Sprintf("expected exactly one block in forced inclusion manifest, found %d", len(manifest.Blocks)))
	}
	return manifest.Blocks[0].Transactions, nil
}

// decompressTxList inflates a zlib-compressed RLP-encoded transaction list,
// the Pacaya forced-inclusion blob payload shape (no manifest wrapper, unlike
// Shasta's ProposalManifest).
func decompressTxList(data []byte) (types.Transactions, error) {
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open zlib reader: %w", err)
	}
	defer zr.Close()
	rlpBytes, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to inflate tx list: %w", err)
	}
	var txs types.Transactions
	if err := rlp.DecodeBytes(rlpBytes, &txs); err != nil {
		return nil, fmt.Errorf("failed to rlp-decode tx list: %w", err)
	}
	return txs, nil
}

// Consume advances index past the record just added to a batch (spec.md
// §4.7: "after successful addition to a batch, increments index").
func (m *Manager) Consume() {
	m.mu.Lock()
	m.index++
	m.mu.Unlock()
}

// Release retreats index after a batch failure, undoing a prior Consume
// (spec.md §4.7).
func (m *Manager) Release() {
	m.mu.Lock()
	if m.index > 0 {
		m.index--
	} else {
		log.Error("attempted to release forced inclusion index below zero")
	}
	m.mu.Unlock()
}
