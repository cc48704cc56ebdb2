package forcedinclusion

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto/kzg4844"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"
)

// beaconBlobSidecarsResponse mirrors the beacon-node
// /eth/v1/beacon/blob_sidecars/{block_id} response shape.
type beaconBlobSidecarsResponse struct {
	Data []struct {
		Index         string `json:"index"`
		Blob          string `json:"blob"`
		KZGCommitment string `json:"kzg_commitment"`
	} `json:"data"`
}

// BlobFetcher retrieves EIP-4844 blob sidecars from a beacon-node API by
// slot, the external "blob-fetch interface" spec.md §4.7's decode_current
// reads through. Requests for the same slot made concurrently (e.g. Pacaya's
// and a would-be Shasta record resolving to the same slot) are deduplicated.
type BlobFetcher struct {
	client         *resty.Client
	genesisTimeSec uint64
	secondsPerSlot uint64
	group          singleflight.Group
}

// NewBlobFetcher constructs a fetcher against a beacon-node HTTP base URL.
func NewBlobFetcher(beaconURL string, genesisTimeSec, secondsPerSlot uint64) *BlobFetcher {
	return &BlobFetcher{
		client:         resty.New().SetBaseURL(beaconURL),
		genesisTimeSec: genesisTimeSec,
		secondsPerSlot: secondsPerSlot,
	}
}

func (f *BlobFetcher) slotForTimestamp(unixSec uint64) uint64 {
	if unixSec <= f.genesisTimeSec || f.secondsPerSlot == 0 {
		return 0
	}
	return (unixSec - f.genesisTimeSec) / f.secondsPerSlot
}

// FetchByHash fetches the single blob matching blobHash at the slot
// corresponding to blockTimestamp (Pacaya's forced-inclusion "blobCreatedIn").
func (f *BlobFetcher) FetchByHash(ctx context.Context, blobHash common.Hash, blockTimestamp uint64) ([]byte, error) {
	blobs, err := f.fetchSlot(ctx, f.slotForTimestamp(blockTimestamp))
	if err != nil {
		return nil, err
	}
	for _, b := range blobs {
		if versionedHash(b) == blobHash {
			return decodeBlob(b), nil
		}
	}
	return nil, fmt.Errorf("blob %s not found in sidecars", blobHash)
}

// FetchByHashes fetches and concatenates multiple blobs in order (Shasta's
// forced-inclusion blobSlice.blobHashes), at the slot corresponding to ts.
func (f *BlobFetcher) FetchByHashes(ctx context.Context, hashes []common.Hash, ts uint64) ([]byte, error) {
	sidecars, err := f.fetchSlot(ctx, f.slotForTimestamp(ts))
	if err != nil {
		return nil, err
	}
	byHash := make(map[common.Hash]kzg4844.Blob, len(sidecars))
	for _, b := range sidecars {
		byHash[versionedHash(b)] = b
	}

	var out []byte
	for _, h := range hashes {
		blob, ok := byHash[h]
		if !ok {
			return nil, fmt.Errorf("blob %s not found in sidecars", h)
		}
		out = append(out, decodeBlob(blob)...)
	}
	return out, nil
}

// fetchSlot fetches all blob sidecars for a slot, deduplicating concurrent
// requests for the same slot.
func (f *BlobFetcher) fetchSlot(ctx context.Context, slot uint64) ([]kzg4844.Blob, error) {
	key := fmt.Sprintf("%d", slot)
	v, err, _ := f.group.Do(key, func() (any, error) {
		var resp beaconBlobSidecarsResponse
		res, err := f.client.R().
			SetContext(ctx).
			SetResult(&resp).
			Get(fmt.Sprintf("/eth/v1/beacon/blob_sidecars/%d", slot))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch blob sidecars for slot %d: %w", slot, err)
		}
		if res.IsError() {
			return nil, fmt.Errorf("beacon node returned %d fetching slot %d sidecars", res.StatusCode(), slot)
		}

		blobs := make([]kzg4844.Blob, 0, len(resp.Data))
		for _, d := range resp.Data {
			raw, err := hexDecode(d.Blob)
			if err != nil {
				return nil, fmt.Errorf("failed to decode blob hex: %w", err)
			}
			var blob kzg4844.Blob
			if len(raw) != len(blob) {
				return nil, fmt.Errorf("unexpected blob length %d", len(raw))
			}
			copy(blob[:], raw)
			blobs = append(blobs, blob)
		}
		return blobs, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]kzg4844.Blob), nil
}

// versionedHash computes the EIP-4844 versioned blob hash from the blob's
// KZG commitment, the same derivation the protocol uses to populate
// ForcedInclusion.blobHash / blobSlice.blobHashes.
func versionedHash(blob kzg4844.Blob) common.Hash {
	commitment, err := kzg4844.BlobToCommitment(&blob)
	if err != nil {
		return common.Hash{}
	}
	return kzgToVersionedHash(commitment)
}

func kzgToVersionedHash(commitment kzg4844.Commitment) common.Hash {
	hasher := sha256.New()
	hasher.Write(commitment[:])
	var hash common.Hash
	hasher.Sum(hash[:0])
	hash[0] = 0x01 // BlobCommitmentVersionKZG, EIP-4844
	return hash
}

// decodeBlob strips the per-field-element zero padding byte the protocol's
// blob encoding reserves (each 32-byte BLS12-381 field element carries only
// 31 usable data bytes; the high byte is always zero so the value stays below
// the field modulus).
func decodeBlob(blob kzg4844.Blob) []byte {
	const wordSize = 32
	out := make([]byte, 0, len(blob)/wordSize*31)
	for i := 0; i+wordSize <= len(blob); i += wordSize {
		out = append(out, blob[i+1:i+wordSize]...)
	}
	return out
}

func hexDecode(s string) ([]byte, error) {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	return hex.DecodeString(s)
}
