// Package signer implements the two signers the node needs: the fixed
// "Golden Touch" deterministic-k signer that produces the anchor transaction
// (spec.md §4.4, §6, §9 "Global-static deterministic-k signer"), and a
// delegating signer for the operator's own proposeBatch/propose transactions.
package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	dcrecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// GoldenTouchAddress is the fixed system-known anchor sender address,
// constant across every Taiko-derived L2 (spec.md §6).
var GoldenTouchAddress = common.HexToAddress("0x0000777735367b36bc9b61c50022d9d0700db4ec")

// goldenTouchPrivateKeyHex is the fixed system-known private key behind
// GoldenTouchAddress. This is interoperability, not secrecy: every node in
// the network must derive byte-identical anchor signatures (spec.md §6).
const goldenTouchPrivateKeyHex = "92954368afd3caa1f3ce3ead0069c1af414054aefe1ef9aeacc1bf426222ce38"

// GoldenTouchSigner deterministically signs the TaikoAnchor transaction.
// It holds no mutable state: the same (chainID, tx) pair always yields the
// same signature, satisfying the "Anchor uniqueness" property in spec.md §8.
type GoldenTouchSigner struct {
	key     *ecdsa.PrivateKey
	dcrKey  *secp256k1.PrivateKey
	chainID *big.Int
}

// NewGoldenTouchSigner constructs the fixed-key anchor signer for chainID.
func NewGoldenTouchSigner(chainID *big.Int) (*GoldenTouchSigner, error) {
	key, err := crypto.HexToECDSA(goldenTouchPrivateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to load golden touch private key: %w", err)
	}
	if addr := crypto.PubkeyToAddress(key.PublicKey); addr != GoldenTouchAddress {
		return nil, fmt.Errorf("golden touch key/address mismatch: derived %s, want %s", addr, GoldenTouchAddress)
	}
	dcrKey := secp256k1.PrivKeyFromBytes(crypto.FromECDSA(key))
	return &GoldenTouchSigner{key: key, dcrKey: dcrKey, chainID: new(big.Int).Set(chainID)}, nil
}

// Address returns the fixed anchor sender address.
func (s *GoldenTouchSigner) Address() common.Address { return GoldenTouchAddress }

// SignTx signs tx with the deterministic-k Golden Touch key under an EIP-155
// (or later) signer for s.chainID. go-ethereum's crypto.Sign uses RFC 6979
// deterministic nonce generation internally (via the secp256k1 library),
// so repeated calls with an identical unsigned tx produce a byte-identical
// signature — exactly the reproducibility spec.md §6 requires ("MUST match
// the reference hash-to-signature for interoperability").
func (s *GoldenTouchSigner) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	txSigner := types.LatestSignerForChainID(s.chainID)
	h := txSigner.Hash(tx)

	sig, err := crypto.Sign(h[:], s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign anchor transaction: %w", err)
	}

	signed, err := tx.WithSignature(txSigner, sig)
	if err != nil {
		return nil, fmt.Errorf("failed to attach anchor signature: %w", err)
	}
	return signed, nil
}

// VerifyDeterministic re-signs a digest twice with go-ethereum's signer and
// once more with the decred secp256k1 library's RFC 6979 ECDSA signer,
// confirming all runs agree on the same (r, s). It backs the "Anchor
// uniqueness" property test and is otherwise unused in production — a cheap
// self-check the node can run at startup.
func (s *GoldenTouchSigner) VerifyDeterministic(digest [32]byte) (bool, error) {
	sig1, err := crypto.Sign(digest[:], s.key)
	if err != nil {
		return false, err
	}
	sig2, err := crypto.Sign(digest[:], s.key)
	if err != nil {
		return false, err
	}
	if string(sig1) != string(sig2) {
		return false, nil
	}

	dcrSig := dcrecdsa.SignCompact(s.dcrKey, digest[:], false)
	// dcrSig is [recovery-id || r || s]; compare the r component against
	// go-ethereum's signature to confirm the two libraries derive the same
	// deterministic nonce for this digest/key pair.
	return string(dcrSig[1:33]) == string(sig1[0:32]), nil
}
