package signer

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// TxSigner signs L1 transactions on behalf of an address. TxMonitor and
// AnchorBuilder depend on this interface rather than a concrete key, so a
// remote signer (KMS, HSM) can stand in for local-key signing without any
// caller change (spec.md §9 "capability abstractions").
type TxSigner interface {
	Address() common.Address
	SignTx(ctx context.Context, chainID *big.Int, tx *types.Transaction) (*types.Transaction, error)
}

// PrivateKeySigner is the default TxSigner backed by a local ECDSA key — the
// operator's own proposeBatch/propose submission key, as distinct from the
// fixed Golden Touch anchor key.
type PrivateKeySigner struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewPrivateKeySigner loads an operator signing key from its hex encoding.
func NewPrivateKeySigner(hexKey string) (*PrivateKeySigner, error) {
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse operator private key: %w", err)
	}
	return &PrivateKeySigner{key: key, addr: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address returns the operator's submission address.
func (s *PrivateKeySigner) Address() common.Address { return s.addr }

// SignTx signs tx for chainID. ctx is accepted for interface parity with
// remote-signer implementations that perform a network round trip; the local
// key path never blocks on it.
func (s *PrivateKeySigner) SignTx(_ context.Context, chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	txSigner := types.LatestSignerForChainID(chainID)
	signed, err := types.SignTx(tx, txSigner, s.key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign operator transaction: %w", err)
	}
	return signed, nil
}

// DelegatingSigner dispatches to one TxSigner for anchor transactions (always
// Golden Touch) and another for ordinary operator submissions, so callers
// that need both can hold a single value (driver.Client and TxMonitor both
// need this shape per spec.md §4.5/§4.6).
type DelegatingSigner struct {
	Anchor   *GoldenTouchSigner
	Operator TxSigner
}

// NewDelegatingSigner pairs the fixed anchor signer with the operator's own
// submission signer.
func NewDelegatingSigner(anchor *GoldenTouchSigner, operator TxSigner) *DelegatingSigner {
	return &DelegatingSigner{Anchor: anchor, Operator: operator}
}
