package signer

import (
	"context"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestNewPrivateKeySigner_RejectsMalformedKey(t *testing.T) {
	if _, err := NewPrivateKeySigner("not-hex"); err == nil {
		t.Fatal("expected error for malformed private key, got nil")
	}
}

func TestPrivateKeySigner_AddressMatchesKey(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	hexKey := crypto.FromECDSA(key)
	s, err := NewPrivateKeySigner(hex.EncodeToString(hexKey))
	if err != nil {
		t.Fatalf("NewPrivateKeySigner: %v", err)
	}
	want := crypto.PubkeyToAddress(key.PublicKey)
	if s.Address() != want {
		t.Fatalf("Address() = %s, want %s", s.Address(), want)
	}
}

func TestPrivateKeySigner_SignTx(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	s, err := NewPrivateKeySigner(hex.EncodeToString(crypto.FromECDSA(key)))
	if err != nil {
		t.Fatalf("NewPrivateKeySigner: %v", err)
	}

	chainID := big.NewInt(167000)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     0,
		GasTipCap: big.NewInt(0),
		GasFeeCap: big.NewInt(0),
		Gas:       21000,
		To:        &s.addr,
		Value:     big.NewInt(0),
	})
	signed, err := s.SignTx(context.Background(), chainID, tx)
	if err != nil {
		t.Fatalf("SignTx: %v", err)
	}
	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	if err != nil {
		t.Fatalf("recovering sender: %v", err)
	}
	if sender != s.Address() {
		t.Fatalf("recovered sender %s, want %s", sender, s.Address())
	}
}

func TestDelegatingSigner_DispatchesToDistinctKeys(t *testing.T) {
	anchor, err := NewGoldenTouchSigner(big.NewInt(167000))
	if err != nil {
		t.Fatalf("NewGoldenTouchSigner: %v", err)
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	operator, err := NewPrivateKeySigner(hex.EncodeToString(crypto.FromECDSA(key)))
	if err != nil {
		t.Fatalf("NewPrivateKeySigner: %v", err)
	}

	d := NewDelegatingSigner(anchor, operator)
	if d.Anchor.Address() != GoldenTouchAddress {
		t.Fatalf("Anchor.Address() = %s, want %s", d.Anchor.Address(), GoldenTouchAddress)
	}
	if d.Operator.Address() != operator.Address() {
		t.Fatalf("Operator.Address() = %s, want %s", d.Operator.Address(), operator.Address())
	}
	if d.Anchor.Address() == d.Operator.Address() {
		t.Fatal("anchor and operator signers must not share an address")
	}
}

