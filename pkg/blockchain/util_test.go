package blockchain

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

func TestNativeToWei(t *testing.T) {
	testCases := []struct {
		name   string
		amount string
		want   string
	}{
		{"One", "1", "1000000000000000000"},
		{"Cent", "0.01", "10000000000000000"},
		{"Zero", "0", "0"},
		{"SubWeiTruncated", "0.0000000000000000001", "0"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			amount, err := decimal.NewFromString(tc.amount)
			if err != nil {
				t.Fatalf("bad test amount: %v", err)
			}
			got := NativeToWei(amount)
			if got.String() != tc.want {
				t.Fatalf("NativeToWei(%s) = %s, want %s", tc.amount, got, tc.want)
			}
		})
	}
}

func TestWeiToNativeRoundTrip(t *testing.T) {
	wei, _ := new(big.Int).SetString("10000000000000000", 10)
	native := WeiToNative(wei)
	if !native.Equal(decimal.RequireFromString("0.01")) {
		t.Fatalf("WeiToNative = %s, want 0.01", native)
	}
	back := NativeToWei(native)
	if back.Cmp(wei) != 0 {
		t.Fatalf("round trip mismatch: %s != %s", back, wei)
	}
}

func TestParsePrivateKeyECDSA(t *testing.T) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	hexKey := hex.EncodeToString(crypto.FromECDSA(priv))

	addr, parsed, err := ParsePrivateKeyECDSA(hexKey)
	if err != nil {
		t.Fatalf("ParsePrivateKeyECDSA failed: %v", err)
	}
	if parsed == nil {
		t.Fatal("expected non-nil key")
	}
	if addr != crypto.PubkeyToAddress(priv.PublicKey) {
		t.Fatalf("unexpected address: got %s", addr.Hex())
	}
}

func TestParsePrivateKeyECDSA_Invalid(t *testing.T) {
	if _, _, err := ParsePrivateKeyECDSA("not-a-key"); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

