package auth

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

func TestVerifySignature(t *testing.T) {
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	wallet := strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())
	message := "StackSave login\n\nNonce: abc"

	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}

	t.Run("accepts raw recovery id", func(t *testing.T) {
		if err := verifySignature(wallet, message, "0x"+hex.EncodeToString(sig)); err != nil {
			t.Errorf("verifySignature() = %v, want nil", err)
		}
	})

	t.Run("accepts wallet-style recovery id", func(t *testing.T) {
		// Browser wallets emit V as 27/28
		shifted := make([]byte, len(sig))
		copy(shifted, sig)
		shifted[64] += 27
		if err := verifySignature(wallet, message, "0x"+hex.EncodeToString(shifted)); err != nil {
			t.Errorf("verifySignature() = %v, want nil", err)
		}
	})

	t.Run("rejects wrong wallet", func(t *testing.T) {
		other := "0x1111111111111111111111111111111111111111"
		if err := verifySignature(other, message, "0x"+hex.EncodeToString(sig)); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("verifySignature() = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("rejects tampered message", func(t *testing.T) {
		if err := verifySignature(wallet, message+"!", "0x"+hex.EncodeToString(sig)); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("verifySignature() = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("rejects garbage", func(t *testing.T) {
		if err := verifySignature(wallet, message, "0xdeadbeef"); !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("verifySignature() = %v, want ErrInvalidSignature", err)
		}
	})
}
