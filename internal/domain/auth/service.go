package auth

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/stacksave/stacksave-api/internal/pkg/jwt"
)

const (
	challengeTTL       = 5 * time.Minute
	challengeKeyPrefix = "auth:challenge:"
)

// Service handles wallet-signature authentication. Login is a two-step
// flow: the client requests a challenge for its wallet, signs it with
// personal_sign and sends the signature back.
type Service struct {
	repo  Repository
	redis *redis.Client
	jwt   *jwt.Service
}

// NewService creates auth service
func NewService(repo Repository, rdb *redis.Client, jwtService *jwt.Service) *Service {
	return &Service{repo: repo, redis: rdb, jwt: jwtService}
}

// Challenge issues a one-time message for the wallet to sign. The nonce
// lives in Redis for challengeTTL and is consumed on verification.
func (s *Service) Challenge(ctx context.Context, wallet string) (string, error) {
	wallet = strings.ToLower(wallet)
	nonce := uuid.New().String()

	message := fmt.Sprintf(
		"StackSave login\n\nWallet: %s\nNonce: %s\nIssued: %s",
		wallet, nonce, time.Now().UTC().Format(time.RFC3339),
	)

	if err := s.redis.Set(ctx, challengeKeyPrefix+wallet, message, challengeTTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store challenge: %w", err)
	}
	return message, nil
}

// Verify checks the personal_sign signature over the previously issued
// challenge, upserts the user and returns an access token.
func (s *Service) Verify(ctx context.Context, wallet, signature string) (*User, string, error) {
	wallet = strings.ToLower(wallet)

	key := challengeKeyPrefix + wallet
	message, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, "", ErrChallengeNotFound
		}
		return nil, "", fmt.Errorf("failed to load challenge: %w", err)
	}

	if err := verifySignature(wallet, message, signature); err != nil {
		return nil, "", err
	}

	// One-shot: a challenge can never be replayed
	s.redis.Del(ctx, key)

	user, err := s.repo.UpsertByWallet(ctx, wallet)
	if err != nil {
		return nil, "", fmt.Errorf("failed to upsert user: %w", err)
	}

	token, err := s.jwt.GenerateAccessToken(user.ID, user.WalletAddress)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}
	return user, token, nil
}

// GetUser returns the user by ID
func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

// verifySignature recovers the signer of an EIP-191 personal_sign
// signature and compares it to the expected wallet.
func verifySignature(wallet, message, signature string) error {
	sig, err := hex.DecodeString(strings.TrimPrefix(signature, "0x"))
	if err != nil || len(sig) != 65 {
		return ErrInvalidSignature
	}

	// Wallets emit V as 27/28, go-ethereum expects 0/1
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return ErrInvalidSignature
	}

	recovered := strings.ToLower(crypto.PubkeyToAddress(*pubKey).Hex())
	if recovered != wallet {
		return ErrInvalidSignature
	}
	return nil
}
