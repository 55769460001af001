package solana

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log/slog"

	"github.com/btcsuite/btcd/btcutil/base58"

	"github.com/vaultline/artkey/internal/domain"
)

// AuthoritySigner signs and submits transfers funded by the authority wallet
// (refunds, payouts, reward claims).
type AuthoritySigner struct {
	rpc     *RPCClient
	key     ed25519.PrivateKey
	address string
	logger  *slog.Logger
}

// NewAuthoritySigner wraps the authority keypair around an RPC client.
func NewAuthoritySigner(rpc *RPCClient, key ed25519.PrivateKey, logger *slog.Logger) *AuthoritySigner {
	return &AuthoritySigner{
		rpc:     rpc,
		key:     key,
		address: base58.Encode(key.Public().(ed25519.PublicKey)),
		logger:  logger.With(slog.String("component", "authority_signer")),
	}
}

// AuthorityAddress returns the authority wallet's base58 address.
func (s *AuthoritySigner) AuthorityAddress() string {
	return s.address
}

// SendFromAuthority builds, signs, and submits a lamport transfer from the
// authority wallet, returning the transaction signature.
func (s *AuthoritySigner) SendFromAuthority(ctx context.Context, to string, lamports int64) (string, error) {
	blockhash, err := s.rpc.LatestBlockhash(ctx)
	if err != nil {
		return "", err
	}

	tx, err := CompileTransaction(s.address, blockhash, []Instruction{
		SystemTransfer(s.address, to, lamports),
	})
	if err != nil {
		return "", err
	}
	if err := tx.Sign(s.key); err != nil {
		return "", err
	}

	sig, err := s.rpc.SendRawTransaction(ctx, tx.Serialize())
	if err != nil {
		return "", fmt.Errorf("solana: send from authority: %w", err)
	}

	s.logger.Debug("authority transfer sent",
		slog.String("to", to),
		slog.Int64("lamports", lamports),
		slog.String("signature", sig))
	return sig, nil
}

// sign adds the authority's signature to a compiled transaction.
func (s *AuthoritySigner) sign(tx *Tx) error {
	return tx.Sign(s.key)
}

// signAndSend compiles the given instructions with the authority as fee
// payer, signs, and submits.
func (s *AuthoritySigner) signAndSend(ctx context.Context, instrs []Instruction) (string, error) {
	blockhash, err := s.rpc.LatestBlockhash(ctx)
	if err != nil {
		return "", err
	}

	tx, err := CompileTransaction(s.address, blockhash, instrs)
	if err != nil {
		return "", err
	}
	if err := tx.Sign(s.key); err != nil {
		return "", err
	}

	return s.rpc.SendRawTransaction(ctx, tx.Serialize())
}

// Compile-time interface check.
var _ domain.AuthoritySender = (*AuthoritySigner)(nil)
