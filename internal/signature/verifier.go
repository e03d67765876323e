// Package signature verifies secp256k1 wallet signatures over EIP-191
// personal-sign digests. The same verifier covers presentation (holder) and
// credential (issuer) signatures.
package signature

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
)

// Verifier checks a signature against a candidate wallet address.
type Verifier interface {
	Verify(message []byte, signatureHex string, address string) (bool, error)
}

// EthVerifier recovers the signer address from the signature and compares it
// to the candidate, case-insensitively.
type EthVerifier struct{}

// NewEthVerifier constructs the production signature verifier.
func NewEthVerifier() EthVerifier {
	return EthVerifier{}
}

// Verify returns true when signatureHex over message recovers to address. A
// malformed signature is an error so callers can log it distinctly from a
// plain mismatch.
func (EthVerifier) Verify(message []byte, signatureHex string, address string) (bool, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(signatureHex, "0x"))
	if err != nil {
		return false, fmt.Errorf("decode signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return false, fmt.Errorf("signature is %d bytes, want %d", len(sig), crypto.SignatureLength)
	}

	// Wallets emit V as 27/28; crypto.SigToPub wants 0/1.
	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[crypto.RecoveryIDOffset] >= 27 {
		normalized[crypto.RecoveryIDOffset] -= 27
	}

	digest := accounts.TextHash(message)
	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return false, fmt.Errorf("recover public key: %w", err)
	}

	recovered := crypto.PubkeyToAddress(*pub).Hex()
	return strings.EqualFold(recovered, address), nil
}
