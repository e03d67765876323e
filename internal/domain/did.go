package domain

import (
	"fmt"
	"strings"
)

// DID is a decentralized identifier string. Parsing enforces the generic
// did:<method>:<id> shape; method-specific validation is the resolver's job.
type DID string

// ParseDID validates the generic DID shape.
func ParseDID(s string) (DID, error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] != "did" || parts[1] == "" || parts[2] == "" {
		return "", fmt.Errorf("malformed DID %q", s)
	}
	return DID(s), nil
}

// Method returns the DID method ("ethr", "web", ...).
func (d DID) Method() string {
	parts := strings.SplitN(string(d), ":", 3)
	if len(parts) != 3 {
		return ""
	}
	return parts[1]
}

// MethodSpecificID returns everything after the method.
func (d DID) MethodSpecificID() string {
	parts := strings.SplitN(string(d), ":", 3)
	if len(parts) != 3 {
		return ""
	}
	return parts[2]
}

func (d DID) String() string {
	return string(d)
}

// VerificationMethod is a single verification method entry of a DID document.
// BlockchainAccountID follows CAIP-10 ("eip155:<chain>:<address>").
type VerificationMethod struct {
	ID                  string `json:"id"`
	Type                string `json:"type"`
	Controller          DID    `json:"controller"`
	BlockchainAccountID string `json:"blockchainAccountId"`
}

// DIDDocument is an immutable snapshot of a resolved DID. It is fetched fresh
// per verification attempt and never mutated or cached by this service.
type DIDDocument struct {
	ID                 DID                  `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod"`
}

// WalletAddress extracts the wallet address from the document's first
// verification method, lowercased for case-insensitive comparison.
func (doc DIDDocument) WalletAddress() (string, error) {
	if len(doc.VerificationMethod) == 0 {
		return "", fmt.Errorf("DID document %s has no verification method", doc.ID)
	}
	account := doc.VerificationMethod[0].BlockchainAccountID
	if account == "" {
		return "", fmt.Errorf("DID document %s verification method has no blockchain account", doc.ID)
	}
	// CAIP-10: the address is the last colon-separated segment.
	idx := strings.LastIndexByte(account, ':')
	address := account[idx+1:]
	if !strings.HasPrefix(address, "0x") || len(address) != 42 {
		return "", fmt.Errorf("DID document %s has malformed account %q", doc.ID, account)
	}
	return strings.ToLower(address), nil
}
