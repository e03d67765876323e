package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Proof carries a signature over the enclosing object. ProofValue is the
// hex-encoded secp256k1 signature; Challenge binds a presentation proof to a
// single-use challenge nonce.
type Proof struct {
	Type       string `json:"type"`
	Created    string `json:"created,omitempty"`
	ProofValue string `json:"proofValue"`
	Challenge  string `json:"challenge,omitempty"`
}

// CredentialSubject identifies the subject a credential makes claims about.
// Claims beyond the subject ID are carried opaquely; the verifier only needs
// the ID for subject-holder binding.
type CredentialSubject struct {
	ID     DID            `json:"id"`
	Claims map[string]any `json:"-"`
}

func (cs *CredentialSubject) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if idRaw, ok := raw["id"]; ok {
		if err := json.Unmarshal(idRaw, &cs.ID); err != nil {
			return err
		}
		delete(raw, "id")
	}
	if len(raw) > 0 {
		cs.Claims = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			cs.Claims[k] = val
		}
	}
	return nil
}

func (cs CredentialSubject) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(cs.Claims)+1)
	for k, v := range cs.Claims {
		out[k] = v
	}
	out["id"] = cs.ID
	return json.Marshal(out)
}

// VerifiableCredential is a signed claim issued by one DID about a subject
// DID. Status (active/suspended/revoked) is external and never stored here.
type VerifiableCredential struct {
	Context           []string          `json:"@context"`
	ID                string            `json:"id"`
	Type              []string          `json:"type"`
	Issuer            DID               `json:"issuer"`
	CredentialSubject CredentialSubject `json:"credentialSubject"`
	ValidFrom         *time.Time        `json:"validFrom,omitempty"`
	ValidUntil        *time.Time        `json:"validUntil,omitempty"`
	Proof             Proof             `json:"proof"`
}

// SigningPayload returns the canonical bytes the issuer signed: the
// credential with its proof value blanked.
func (vc VerifiableCredential) SigningPayload() ([]byte, error) {
	unsigned := vc
	unsigned.Proof.ProofValue = ""
	payload, err := json.Marshal(unsigned)
	if err != nil {
		return nil, fmt.Errorf("marshal credential signing payload: %w", err)
	}
	return payload, nil
}

// InValidityWindow reports whether now falls inside [validFrom, validUntil].
// An absent bound is unbounded on that side.
func (vc VerifiableCredential) InValidityWindow(now time.Time) bool {
	if vc.ValidFrom != nil && now.Before(*vc.ValidFrom) {
		return false
	}
	if vc.ValidUntil != nil && now.After(*vc.ValidUntil) {
		return false
	}
	return true
}

// VerifiablePresentation is a signed wrapper bundling one or more credentials,
// presented by their holder and bound to a challenge nonce.
type VerifiablePresentation struct {
	Context              []string               `json:"@context"`
	Type                 []string               `json:"type"`
	Holder               DID                    `json:"holder"`
	VerifiableCredential []VerifiableCredential `json:"verifiableCredential"`
	Proof                Proof                  `json:"proof"`
}

// SigningPayload returns the canonical bytes the holder signed: the
// presentation with its proof value blanked. The challenge stays in the
// payload so the signature is bound to it.
func (vp VerifiablePresentation) SigningPayload() ([]byte, error) {
	unsigned := vp
	unsigned.Proof.ProofValue = ""
	payload, err := json.Marshal(unsigned)
	if err != nil {
		return nil, fmt.Errorf("marshal presentation signing payload: %w", err)
	}
	return payload, nil
}

// FirstCredential returns the first embedded credential. Only the first is
// inspected by the verification pipeline.
func (vp VerifiablePresentation) FirstCredential() VerifiableCredential {
	return vp.VerifiableCredential[0]
}

// ParsePresentation decodes and structurally validates a presentation in one
// pass at the process boundary. Everything downstream can rely on the shape
// without re-checking optional fields.
func ParsePresentation(raw []byte) (VerifiablePresentation, error) {
	var vp VerifiablePresentation
	if err := json.Unmarshal(raw, &vp); err != nil {
		return VerifiablePresentation{}, fmt.Errorf("decode presentation: %w", err)
	}
	if err := vp.validate(); err != nil {
		return VerifiablePresentation{}, err
	}
	return vp, nil
}

func (vp VerifiablePresentation) validate() error {
	if len(vp.Context) == 0 {
		return fmt.Errorf("presentation is missing @context")
	}
	if !containsType(vp.Type, "VerifiablePresentation") {
		return fmt.Errorf("presentation type must include VerifiablePresentation")
	}
	if _, err := ParseDID(vp.Holder.String()); err != nil {
		return fmt.Errorf("presentation holder: %w", err)
	}
	if vp.Proof.ProofValue == "" {
		return fmt.Errorf("presentation is missing proof")
	}
	if len(vp.VerifiableCredential) == 0 {
		return fmt.Errorf("presentation carries no credential")
	}
	return vp.VerifiableCredential[0].validate()
}

func (vc VerifiableCredential) validate() error {
	if vc.ID == "" {
		return fmt.Errorf("credential is missing id")
	}
	if !containsType(vc.Type, "VerifiableCredential") {
		return fmt.Errorf("credential type must include VerifiableCredential")
	}
	if _, err := ParseDID(vc.Issuer.String()); err != nil {
		return fmt.Errorf("credential issuer: %w", err)
	}
	if _, err := ParseDID(vc.CredentialSubject.ID.String()); err != nil {
		return fmt.Errorf("credential subject: %w", err)
	}
	if vc.Proof.ProofValue == "" {
		return fmt.Errorf("credential is missing proof")
	}
	return nil
}

func containsType(types []string, want string) bool {
	for _, t := range types {
		if t == want {
			return true
		}
	}
	return false
}
