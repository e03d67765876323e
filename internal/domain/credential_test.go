package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func presentationFixture(t *testing.T, mutate func(m map[string]any)) []byte {
	t.Helper()
	m := map[string]any{
		"@context": []string{"https://www.w3.org/ns/credentials/v2"},
		"type":     []string{"VerifiablePresentation"},
		"holder":   "did:ethr:0x1111111111111111111111111111111111111111",
		"verifiableCredential": []map[string]any{{
			"@context": []string{"https://www.w3.org/ns/credentials/v2"},
			"id":       "urn:uuid:3b4e9c8a-6a55-4f39-9aeb-0f720f15a911",
			"type":     []string{"VerifiableCredential", "EventTicket"},
			"issuer":   "did:ethr:0x2222222222222222222222222222222222222222",
			"credentialSubject": map[string]any{
				"id":   "did:ethr:0x1111111111111111111111111111111111111111",
				"seat": "A-14",
			},
			"proof": map[string]any{
				"type":       "EcdsaSecp256k1Signature2019",
				"proofValue": "0xbbbb",
			},
		}},
		"proof": map[string]any{
			"type":       "EcdsaSecp256k1Signature2019",
			"proofValue": "0xaaaa",
			"challenge":  "0xdeadbeef",
		},
	}
	if mutate != nil {
		mutate(m)
	}
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	return raw
}

func TestParsePresentation(t *testing.T) {
	t.Run("valid presentation", func(t *testing.T) {
		vp, err := ParsePresentation(presentationFixture(t, nil))
		require.NoError(t, err)

		assert.Equal(t, DID("did:ethr:0x1111111111111111111111111111111111111111"), vp.Holder)
		assert.Equal(t, "0xdeadbeef", vp.Proof.Challenge)

		vc := vp.FirstCredential()
		assert.Equal(t, "urn:uuid:3b4e9c8a-6a55-4f39-9aeb-0f720f15a911", vc.ID)
		assert.Equal(t, vp.Holder, vc.CredentialSubject.ID)
		assert.Equal(t, "A-14", vc.CredentialSubject.Claims["seat"])
	})

	t.Run("rejections", func(t *testing.T) {
		cases := map[string]func(m map[string]any){
			"missing context":      func(m map[string]any) { delete(m, "@context") },
			"wrong type":           func(m map[string]any) { m["type"] = []string{"SomethingElse"} },
			"malformed holder DID": func(m map[string]any) { m["holder"] = "not-a-did" },
			"missing proof":        func(m map[string]any) { delete(m, "proof") },
			"no credentials":       func(m map[string]any) { m["verifiableCredential"] = []map[string]any{} },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := ParsePresentation(presentationFixture(t, mutate))
				assert.Error(t, err)
			})
		}
	})

	t.Run("credential rejections", func(t *testing.T) {
		mutateVC := func(change func(vc map[string]any)) func(m map[string]any) {
			return func(m map[string]any) {
				vc := m["verifiableCredential"].([]map[string]any)[0]
				change(vc)
			}
		}
		cases := map[string]func(m map[string]any){
			"missing id":    mutateVC(func(vc map[string]any) { delete(vc, "id") }),
			"bad issuer":    mutateVC(func(vc map[string]any) { vc["issuer"] = "0x2222" }),
			"bad subject":   mutateVC(func(vc map[string]any) { vc["credentialSubject"] = map[string]any{"id": "nope"} }),
			"missing proof": mutateVC(func(vc map[string]any) { delete(vc, "proof") }),
			"wrong vc type": mutateVC(func(vc map[string]any) { vc["type"] = []string{"EventTicket"} }),
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := ParsePresentation(presentationFixture(t, mutate))
				assert.Error(t, err)
			})
		}
	})

	t.Run("not JSON", func(t *testing.T) {
		_, err := ParsePresentation([]byte("{"))
		assert.Error(t, err)
	})
}

func TestSigningPayloadBlanksProofValue(t *testing.T) {
	vp, err := ParsePresentation(presentationFixture(t, nil))
	require.NoError(t, err)

	payload, err := vp.SigningPayload()
	require.NoError(t, err)

	var echo VerifiablePresentation
	require.NoError(t, json.Unmarshal(payload, &echo))
	assert.Empty(t, echo.Proof.ProofValue)
	// The challenge stays so the signature is bound to it.
	assert.Equal(t, "0xdeadbeef", echo.Proof.Challenge)
}

func TestInValidityWindow(t *testing.T) {
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	from := now.Add(-time.Hour)
	until := now.Add(time.Hour)

	vc := VerifiableCredential{ValidFrom: &from, ValidUntil: &until}
	assert.True(t, vc.InValidityWindow(now))
	assert.True(t, vc.InValidityWindow(from), "bounds are inclusive")
	assert.True(t, vc.InValidityWindow(until))
	assert.False(t, vc.InValidityWindow(until.Add(time.Second)))
	assert.False(t, vc.InValidityWindow(from.Add(-time.Second)))

	unbounded := VerifiableCredential{}
	assert.True(t, unbounded.InValidityWindow(now))
}
