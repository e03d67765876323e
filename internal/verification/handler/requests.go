package handler

import "encoding/json"

// VerifyRequest is the wire form of a verification attempt. Presentation is
// optional: wallets that already bound their presentation to the session send
// only the token. PIN-protected wallets may instead send the presentation as
// a vault-sealed blob plus the secret that opens it.
type VerifyRequest struct {
	Token              string          `json:"token"`
	Presentation       json.RawMessage `json:"presentation,omitempty"`
	SealedPresentation []byte          `json:"sealed_presentation,omitempty"`
	Secret             string          `json:"secret,omitempty"`
}

// BindRequest attaches a presentation to an in-flight challenge session.
type BindRequest struct {
	Presentation json.RawMessage `json:"presentation"`
}
