package verify

// Status is the outcome of one verifier run.
type Status string

const (
	StatusValid   Status = "VALID"
	StatusInvalid Status = "INVALID"
	StatusSkipped Status = "SKIPPED"
	StatusError   Status = "ERROR"
)

// Type categorizes what a fragment attests to.
type Type string

const (
	TypeDocumentStatus Type = "DOCUMENT_STATUS"
	TypeIssuerIdentity Type = "ISSUER_IDENTITY"
)

// Fragment is one independent verdict for one document. Immutable once
// produced; the engine returns one per registered verifier, in registration
// order.
type Fragment struct {
	Name   string `json:"name"`
	Type   Type   `json:"type"`
	Status Status `json:"status"`
	Data   any    `json:"data,omitempty"`
	Reason string `json:"reason,omitempty"`
}
