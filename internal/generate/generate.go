// Package generate defines the contract with the external constrained
// generation service and local client implementations.
//
// The service claims to enforce the grammar during decoding. That claim is
// never trusted: whatever comes back is re-validated locally before it can
// reach execution.
package generate

import (
	"context"
)

// Request carries one generation attempt to the service.
type Request struct {
	// Question is the normalized natural-language question.
	Question string `json:"question"`

	// Artifact is the serialized grammar the decoder must stay within.
	Artifact string `json:"grammar"`

	// SchemaContext describes the table and permitted operations in prose.
	SchemaContext string `json:"schema_context"`

	// Feedback carries the previous attempt's rejection diagnostic on a
	// retry; empty on the first attempt.
	Feedback string `json:"feedback,omitempty"`
}

// Candidate is the service's answer: either candidate query text or an
// explicit refusal with a reason.
type Candidate struct {
	Text    string `json:"candidate,omitempty"`
	Refused bool   `json:"refused,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// Generator produces candidate query text for a question. Implementations
// must honor context cancellation and deadlines; a hung service must not
// hang the caller.
type Generator interface {
	Generate(ctx context.Context, req *Request) (*Candidate, error)
}
