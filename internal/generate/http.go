package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPGenerator talks to a generation service over a JSON POST endpoint.
//
// Wire contract: the request body is the Request struct; the response is
// either {"candidate": "..."} or {"refused": true, "reason": "..."}.
// Timeouts come from the caller's context; the client itself sets no
// deadline so the compiler stays in charge of request budgets.
type HTTPGenerator struct {
	url    string
	client *http.Client
}

// NewHTTPGenerator builds a client for the service at url.
func NewHTTPGenerator(url string) *HTTPGenerator {
	return &HTTPGenerator{
		url: url,
		client: &http.Client{
			// No Timeout here: per-request deadlines are context-driven.
			Transport: http.DefaultTransport,
		},
	}
}

// Generate implements Generator.
func (g *HTTPGenerator) Generate(ctx context.Context, req *Request) (*Candidate, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call generation service: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read generation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generation service returned %s", resp.Status)
	}

	var cand Candidate
	if err := json.Unmarshal(payload, &cand); err != nil {
		return nil, fmt.Errorf("decode generation response: %w", err)
	}
	if !cand.Refused && cand.Text == "" {
		return nil, fmt.Errorf("generation service returned neither candidate nor refusal")
	}
	return &cand, nil
}
