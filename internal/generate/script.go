package generate

import (
	"context"
	"fmt"
	"sync"
)

// Scripted is a deterministic in-memory Generator for tests and harness
// runs. It answers from a fixed question-to-candidate table, or from an
// ordered queue when responses should vary across retries.
type Scripted struct {
	mu       sync.Mutex
	answers  map[string]*Candidate
	queued   bool
	queue    []*Candidate
	requests []*Request
}

// NewScripted builds a generator that answers each question from the given
// table. Questions without an entry yield a refusal.
func NewScripted(answers map[string]*Candidate) *Scripted {
	return &Scripted{answers: answers}
}

// NewScriptedQueue builds a generator that returns the given candidates in
// order regardless of the question. Used to script retry sequences.
func NewScriptedQueue(responses ...*Candidate) *Scripted {
	return &Scripted{queued: true, queue: responses}
}

// SQL is shorthand for a successful candidate.
func SQL(text string) *Candidate { return &Candidate{Text: text} }

// Refusal is shorthand for an explicit refusal.
func Refusal(reason string) *Candidate { return &Candidate{Refused: true, Reason: reason} }

// Generate implements Generator.
func (s *Scripted) Generate(_ context.Context, req *Request) (*Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqCopy := *req
	s.requests = append(s.requests, &reqCopy)

	if s.queued {
		if len(s.queue) == 0 {
			return nil, fmt.Errorf("scripted generator exhausted after %d requests", len(s.requests))
		}
		next := s.queue[0]
		s.queue = s.queue[1:]
		return next, nil
	}

	if cand, ok := s.answers[req.Question]; ok {
		return cand, nil
	}
	return Refusal("no scripted answer for question"), nil
}

// Requests returns a copy of every request seen, in order.
func (s *Scripted) Requests() []*Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Calls returns how many generation attempts were made.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
