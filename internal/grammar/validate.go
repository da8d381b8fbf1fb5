package grammar

import (
	"fmt"
	"sort"
	"strings"
)

// maxCandidateBytes bounds validator input. Generated queries are short;
// anything beyond this is rejected without parsing so adversarial blobs
// cannot make validation expensive.
const maxCandidateBytes = 4096

// RejectError describes why candidate text is not in the grammar: the byte
// offset of the first divergence, the offending token, and the set of
// terminals that would have been accepted there.
//
// RejectError is pure data - it is fed back to the generation service as
// retry context and into harness diagnostics.
type RejectError struct {
	Pos      int
	Got      string
	Expected []string
	Message  string
}

// Error implements the error interface.
func (e *RejectError) Error() string {
	got := e.Got
	if got == "" {
		got = "end of input"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "offset %d: unexpected %s", e.Pos, got)
	if e.Message != "" {
		fmt.Fprintf(&b, " (%s)", e.Message)
	}
	if len(e.Expected) > 0 {
		fmt.Fprintf(&b, ", expected one of: %s", strings.Join(e.Expected, ", "))
	}
	return b.String()
}

// Node is one parse tree node: a terminal leaf carrying its token, or a
// non-terminal with children covering its derivation.
type Node struct {
	Symbol   string
	Token    *Token
	Children []*Node
}

// Terminals returns the tokens of the tree's terminal leaves in input order.
func (n *Node) Terminals() []Token {
	var out []Token
	n.walk(func(node *Node) {
		if node.Token != nil {
			out = append(out, *node.Token)
		}
	})
	return out
}

// Find returns the first node with the given symbol in depth-first order,
// or nil.
func (n *Node) Find(symbol string) *Node {
	var found *Node
	n.walk(func(node *Node) {
		if found == nil && node.Symbol == symbol {
			found = node
		}
	})
	return found
}

// FindAll returns every node with the given symbol in depth-first order.
func (n *Node) FindAll(symbol string) []*Node {
	var out []*Node
	n.walk(func(node *Node) {
		if node.Symbol == symbol {
			out = append(out, node)
		}
	})
	return out
}

func (n *Node) walk(fn func(*Node)) {
	fn(n)
	for _, child := range n.Children {
		child.walk(fn)
	}
}

// Validate checks candidate text against the grammar.
//
// It is a total function over finite input: the lexer is linear, parsing is
// Earley (polynomial, no unbounded backtracking), and input length is
// capped. No I/O, no state outside the immutable Grammar - the same text
// always yields the same decision.
//
// Accept returns the parse tree; reject returns the first divergence
// position and the terminal set that was acceptable there.
func (g *Grammar) Validate(text string) (*Node, *RejectError) {
	if len(text) > maxCandidateBytes {
		return nil, &RejectError{Pos: maxCandidateBytes, Got: "input", Message: "candidate exceeds size bound"}
	}
	tokens, lexErr := lex(text)
	if lexErr != nil {
		return nil, lexErr
	}
	if len(tokens) == 0 {
		return nil, &RejectError{Pos: 0, Got: "", Expected: g.expectedAtStart(), Message: "empty candidate"}
	}

	chart := g.recognize(tokens)
	n := len(tokens)

	if len(chart.sets) > n && chart.completedStart(n, g.start) {
		tree := chart.buildTree(g, tokens, g.start, 0, n)
		if tree != nil {
			return tree, nil
		}
		// Recognition succeeded but reconstruction failed: a parser bug,
		// reported as a rejection rather than a false accept.
		return nil, &RejectError{Pos: 0, Got: tokens[0].Text, Message: "internal: could not reconstruct derivation"}
	}

	return nil, chart.reject(g, tokens)
}

// Accepts reports whether the text is in the grammar, without building a
// tree.
func (g *Grammar) Accepts(text string) bool {
	tree, _ := g.Validate(text)
	return tree != nil
}

func (g *Grammar) expectedAtStart() []string {
	set := map[string]bool{}
	for _, ri := range g.rulesFor[g.start] {
		g.firstTerminals(g.rules[ri].rhs, set, map[string]bool{})
	}
	return sortedDisplays(g, set)
}

// firstTerminals collects terminals that can begin the given symbol
// sequence, following nullable prefixes.
func (g *Grammar) firstTerminals(rhs []Symbol, out map[string]bool, visiting map[string]bool) {
	for _, sym := range rhs {
		if sym.Kind == SymTerminal {
			out[sym.Name] = true
			return
		}
		if !visiting[sym.Name] {
			visiting[sym.Name] = true
			for _, ri := range g.rulesFor[sym.Name] {
				g.firstTerminals(g.rules[ri].rhs, out, visiting)
			}
		}
		if !g.nullable[sym.Name] {
			return
		}
	}
}

// --- Earley recognizer ---

type item struct {
	rule   int
	dot    int
	origin int
}

type earleySet struct {
	items []item
	seen  map[item]bool
}

func (s *earleySet) add(it item) bool {
	if s.seen[it] {
		return false
	}
	s.seen[it] = true
	s.items = append(s.items, it)
	return true
}

type completion struct {
	rule int
	end  int
}

type earleyChart struct {
	sets []*earleySet
	// completions[lhs][origin] lists completed derivations of lhs starting
	// at origin, used for tree reconstruction.
	completions map[string]map[int][]completion
}

func newSet() *earleySet {
	return &earleySet{seen: make(map[item]bool)}
}

// recognize runs the Earley algorithm over the token stream. Sets are built
// left to right; construction stops at the first position where no item
// survives, which becomes the divergence point for diagnostics.
func (g *Grammar) recognize(tokens []Token) *earleyChart {
	n := len(tokens)
	chart := &earleyChart{
		completions: make(map[string]map[int][]completion),
	}

	s0 := newSet()
	for _, ri := range g.rulesFor[g.start] {
		s0.add(item{rule: ri, dot: 0, origin: 0})
	}
	chart.sets = append(chart.sets, s0)

	for k := 0; k <= n; k++ {
		cur := chart.sets[k]
		var next *earleySet
		if k < n {
			next = newSet()
		}

		for i := 0; i < len(cur.items); i++ {
			it := cur.items[i]
			r := g.rules[it.rule]

			if it.dot < len(r.rhs) {
				sym := r.rhs[it.dot]
				if sym.Kind == SymNonTerminal {
					// Predict.
					for _, ri := range g.rulesFor[sym.Name] {
						cur.add(item{rule: ri, dot: 0, origin: k})
					}
					// Nullable symbols can be skipped in place.
					if g.nullable[sym.Name] {
						cur.add(item{rule: it.rule, dot: it.dot + 1, origin: it.origin})
						chart.recordCompletion(sym.Name, k, -1, k)
					}
				} else if next != nil {
					// Scan.
					t := g.terminals[sym.Name]
					if t.Matches(tokens[k].Text) {
						next.add(item{rule: it.rule, dot: it.dot + 1, origin: it.origin})
					}
				}
			} else {
				// Complete.
				chart.recordCompletion(r.lhs, it.origin, it.rule, k)
				for _, parent := range chart.sets[it.origin].items {
					pr := g.rules[parent.rule]
					if parent.dot < len(pr.rhs) &&
						pr.rhs[parent.dot].Kind == SymNonTerminal &&
						pr.rhs[parent.dot].Name == r.lhs {
						cur.add(item{rule: parent.rule, dot: parent.dot + 1, origin: parent.origin})
					}
				}
			}
		}

		if next == nil {
			break
		}
		if len(next.items) == 0 {
			// Divergence: token k matched nothing any item expected.
			break
		}
		chart.sets = append(chart.sets, next)
	}

	return chart
}

func (c *earleyChart) recordCompletion(lhs string, origin, rule, end int) {
	byOrigin, ok := c.completions[lhs]
	if !ok {
		byOrigin = make(map[int][]completion)
		c.completions[lhs] = byOrigin
	}
	for _, existing := range byOrigin[origin] {
		if existing.rule == rule && existing.end == end {
			return
		}
	}
	byOrigin[origin] = append(byOrigin[origin], completion{rule: rule, end: end})
}

// completedStart reports whether a full derivation of the start symbol
// spans the whole input.
func (c *earleyChart) completedStart(n int, start string) bool {
	for _, comp := range c.completions[start][0] {
		if comp.end == n {
			return true
		}
	}
	return false
}

// reject builds the divergence diagnostic from the furthest set reached.
func (c *earleyChart) reject(g *Grammar, tokens []Token) *RejectError {
	k := len(c.sets) - 1
	expected := map[string]bool{}
	for _, it := range c.sets[k].items {
		r := g.rules[it.rule]
		if it.dot < len(r.rhs) && r.rhs[it.dot].Kind == SymTerminal {
			expected[r.rhs[it.dot].Name] = true
		}
	}

	var pos int
	var got string
	if k < len(tokens) {
		pos = tokens[k].Pos
		got = tokens[k].Text
	} else {
		last := tokens[len(tokens)-1]
		pos = last.Pos + len(last.Text)
		got = ""
	}

	names := sortedDisplays(g, expected)
	if len(names) == 0 {
		names = []string{"end of input"}
	}
	return &RejectError{Pos: pos, Got: got, Expected: names}
}

func sortedDisplays(g *Grammar, set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, g.terminals[name].Display())
	}
	sort.Strings(out)
	return out
}

// --- parse tree reconstruction ---

// buildTree reconstructs one derivation of sym over tokens[start:end) from
// the recorded completions. The grammar is deterministic in practice, so
// the first derivation found in rule order is the tree.
func (c *earleyChart) buildTree(g *Grammar, tokens []Token, sym string, start, end int) *Node {
	for _, comp := range c.completions[sym][start] {
		if comp.end != end || comp.rule < 0 {
			continue
		}
		r := g.rules[comp.rule]
		children := c.deriveSeq(g, tokens, r.rhs, start, end)
		if children != nil {
			return &Node{Symbol: sym, Children: children}
		}
	}
	// Nullable symbol over an empty span.
	if start == end && g.nullable[sym] {
		return &Node{Symbol: sym}
	}
	return nil
}

// deriveSeq assigns tokens[start:end) to the symbols of a rule body,
// depth-first over the recorded spans.
func (c *earleyChart) deriveSeq(g *Grammar, tokens []Token, rhs []Symbol, start, end int) []*Node {
	if len(rhs) == 0 {
		if start == end {
			return []*Node{}
		}
		return nil
	}

	sym := rhs[0]
	if sym.Kind == SymTerminal {
		if start >= end {
			return nil
		}
		t := g.terminals[sym.Name]
		if !t.Matches(tokens[start].Text) {
			return nil
		}
		rest := c.deriveSeq(g, tokens, rhs[1:], start+1, end)
		if rest == nil {
			return nil
		}
		tok := tokens[start]
		return append([]*Node{{Symbol: sym.Name, Token: &tok}}, rest...)
	}

	// Try every recorded span of this non-terminal starting here, longest
	// first so greedy list productions resolve without extra backtracking.
	spans := c.spansFor(sym.Name, start, end)
	for _, e := range spans {
		child := c.buildTree(g, tokens, sym.Name, start, e)
		if child == nil {
			continue
		}
		rest := c.deriveSeq(g, tokens, rhs[1:], e, end)
		if rest != nil {
			return append([]*Node{child}, rest...)
		}
	}
	return nil
}

// spansFor lists recorded end positions for derivations of sym starting at
// origin, bounded by max, longest first.
func (c *earleyChart) spansFor(sym string, origin, max int) []int {
	seen := map[int]bool{}
	var ends []int
	for _, comp := range c.completions[sym][origin] {
		if comp.end <= max && !seen[comp.end] {
			seen[comp.end] = true
			ends = append(ends, comp.end)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(ends)))
	return ends
}
