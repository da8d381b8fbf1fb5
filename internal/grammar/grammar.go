// Package grammar defines the context-free grammar of permitted queries and
// the validator that checks candidate text against it.
//
// The grammar is an explicit data structure (terminals, non-terminals,
// productions) built once from the schema registry. The exported decoding
// artifact and the local validator both read the same Grammar value, so the
// constraint handed to the generation service and the constraint enforced
// here cannot drift apart.
package grammar

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/fenceql/fenceql/internal/schema"
)

// Terminal is a leaf token of the grammar: either an exact literal
// (keyword, operator, column name, quoted enum value) or a pattern class
// (numeric literals). Terminals are closed-world: text that matches no
// declared terminal is structurally unreachable.
type Terminal struct {
	Name    string
	Literal string         // exact text; empty for pattern terminals
	Pattern *regexp.Regexp // anchored; nil for literal terminals
}

// Matches reports whether a token's text is an instance of this terminal.
func (t Terminal) Matches(text string) bool {
	if t.Pattern != nil {
		return t.Pattern.MatchString(text)
	}
	return text == t.Literal
}

// Display returns the form used in diagnostics: the literal itself for
// literal terminals, the class name for pattern terminals.
func (t Terminal) Display() string {
	if t.Literal != "" {
		return fmt.Sprintf("%q", t.Literal)
	}
	return t.Name
}

// SymbolKind distinguishes terminal references from non-terminal references
// inside production bodies.
type SymbolKind int

const (
	SymTerminal SymbolKind = iota + 1
	SymNonTerminal
)

// Symbol is one element of a production body.
type Symbol struct {
	Kind SymbolKind
	Name string
}

func term(name string) Symbol { return Symbol{Kind: SymTerminal, Name: name} }
func nt(name string) Symbol   { return Symbol{Kind: SymNonTerminal, Name: name} }

// Production maps a non-terminal to its ordered alternatives. An empty
// alternative marks the non-terminal as nullable (optional clause).
type Production struct {
	Name string
	Alts [][]Symbol
}

// rule is one flattened (non-terminal, alternative) pair. The validator
// operates on rules; productions are the authoring/export view.
type rule struct {
	lhs string
	rhs []Symbol
}

// Grammar is the immutable specification of the permitted query language.
// Build is the single construction point; the value is safe to share across
// goroutines without locking.
type Grammar struct {
	table     *schema.Table
	start     string
	terminals map[string]Terminal
	prods     map[string]*Production
	order     []string // production declaration order, for deterministic export
	rules     []rule
	rulesFor  map[string][]int // rule indexes per non-terminal
	nullable  map[string]bool
	reach     []string // reachable terminal names, cached at build
}

// Table returns the schema registry the grammar was built from.
func (g *Grammar) Table() *schema.Table { return g.table }

// Start returns the start symbol name.
func (g *Grammar) Start() string { return g.start }

// Terminal looks up a declared terminal by name.
func (g *Grammar) Terminal(name string) (Terminal, bool) {
	t, ok := g.terminals[name]
	return t, ok
}

// Terminals returns all declared terminals sorted by name.
func (g *Grammar) Terminals() []Terminal {
	names := make([]string, 0, len(g.terminals))
	for name := range g.terminals {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Terminal, 0, len(names))
	for _, name := range names {
		out = append(out, g.terminals[name])
	}
	return out
}

// ReachableLiterals returns the uppercase literal texts of every terminal
// reachable from the start symbol. The safety suite checks candidate parse
// trees against this set.
func (g *Grammar) ReachableLiterals() map[string]bool {
	out := make(map[string]bool, len(g.reach))
	for _, name := range g.reach {
		t := g.terminals[name]
		if t.Literal != "" {
			out[upper(t.Literal)] = true
		}
	}
	return out
}

// MatchesReachable reports whether text is an instance of some terminal
// reachable from the start symbol. Pattern terminals (numeric literals)
// count as reachable instances.
func (g *Grammar) MatchesReachable(text string) bool {
	for _, name := range g.reach {
		if g.terminals[name].Matches(text) {
			return true
		}
	}
	return false
}

// reachableTerminals walks productions from the start symbol and returns the
// names of every terminal that some derivation can produce, sorted.
func (g *Grammar) reachableTerminals() []string {
	seenNT := map[string]bool{}
	seenT := map[string]bool{}
	var walk func(name string)
	walk = func(name string) {
		if seenNT[name] {
			return
		}
		seenNT[name] = true
		prod, ok := g.prods[name]
		if !ok {
			return
		}
		for _, alt := range prod.Alts {
			for _, sym := range alt {
				if sym.Kind == SymTerminal {
					seenT[sym.Name] = true
				} else {
					walk(sym.Name)
				}
			}
		}
	}
	walk(g.start)

	names := make([]string, 0, len(seenT))
	for name := range seenT {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// computeNullable runs the standard fixed-point nullability computation.
func (g *Grammar) computeNullable() {
	g.nullable = make(map[string]bool)
	for changed := true; changed; {
		changed = false
		for _, r := range g.rules {
			if g.nullable[r.lhs] {
				continue
			}
			allNullable := true
			for _, sym := range r.rhs {
				if sym.Kind == SymTerminal || !g.nullable[sym.Name] {
					allNullable = false
					break
				}
			}
			if allNullable {
				g.nullable[r.lhs] = true
				changed = true
			}
		}
	}
}

// flatten builds the rule list the validator iterates over.
func (g *Grammar) flatten() {
	g.rules = nil
	g.rulesFor = make(map[string][]int)
	for _, name := range g.order {
		for _, alt := range g.prods[name].Alts {
			g.rulesFor[name] = append(g.rulesFor[name], len(g.rules))
			g.rules = append(g.rules, rule{lhs: name, rhs: alt})
		}
	}
}
