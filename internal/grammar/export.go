package grammar

import (
	"fmt"
	"sort"
	"strings"
)

// ExportLark renders the grammar as a Lark-style production description for
// the generation service's constrained decoder.
//
// The text is derived from the same Grammar value the validator consumes
// and is deterministic: the same grammar always renders byte-identical
// output. Productions appear in declaration order, terminal definitions
// sorted by name.
func (g *Grammar) ExportLark() string {
	var b strings.Builder

	b.WriteString("// Generated query grammar. Read-only analytics over the ")
	b.WriteString(g.table.Name())
	b.WriteString(" table.\n\n")

	fmt.Fprintf(&b, "start: %s\n\n", g.start)

	for _, name := range g.order {
		prod := g.prods[name]
		alts := make([]string, 0, len(prod.Alts))
		for _, alt := range prod.Alts {
			alts = append(alts, renderAlt(alt))
		}
		fmt.Fprintf(&b, "%s: %s\n", name, strings.Join(alts, " | "))
	}

	b.WriteString("\n")

	names := make([]string, 0, len(g.terminals))
	for name := range g.terminals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := g.terminals[name]
		if t.Pattern != nil {
			fmt.Fprintf(&b, "%s: /%s/\n", name, patternSource(t))
		} else {
			fmt.Fprintf(&b, "%s: %q\n", name, t.Literal)
		}
	}

	b.WriteString("\n%import common.WS\n%ignore WS\n")
	return b.String()
}

// renderAlt renders one production alternative; the empty alternative
// renders as an empty group so consumers see the clause is optional.
func renderAlt(alt []Symbol) string {
	if len(alt) == 0 {
		return "()"
	}
	parts := make([]string, 0, len(alt))
	for _, sym := range alt {
		parts = append(parts, sym.Name)
	}
	return strings.Join(parts, " ")
}

// patternSource strips the anchoring wrapper added at compile time so the
// exported class reads as authored.
func patternSource(t Terminal) string {
	src := t.Pattern.String()
	src = strings.TrimPrefix(src, `\A(?:`)
	src = strings.TrimSuffix(src, `)\z`)
	return src
}
