package grammar

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/fenceql/fenceql/internal/schema"
)

// Verbs that must be unreachable from any production, at any depth.
// Enforced structurally at build time; the validator never needs a blocklist
// because no derivation can produce these tokens in the first place.
var forbiddenVerbs = []string{"DROP", "DELETE", "UPDATE", "INSERT", "ALTER", "CREATE", "ATTACH"}

// limitPattern bounds result sizes to 1-9999 rows.
const limitPattern = `[1-9][0-9]{0,3}`

// aggregate function names in grammar order.
var aggregateFuncs = []string{"count", "sum", "avg", "min", "max"}

// Build constructs the full grammar for the given schema registry.
//
// Every production is derived from the registry: column terminals enumerate
// registered columns only, the single table production names the registered
// table only, and value terminals come from each column's declared pattern
// or enum. After construction Build verifies the structural guarantees
// (single table production, closed column set, forbidden verbs unreachable,
// single statement terminator) and refuses to return a grammar that
// violates any of them.
func Build(table *schema.Table) (*Grammar, error) {
	b := &builder{
		g: &Grammar{
			table:     table,
			start:     "query",
			terminals: make(map[string]Terminal),
			prods:     make(map[string]*Production),
		},
	}

	if err := b.declareFixedTerminals(); err != nil {
		return nil, err
	}
	if err := b.declareSchemaTerminals(table); err != nil {
		return nil, err
	}
	b.declareProductions(table)

	b.g.flatten()
	b.g.computeNullable()

	if err := b.check(table); err != nil {
		return nil, err
	}
	b.g.reach = b.g.reachableTerminals()
	return b.g, nil
}

type builder struct {
	g *Grammar
}

func (b *builder) literal(name, text string) {
	b.g.terminals[name] = Terminal{Name: name, Literal: text}
}

func (b *builder) pattern(name, expr string) error {
	re, err := regexp.Compile(`\A(?:` + expr + `)\z`)
	if err != nil {
		return fmt.Errorf("terminal %s: invalid pattern %q: %w", name, expr, err)
	}
	b.g.terminals[name] = Terminal{Name: name, Pattern: re}
	return nil
}

func (b *builder) declareFixedTerminals() error {
	keywords := map[string]string{
		"KW_SELECT": "SELECT", "KW_FROM": "FROM", "KW_WHERE": "WHERE",
		"KW_AND": "AND", "KW_GROUP": "GROUP", "KW_BY": "BY",
		"KW_ORDER": "ORDER", "KW_LIMIT": "LIMIT", "KW_BETWEEN": "BETWEEN",
		"KW_IN": "IN", "KW_ASC": "ASC", "KW_DESC": "DESC",
	}
	for name, text := range keywords {
		b.literal(name, text)
	}
	for _, fn := range aggregateFuncs {
		b.literal("FN_"+upper(fn), fn)
	}
	ops := map[string]string{
		"OP_EQ": "=", "OP_NEQ": "!=", "OP_GT": ">", "OP_GTE": ">=",
		"OP_LT": "<", "OP_LTE": "<=",
	}
	for name, text := range ops {
		b.literal(name, text)
	}
	b.literal("LPAREN", "(")
	b.literal("RPAREN", ")")
	b.literal("COMMA", ",")
	b.literal("SEMI", ";")
	b.literal("STAR", "*")
	return b.pattern("VAL_LIMIT", limitPattern)
}

func (b *builder) declareSchemaTerminals(table *schema.Table) error {
	b.literal("TBL_"+upper(table.Name()), table.Name())

	for _, col := range append(table.Aggregatable(), append(table.Groupable(), table.Filterable()...)...) {
		b.literal(colTerm(col.Name), col.Name)
	}

	for _, col := range table.Filterable() {
		switch col.Kind {
		case schema.KindCategorical:
			for _, val := range col.Enum {
				// Enum terminals carry the surrounding quotes so the parse
				// tree exposes the exact SQL literal.
				b.literal(litTerm(val), "'"+val+"'")
			}
		default:
			if err := b.pattern(valTerm(col.Name), col.ValuePattern); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) declareProductions(table *schema.Table) {
	tableTerm := "TBL_" + upper(table.Name())

	b.prod("query", alt(nt("select_stmt"), term("SEMI")))
	b.prod("select_stmt",
		alt(term("KW_SELECT"), nt("select_list"), term("KW_FROM"), nt("table_ref"),
			nt("where_opt"), nt("group_opt"), nt("order_opt"), nt("limit_opt")))
	b.prod("select_list",
		alt(nt("select_item")),
		alt(nt("select_item"), term("COMMA"), nt("select_list")))
	b.prod("select_item", alt(nt("agg_call")), alt(nt("group_col")))
	b.prod("table_ref", alt(term(tableTerm)))

	// Aggregate calls: count(*) plus count/sum/avg/min/max over aggregatable
	// columns.
	aggAlts := [][]Symbol{alt(term("FN_COUNT"), term("LPAREN"), term("STAR"), term("RPAREN"))}
	for _, fn := range aggregateFuncs {
		aggAlts = append(aggAlts, alt(term("FN_"+upper(fn)), term("LPAREN"), nt("agg_col"), term("RPAREN")))
	}
	b.prod("agg_call", aggAlts...)

	var aggCols, groupCols [][]Symbol
	for _, col := range table.Aggregatable() {
		aggCols = append(aggCols, alt(term(colTerm(col.Name))))
	}
	for _, col := range table.Groupable() {
		groupCols = append(groupCols, alt(term(colTerm(col.Name))))
	}
	b.prod("agg_col", aggCols...)
	b.prod("group_col", groupCols...)

	// WHERE: an AND-only chain of per-column conditions.
	b.prod("where_opt", alt(), alt(term("KW_WHERE"), nt("condition"), nt("and_conds")))
	b.prod("and_conds", alt(), alt(term("KW_AND"), nt("condition"), nt("and_conds")))

	var condAlts [][]Symbol
	for _, col := range table.Filterable() {
		condAlts = append(condAlts, alt(nt(condName(col.Name))))
	}
	b.prod("condition", condAlts...)

	for _, col := range table.Filterable() {
		colT := term(colTerm(col.Name))
		switch col.Kind {
		case schema.KindCategorical:
			litNT := "lit_" + lower(col.Name)
			listNT := "list_" + lower(col.Name)
			var litAlts [][]Symbol
			for _, val := range col.Enum {
				litAlts = append(litAlts, alt(term(litTerm(val))))
			}
			b.prod(condName(col.Name),
				alt(colT, term("OP_EQ"), nt(litNT)),
				alt(colT, term("OP_NEQ"), nt(litNT)),
				alt(colT, term("KW_IN"), term("LPAREN"), nt(listNT), term("RPAREN")))
			b.prod(litNT, litAlts...)
			b.prod(listNT,
				alt(nt(litNT)),
				alt(nt(litNT), term("COMMA"), nt(listNT)))
		case schema.KindBoolean:
			valT := term(valTerm(col.Name))
			b.prod(condName(col.Name),
				alt(colT, term("OP_EQ"), valT),
				alt(colT, term("OP_NEQ"), valT))
		default:
			valT := term(valTerm(col.Name))
			b.prod(condName(col.Name),
				alt(colT, nt("compare_op"), valT),
				alt(colT, term("KW_BETWEEN"), valT, term("KW_AND"), valT))
		}
	}

	b.prod("compare_op",
		alt(term("OP_EQ")), alt(term("OP_GT")), alt(term("OP_GTE")),
		alt(term("OP_LT")), alt(term("OP_LTE")))

	b.prod("group_opt", alt(), alt(term("KW_GROUP"), term("KW_BY"), nt("group_cols")))
	b.prod("group_cols",
		alt(nt("group_col")),
		alt(nt("group_col"), term("COMMA"), nt("group_cols")))

	b.prod("order_opt", alt(), alt(term("KW_ORDER"), term("KW_BY"), nt("order_items")))
	b.prod("order_items",
		alt(nt("order_item")),
		alt(nt("order_item"), term("COMMA"), nt("order_items")))
	b.prod("order_item", alt(nt("order_target"), nt("dir_opt")))
	b.prod("order_target", alt(nt("group_col")), alt(nt("agg_call")))
	b.prod("dir_opt", alt(), alt(term("KW_ASC")), alt(term("KW_DESC")))

	b.prod("limit_opt", alt(), alt(term("KW_LIMIT"), term("VAL_LIMIT")))
}

func (b *builder) prod(name string, alts ...[]Symbol) {
	b.g.prods[name] = &Production{Name: name, Alts: alts}
	b.g.order = append(b.g.order, name)
}

func alt(syms ...Symbol) []Symbol { return syms }

// check verifies the structural guarantees after construction.
func (b *builder) check(table *schema.Table) error {
	g := b.g

	// Every referenced symbol must be declared.
	for _, r := range g.rules {
		for _, sym := range r.rhs {
			switch sym.Kind {
			case SymTerminal:
				if _, ok := g.terminals[sym.Name]; !ok {
					return fmt.Errorf("production %s references undeclared terminal %s", r.lhs, sym.Name)
				}
			case SymNonTerminal:
				if _, ok := g.prods[sym.Name]; !ok {
					return fmt.Errorf("production %s references undeclared non-terminal %s", r.lhs, sym.Name)
				}
			}
		}
	}

	reachable := g.reachableTerminals()

	// Forbidden verbs and comment/statement-splitting tokens must be
	// unreachable. This is a walk over what derivations can produce, not a
	// scan of generated text.
	for _, name := range reachable {
		t := g.terminals[name]
		if t.Literal == "" {
			continue
		}
		lit := upper(t.Literal)
		for _, verb := range forbiddenVerbs {
			if lit == verb || strings.Contains(lit, " "+verb+" ") {
				return fmt.Errorf("terminal %s produces forbidden verb %s", name, verb)
			}
		}
		if strings.Contains(t.Literal, "--") || strings.Contains(t.Literal, "/*") {
			return fmt.Errorf("terminal %s produces a comment opener", name)
		}
	}

	// Exactly one statement terminator, used in exactly one place.
	semiRefs := 0
	for _, r := range g.rules {
		for _, sym := range r.rhs {
			if sym.Kind == SymTerminal && sym.Name == "SEMI" {
				semiRefs++
			}
		}
	}
	if semiRefs != 1 {
		return fmt.Errorf("statement terminator referenced %d times, want exactly 1", semiRefs)
	}

	// Exactly one table production naming only the registered table.
	tableProd, ok := g.prods["table_ref"]
	if !ok || len(tableProd.Alts) != 1 || len(tableProd.Alts[0]) != 1 {
		return fmt.Errorf("table_ref must have exactly one single-terminal alternative")
	}
	tt, ok := g.terminals[tableProd.Alts[0][0].Name]
	if !ok || tt.Literal != table.Name() {
		return fmt.Errorf("table_ref does not name the registered table %s", table.Name())
	}

	// Every column terminal must resolve to a registered column.
	for _, name := range reachable {
		if !strings.HasPrefix(name, "COL_") {
			continue
		}
		t := g.terminals[name]
		if _, ok := table.Column(t.Literal); !ok {
			return fmt.Errorf("column terminal %s does not match a registered column", name)
		}
	}

	return nil
}

func colTerm(name string) string { return "COL_" + upper(name) }
func valTerm(name string) string { return "VAL_" + upper(name) }
func condName(name string) string { return "cond_" + lower(name) }

// litTerm derives a terminal name from an enum value, e.g. CASH-IN ->
// LIT_CASH_IN.
func litTerm(val string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, val)
	return "LIT_" + upper(clean)
}

func upper(s string) string { return strings.ToUpper(s) }
func lower(s string) string { return strings.ToLower(s) }
