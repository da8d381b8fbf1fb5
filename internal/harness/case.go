// Package harness evaluates the query compiler as a system under test.
//
// Four independent suites drive the compiler with curated and adversarial
// question corpora and score its behavior against declared oracles:
// grammar conformance, semantic correctness, adversarial safety, and
// boundary robustness. The harness never retries anything itself - it
// measures the compiler as-is.
package harness

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed corpus/*.yaml
var corpusFS embed.FS

// Case is one evaluation input: a question plus the oracle fields the
// owning suite understands. Cases are read-only, loaded from the embedded
// corpus files.
type Case struct {
	ID       string `yaml:"id"`
	Question string `yaml:"question"`
	Category string `yaml:"category,omitempty"`

	// Semantic suite oracles.
	Oracle       string  `yaml:"oracle,omitempty"`     // "intent" or "execution"
	Expect       *Intent `yaml:"expect,omitempty"`     // intent cases
	GoldenSQL    string  `yaml:"golden_sql,omitempty"` // execution cases
	Comparison   string  `yaml:"comparison,omitempty"` // "exact", "tolerance", "row_count"
	Tolerance    float64 `yaml:"tolerance,omitempty"`
	ExpectedRows int     `yaml:"expected_rows,omitempty"`
}

// Intent lists the semantic elements a candidate must contain to count as
// capturing the question. Checked over the parse tree, not by substring.
type Intent struct {
	Aggregate string   `yaml:"aggregate,omitempty"`
	Columns   []string `yaml:"columns,omitempty"`
	Filters   []Filter `yaml:"filters,omitempty"`
	GroupBy   []string `yaml:"group_by,omitempty"`
}

// Filter is one expected WHERE element.
type Filter struct {
	Column string   `yaml:"column"`
	Value  string   `yaml:"value,omitempty"`
	Values []string `yaml:"values,omitempty"`
}

// loadCorpus reads and decodes one embedded corpus file.
func loadCorpus(name string) ([]Case, error) {
	raw, err := corpusFS.ReadFile("corpus/" + name)
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", name, err)
	}
	var doc struct {
		Cases []Case `yaml:"cases"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode corpus %s: %w", name, err)
	}
	if len(doc.Cases) == 0 {
		return nil, fmt.Errorf("corpus %s contains no cases", name)
	}
	seen := make(map[string]bool, len(doc.Cases))
	for _, c := range doc.Cases {
		if c.ID == "" {
			return nil, fmt.Errorf("corpus %s: case without id", name)
		}
		if seen[c.ID] {
			return nil, fmt.Errorf("corpus %s: duplicate case id %s", name, c.ID)
		}
		seen[c.ID] = true
	}
	return doc.Cases, nil
}
