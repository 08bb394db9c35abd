package generator

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed pairs.yaml
var defaultPairsYAML []byte

// PairTemplate is the task content generated for one division pair.
type PairTemplate struct {
	Topic         string   `yaml:"topic"`
	Description   string   `yaml:"description"`
	SearchQueries []string `yaml:"search_queries"`
}

// PairRule binds a strategic division pair to its curated template. A pair
// without a template renders the catalog's generic fallback instead.
type PairRule struct {
	A             string   `yaml:"a"`
	B             string   `yaml:"b"`
	Topic         string   `yaml:"topic"`
	Description   string   `yaml:"description"`
	SearchQueries []string `yaml:"search_queries"`
}

// BonusRule is a pair that only joins the candidate list once at least
// MinQualifying divisions have enough findings.
type BonusRule struct {
	A             string `yaml:"a"`
	B             string `yaml:"b"`
	MinQualifying int    `yaml:"min_qualifying"`
}

// FallbackTemplate renders a generic pair template. The tokens {a} and {b}
// expand to the two division names.
type FallbackTemplate struct {
	Topic         string   `yaml:"topic"`
	Description   string   `yaml:"description"`
	SearchQueries []string `yaml:"search_queries"`
}

// Catalog is the synthesis pairing strategy. It lives in YAML so a deployment
// can swap the mission's pair list without a rebuild.
type Catalog struct {
	Pairs    []PairRule       `yaml:"pairs"`
	Bonus    []BonusRule      `yaml:"bonus"`
	Fallback FallbackTemplate `yaml:"fallback"`
}

// LoadCatalog reads the pair catalog from path, or the embedded default when
// path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	raw := defaultPairsYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read pair catalog: %w", err)
		}
		raw = b
	}

	var c Catalog
	if err := yaml.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse pair catalog: %w", err)
	}
	return &c, nil
}

// Combinations returns the ordered division pairs to consider, restricted to
// the qualifying set. Bonus pairs join once the set is large enough.
func (c *Catalog) Combinations(qualifying map[string]bool) [][2]string {
	var out [][2]string
	for _, p := range c.Pairs {
		if qualifying[p.A] && qualifying[p.B] {
			out = append(out, [2]string{p.A, p.B})
		}
	}
	for _, b := range c.Bonus {
		if len(qualifying) >= b.MinQualifying && qualifying[b.A] && qualifying[b.B] {
			out = append(out, [2]string{b.A, b.B})
		}
	}
	return out
}

// TemplateFor resolves the template for a division pair, trying both key
// orders before rendering the generic fallback from the division names.
func (c *Catalog) TemplateFor(aID, bID, aName, bName string) PairTemplate {
	for _, p := range c.Pairs {
		if (p.A == aID && p.B == bID) || (p.A == bID && p.B == aID) {
			if p.Topic != "" {
				return PairTemplate{Topic: p.Topic, Description: p.Description, SearchQueries: p.SearchQueries}
			}
			break
		}
	}

	r := strings.NewReplacer("{a}", aName, "{b}", bName)
	queries := make([]string, len(c.Fallback.SearchQueries))
	for i, q := range c.Fallback.SearchQueries {
		queries[i] = r.Replace(q)
	}
	return PairTemplate{
		Topic:         r.Replace(c.Fallback.Topic),
		Description:   r.Replace(c.Fallback.Description),
		SearchQueries: queries,
	}
}
