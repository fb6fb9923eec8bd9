package pipeline

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"bimschedule/internal"
	"bimschedule/internal/util"
)

//go:embed tables.yaml
var defaultTablesYAML []byte

type CategoryRule struct {
	Prefix   internal.CategoryPrefix `yaml:"prefix"`
	Keywords []string                `yaml:"keywords"`
}

type MaterialTypeRule struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

type Supplier struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	Phone string `yaml:"phone"`
}

// Contact renders the supplier as "Name (email, phone)".
func (s Supplier) Contact() string {
	return fmt.Sprintf("%s (%s, %s)", s.Name, s.Email, s.Phone)
}

type FallbackRecord struct {
	Finish   string `yaml:"finish"`
	Area     string `yaml:"area"`
	Location string `yaml:"location"`
	Type     string `yaml:"type"`
}

// Tables is the read-only configuration the pipeline runs against. It is
// loaded once at start-up and shared between requests; nothing in this
// package writes to it after LoadTables returns.
type Tables struct {
	Categories           []CategoryRule          `yaml:"categories"`
	FallbackPrefix       internal.CategoryPrefix `yaml:"fallbackPrefix"`
	MaterialTypes        []MaterialTypeRule      `yaml:"materialTypes"`
	FallbackMaterialType string                  `yaml:"fallbackMaterialType"`
	PriceDefaults        internal.PriceRange     `yaml:"priceDefaults"`
	Suppliers            []Supplier              `yaml:"suppliers"`
	Fallback             FallbackRecord          `yaml:"fallback"`
}

func DefaultTables() *Tables {
	t, err := parseTables(defaultTablesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded tables.yaml is invalid: %v", err))
	}
	return t
}

// LoadTables reads a tables file. An empty path returns the embedded defaults.
func LoadTables(path string) (*Tables, error) {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return DefaultTables(), nil
	}
	data, err := os.ReadFile(filepath.Clean(clean))
	if err != nil {
		return nil, err
	}
	t, err := parseTables(data)
	if err != nil {
		return nil, fmt.Errorf("tables %s: %w", clean, err)
	}
	return t, nil
}

func parseTables(data []byte) (*Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	for i := range t.Categories {
		t.Categories[i].Keywords = normalizeKeywords(t.Categories[i].Keywords)
	}
	for i := range t.MaterialTypes {
		t.MaterialTypes[i].Keywords = normalizeKeywords(t.MaterialTypes[i].Keywords)
	}
	if err := t.validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

func (t *Tables) validate() error {
	if strings.TrimSpace(string(t.FallbackPrefix)) == "" {
		return errors.New("fallbackPrefix is required")
	}
	if strings.TrimSpace(t.FallbackMaterialType) == "" {
		return errors.New("fallbackMaterialType is required")
	}
	seen := map[internal.CategoryPrefix]struct{}{t.FallbackPrefix: {}}
	for i, rule := range t.Categories {
		if strings.TrimSpace(string(rule.Prefix)) == "" {
			return fmt.Errorf("categories[%d]: prefix is required", i)
		}
		if strings.Contains(string(rule.Prefix), "-") {
			return fmt.Errorf("categories[%d]: prefix %q must not contain '-'", i, rule.Prefix)
		}
		if _, dup := seen[rule.Prefix]; dup {
			return fmt.Errorf("categories[%d]: duplicate prefix %q", i, rule.Prefix)
		}
		seen[rule.Prefix] = struct{}{}
		if len(rule.Keywords) == 0 {
			return fmt.Errorf("categories[%d]: at least one keyword is required", i)
		}
	}
	if len(t.Suppliers) == 0 {
		return errors.New("at least one supplier is required")
	}
	for i, s := range t.Suppliers {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("suppliers[%d]: name is required", i)
		}
	}
	if strings.TrimSpace(t.Fallback.Finish) == "" {
		return errors.New("fallback.finish is required")
	}
	return nil
}

func normalizeKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if n := util.NormalizeKey(k); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// FallbackCandidate is the record substituted when the model reply cannot be
// decoded. It carries no prices so the defaults apply.
func (t *Tables) FallbackCandidate() internal.Candidate {
	return internal.Candidate{
		FinishDescription: t.Fallback.Finish,
		MaterialType:      t.Fallback.Type,
		Area:              t.Fallback.Area,
		Location:          t.Fallback.Location,
	}
}
