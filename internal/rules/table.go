package rules

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"golang.org/x/text/cases"

	"shelver/internal/config"
)

// Rule maps a set of extensions to a category and optional subcategory.
type Rule struct {
	Category    string
	Subcategory string
	Extensions  []string
}

// Folder returns the relative destination folder for the rule.
func (r Rule) Folder() string {
	if r.Subcategory == "" {
		return r.Category
	}
	return filepath.Join(r.Category, r.Subcategory)
}

// Shadowed records an extension that a later rule declared but an earlier
// rule already claimed.
type Shadowed struct {
	Extension string
	Winner    string
	Ignored   string
}

// Table is the ordered, immutable rule set. It is safe for concurrent use.
type Table struct {
	rules    []Rule
	index    map[string]int
	shadowed []Shadowed
}

// New builds a table from configured categories, preserving declaration order.
func New(categories []config.Category) (*Table, error) {
	if len(categories) == 0 {
		return nil, errors.New("rules: no categories configured")
	}
	t := &Table{index: make(map[string]int)}
	for _, cat := range categories {
		if len(cat.Subcategories) == 0 {
			if err := t.add(cat.Name, "", cat.Extensions); err != nil {
				return nil, err
			}
			continue
		}
		for _, sub := range cat.Subcategories {
			if err := t.add(cat.Name, sub.Name, sub.Extensions); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func (t *Table) add(category, subcategory string, extensions []string) error {
	category = strings.TrimSpace(category)
	subcategory = strings.TrimSpace(subcategory)
	if category == "" {
		return errors.New("rules: category name is empty")
	}
	rule := Rule{Category: category, Subcategory: subcategory}
	position := len(t.rules)
	seen := make(map[string]struct{}, len(extensions))
	for _, raw := range extensions {
		ext := NormalizeExtension(raw)
		if ext == "" {
			return fmt.Errorf("rules: %s has an empty extension", rule.Folder())
		}
		if _, dup := seen[ext]; dup {
			continue
		}
		seen[ext] = struct{}{}
		if owner, taken := t.index[ext]; taken {
			t.shadowed = append(t.shadowed, Shadowed{
				Extension: ext,
				Winner:    t.rules[owner].Folder(),
				Ignored:   rule.Folder(),
			})
			continue
		}
		t.index[ext] = position
		rule.Extensions = append(rule.Extensions, ext)
	}
	t.rules = append(t.rules, rule)
	return nil
}

// Rules returns a copy of the flattened rules in declaration order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	for i, r := range t.rules {
		r.Extensions = append([]string(nil), r.Extensions...)
		out[i] = r
	}
	return out
}

// Shadowed returns the extensions ignored because an earlier rule owns them.
func (t *Table) Shadowed() []Shadowed {
	return append([]Shadowed(nil), t.shadowed...)
}

// Len reports the number of distinct extensions the table resolves.
func (t *Table) Len() int {
	return len(t.index)
}

// NormalizeExtension trims whitespace and leading dots and case folds the result.
func NormalizeExtension(ext string) string {
	ext = strings.TrimLeft(strings.TrimSpace(ext), ".")
	if ext == "" {
		return ""
	}
	// Casers carry state, so each call gets its own.
	return cases.Fold().String(ext)
}
