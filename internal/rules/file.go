package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cleared-dev/bankrec/internal/model"
)

// FilePath is the rule file relative to a workspace root.
const FilePath = "rules/categorization-rules.yaml"

// File is the on-disk rule list.
type File struct {
	Rules []FileRule `yaml:"rules"`
}

// FileRule is one rule as written in YAML.
type FileRule struct {
	Name     string `yaml:"name"`
	Field    string `yaml:"field,omitempty"`
	Operator string `yaml:"operator"`
	Value    string `yaml:"value"`
	Priority int    `yaml:"priority,omitempty"`
	Category string `yaml:"category,omitempty"`
	TaxRate  string `yaml:"tax_rate,omitempty"`
	Payee    string `yaml:"payee,omitempty"`
	Inactive bool   `yaml:"inactive,omitempty"`
}

// LoadFile reads a rule file into drafts.
func LoadFile(path string) ([]Draft, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}

	drafts := make([]Draft, 0, len(f.Rules))
	for _, r := range f.Rules {
		field := model.RuleField(r.Field)
		if field == "" {
			field = model.FieldDescription
		}
		drafts = append(drafts, Draft{
			Name:              r.Name,
			Field:             field,
			Operator:          model.RuleOperator(r.Operator),
			Value:             r.Value,
			Priority:          r.Priority,
			CategoryAccountID: r.Category,
			TaxRateID:         r.TaxRate,
			PayeeOverride:     r.Payee,
			Active:            !r.Inactive,
		})
	}
	return drafts, nil
}

// SaveFile writes rules back out in file order.
func SaveFile(path string, rules []model.BankRule) error {
	f := File{Rules: make([]FileRule, 0, len(rules))}
	for _, r := range rules {
		f.Rules = append(f.Rules, FileRule{
			Name:     r.Name,
			Field:    string(r.Field),
			Operator: string(r.Operator),
			Value:    r.Value,
			Priority: r.Priority,
			Category: r.CategoryAccountID,
			TaxRate:  r.TaxRateID,
			Payee:    r.PayeeOverride,
			Inactive: !r.IsActive,
		})
	}
	data, err := yaml.Marshal(&f)
	if err != nil {
		return fmt.Errorf("marshaling rules: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing rules: %w", err)
	}
	return nil
}
