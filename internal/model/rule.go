package model

import "time"

// RuleField selects the transaction attribute a rule inspects.
type RuleField string

const (
	FieldDescription RuleField = "description"
	FieldPayee       RuleField = "payee"
	FieldReference   RuleField = "reference"
	FieldAmount      RuleField = "amount"
)

// RuleOperator is the comparison a rule applies.
type RuleOperator string

const (
	OpContains   RuleOperator = "contains"
	OpEquals     RuleOperator = "equals"
	OpStartsWith RuleOperator = "startsWith"
	OpEndsWith   RuleOperator = "endsWith"
	OpRegex      RuleOperator = "regex"
)

// BankRule maps a condition on a transaction to a categorization.
// Higher priority rules are evaluated first; the first match wins.
type BankRule struct {
	ID                string
	OrgID             string
	Name              string
	Field             RuleField
	Operator          RuleOperator
	Value             string
	Priority          int
	CategoryAccountID string
	TaxRateID         string
	PayeeOverride     string
	IsActive          bool
	TimesApplied      int
	LastAppliedAt     *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
