package rules

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/model"
)

func TestMatches(t *testing.T) {
	tests := []struct {
		op        model.RuleOperator
		pattern   string
		candidate string
		want      bool
	}{
		{model.OpContains, "github", "GITHUB *PRO SUBSCRIPTION", true},
		{model.OpContains, "gitlab", "GITHUB *PRO SUBSCRIPTION", false},
		{model.OpEquals, "Acme Corp", "ACME CORP", true},
		{model.OpEquals, "Acme", "ACME CORP", false},
		{model.OpStartsWith, "amazon", "AMAZON WEB SERVICES", true},
		{model.OpStartsWith, "web", "AMAZON WEB SERVICES", false},
		{model.OpEndsWith, "services", "AMAZON WEB SERVICES", true},
		{model.OpRegex, `^check \d+$`, "CHECK 1001", true},
		{model.OpRegex, `^check \d+$`, "CHECK ABC", false},
	}
	for _, tt := range tests {
		got, err := Matches(tt.op, tt.pattern, tt.candidate)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "%s %q on %q", tt.op, tt.pattern, tt.candidate)
	}
}

func TestMatches_Errors(t *testing.T) {
	_, err := Matches(model.OpRegex, "([", "x")
	assert.ErrorContains(t, err, "compiling rule pattern")

	_, err = Matches("fuzzy", "x", "x")
	assert.ErrorContains(t, err, "unknown operator")
}

func TestFieldValue(t *testing.T) {
	txn := model.BankTransaction{
		Description: "desc",
		Payee:       "payee",
		Reference:   "ref",
		Amount:      decimal.RequireFromString("-4.5"),
	}
	assert.Equal(t, "desc", FieldValue(txn, model.FieldDescription))
	assert.Equal(t, "payee", FieldValue(txn, model.FieldPayee))
	assert.Equal(t, "ref", FieldValue(txn, model.FieldReference))
	assert.Equal(t, "-4.50", FieldValue(txn, model.FieldAmount))
	assert.Equal(t, "desc", FieldValue(txn, ""))
	assert.Equal(t, "desc", FieldValue(txn, "memo"))
}

func TestFirstMatch_OrderWins(t *testing.T) {
	ordered := []model.BankRule{
		{ID: "high", Field: model.FieldDescription, Operator: model.OpContains, Value: "amazon web"},
		{ID: "low", Field: model.FieldDescription, Operator: model.OpContains, Value: "amazon"},
	}
	txn := model.BankTransaction{Description: "AMAZON WEB SERVICES"}

	r, ok, err := FirstMatch(ordered, txn)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "high", r.ID)

	_, ok, err = FirstMatch(ordered, model.BankTransaction{Description: "STAPLES"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSet_CompilesOncePerRule(t *testing.T) {
	ordered := []model.BankRule{
		{ID: "broken", Field: model.FieldDescription, Operator: model.OpRegex, Value: "(["},
		{ID: "checks", Field: model.FieldDescription, Operator: model.OpRegex, Value: `^check \d+$`},
	}
	set := Compile(ordered)
	assert.Len(t, set.patterns, 1)
	assert.Contains(t, set.invalid, "broken")

	_, _, err := set.FirstMatch(model.BankTransaction{Description: "CHECK 1001"})
	assert.ErrorContains(t, err, "rule broken: compiling rule pattern")

	set = Compile(ordered[1:])
	for _, desc := range []string{"CHECK 1001", "check 7"} {
		r, ok, err := set.FirstMatch(model.BankTransaction{Description: desc})
		require.NoError(t, err)
		require.True(t, ok, desc)
		assert.Equal(t, "checks", r.ID)
	}
	_, ok, err := set.FirstMatch(model.BankTransaction{Description: "CHECK ABC"})
	require.NoError(t, err)
	assert.False(t, ok)
}
