package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/bankrec/internal/apperr"
	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/store"
	"github.com/cleared-dev/bankrec/internal/store/storetest"
)

func newService(t *testing.T) (*Service, *store.DB) {
	t.Helper()
	db := storetest.Open(t)
	storetest.Seed(t, db)
	svc := NewService(db, zerolog.Nop())
	clock := time.Date(2025, 2, 1, 9, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return svc, db
}

func draft(name, value, category string, priority int) Draft {
	return Draft{
		Name:              name,
		Field:             model.FieldDescription,
		Operator:          model.OpContains,
		Value:             value,
		Priority:          priority,
		CategoryAccountID: category,
		Active:            true,
	}
}

func TestCreateRule_Validation(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*Draft)
		kind   apperr.Kind
	}{
		{"unknown field", func(d *Draft) { d.Field = "memo" }, apperr.KindValidation},
		{"unknown operator", func(d *Draft) { d.Operator = "fuzzy" }, apperr.KindValidation},
		{"empty value", func(d *Draft) { d.Value = " " }, apperr.KindValidation},
		{"bad regex", func(d *Draft) { d.Operator = model.OpRegex; d.Value = "([" }, apperr.KindValidation},
		{"unknown category", func(d *Draft) { d.CategoryAccountID = "9999" }, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := draft("GitHub", "github", storetest.Expense, 1)
			tt.mutate(&d)
			_, err := svc.CreateRule(ctx, storetest.OrgID, d)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}
}

func TestRuleCRUD(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	r, err := svc.CreateRule(ctx, storetest.OrgID, draft("GitHub", "github", storetest.Expense, 5))
	require.NoError(t, err)

	_, err = svc.GetRule(ctx, storetest.OtherOrgID, r.ID)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	d := draft("GitHub renamed", "github", storetest.BankFees, 7)
	updated, err := svc.UpdateRule(ctx, storetest.OrgID, r.ID, d)
	require.NoError(t, err)
	assert.Equal(t, 7, updated.Priority)

	got, err := svc.GetRule(ctx, storetest.OrgID, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "GitHub renamed", got.Name)
	assert.Equal(t, storetest.BankFees, got.CategoryAccountID)

	require.NoError(t, svc.DeleteRule(ctx, storetest.OrgID, r.ID))
	_, err = svc.GetRule(ctx, storetest.OrgID, r.ID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestApplyRules_FirstMatchByPriority(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	feed := storetest.Feed(t, db, "feed-1")
	storetest.Txn(t, db, feed, "aws", storetest.Date(2025, 1, 6), "-23.17", "AMAZON WEB SERVICES")
	storetest.Txn(t, db, feed, "staples", storetest.Date(2025, 1, 9), "-41.50", "STAPLES STORE")

	low, err := svc.CreateRule(ctx, storetest.OrgID, draft("Amazon", "amazon", storetest.Expense, 1))
	require.NoError(t, err)
	hd := draft("AWS", "amazon web", storetest.BankFees, 10)
	hd.PayeeOverride = "Amazon Web Services"
	high, err := svc.CreateRule(ctx, storetest.OrgID, hd)
	require.NoError(t, err)

	res, err := svc.ApplyRulesToUnprocessed(ctx, storetest.OrgID, "")
	require.NoError(t, err)
	assert.Equal(t, ApplyResult{Processed: 2, Categorized: 1}, res)

	aws, err := db.Queries().GetTransaction(ctx, "aws")
	require.NoError(t, err)
	assert.Equal(t, model.TxnCreated, aws.Status)
	assert.Equal(t, RuleConfidence, aws.ConfidenceScore)
	assert.Equal(t, high.ID, aws.AppliedRuleID)
	assert.Equal(t, storetest.BankFees, aws.CategoryAccountID)
	assert.Equal(t, "Amazon Web Services", aws.Payee)

	staples, err := db.Queries().GetTransaction(ctx, "staples")
	require.NoError(t, err)
	assert.Equal(t, model.TxnUnprocessed, staples.Status)

	fired, err := svc.GetRule(ctx, storetest.OrgID, high.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, fired.TimesApplied)
	require.NotNil(t, fired.LastAppliedAt)

	idle, err := svc.GetRule(ctx, storetest.OrgID, low.ID)
	require.NoError(t, err)
	assert.Zero(t, idle.TimesApplied)

	// A second run only revisits what is still unprocessed.
	res, err = svc.ApplyRulesToUnprocessed(ctx, storetest.OrgID, "")
	require.NoError(t, err)
	assert.Equal(t, ApplyResult{Processed: 1}, res)
}

func TestApplyRules_PayeeOnlyRuleKeepsCategory(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	feed := storetest.Feed(t, db, "feed-1")
	storetest.Txn(t, db, feed, "amzn", storetest.Date(2025, 1, 7), "-18.99", "AMZN MKTP US*2K4")

	d := draft("Amazon payee", "amzn", "", 5)
	d.PayeeOverride = "Amazon"
	rule, err := svc.CreateRule(ctx, storetest.OrgID, d)
	require.NoError(t, err)
	assert.Empty(t, rule.CategoryAccountID)

	res, err := svc.ApplyRulesToUnprocessed(ctx, storetest.OrgID, "")
	require.NoError(t, err)
	assert.Equal(t, ApplyResult{Processed: 1, Categorized: 1}, res)

	txn, err := db.Queries().GetTransaction(ctx, "amzn")
	require.NoError(t, err)
	assert.Equal(t, model.TxnCreated, txn.Status)
	assert.Equal(t, "Amazon", txn.Payee)
	assert.Empty(t, txn.CategoryAccountID)
	assert.Equal(t, rule.ID, txn.AppliedRuleID)
}

func TestApplyRules_EqualPriorityPrefersNewest(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	feed := storetest.Feed(t, db, "feed-1")
	storetest.Txn(t, db, feed, "gh", storetest.Date(2025, 1, 3), "-4.00", "GITHUB")

	_, err := svc.CreateRule(ctx, storetest.OrgID, draft("Old", "github", storetest.Expense, 3))
	require.NoError(t, err)
	newer, err := svc.CreateRule(ctx, storetest.OrgID, draft("New", "git", storetest.BankFees, 3))
	require.NoError(t, err)

	_, err = svc.ApplyRulesToUnprocessed(ctx, storetest.OrgID, storetest.BankAccountID)
	require.NoError(t, err)

	gh, err := db.Queries().GetTransaction(ctx, "gh")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, gh.AppliedRuleID)
}

func TestApplyRules_SkipsOtherBankAccounts(t *testing.T) {
	svc, db := newService(t)
	ctx := context.Background()
	feed := storetest.Feed(t, db, "feed-1")
	storetest.Txn(t, db, feed, "gh", storetest.Date(2025, 1, 3), "-4.00", "GITHUB")
	_, err := svc.CreateRule(ctx, storetest.OrgID, draft("GitHub", "github", storetest.Expense, 1))
	require.NoError(t, err)

	res, err := svc.ApplyRulesToUnprocessed(ctx, storetest.OrgID, "bank-other")
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	yml := `rules:
  - name: GitHub
    operator: contains
    value: github
    priority: 10
    category: "5020"
    payee: GitHub
  - name: Fees
    field: amount
    operator: equals
    value: "-12.00"
    category: "5100"
    inactive: true
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	drafts, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, model.FieldDescription, drafts[0].Field)
	assert.Equal(t, model.OpContains, drafts[0].Operator)
	assert.Equal(t, "5020", drafts[0].CategoryAccountID)
	assert.Equal(t, "GitHub", drafts[0].PayeeOverride)
	assert.True(t, drafts[0].Active)
	assert.Equal(t, model.FieldAmount, drafts[1].Field)
	assert.False(t, drafts[1].Active)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading rules")
}

func TestSaveFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	in := []model.BankRule{{
		Name: "GitHub", Field: model.FieldPayee, Operator: model.OpEquals, Value: "GitHub",
		Priority: 2, CategoryAccountID: "5020", IsActive: true,
	}}
	require.NoError(t, SaveFile(path, in))

	drafts, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, model.FieldPayee, drafts[0].Field)
	assert.Equal(t, 2, drafts[0].Priority)
	assert.True(t, drafts[0].Active)
}
