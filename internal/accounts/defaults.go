package accounts

import "github.com/cleared-dev/bankrec/internal/model"

// DefaultChart returns the default chart of accounts for an entity type.
func DefaultChart(entityType string) []model.Account {
	switch entityType {
	case "llc_single_member":
		return llcSingleMemberChart()
	default:
		return llcSingleMemberChart()
	}
}

func llcSingleMemberChart() []model.Account {
	return []model.Account{
		{ID: "1010", Name: "Business Checking", Type: model.AccountTypeAsset, Description: "Primary checking account"},
		{ID: "1020", Name: "Business Savings", Type: model.AccountTypeAsset, Description: "Savings account"},
		{ID: "1050", Name: "Transfer Clearing", Type: model.AccountTypeAsset, Description: "Transfers between own bank accounts"},
		{ID: "1200", Name: "Accounts Receivable", Type: model.AccountTypeAsset, IsControl: true, Description: "Posted from invoices"},
		{ID: "1300", Name: "Withholding Tax Receivable", Type: model.AccountTypeAsset, Description: "Tax withheld at source"},
		{ID: "2000", Name: "Accounts Payable", Type: model.AccountTypeLiability, IsControl: true, Description: "Posted from bills"},
		{ID: "2010", Name: "Credit Card", Type: model.AccountTypeLiability, Description: "Business credit card"},
		{ID: "3010", Name: "Owner's Equity", Type: model.AccountTypeEquity, Description: "Owner's equity"},
		{ID: "4010", Name: "Service Revenue", Type: model.AccountTypeRevenue},
		{ID: "4020", Name: "Product Revenue", Type: model.AccountTypeRevenue},
		{ID: "4100", Name: "Interest Income", Type: model.AccountTypeRevenue, Description: "Bank interest"},
		{ID: "5010", Name: "Advertising & Marketing", Type: model.AccountTypeExpense, Description: "Advertising costs"},
		{ID: "5020", Name: "Software & SaaS", Type: model.AccountTypeExpense, Description: "Software subscriptions"},
		{ID: "5030", Name: "Office Supplies", Type: model.AccountTypeExpense, Description: "Office supplies and expenses"},
		{ID: "5040", Name: "Professional Services", Type: model.AccountTypeExpense, Description: "Legal, accounting, consulting"},
		{ID: "5050", Name: "Shipping & Postage", Type: model.AccountTypeExpense, Description: "Postage and shipping costs"},
		{ID: "5100", Name: "Bank Fees", Type: model.AccountTypeExpense, Description: "Service charges and bank fees"},
	}
}
