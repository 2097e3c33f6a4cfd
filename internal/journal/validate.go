package journal

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/model"
)

// ValidationError describes a single invariant violation.
type ValidationError struct {
	Invariant   int
	Line        int // 1-based; 0 = whole entry
	Description string
}

func (e ValidationError) Error() string {
	if e.Line == 0 {
		return fmt.Sprintf("invariant %d: %s", e.Invariant, e.Description)
	}
	return fmt.Sprintf("invariant %d [line %d]: %s", e.Invariant, e.Line, e.Description)
}

// AccountChecker resolves an account code in the chart of accounts.
type AccountChecker interface {
	Lookup(accountID string) (model.Account, bool)
}

// ValidateLines enforces 6 invariants on the lines of one journal entry.
func ValidateLines(lines []model.JournalLine, accounts AccountChecker) []ValidationError {
	var errs []ValidationError

	// Invariant 1: At least two lines.
	if len(lines) < 2 {
		errs = append(errs, ValidationError{
			Invariant:   1,
			Description: fmt.Sprintf("entry needs at least 2 lines, got %d", len(lines)),
		})
	}

	hundred := decimal.NewFromInt(100)
	totalDebit := decimal.Zero
	totalCredit := decimal.Zero
	for i, line := range lines {
		n := i + 1

		// Invariant 2: One positive amount on a known side.
		switch {
		case line.Side != model.Debit && line.Side != model.Credit:
			errs = append(errs, ValidationError{
				Invariant:   2,
				Line:        n,
				Description: fmt.Sprintf("unknown side %q", line.Side),
			})
		case !line.Amount.IsPositive():
			errs = append(errs, ValidationError{
				Invariant:   2,
				Line:        n,
				Description: fmt.Sprintf("amount %s must be positive", line.Amount),
			})
		}

		// Invariant 3: Exact decimals, no more than 2 places.
		if !line.Amount.Mul(hundred).Equal(line.Amount.Mul(hundred).Floor()) {
			errs = append(errs, ValidationError{
				Invariant:   3,
				Line:        n,
				Description: fmt.Sprintf("amount %s has more than 2 decimal places", line.Amount),
			})
		}

		// Invariant 4: Valid account references.
		acct, ok := accounts.Lookup(line.AccountID)
		if !ok {
			errs = append(errs, ValidationError{
				Invariant:   4,
				Line:        n,
				Description: fmt.Sprintf("unknown account %s", line.AccountID),
			})
		} else if acct.IsControl {
			// Invariant 5: Control accounts only take subledger postings.
			errs = append(errs, ValidationError{
				Invariant:   5,
				Line:        n,
				Description: fmt.Sprintf("account %s is a control account", acct.DisplayName()),
			})
		}

		switch line.Side {
		case model.Debit:
			totalDebit = totalDebit.Add(line.Amount)
		case model.Credit:
			totalCredit = totalCredit.Add(line.Amount)
		}
	}

	// Invariant 6: Debits equal credits.
	if !totalDebit.Equal(totalCredit) {
		errs = append(errs, ValidationError{
			Invariant:   6,
			Description: fmt.Sprintf("debits (%s) != credits (%s)", totalDebit.StringFixed(2), totalCredit.StringFixed(2)),
		})
	}

	return errs
}
