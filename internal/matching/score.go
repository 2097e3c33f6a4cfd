package matching

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/model"
	"github.com/cleared-dev/bankrec/internal/similarity"
)

// CandidateType names what a suggestion points at.
type CandidateType string

const (
	CandidateInvoice CandidateType = "INVOICE"
	CandidateBill    CandidateType = "BILL"
	CandidatePayment CandidateType = "PAYMENT"
)

// Candidate is a ledger record that might explain a bank transaction.
// Amount is the unsigned amount expected to move.
type Candidate struct {
	Type      CandidateType
	ID        string
	Reference string
	PartyName string
	Date      time.Time
	Amount    decimal.Decimal
}

// Scoring weights.
const (
	MaxScore         = 100
	exactAmount      = 50
	nearAmount       = 40 // within 1%
	closeAmount      = 20 // within 5%
	sameDay          = 25
	nearDay          = 15 // within 3 days
	inWindow         = 5
	referenceMatch   = 25
	partyThreshold   = 60
	partyScoreDivide = 5.0
)

var (
	onePercent  = decimal.RequireFromString("0.01")
	fivePercent = decimal.RequireFromString("0.05")
)

// Score rates how well c explains txn. ok is false when the amounts are
// more than 5% apart and the candidate should be dropped.
func Score(txn model.BankTransaction, c Candidate) (score int, reasons []string, ok bool) {
	amt := txn.Amount.Abs()
	want := c.Amount.Abs()
	gap := amt.Sub(want).Abs()
	switch {
	case gap.IsZero():
		score += exactAmount
		reasons = append(reasons, "Exact amount match")
	case want.IsZero():
		return 0, nil, false
	case gap.Div(want).LessThanOrEqual(onePercent):
		score += nearAmount
		reasons = append(reasons, "Amount within 1%")
	case gap.Div(want).LessThanOrEqual(fivePercent):
		score += closeAmount
		reasons = append(reasons, "Amount within 5%")
	default:
		return 0, nil, false
	}

	days := DaysApart(txn.Date, c.Date)
	switch {
	case days == 0:
		score += sameDay
		reasons = append(reasons, "Same date")
	case days <= 3:
		score += nearDay
		reasons = append(reasons, fmt.Sprintf("Date within %d days", days))
	default:
		score += inWindow
		reasons = append(reasons, fmt.Sprintf("Date %d days apart", days))
	}

	if referencesOverlap(txn, c.Reference) {
		score += referenceMatch
		reasons = append(reasons, "Reference match")
	}

	if c.PartyName != "" {
		sim := similarity.Score(txn.PayeeOrDescription(), c.PartyName)
		if sim > partyThreshold {
			score += int(math.Round(float64(sim) / partyScoreDivide))
			reasons = append(reasons, fmt.Sprintf("Name similarity %d%%", sim))
		}
	}

	return min(score, MaxScore), reasons, true
}

// referencesOverlap reports whether the candidate reference appears in the
// transaction's reference or description, or the transaction's reference
// appears in the candidate's.
func referencesOverlap(txn model.BankTransaction, candidateRef string) bool {
	cref := strings.ToLower(strings.TrimSpace(candidateRef))
	if cref == "" {
		return false
	}
	tref := strings.ToLower(strings.TrimSpace(txn.Reference))
	if tref != "" && (strings.Contains(tref, cref) || strings.Contains(cref, tref)) {
		return true
	}
	return strings.Contains(strings.ToLower(txn.Description), cref)
}

// DaysApart is the whole number of calendar days between two dates.
func DaysApart(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	d := int(da.Sub(db).Hours() / 24)
	if d < 0 {
		d = -d
	}
	return d
}
