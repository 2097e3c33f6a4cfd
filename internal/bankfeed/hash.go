package bankfeed

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// NormalizeDescription lowercases s, trims it and collapses whitespace runs
// to a single space.
func NormalizeDescription(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// DuplicateHash fingerprints a statement line by date, amount and normalized
// description. Lines that differ only in description case or spacing share
// a hash.
func DuplicateHash(date time.Time, amount decimal.Decimal, description string) string {
	key := date.UTC().Format("2006-01-02") + "|" + amount.StringFixed(4) + "|" + NormalizeDescription(description)
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
