package id

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// New returns a fresh random identifier.
func New() string {
	return uuid.NewString()
}

// FormatTransactionNumber returns a journal transaction number like "2025-01-001".
func FormatTransactionNumber(year, month, seq int) string {
	return fmt.Sprintf("%04d-%02d-%03d", year, month, seq)
}

// ParseTransactionNumber parses "2025-01-001" into year, month, seq.
func ParseTransactionNumber(num string) (year, month, seq int, err error) {
	parts := strings.SplitN(num, "-", 3)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("invalid transaction number format: %q", num)
	}

	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid year in transaction number %q: %w", num, err)
	}

	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid month in transaction number %q: %w", num, err)
	}

	seq, err = strconv.Atoi(parts[2])
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid sequence in transaction number %q: %w", num, err)
	}

	return year, month, seq, nil
}

// MonthPrefix returns the "YYYY-MM-" prefix shared by a month's transaction numbers.
func MonthPrefix(year, month int) string {
	return fmt.Sprintf("%04d-%02d-", year, month)
}
