package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/bankrec/internal/model"
)

// ChaseParser parses Chase checking account CSV downloads. The layout is
// fixed: Details, Posting Date, Description, Amount, Type, Balance and
// Check or Slip #.
type ChaseParser struct{}

const chaseDateFormat = "01/02/2006"

// Column positions in a Chase download.
const (
	chaseDetails = iota
	chasePosted
	chaseDescription
	chaseAmount
	chaseType
	chaseBalance
	chaseCheckNumber
	chaseColumns
)

// chaseRefPrefixLen bounds the description part of a generated reference.
const chaseRefPrefixLen = 10

// Format returns the parser name.
func (p *ChaseParser) Format() string { return "chase" }

// Parse reads a Chase CSV and returns statement lines. A row's check number
// becomes its reference; rows without one get a reference built from the
// posting date and description.
func (p *ChaseParser) Parse(r io.Reader) ([]model.StatementLine, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = chaseColumns

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading chase CSV header: %w", err)
	}
	if first := strings.TrimPrefix(strings.TrimSpace(header[chaseDetails]), "\ufeff"); !strings.EqualFold(first, "details") {
		return nil, fmt.Errorf("not a chase download: first column is %q", first)
	}

	var lines []model.StatementLine
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading chase CSV row %d: %w", row, err)
		}
		line, err := chaseLine(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func chaseLine(rec []string) (model.StatementLine, error) {
	posted := strings.TrimSpace(rec[chasePosted])
	date, err := time.Parse(chaseDateFormat, posted)
	if err != nil {
		return model.StatementLine{}, fmt.Errorf("parsing date %q: %w", posted, err)
	}

	raw := strings.TrimSpace(rec[chaseAmount])
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return model.StatementLine{}, fmt.Errorf("parsing amount %q: %w", raw, err)
	}

	line := model.StatementLine{
		Date:        date,
		Description: strings.TrimSpace(rec[chaseDescription]),
		Amount:      amount,
		Reference:   strings.TrimSpace(rec[chaseCheckNumber]),
	}
	if line.Reference == "" {
		line.Reference = chaseFallbackRef(date, line.Description)
	}
	return line, nil
}

// chaseFallbackRef builds a reference like chase_20250103_GITHUBPROS from the
// posting date and the first alphanumerics of the description.
func chaseFallbackRef(date time.Time, desc string) string {
	var b strings.Builder
	for _, r := range desc {
		if b.Len() == chaseRefPrefixLen {
			break
		}
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return "chase_" + date.Format("20060102") + "_" + b.String()
}
