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

// GenericParser parses header-driven CSV exports. Columns are matched by
// header name, case-insensitively; date, amount and description are required.
type GenericParser struct{}

var genericDateFormats = []string{"2006-01-02", "01/02/2006"}

// Header aliases per statement field.
var genericColumns = map[string][]string{
	"date":        {"date", "posting date", "transaction date"},
	"amount":      {"amount"},
	"description": {"description", "memo", "details"},
	"payee":       {"payee", "name", "counterparty"},
	"reference":   {"reference", "ref", "check number"},
	"id":          {"id", "transaction id", "fitid"},
}

// Format returns the parser name.
func (p *GenericParser) Format() string { return "generic" }

// Parse reads a CSV with a header row and returns statement lines.
func (p *GenericParser) Parse(r io.Reader) ([]model.StatementLine, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	cols := mapColumns(header)
	for _, required := range []string{"date", "amount", "description"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing %s column", required)
		}
	}
	cr.FieldsPerRecord = len(header)

	var lines []model.StatementLine
	for row := 2; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		line, err := parseGenericRow(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

func mapColumns(header []string) map[string]int {
	cols := make(map[string]int)
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		for field, aliases := range genericColumns {
			if _, seen := cols[field]; seen {
				continue
			}
			for _, a := range aliases {
				if h == a {
					cols[field] = i
				}
			}
		}
	}
	return cols
}

func parseGenericRow(rec []string, cols map[string]int) (model.StatementLine, error) {
	get := func(field string) string {
		i, ok := cols[field]
		if !ok {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	date, err := parseGenericDate(get("date"))
	if err != nil {
		return model.StatementLine{}, err
	}

	raw := strings.ReplaceAll(get("amount"), ",", "")
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return model.StatementLine{}, fmt.Errorf("parsing amount %q: %w", get("amount"), err)
	}

	return model.StatementLine{
		Date:        date,
		Amount:      amount,
		Description: get("description"),
		Payee:       get("payee"),
		Reference:   get("reference"),
		ExternalID:  get("id"),
	}, nil
}

func parseGenericDate(s string) (time.Time, error) {
	for _, layout := range genericDateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parsing date %q: expected one of %s", s, strings.Join(genericDateFormats, ", "))
}
