package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cleared-dev/bankrec/internal/model"
)

// FieldValue extracts the attribute a rule inspects. Unknown or empty
// fields fall back to the description.
func FieldValue(txn model.BankTransaction, field model.RuleField) string {
	switch field {
	case model.FieldPayee:
		return txn.Payee
	case model.FieldReference:
		return txn.Reference
	case model.FieldAmount:
		return txn.Amount.StringFixed(2)
	default:
		return txn.Description
	}
}

// Matches evaluates one condition case-insensitively.
func Matches(op model.RuleOperator, pattern, candidate string) (bool, error) {
	if op == model.OpRegex {
		re, err := compilePattern(pattern)
		if err != nil {
			return false, err
		}
		return re.MatchString(candidate), nil
	}
	return matchText(op, pattern, candidate)
}

func matchText(op model.RuleOperator, pattern, candidate string) (bool, error) {
	p := strings.ToLower(pattern)
	c := strings.ToLower(candidate)
	switch op {
	case model.OpEquals:
		return c == p, nil
	case model.OpContains:
		return strings.Contains(c, p), nil
	case model.OpStartsWith:
		return strings.HasPrefix(c, p), nil
	case model.OpEndsWith:
		return strings.HasSuffix(c, p), nil
	default:
		return false, fmt.Errorf("unknown operator %q", op)
	}
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return nil, fmt.Errorf("compiling rule pattern %q: %w", pattern, err)
	}
	return re, nil
}

// Set is an ordered rule list with its regex patterns compiled once.
type Set struct {
	rules    []model.BankRule
	patterns map[string]*regexp.Regexp
	invalid  map[string]error
}

// Compile prepares ordered for repeated evaluation. A rule whose pattern
// does not compile reports its error each time it is reached.
func Compile(ordered []model.BankRule) *Set {
	s := &Set{
		rules:    ordered,
		patterns: make(map[string]*regexp.Regexp),
		invalid:  make(map[string]error),
	}
	for _, r := range ordered {
		if r.Operator != model.OpRegex {
			continue
		}
		re, err := compilePattern(r.Value)
		if err != nil {
			s.invalid[r.ID] = err
			continue
		}
		s.patterns[r.ID] = re
	}
	return s
}

func (s *Set) matches(r model.BankRule, candidate string) (bool, error) {
	if r.Operator != model.OpRegex {
		return matchText(r.Operator, r.Value, candidate)
	}
	if err, bad := s.invalid[r.ID]; bad {
		return false, err
	}
	return s.patterns[r.ID].MatchString(candidate), nil
}

// FirstMatch returns the first rule in order that matches txn.
func (s *Set) FirstMatch(txn model.BankTransaction) (model.BankRule, bool, error) {
	for _, r := range s.rules {
		ok, err := s.matches(r, FieldValue(txn, r.Field))
		if err != nil {
			return model.BankRule{}, false, fmt.Errorf("rule %s: %w", r.ID, err)
		}
		if ok {
			return r, true, nil
		}
	}
	return model.BankRule{}, false, nil
}

// FirstMatch compiles ordered and returns its first rule matching txn.
func FirstMatch(ordered []model.BankRule, txn model.BankTransaction) (model.BankRule, bool, error) {
	return Compile(ordered).FirstMatch(txn)
}
