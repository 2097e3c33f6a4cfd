// Package apperr defines the typed errors surfaced by the reconciliation engine.
// Every error carries a machine-readable Kind and a human-readable message.
package apperr

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind is the machine-readable error class.
type Kind string

const (
	KindNotFound      Kind = "NOT_FOUND"
	KindAuthorization Kind = "AUTHORIZATION"
	KindValidation    Kind = "VALIDATION"
	KindStateConflict Kind = "STATE_CONFLICT"
	KindBalance       Kind = "BALANCE"
	KindInternal      Kind = "INTERNAL"
)

// NotFoundError reports a missing feed, transaction, rule, document or account.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// Kind returns KindNotFound.
func (e *NotFoundError) Kind() Kind { return KindNotFound }

// AuthorizationError reports an attempt to touch another organization's data.
type AuthorizationError struct {
	Entity string
	ID     string
	OrgID  string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s %q does not belong to organization %q", e.Entity, e.ID, e.OrgID)
}

// Kind returns KindAuthorization.
func (e *AuthorizationError) Kind() Kind { return KindAuthorization }

// ValidationError reports a malformed request.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Kind returns KindValidation.
func (e *ValidationError) Kind() Kind { return KindValidation }

// StateConflictError reports a mutation of a locked, reconciled or finalized item.
type StateConflictError struct {
	Message string
}

func (e *StateConflictError) Error() string { return e.Message }

// Kind returns KindStateConflict.
func (e *StateConflictError) Kind() Kind { return KindStateConflict }

// BalanceError reports an attempt to finalize a reconciliation whose gap is not zero.
type BalanceError struct {
	Difference decimal.Decimal
}

func (e *BalanceError) Error() string {
	return fmt.Sprintf("reconciliation is out of balance by %s", e.Difference.StringFixed(2))
}

// Kind returns KindBalance.
func (e *BalanceError) Kind() Kind { return KindBalance }

// NotFound returns a NotFoundError.
func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// Unauthorized returns an AuthorizationError.
func Unauthorized(entity, id, orgID string) error {
	return &AuthorizationError{Entity: entity, ID: id, OrgID: orgID}
}

// Invalid returns a ValidationError for field.
func Invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Conflict returns a StateConflictError.
func Conflict(format string, args ...any) error {
	return &StateConflictError{Message: fmt.Sprintf(format, args...)}
}

// Unbalanced returns a BalanceError carrying the exact difference.
func Unbalanced(diff decimal.Decimal) error {
	return &BalanceError{Difference: diff}
}

type kinded interface {
	Kind() Kind
}

// KindOf returns the Kind of the first typed error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k kinded
	if errors.As(err, &k) {
		return k.Kind()
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// CheckOwner returns an AuthorizationError when owner differs from orgID.
func CheckOwner(entity, id, owner, orgID string) error {
	if owner != orgID {
		return Unauthorized(entity, id, orgID)
	}
	return nil
}
