// Package ledgererr defines the failure kinds surfaced by the ledger engine.
package ledgererr

import (
	"fmt"
	"strings"

	"github.com/ddr4869/agrichain/common/types"
	"github.com/pkg/errors"
)

// Kind classifies an error for callers
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindUnauthorized
	KindInvalidState
	KindValidation
	KindIntegrity
)

// Reason returns the stable reason code for the kind
func (k Kind) Reason() string {
	switch k {
	case KindNotFound:
		return "NOT_FOUND"
	case KindUnauthorized:
		return "UNAUTHORIZED"
	case KindInvalidState:
		return "INVALID_STATE"
	case KindValidation:
		return "VALIDATION_ERROR"
	case KindIntegrity:
		return "INTEGRITY_ERROR"
	default:
		return "INTERNAL"
	}
}

func (k Kind) String() string {
	return k.Reason()
}

// KindFromReason is the inverse of Kind.Reason
func KindFromReason(reason string) Kind {
	for _, k := range []Kind{KindNotFound, KindUnauthorized, KindInvalidState, KindValidation, KindIntegrity} {
		if k.Reason() == reason {
			return k
		}
	}
	return KindInternal
}

// Error is a classified error. The cause keeps the pkg/errors stack trace.
type Error struct {
	kind  Kind
	cause error
}

func (e *Error) Error() string {
	return e.cause.Error()
}

func (e *Error) Kind() Kind {
	return e.kind
}

func (e *Error) Cause() error {
	return e.cause
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Format delegates to the cause so %+v prints the stack
func (e *Error) Format(s fmt.State, verb rune) {
	if f, ok := e.cause.(fmt.Formatter); ok {
		f.Format(s, verb)
		return
	}
	fmt.Fprint(s, e.cause.Error())
}

func newKind(kind Kind, format string, args ...any) error {
	return &Error{kind: kind, cause: errors.Errorf(format, args...)}
}

// NotFound is returned when a product, transfer or user does not exist
func NotFound(format string, args ...any) error {
	return newKind(KindNotFound, format, args...)
}

// Unauthorized is returned when the acting identity is not the required party
func Unauthorized(format string, args ...any) error {
	return newKind(KindUnauthorized, format, args...)
}

// InvalidState is returned when a transfer is not in the state an operation needs
func InvalidState(format string, args ...any) error {
	return newKind(KindInvalidState, format, args...)
}

// Validation is returned for missing or malformed input
func Validation(format string, args ...any) error {
	return newKind(KindValidation, format, args...)
}

// IntegrityError reports a chain that failed verification
type IntegrityError struct {
	ProductID string
	Defects   []types.BlockDefect
}

func (e *IntegrityError) Error() string {
	parts := make([]string, 0, len(e.Defects))
	for _, d := range e.Defects {
		parts = append(parts, fmt.Sprintf("block %d: %s", d.BlockNumber, d.Reason))
	}
	return fmt.Sprintf("ownership chain of product %s failed verification: %s", e.ProductID, strings.Join(parts, "; "))
}

func (e *IntegrityError) Kind() Kind {
	return KindIntegrity
}

// Integrity builds an IntegrityError for the given defects
func Integrity(productID string, defects []types.BlockDefect) error {
	return &IntegrityError{ProductID: productID, Defects: defects}
}

type kinded interface {
	Kind() Kind
}

// KindOf returns the kind of the first classified error in the chain
func KindOf(err error) Kind {
	for err != nil {
		if k, ok := err.(kinded); ok {
			return k.Kind()
		}
		switch e := err.(type) {
		case interface{ Unwrap() error }:
			err = e.Unwrap()
		case interface{ Cause() error }:
			err = e.Cause()
		default:
			return KindInternal
		}
	}
	return KindInternal
}

// Is reports whether err has the given kind
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Defects extracts the block defects of an integrity failure
func Defects(err error) []types.BlockDefect {
	var ie *IntegrityError
	if errors.As(err, &ie) {
		return ie.Defects
	}
	return nil
}
