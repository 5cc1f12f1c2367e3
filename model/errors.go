package model

import "errors"

// Kind is a stable category for programmatic error handling.
//
// These categories are intended to remain stable across versions.
// Callers should branch on Kind/RuleID rather than matching error strings.
//
// NOTE: Error() strings are intentionally kept human-readable and may evolve.
// Use errors.As to extract *Error for structured handling.
type Kind string

const (
	KindValidation  Kind = "Validation"  // malformed or out-of-range input
	KindProfile     Kind = "Profile"     // weight profile rejected at load
	KindParse       Kind = "Parse"       // non-canonical or malformed document
	KindRender      Kind = "Render"      // document cannot be rendered
	KindCrypto      Kind = "Crypto"      // signature or key failure
	KindLedger      Kind = "Ledger"      // chain integrity failure, fatal
	KindAggregation Kind = "Aggregation" // rollup over an incomplete child set
	KindInternal    Kind = "Internal"
)

// Error is the library's structured error type.
//
// RuleID is a stable identifier (e.g., RBQ-VAL-001, RBQ-PROF-003,
// RBQ-LEDGER-102) that names the violated invariant or validation rule.
//
// Message is intended for humans; do not match on it.
type Error struct {
	Kind    Kind
	RuleID  string
	Message string
	Cause   error

	// Index carries a position for chain and rollup errors: the first
	// divergent ledger index, or -1 when not applicable.
	Index int
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func newError(kind Kind, ruleID, msg string) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Index: -1}
}

func wrapError(kind Kind, ruleID, msg string, cause error) error {
	if cause == nil {
		return newError(kind, ruleID, msg)
	}
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Cause: cause, Index: -1}
}

// NewError constructs a structured error.
func NewError(kind Kind, ruleID, msg string) error {
	return newError(kind, ruleID, msg)
}

// WrapError constructs a structured error wrapping a cause.
func WrapError(kind Kind, ruleID, msg string, cause error) error {
	return wrapError(kind, ruleID, msg, cause)
}

// NewIndexedError constructs a structured error carrying a position, such as
// the first broken link of a ledger chain.
func NewIndexedError(kind Kind, ruleID, msg string, index int) error {
	return &Error{Kind: kind, RuleID: ruleID, Message: msg, Index: index}
}

// IsKind reports whether err is (or wraps) a *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// RuleID returns the stable RuleID for a structured error, or "" if unknown.
func RuleID(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.RuleID
}

// ErrorIndex returns the position carried by a structured error, or -1.
func ErrorIndex(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return -1
	}
	return e.Index
}
