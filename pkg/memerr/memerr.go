// Package memerr defines the error taxonomy shared by every memoria
// subsystem. Fallible operations return a plain error that can be
// inspected with Kind/Is rather than a bespoke type per package.
package memerr

import (
	"errors"
	"fmt"
)

// Kind distinguishes the eight error categories callers need to branch on.
type Kind int

const (
	// KindStorage covers connection failures and constraint violations
	// raised by internal/store; internal/store reports a missing row as
	// KindNotFound, not KindStorage.
	KindStorage Kind = iota
	// KindEncryption covers malformed keys, short ciphertext, and UTF-8
	// decode failures from pkg/cryptobox.
	KindEncryption
	// KindProvider covers unreachable backends, non-success status codes,
	// non-JSON bodies, and interrupted streams from pkg/provider.
	KindProvider
	// KindValidation covers out-of-range confidence, quantity/unit
	// mismatches, and unknown content types.
	KindValidation
	// KindPermission covers a plugin requesting an operation above its
	// granted capability.
	KindPermission
	// KindPlugin covers unknown plugin ids, handler timeouts, and plugins
	// that crashed beyond their restart cap.
	KindPlugin
	// KindNotFound is the user-visible "nothing matches" condition.
	KindNotFound
	// KindConfig covers malformed configuration.
	KindConfig
)

func (k Kind) String() string {
	switch k {
	case KindStorage:
		return "storage"
	case KindEncryption:
		return "encryption"
	case KindProvider:
		return "provider"
	case KindValidation:
		return "validation"
	case KindPermission:
		return "permission"
	case KindPlugin:
		return "plugin"
	case KindNotFound:
		return "not_found"
	case KindConfig:
		return "config"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can branch with
// errors.As without string-matching messages.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds a Error from an existing cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Is reports whether err is a *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
