package translator

import (
	"errors"
	"fmt"
)

// Kind classifies a provider failure at the client boundary, so callers
// switch on type instead of sniffing error messages.
type Kind int

const (
	// KindProvider covers everything the provider reports that is neither
	// an auth nor a throttling problem. Retried with limited backoff.
	KindProvider Kind = iota
	// KindAuth means credentials are globally invalid. Never retried.
	KindAuth
	// KindRateLimited means the provider is throttling. Retried with long
	// backoff.
	KindRateLimited
	// KindNetwork covers transport failures and timeouts. Retried.
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindRateLimited:
		return "rate_limited"
	case KindNetwork:
		return "network"
	default:
		return "provider"
	}
}

// Error is the typed failure returned by a Translator.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("translate (%s): %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("translate (%s): %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Retryable reports whether a failure of this kind may succeed on retry.
func (e *Error) Retryable() bool {
	return e.Kind != KindAuth
}

func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func WrapError(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the failure kind from an error chain. Untyped errors count
// as generic provider failures.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindProvider
}

func IsAuth(err error) bool {
	return KindOf(err) == KindAuth
}
