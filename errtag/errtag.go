// Package errtag implements the error taxonomy shared by every cross-boundary
// call in the runtime: agent <-> executor, executor <-> dispatcher, dispatcher
// <-> budget enforcer. Every error that crosses one of these boundaries is an
// explicit tagged value (errors.Is-compatible), never a panic.
package errtag

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies an error for recovery-policy purposes. Kind is the stable
// identity agents, the dispatcher, and tests switch on; Tagged.Error()
// carries the human-readable detail.
type Kind string

const (
	KindAuthenticationFailed  Kind = "authentication_failed"
	KindForbidden             Kind = "forbidden"
	KindRateLimitExceeded     Kind = "rate_limit_exceeded"
	KindServiceUnavailable    Kind = "service_unavailable"
	KindBadGateway            Kind = "bad_gateway"
	KindGatewayTimeout        Kind = "gateway_timeout"
	KindRequestTimeout        Kind = "request_timeout"
	KindInvalidParam          Kind = "invalid_param"
	KindMissingRequiredParam  Kind = "missing_required_param"
	KindUnsupportedAuthType   Kind = "unsupported_auth_type"
	KindInvalidResponseFormat Kind = "invalid_response_format"
	KindParseFailed           Kind = "parse_failed"
	KindBudgetExceeded        Kind = "budget_exceeded"
	KindWouldViolateEscrow    Kind = "would_violate_escrow"
	KindInsufficientBudget    Kind = "insufficient_budget"
	KindDecryptionFailed      Kind = "decryption_failed"
	KindNotFound              Kind = "not_found"
	KindRouterExit            Kind = "router_exit"
	KindActionCrashed         Kind = "action_crashed"
	KindInitializationTimeout Kind = "initialization_timeout"
	KindConnectionFailed      Kind = "connection_failed"
)

// Tagged is the concrete error type carried across every boundary in the
// runtime. Kind is what callers branch on; Err (if set) is the wrapped cause.
type Tagged struct {
	Kind    Kind
	Message string
	Context map[string]any
	Err     error
}

func (e *Tagged) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return string(e.Kind)
}

func (e *Tagged) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, New(KindBudgetExceeded, "")) match by Kind alone.
func (e *Tagged) Is(target error) bool {
	t, ok := target.(*Tagged)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// New builds a Tagged error with the given kind and message.
func New(kind Kind, message string) *Tagged {
	return &Tagged{Kind: kind, Message: message}
}

// Wrap builds a Tagged error around a lower-level cause.
func Wrap(kind Kind, message string, err error) *Tagged {
	return &Tagged{Kind: kind, Message: message, Err: err}
}

// WithContext attaches structured context to the error. The budget
// package's would_violate_escrow error does not use it; it is a separate
// budget.EscrowViolationError type carrying those fields itself.
func (e *Tagged) WithContext(ctx map[string]any) *Tagged {
	e.Context = ctx
	return e
}

// RouterExit reports an executor that crashed or was killed mid-flight; the
// owning agent surfaces this in history and continues.
func RouterExit(reason string) *Tagged {
	return New(KindRouterExit, reason)
}

// ActionCrashed reports an executor panic/fatal recovered by its monitor.
func ActionCrashed(message string) *Tagged {
	return New(KindActionCrashed, message)
}

// InitializationTimeout reports an MCP/remote handshake that never completed.
func InitializationTimeout(context string) *Tagged {
	return New(KindInitializationTimeout, context)
}

// ConnectionFailed reports an MCP/remote connection failure.
func ConnectionFailed(message string) *Tagged {
	return New(KindConnectionFailed, message)
}

// IsKind reports whether err (or something it wraps) is Tagged with kind.
func IsKind(err error, kind Kind) bool {
	var t *Tagged
	if errors.As(err, &t) {
		return t.Kind == kind
	}
	return false
}

// IsTransient reports whether kind belongs to the class of errors an
// executor may retry with bounded exponential backoff before surfacing to
// history (the transient-upstream row).
func IsTransient(kind Kind) bool {
	switch kind {
	case KindRateLimitExceeded, KindServiceUnavailable, KindBadGateway,
		KindGatewayTimeout, KindRequestTimeout:
		return true
	}
	return false
}

// IsFatal reports whether kind is never retried and always surfaced as a
// terminal tool-turn failure (credential/ACL rejection, for example).
func IsFatal(kind Kind) bool {
	switch kind {
	case KindAuthenticationFailed, KindForbidden:
		return true
	}
	return false
}

// Retry runs fn up to attempts times, retrying only transient Tagged errors
// with bounded exponential backoff. Non-Tagged errors and fatal/contract
// errors are returned immediately without retry.
func Retry(attempts int, base time.Duration, fn func() error) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var t *Tagged
		if !errors.As(err, &t) || !IsTransient(t.Kind) {
			return err
		}
		if i < attempts-1 {
			time.Sleep(base * (1 << uint(i)))
		}
	}
	return lastErr
}
