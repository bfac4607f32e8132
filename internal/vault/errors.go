package vault

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Code identifies a vault failure. Codes are stable and are what the
// journal records as a failed completion's output case.
type Code string

const (
	CodeUnauthorized Code = "Unauthorized"

	CodeAmountTooSmall        Code = "AmountTooSmall"
	CodeInvalidFeeRate        Code = "InvalidFeeRate"
	CodeInvalidBurnPercentage Code = "InvalidBurnPercentage"
	CodeInvalidDelay          Code = "InvalidDelay"
	CodeNoChangeProposed      Code = "NoChangeProposed"
	CodeInvalidRecipient      Code = "InvalidRecipient"
	CodeInvalidPayer          Code = "InvalidPayer"
	CodeInvalidAuthority      Code = "InvalidAuthority"

	CodeInsufficientBalance Code = "InsufficientBalance"

	CodeArithmeticOverflow  Code = "ArithmeticOverflow"
	CodeArithmeticUnderflow Code = "ArithmeticUnderflow"

	CodeTimelockNotExpired Code = "TimelockNotExpired"
	CodeNoPendingUpdate    Code = "NoPendingUpdate"

	CodeAlreadyInitialized Code = "AlreadyInitialized"
	CodeNotInitialized     Code = "NotInitialized"

	CodeInvalidAccountData  Code = "InvalidAccountData"
	CodeInvalidVaultAddress Code = "InvalidVaultAddress"
	CodeInvalidSink         Code = "InvalidSink"

	CodeTransferFailed Code = "TransferFailed"
)

// Kind groups codes by what went wrong.
type Kind string

const (
	KindAuthorization Kind = "authorization"
	KindValidation    Kind = "validation"
	KindBalance       Kind = "balance"
	KindArithmetic    Kind = "arithmetic"
	KindTimelock      Kind = "timelock"
	KindLifecycle     Kind = "lifecycle"
	KindIntegrity     Kind = "integrity"
	KindSubstrate     Kind = "substrate"
)

var codeKinds = map[Code]Kind{
	CodeUnauthorized:          KindAuthorization,
	CodeAmountTooSmall:        KindValidation,
	CodeInvalidFeeRate:        KindValidation,
	CodeInvalidBurnPercentage: KindValidation,
	CodeInvalidDelay:          KindValidation,
	CodeNoChangeProposed:      KindValidation,
	CodeInvalidRecipient:      KindValidation,
	CodeInvalidPayer:          KindValidation,
	CodeInvalidAuthority:      KindValidation,
	CodeInsufficientBalance:   KindBalance,
	CodeArithmeticOverflow:    KindArithmetic,
	CodeArithmeticUnderflow:   KindArithmetic,
	CodeTimelockNotExpired:    KindTimelock,
	CodeNoPendingUpdate:       KindValidation,
	CodeAlreadyInitialized:    KindLifecycle,
	CodeNotInitialized:        KindLifecycle,
	CodeInvalidAccountData:    KindIntegrity,
	CodeInvalidVaultAddress:   KindIntegrity,
	CodeInvalidSink:           KindIntegrity,
	CodeTransferFailed:        KindSubstrate,
}

// Error is a vault operation failure.
//
// Two Errors match under errors.Is when their codes are equal, so callers
// compare against the sentinels below:
//
//	if errors.Is(err, vault.ErrUnauthorized) { ... }
type Error struct {
	// Code identifies the failure.
	Code Code

	// Message is a human-readable description.
	Message string

	// Details carries diagnostic values (amounts, timestamps).
	Details map[string]string

	// Err is the underlying substrate error, if any.
	Err error
}

// Sentinels for errors.Is.
var (
	ErrUnauthorized          = &Error{Code: CodeUnauthorized, Message: "caller is not the vault authority"}
	ErrAmountTooSmall        = &Error{Code: CodeAmountTooSmall, Message: "amount is below the minimum"}
	ErrInvalidFeeRate        = &Error{Code: CodeInvalidFeeRate, Message: "fee rate exceeds 10000 basis points"}
	ErrInvalidBurnPercentage = &Error{Code: CodeInvalidBurnPercentage, Message: "burn percentage exceeds 10000 basis points"}
	ErrInvalidDelay          = &Error{Code: CodeInvalidDelay, Message: "delay is outside the allowed range"}
	ErrNoChangeProposed      = &Error{Code: CodeNoChangeProposed, Message: "proposal changes nothing"}
	ErrInvalidRecipient      = &Error{Code: CodeInvalidRecipient, Message: "recipient cannot receive vault funds"}
	ErrInvalidPayer          = &Error{Code: CodeInvalidPayer, Message: "payer cannot fund an accrual"}
	ErrInvalidAuthority      = &Error{Code: CodeInvalidAuthority, Message: "authority must be a non-zero identity"}
	ErrInsufficientBalance   = &Error{Code: CodeInsufficientBalance, Message: "amount exceeds accrued balance"}
	ErrArithmeticOverflow    = &Error{Code: CodeArithmeticOverflow, Message: "arithmetic overflow"}
	ErrArithmeticUnderflow   = &Error{Code: CodeArithmeticUnderflow, Message: "arithmetic underflow"}
	ErrTimelockNotExpired    = &Error{Code: CodeTimelockNotExpired, Message: "timelock has not expired"}
	ErrNoPendingUpdate       = &Error{Code: CodeNoPendingUpdate, Message: "no parameter update is pending"}
	ErrAlreadyInitialized    = &Error{Code: CodeAlreadyInitialized, Message: "vault is already initialized"}
	ErrNotInitialized        = &Error{Code: CodeNotInitialized, Message: "vault is not initialized"}
	ErrInvalidAccountData    = &Error{Code: CodeInvalidAccountData, Message: "vault account data is invalid"}
	ErrInvalidVaultAddress   = &Error{Code: CodeInvalidVaultAddress, Message: "vault address does not match its derivation"}
	ErrInvalidSink           = &Error{Code: CodeInvalidSink, Message: "destruction sink is not the incinerator"}
	ErrTransferFailed        = &Error{Code: CodeTransferFailed, Message: "lamport transfer failed"}
)

// Kind returns the category of the error's code.
func (e *Error) Kind() Kind {
	return codeKinds[e.Code]
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%s", k, e.Details[k])
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying substrate error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// with returns a copy of the sentinel carrying details as key/value pairs.
func (e *Error) with(kv ...any) *Error {
	out := &Error{Code: e.Code, Message: e.Message, Err: e.Err}
	if len(kv) > 0 {
		out.Details = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			out.Details[fmt.Sprint(kv[i])] = fmt.Sprint(kv[i+1])
		}
	}
	return out
}

// wrap returns a copy of the sentinel wrapping err.
func (e *Error) wrap(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, Err: err}
}

// CodeOf returns the vault error code in err's chain, or "" if there is none.
func CodeOf(err error) Code {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

// KindOf returns the kind of the vault error in err's chain.
func KindOf(err error) Kind {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Kind()
	}
	return ""
}

// IsAuthorizationError reports whether err is an authorization failure.
func IsAuthorizationError(err error) bool {
	return KindOf(err) == KindAuthorization
}

// IsTimelockError reports whether err is a timelock failure.
func IsTimelockError(err error) bool {
	return KindOf(err) == KindTimelock
}
