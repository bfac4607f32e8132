package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for a future algorithm change.
const (
	DomainInvocation = "solforge/invocation/v1"
	DomainCompletion = "solforge/completion/v1"
	DomainEvent      = "solforge/event/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data) as hex.
// The null separator keeps domain and data from running together.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// InvocationID computes the content-addressed ID of a journaled request.
// Same request, caller, args, seq and timestamp always give the same ID,
// which is what replay relies on.
func InvocationID(requestID, operation string, caller Identity, args IRObject, seq, timestamp int64) (string, error) {
	obj := IRObject{
		"request_id": IRString(requestID),
		"operation":  IRString(operation),
		"caller":     IdentityValue(caller),
		"args":       args,
		"seq":        IRInt(seq),
		"timestamp":  IRInt(timestamp),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("InvocationID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainInvocation, canonical), nil
}

// CompletionID computes the content-addressed ID of an outcome.
func CompletionID(invocationID, outputCase string, result IRObject, seq int64) (string, error) {
	obj := IRObject{
		"invocation_id": IRString(invocationID),
		"output_case":   IRString(outputCase),
		"result":        result,
		"seq":           IRInt(seq),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("CompletionID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainCompletion, canonical), nil
}

// EventID computes the content-addressed ID of an emitted event. index
// disambiguates several events raised by one invocation.
func EventID(invocationID, name string, payload IRObject, index int) (string, error) {
	obj := IRObject{
		"invocation_id": IRString(invocationID),
		"name":          IRString(name),
		"payload":       payload,
		"index":         IRInt(index),
	}
	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("EventID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainEvent, canonical), nil
}

// MustInvocationID is like InvocationID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustInvocationID(requestID, operation string, caller Identity, args IRObject, seq, timestamp int64) string {
	id, err := InvocationID(requestID, operation, caller, args, seq, timestamp)
	if err != nil {
		panic(err)
	}
	return id
}
