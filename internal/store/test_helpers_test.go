package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/solforge/internal/ir"
)

// createTestStore opens a fresh database under t.TempDir().
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testIdentity(b byte) ir.Identity {
	var id ir.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

// createTestInvocation creates an invocation with minimal required fields.
func createTestInvocation(id, operation string, seq int64) ir.Invocation {
	return ir.Invocation{
		ID:            id,
		RequestID:     "req-" + id,
		Operation:     operation,
		Caller:        testIdentity(1),
		Args:          ir.IRObject{},
		Seq:           seq,
		Timestamp:     1_700_000_000 + seq,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
	}
}

// createTestCompletion creates a completion with minimal required fields.
func createTestCompletion(id, invocationID, outputCase string, seq int64) ir.Completion {
	return ir.Completion{
		ID:           id,
		InvocationID: invocationID,
		OutputCase:   outputCase,
		Result:       ir.IRObject{},
		Seq:          seq,
	}
}
