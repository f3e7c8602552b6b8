package partcache

import (
	"errors"
	"testing"
)

func TestStructuredError(t *testing.T) {
	err := NewError("Listen", ErrCodeListen, "address in use")

	if err.Op != "Listen" {
		t.Errorf("Expected Op=Listen, got %s", err.Op)
	}
	if err.Code != ErrCodeListen {
		t.Errorf("Expected Code=ErrCodeListen, got %s", err.Code)
	}

	expected := "partcache: address in use (op=Listen)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestConnError(t *testing.T) {
	err := NewConnError("Readable", 42, ErrCodeIO, "peer closed")

	if err.Conn != 42 {
		t.Errorf("Expected Conn=42, got %d", err.Conn)
	}

	expected := "partcache: peer closed (op=Readable)"
	if err.Error() != expected {
		t.Errorf("Expected error message %q, got %q", expected, err.Error())
	}
}

func TestWrapError(t *testing.T) {
	inner := errors.New("boom")
	err := WrapError("Accept", inner)

	if err.Code != ErrCodeIO {
		t.Errorf("Expected Code=ErrCodeIO, got %s", err.Code)
	}
	if !errors.Is(err, err) {
		t.Error("Expected error to satisfy errors.Is against itself")
	}
	if err.Unwrap() != inner {
		t.Error("Expected Unwrap to return the original inner error")
	}
}

func TestWrapErrorPreservesStructuredCode(t *testing.T) {
	original := NewConnError("Readable", 7, ErrCodeProtocol, "bad command")
	wrapped := WrapError("Execute", original)

	if wrapped.Code != ErrCodeProtocol {
		t.Errorf("Expected wrapped Code=ErrCodeProtocol, got %s", wrapped.Code)
	}
	if wrapped.Conn != 7 {
		t.Errorf("Expected wrapped Conn=7, got %d", wrapped.Conn)
	}
}

func TestWrapErrorNil(t *testing.T) {
	if WrapError("Accept", nil) != nil {
		t.Error("WrapError(nil) should return nil")
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("Execute", ErrCodeCapacity, "cache full")

	if !IsCode(err, ErrCodeCapacity) {
		t.Error("IsCode should return true for matching code")
	}
	if IsCode(err, ErrCodeIO) {
		t.Error("IsCode should return false for non-matching code")
	}
	if IsCode(nil, ErrCodeCapacity) {
		t.Error("IsCode should return false for nil error")
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := NewError("Execute", ErrCodeProtocol, "bad token")
	b := NewError("Parse", ErrCodeProtocol, "garbage after key")

	if !errors.Is(a, b) {
		t.Error("errors with the same Code should satisfy errors.Is")
	}
}
