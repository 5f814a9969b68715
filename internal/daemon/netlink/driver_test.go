package netlink

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorIsUnwraps(t *testing.T) {
	base := errors.New("boom")
	err := &Error{Kind: KindTransient, Op: "configure", Err: base}

	wrapped := fmt.Errorf("loop: %w", err)

	if !Is(wrapped, KindTransient) {
		t.Error("expected Is to find KindTransient through fmt.Errorf wrapping")
	}
	if Is(wrapped, KindFatal) {
		t.Error("Is matched the wrong Kind")
	}
	if !errors.Is(wrapped, base) {
		t.Error("expected errors.Is to reach the underlying error")
	}
}

func TestIsOnPlainError(t *testing.T) {
	if Is(errors.New("plain"), KindFatal) {
		t.Error("Is should return false for an error with no Kind")
	}
	if Is(nil, KindFatal) {
		t.Error("Is should return false for nil")
	}
}
