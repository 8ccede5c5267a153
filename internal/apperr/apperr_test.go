package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestHTTPStatusCarriesStatus(t *testing.T) {
	err := HTTPStatus(503)
	var coded *CodedError
	if !errors.As(err, &coded) {
		t.Fatalf("HTTPStatus() = %T; want *CodedError", err)
	}
	if coded.Code != CodeNetwork {
		t.Fatalf("code = %q; want %q", coded.Code, CodeNetwork)
	}
	if coded.Status != 503 {
		t.Fatalf("status = %d; want 503", coded.Status)
	}
	if coded.Message != "HTTP error! status: 503" {
		t.Fatalf("message = %q", coded.Message)
	}
}

func TestCodeOfWrapped(t *testing.T) {
	base := New(CodeStale, "superseded", nil)
	wrapped := fmt.Errorf("zero curve: %w", base)
	if got := CodeOf(wrapped); got != CodeStale {
		t.Fatalf("CodeOf() = %q; want %q", got, CodeStale)
	}
	if !Is(wrapped, CodeStale) {
		t.Fatal("Is(wrapped, STALE) = false; want true")
	}
	if Is(nil, CodeStale) {
		t.Fatal("Is(nil, STALE) = true; want false")
	}
	if got := CodeOf(errors.New("plain")); got != "" {
		t.Fatalf("CodeOf(plain) = %q; want empty", got)
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	err := New(CodeNetwork, "request failed", errors.New("connection refused"))
	want := "NETWORK: request failed: connection refused"
	if err.Error() != want {
		t.Fatalf("Error() = %q; want %q", err.Error(), want)
	}
	if !errors.Is(err, errors.Unwrap(err)) {
		t.Fatal("Unwrap() did not expose cause")
	}
}

func TestMessage(t *testing.T) {
	if got := Message(fmt.Errorf("post: %w", HTTPStatus(500))); got != "HTTP error! status: 500" {
		t.Fatalf("Message(coded) = %q", got)
	}
	if got := Message(errors.New("Create URL not found")); got != "Create URL not found" {
		t.Fatalf("Message(plain) = %q", got)
	}
	if got := Message(nil); got != "" {
		t.Fatalf("Message(nil) = %q", got)
	}
}
