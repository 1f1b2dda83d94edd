package dumperr

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestClass(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"catalog", fmt.Errorf("%w: geography", ErrCatalogDrift), "catalog_drift"},
		{"payload", fmt.Errorf("table t: %w", fmt.Errorf("%w: type 9", ErrMalformedPayload)), "malformed_payload"},
		{"connection", Connection("query", io.ErrUnexpectedEOF), "connection"},
		{"sink", Sink("write", io.ErrClosedPipe), "sink"},
		{"config", ErrMissingConnectionHost, "config"},
		{"other", errors.New("boom"), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Class(tt.err); got != tt.want {
				t.Errorf("Class() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Connection("ping", io.EOF)) {
		t.Error("connection error must be retryable")
	}
	if Retryable(fmt.Errorf("%w: x", ErrCatalogDrift)) {
		t.Error("catalog drift must not be retryable")
	}
	if !Fatal(fmt.Errorf("%w: x", ErrCatalogDrift)) {
		t.Error("catalog drift must be fatal")
	}
	if Fatal(Sink("write", io.ErrShortWrite)) {
		t.Error("sink error is not a logic error")
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := Connection("ping", io.ErrUnexpectedEOF)
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("cause lost: %v", err)
	}
	if Connection("noop", nil) != nil || Sink("noop", nil) != nil {
		t.Error("nil error must stay nil")
	}
}
