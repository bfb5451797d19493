package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestErrorIncludesInternal(t *testing.T) {
	internal := stdErrors.New("boom")
	err := NewTransport("store unavailable", internal)

	if err.Error() != "store unavailable: boom" {
		t.Fatalf("unexpected error string: %s", err.Error())
	}
	if !stdErrors.Is(err, internal) {
		t.Fatal("expected internal error to be unwrapped")
	}
}

func TestWithInternalCopies(t *testing.T) {
	base := New("TEST", "test", 400)
	with := base.WithInternal(stdErrors.New("oops"))

	if with == base {
		t.Fatal("expected WithInternal to return a copy")
	}

	if base.Internal != nil {
		t.Fatal("expected original error to remain unchanged")
	}

	if with.Internal == nil {
		t.Fatal("expected internal error to be set")
	}
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewNotFound("recipient not found"))
	if !stdErrors.Is(err, ErrNotFound) {
		t.Fatal("expected wrapped not found error to match sentinel")
	}
	if stdErrors.Is(err, ErrValidation) {
		t.Fatal("expected codes to differ")
	}
}

func TestFromError(t *testing.T) {
	appErr := ErrNotFound
	if out := FromError(appErr); out != appErr {
		t.Fatal("expected FromError to return the same AppError instance")
	}

	raw := stdErrors.New("raw")
	out := FromError(raw)
	if out.Code != ErrInternalServer.Code {
		t.Fatalf("expected internal server code, got %s", out.Code)
	}
	if out.Internal == nil {
		t.Fatal("expected internal error to be attached")
	}
}

func TestConstructorsCarryStatus(t *testing.T) {
	cases := []struct {
		err    *AppError
		code   string
		status int
	}{
		{NewValidation("title is required"), CodeValidation, http.StatusBadRequest},
		{NewNotFound("missing"), CodeNotFound, http.StatusNotFound},
		{NewTransport("down", nil), CodeTransport, http.StatusServiceUnavailable},
		{NewCapability("unsupported"), CodeCapability, http.StatusNotImplemented},
	}
	for _, tc := range cases {
		if tc.err.Code != tc.code {
			t.Fatalf("expected %s, got %s", tc.code, tc.err.Code)
		}
		if tc.err.StatusCode != tc.status {
			t.Fatalf("expected status %d, got %d", tc.status, tc.err.StatusCode)
		}
		if !IsCode(tc.err, tc.code) {
			t.Fatalf("expected IsCode to match %s", tc.code)
		}
	}
	if CodeOf(stdErrors.New("x")) != CodeInternal {
		t.Fatal("expected foreign errors to map to internal")
	}
}
