package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
)

func TestToDomainError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   string
		wantStatus int
	}{
		{name: "validation", err: NewValidationError("bad input", nil), wantCode: "VALIDATION_FAILED", wantStatus: http.StatusBadRequest},
		{name: "not found", err: NewNotFound("ticket", nil), wantCode: "NOT_FOUND", wantStatus: http.StatusNotFound},
		{name: "unauthenticated", err: NewUnauthenticated("no token"), wantCode: "UNAUTHENTICATED", wantStatus: http.StatusUnauthorized},
		{name: "forbidden", err: NewForbidden("nope"), wantCode: "FORBIDDEN", wantStatus: http.StatusForbidden},
		{name: "no rows maps to not found", err: pgx.ErrNoRows, wantCode: "NOT_FOUND", wantStatus: http.StatusNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("query: %w", pgx.ErrNoRows), wantCode: "NOT_FOUND", wantStatus: http.StatusNotFound},
		{name: "unknown error", err: errors.New("disk on fire"), wantCode: "INTERNAL_ERROR", wantStatus: http.StatusInternalServerError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ToDomainError(tc.err)
			if got.Code != tc.wantCode {
				t.Fatalf("code %s, want %s", got.Code, tc.wantCode)
			}
			if got.HTTPStatus != tc.wantStatus {
				t.Fatalf("status %d, want %d", got.HTTPStatus, tc.wantStatus)
			}
		})
	}
}

func TestToDomainError_Nil(t *testing.T) {
	if got := ToDomainError(nil); got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestToDomainError_KeepsCause(t *testing.T) {
	cause := errors.New("disk on fire")
	got := ToDomainError(cause)
	if !errors.Is(got, cause) {
		t.Fatal("internal error must keep its cause wrapped")
	}
}

func TestIsCode(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewForbidden("nope"))
	if !IsCode(err, "FORBIDDEN") {
		t.Fatal("expected FORBIDDEN through wrapping")
	}
	if IsCode(err, "NOT_FOUND") {
		t.Fatal("wrong code must not match")
	}
	if IsCode(nil, "FORBIDDEN") {
		t.Fatal("nil error must not match")
	}
}
