package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestNormalizeIDError(t *testing.T) {
	malformed := &pgconn.PgError{Code: pgInvalidTextRepresentation, Message: "invalid input syntax for type uuid"}
	unique := &pgconn.PgError{Code: "23505", Message: "duplicate key value"}
	plain := errors.New("connection reset")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "malformed uuid folds to no rows", err: malformed, want: pgx.ErrNoRows},
		{name: "wrapped malformed uuid", err: fmt.Errorf("scan: %w", malformed), want: pgx.ErrNoRows},
		{name: "no rows passes through", err: pgx.ErrNoRows, want: pgx.ErrNoRows},
		{name: "other pg error untouched", err: unique, want: unique},
		{name: "plain error untouched", err: plain, want: plain},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := normalizeIDError(tc.err); !errors.Is(got, tc.want) {
				t.Fatalf("normalizeIDError(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}
