package store

import (
	"errors"
	"testing"

	"github.com/lib/pq"
)

func TestAbs(t *testing.T) {
	t.Parallel()

	if got := abs(-3.5); got != 3.5 {
		t.Errorf("abs(-3.5) = %v, want 3.5", got)
	}
	if got := abs(3.5); got != 3.5 {
		t.Errorf("abs(3.5) = %v, want 3.5", got)
	}
}

func TestRound1(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float64
		want float64
	}{
		{18.24, 18.2},
		{18.26, 18.3},
		{0, 0},
		{100, 100},
	}
	for _, tt := range tests {
		if got := round1(tt.in); got != tt.want {
			t.Errorf("round1(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsConstraintViolation(t *testing.T) {
	t.Parallel()

	constraintErr := &pq.Error{Code: "23505"} // unique_violation
	if !isConstraintViolation(constraintErr) {
		t.Error("expected 23505 to be classified as a constraint violation")
	}

	connErr := &pq.Error{Code: "08006"} // connection_failure
	if isConstraintViolation(connErr) {
		t.Error("did not expect 08006 to be classified as a constraint violation")
	}

	if isConstraintViolation(errors.New("plain error")) {
		t.Error("did not expect a plain error to be classified as a constraint violation")
	}
}
