package security

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestRandomStringValidation(t *testing.T) {
	t.Parallel()

	if _, err := RandomString(-1, "abc"); !errors.Is(err, ErrInvalidLength) {
		t.Fatalf("expected ErrInvalidLength, got %v", err)
	}
	if _, err := RandomString(4, ""); !errors.Is(err, ErrInvalidAlphabet) {
		t.Fatalf("expected ErrInvalidAlphabet, got %v", err)
	}
	if got, err := RandomString(0, "abc"); err != nil || got != "" {
		t.Fatalf("RandomString(0) = %q, %v", got, err)
	}
}

func TestRandomStringStaysInAlphabet(t *testing.T) {
	t.Parallel()

	alphabet := "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	got, err := RandomString(64, alphabet)
	if err != nil {
		t.Fatalf("RandomString() unexpected error: %v", err)
	}
	if len(got) != 64 {
		t.Fatalf("len = %d, want 64", len(got))
	}
	for _, char := range got {
		if !strings.ContainsRune(alphabet, char) {
			t.Fatalf("character %q outside alphabet", char)
		}
	}

	if single, _ := RandomString(5, "X"); single != "XXXXX" {
		t.Fatalf("single-character alphabet gave %q", single)
	}
}

func TestRandomStringDiscardsBiasedBytes(t *testing.T) {
	t.Parallel()

	// With three characters the ceiling is 255, so 0xFF is skipped.
	source := bytes.NewReader([]byte{0xFF, 0x00, 0x04, 0xFF, 0x02, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF})
	got, err := randomString(source, 3, "abc")
	if err != nil {
		t.Fatalf("randomString() unexpected error: %v", err)
	}
	if got != "abc" {
		t.Fatalf("randomString() = %q, want %q", got, "abc")
	}
}
