// Package security holds the random sources used for credentials.
package security

import (
	"crypto/rand"
	"errors"
	"io"
)

var (
	ErrInvalidLength   = errors.New("length must be non-negative")
	ErrInvalidAlphabet = errors.New("alphabet must hold between 1 and 256 bytes")
)

// RandomString draws length characters uniformly from alphabet using
// crypto/rand. Bytes that would bias the modulo are discarded.
func RandomString(length int, alphabet string) (string, error) {
	return randomString(rand.Reader, length, alphabet)
}

func randomString(source io.Reader, length int, alphabet string) (string, error) {
	if length < 0 {
		return "", ErrInvalidLength
	}
	if len(alphabet) == 0 || len(alphabet) > 256 {
		return "", ErrInvalidAlphabet
	}
	if length == 0 {
		return "", nil
	}

	size := len(alphabet)
	ceiling := 256 - 256%size
	out := make([]byte, 0, length)
	buffer := make([]byte, length+length/2+1)
	for len(out) < length {
		if _, err := io.ReadFull(source, buffer); err != nil {
			return "", err
		}
		for _, b := range buffer {
			if int(b) >= ceiling {
				continue
			}
			out = append(out, alphabet[int(b)%size])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
