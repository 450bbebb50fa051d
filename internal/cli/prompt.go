package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// promptPassword asks for a secret, hiding the input when stdin is a
// terminal and reading a plain line otherwise.
func promptPassword(out io.Writer, in *os.File, label string) (string, error) {
	fmt.Fprint(out, label)
	secret, err := readPasswordNoEcho(in)
	fmt.Fprintln(out)
	if err != nil {
		secret, err = readLine(in)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
	}
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("password is required")
	}
	return secret, nil
}

func readLine(in io.Reader) (string, error) {
	if in == nil {
		return "", errors.New("stdin unavailable")
	}
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
