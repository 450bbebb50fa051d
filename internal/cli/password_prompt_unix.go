//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package cli

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// readPasswordNoEcho reads one line from a terminal with echo switched off.
func readPasswordNoEcho(terminal *os.File) (string, error) {
	if terminal == nil {
		return "", errors.New("no terminal")
	}

	fd := int(terminal.Fd())
	saved, err := unix.IoctlGetTermios(fd, termiosReadRequest)
	if err != nil {
		return "", err
	}
	silent := *saved
	silent.Lflag &^= unix.ECHO
	if err := unix.IoctlSetTermios(fd, termiosWriteRequest, &silent); err != nil {
		return "", err
	}
	defer func() {
		_ = unix.IoctlSetTermios(fd, termiosWriteRequest, saved)
	}()

	return readLine(terminal)
}
