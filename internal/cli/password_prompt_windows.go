//go:build windows

package cli

import (
	"errors"
	"os"

	"golang.org/x/sys/windows"
)

func readPasswordNoEcho(terminal *os.File) (string, error) {
	if terminal == nil {
		return "", errors.New("no terminal")
	}

	handle := windows.Handle(terminal.Fd())
	var saved uint32
	if err := windows.GetConsoleMode(handle, &saved); err != nil {
		return "", err
	}
	if err := windows.SetConsoleMode(handle, saved&^windows.ENABLE_ECHO_INPUT); err != nil {
		return "", err
	}
	defer func() {
		_ = windows.SetConsoleMode(handle, saved)
	}()

	return readLine(terminal)
}
