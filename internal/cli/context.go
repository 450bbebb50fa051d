// Package cli holds the type2lyfe commands. Each command is a kong struct
// whose Run method receives the shared Context.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/pharrrodev/type2lyfe-sub001/internal/client"
	"github.com/pharrrodev/type2lyfe-sub001/internal/logging"
)

var ErrNotLoggedIn = errors.New("not logged in: run `type2lyfe login` or set TYPE2LYFE_TOKEN")

type Context struct {
	Logger      *log.Logger
	Out         io.Writer
	In          *os.File
	Server      string
	AnalysisURL string
	Token       string
	TokenFile   string
}

func (ctx *Context) logger() *log.Logger {
	return logging.OrDiscard(ctx.Logger)
}

func (ctx *Context) out() io.Writer {
	if ctx.Out == nil {
		return os.Stdout
	}
	return ctx.Out
}

// NewClient builds an API client without credentials.
func (ctx *Context) NewClient() *client.Client {
	api := client.New(ctx.Server, "")
	api.SetAnalysisBaseURL(ctx.AnalysisURL)
	return api
}

// AuthorizedClient builds an API client carrying the explicit token or the
// one saved by login.
func (ctx *Context) AuthorizedClient() (*client.Client, error) {
	token := strings.TrimSpace(ctx.Token)
	if token == "" {
		saved, err := ctx.loadToken()
		if err != nil {
			return nil, err
		}
		token = saved
	}
	if token == "" {
		return nil, ErrNotLoggedIn
	}

	api := ctx.NewClient()
	api.SetToken(token)
	return api, nil
}

func (ctx *Context) loadToken() (string, error) {
	if ctx.TokenFile == "" {
		return "", nil
	}
	content, err := os.ReadFile(ctx.TokenFile)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(content)), nil
}

func (ctx *Context) saveToken(token string) error {
	if ctx.TokenFile == "" {
		return errors.New("token file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(ctx.TokenFile), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	if err := os.WriteFile(ctx.TokenFile, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}
