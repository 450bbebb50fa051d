package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/pharrrodev/type2lyfe-sub001/internal/client"
	"github.com/pharrrodev/type2lyfe-sub001/internal/db"
	"github.com/pharrrodev/type2lyfe-sub001/internal/services"
)

func passwordOrPrompt(ctx *Context, password string) (string, error) {
	if password != "" {
		return password, nil
	}
	return promptPassword(ctx.out(), ctx.In, "Password: ")
}

type RegisterCmd struct {
	Email    string `arg:"" help:"Account email."`
	Password string `env:"TYPE2LYFE_PASSWORD" help:"Password; prompted for when empty."`
}

func (cmd *RegisterCmd) Run(ctx *Context) error {
	password, err := passwordOrPrompt(ctx, cmd.Password)
	if err != nil {
		return err
	}
	api := ctx.NewClient()
	token, err := api.Register(context.Background(), cmd.Email, password)
	if err != nil {
		return describeAuthError("register", err)
	}
	if err := ctx.saveToken(token); err != nil {
		return err
	}
	fmt.Fprintf(ctx.out(), "Registered %s\n", strings.TrimSpace(cmd.Email))
	return nil
}

type LoginCmd struct {
	Email    string `arg:"" help:"Account email."`
	Password string `env:"TYPE2LYFE_PASSWORD" help:"Password; prompted for when empty."`
}

func (cmd *LoginCmd) Run(ctx *Context) error {
	password, err := passwordOrPrompt(ctx, cmd.Password)
	if err != nil {
		return err
	}
	api := ctx.NewClient()
	token, err := api.Login(context.Background(), cmd.Email, password)
	if err != nil {
		return describeAuthError("login", err)
	}
	if err := ctx.saveToken(token); err != nil {
		return err
	}
	fmt.Fprintf(ctx.out(), "Logged in as %s\n", strings.TrimSpace(cmd.Email))
	return nil
}

func describeAuthError(action string, err error) error {
	var status *client.StatusError
	if errors.As(err, &status) {
		if status.StatusCode == http.StatusForbidden {
			return fmt.Errorf("%s failed: %s; run `type2lyfe change-password`", action, status.Error())
		}
		return fmt.Errorf("%s failed: %s", action, status.Error())
	}
	return fmt.Errorf("%s failed: %w", action, err)
}

// ResetPasswordCmd runs against the database directly, on the server host.
type ResetPasswordCmd struct {
	Email  string `arg:"" help:"Account email."`
	DBPath string `name:"db-path" env:"DB_PATH" default:"data/type2lyfe.db" help:"SQLite database file."`
}

func (cmd *ResetPasswordCmd) Run(ctx *Context) error {
	database, err := db.OpenSQLite(cmd.DBPath, ctx.logger())
	if err != nil {
		return fmt.Errorf("database init failed: %w", err)
	}
	repositories := db.NewRepositories(database)
	temporary, err := services.NewAuthService(repositories.Users).ResetPassword(cmd.Email)
	if errors.Is(err, services.ErrUserNotFound) {
		return fmt.Errorf("user %q not found", strings.TrimSpace(cmd.Email))
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(ctx.out(), "Temporary password for %s: %s\n", services.NormalizeAuthEmail(cmd.Email), temporary)
	fmt.Fprintln(ctx.out(), "It must be changed at the next login.")
	return nil
}

type ChangePasswordCmd struct {
	Email string `arg:"" help:"Account email."`
}

func (cmd *ChangePasswordCmd) Run(ctx *Context) error {
	current, err := promptPassword(ctx.out(), ctx.In, "Current password: ")
	if err != nil {
		return err
	}
	next, err := promptPassword(ctx.out(), ctx.In, "New password: ")
	if err != nil {
		return err
	}
	if err := services.ValidatePasswordStrength(next); err != nil {
		return err
	}

	token, err := ctx.NewClient().ChangePassword(context.Background(), cmd.Email, current, next)
	if err != nil {
		return describeAuthError("password change", err)
	}
	if err := ctx.saveToken(token); err != nil {
		return err
	}
	fmt.Fprintln(ctx.out(), "Password changed.")
	return nil
}
