package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"

	"github.com/pharrrodev/type2lyfe-sub001/internal/cli"
	"github.com/pharrrodev/type2lyfe-sub001/internal/logging"
)

var version = "v0.1.0"

var CLI struct {
	Version kong.VersionFlag

	Debug       bool   `help:"Enable debug logging." env:"DEBUG"`
	LogFile     string `name:"log-file" help:"Also write logs to this rotating file." env:"LOG_FILE" type:"path"`
	Server      string `help:"Log API base URL." env:"TYPE2LYFE_SERVER" default:"http://localhost:8080"`
	AnalysisURL string `name:"analysis-url" help:"AI analysis service base URL; defaults to the API server." env:"TYPE2LYFE_ANALYSIS_URL"`
	Token       string `help:"Bearer token; overrides the saved one." env:"TYPE2LYFE_TOKEN"`
	TokenFile   string `name:"token-file" help:"Where login keeps the bearer token." type:"path" default:"~/.config/type2lyfe/token"`

	Serve          cli.ServeCmd          `cmd:"" help:"Run the log API server."`
	Register       cli.RegisterCmd       `cmd:"" help:"Create an account and save its token."`
	Login          cli.LoginCmd          `cmd:"" help:"Log in and save the token."`
	ChangePassword cli.ChangePasswordCmd `cmd:"" name:"change-password" help:"Replace your password, e.g. a temporary one."`
	ResetPassword  cli.ResetPasswordCmd  `cmd:"" name:"reset-password" help:"Issue a temporary password (runs on the server host)."`
	Log            cli.LogCmd            `cmd:"" help:"Capture and submit one health log."`
	Feed           cli.FeedCmd           `cmd:"" help:"Show recent activity." default:"1"`
	Medications    cli.MedicationsCmd    `cmd:"" help:"Manage the medication catalog."`
	Export         cli.ExportCmd         `cmd:"" help:"Download your logs as CSV."`
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("type2lyfe"),
		kong.Description("Capture glucose, meals, medication, blood pressure and weight logs"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": version},
	)

	logger, err := logging.New(logging.Config{Debug: CLI.Debug, File: CLI.LogFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	appCtx := &cli.Context{
		Logger:      logger,
		Out:         os.Stdout,
		In:          os.Stdin,
		Server:      CLI.Server,
		AnalysisURL: CLI.AnalysisURL,
		Token:       CLI.Token,
		TokenFile:   CLI.TokenFile,
	}
	if err := ctx.Run(appCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
