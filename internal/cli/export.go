package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type ExportCmd struct {
	From   string `help:"First day to include (YYYY-MM-DD)."`
	To     string `help:"Last day to include (YYYY-MM-DD)."`
	Output string `short:"o" type:"path" help:"Write the CSV here instead of stdout."`
}

func (cmd *ExportCmd) Run(ctx *Context) error {
	api, err := ctx.AuthorizedClient()
	if err != nil {
		return err
	}
	content, err := api.ExportCSV(context.Background(), cmd.From, cmd.To)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if cmd.Output == "" {
		_, err := ctx.out().Write(content)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cmd.Output), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(cmd.Output, content, 0o600); err != nil {
		return fmt.Errorf("write export: %w", err)
	}
	fmt.Fprintf(ctx.out(), "Exported to %s\n", cmd.Output)
	return nil
}
