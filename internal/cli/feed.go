package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/pharrrodev/type2lyfe-sub001/internal/feed"
)

type FeedCmd struct {
	Limit int `default:"20" help:"Records per page."`
	Pages int `default:"1" help:"How many pages of history to load."`
}

func (cmd *FeedCmd) Run(ctx *Context) error {
	backend, err := ctx.AuthorizedClient()
	if err != nil {
		return err
	}

	aggregator := feed.NewAggregator(backend, feed.Options{PageSize: cmd.Limit, Logger: ctx.Logger})
	runCtx := context.Background()
	if err := aggregator.Reload(runCtx); err != nil {
		return err
	}
	for page := 1; page < cmd.Pages && aggregator.HasMore(); page++ {
		if err := aggregator.LoadMore(runCtx); err != nil {
			return err
		}
	}

	fmt.Fprintln(ctx.out(), renderFeed(aggregator.CurrentFeed(), time.Now()))
	if aggregator.HasMore() {
		fmt.Fprintln(ctx.out(), emptyStyle.Render("More history available: use --pages."))
	}
	return nil
}
