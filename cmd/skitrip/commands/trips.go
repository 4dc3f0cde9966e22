package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/beetlebot/skitrip-cli/internal/core"
	"github.com/beetlebot/skitrip-cli/internal/output"
)

func TripsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trips",
		Short: "Rank and price ski trips",
	}
	cmd.AddCommand(tripsSearchCmd())
	return cmd
}

func tripsSearchCmd() *cobra.Command {
	var (
		q      core.Query
		sort   string
		dir    string
		stream bool
	)

	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search resorts in a region and price a trip to each",
		Example: `  skitrip trips search --region Rockies --zip 80202 --checkin 2026-01-10 --checkout 2026-01-13 --sort price
  skitrip trips search --region West --sort "Most Trails" --small
  skitrip trips search --region Northeast --stream`,
		RunE: func(cmd *cobra.Command, args []string) error {
			q.Sort = core.SortKey(sort)
			q.Direction = core.SortDirection(dir)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			lodging, closeLodging, err := buildLodging(ctx, cfg, buildRouter(cfg))
			if err != nil {
				return err
			}
			defer closeLodging()

			engine := engineFactory(cfg, cat, lodging)(stream)
			stop := runEngine(ctx, engine)
			defer stop()

			if _, err := engine.Submit(ctx, q); err != nil {
				output.JSONError("search failed", err.Error())
				return nil
			}

			if stream {
				return streamViews(ctx, engine)
			}
			v, err := engine.WaitFor(ctx, func(v core.View) bool { return v.Settled })
			if err != nil {
				return fmt.Errorf("search interrupted: %w", err)
			}
			return output.JSON(v)
		},
	}

	cmd.Flags().StringVar(&q.Region, "region", core.AllRegions, "Region: West, Rockies, Midwest, Northeast, Midatlantic or All")
	cmd.Flags().StringVar(&q.OriginZip, "zip", core.DefaultOriginZip, "Origin zip code")
	cmd.Flags().IntVar(&q.Guests, "guests", core.DefaultGuests, "Number of guests")
	cmd.Flags().StringVar(&q.CheckIn, "checkin", "", "Check-in date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&q.CheckOut, "checkout", "", "Check-out date YYYY-MM-DD (default check-in + 3 days)")
	cmd.Flags().StringVar(&sort, "sort", string(core.SortRelevant), "Sort by: relevant, distance, price, trails")
	cmd.Flags().StringVar(&dir, "dir", string(core.Asc), "Sort direction: asc or desc")
	cmd.Flags().BoolVar(&q.IncludeSmall, "small", false, "Include small mountains")
	cmd.Flags().BoolVar(&stream, "stream", false, "Print every view as one JSON line while results are revealed")

	return cmd
}

// streamViews prints views as compact JSON lines until the search settles.
func streamViews(ctx context.Context, engine *core.Orchestrator) error {
	views, unsubscribe, err := engine.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer unsubscribe()

	lines := make(chan core.View)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		for v := range views {
			select {
			case lines <- v:
			case <-done:
				return
			}
			if v.Settled {
				return
			}
		}
	}()
	_, err = output.Lines(lines)
	return err
}
