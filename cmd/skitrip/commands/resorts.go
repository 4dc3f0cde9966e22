package commands

import (
	"github.com/spf13/cobra"

	"github.com/beetlebot/skitrip-cli/internal/core"
	"github.com/beetlebot/skitrip-cli/internal/output"
)

func ResortsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resorts",
		Short: "Browse the resort catalog",
	}
	cmd.AddCommand(resortsListCmd())
	return cmd
}

type resortListing struct {
	Region  string        `json:"region"`
	Regions []string      `json:"regions"`
	Count   int           `json:"count"`
	Resorts []core.Resort `json:"resorts"`
}

func resortsListCmd() *cobra.Command {
	var region string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List catalog resorts, optionally for one region",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			resorts := cat.Resorts(region)
			if resorts == nil {
				resorts = []core.Resort{}
			}
			return output.JSON(resortListing{
				Region:  region,
				Regions: cat.Regions(),
				Count:   len(resorts),
				Resorts: resorts,
			})
		},
	}

	cmd.Flags().StringVar(&region, "region", core.AllRegions, "Region to list, or All")
	return cmd
}
