package main

import (
	"fmt"
	"os"

	"github.com/beetlebot/skitrip-cli/cmd/skitrip/commands"
	"github.com/beetlebot/skitrip-cli/internal/logging"
	"github.com/spf13/cobra"
)

const version = "skitrip v0.1.0"

func main() {
	root := &cobra.Command{
		Use:   "skitrip",
		Short: "Ski trip planner – rank resorts and price the whole trip",
		Long:  "A local-first ski trip search CLI that ranks resorts by popularity, distance, trails or total trip cost, with compact JSON output for scripts and AI tools.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			dev, _ := cmd.Flags().GetBool("dev")
			logging.Setup(dev)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().String("mode", "", "Provider mode: mock, live, hybrid (default from config/env)")
	root.PersistentFlags().String("config", "", "Config file (default $SKITRIP_CONFIG or ~/.config/skitrip/skitrip.yaml)")
	root.PersistentFlags().Bool("dev", false, "Human-readable debug logs on stderr")

	root.AddCommand(commands.TripsCmd())
	root.AddCommand(commands.ResortsCmd())
	root.AddCommand(commands.ProvidersCmd())
	root.AddCommand(commands.DoctorCmd())
	root.AddCommand(commands.ServeCmd())
	root.AddCommand(versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print skitrip version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}
