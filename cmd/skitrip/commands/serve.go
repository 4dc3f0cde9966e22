package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/beetlebot/skitrip-cli/internal/server"
)

func ServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the trip search HTTP API",
		Example: `  skitrip serve --addr :8080
  curl -N 'localhost:8080/api/trips/stream?region=Rockies&sort=price'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			cat, err := loadCatalog(cfg)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			router := buildRouter(cfg)
			lodging, closeLodging, err := buildLodging(ctx, cfg, router)
			if err != nil {
				return err
			}
			defer closeLodging()

			srv := server.New(server.Deps{
				Catalog:   cat,
				Providers: router.ProviderInfos,
				NewEngine: engineFactory(cfg, cat, lodging),
			})
			return srv.ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, :8080)")
	return cmd
}
