package commands

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/beetlebot/skitrip-cli/internal/core"
	"github.com/beetlebot/skitrip-cli/internal/output"
	"github.com/spf13/cobra"
)

func DoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration, provider health and the price endpoint",
		Long:  "Checks config and providers, then pings every active provider that needs warming up. The hosted price endpoint can take tens of seconds to wake from idle.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			router := buildRouter(cfg)
			infos := router.ProviderInfos()

			active := 0
			var issues []string
			for _, p := range infos {
				if p.Status == "active" {
					active++
				} else if p.Status == "unavailable" {
					issues = append(issues, fmt.Sprintf("%s: %s", p.Name, p.Reason))
				}
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Pricing.Timeout)
			defer cancel()

			var cacheDesc string
			if _, desc, closeCache, err := buildCache(ctx, cfg); err != nil {
				issues = append(issues, fmt.Sprintf("cache: %v", err))
				cacheDesc = cfg.Cache.Backend + " (unreachable)"
			} else {
				cacheDesc = desc
				closeCache()
			}

			pings := pingWarmUp(ctx, router.ActiveLodgingAdapters())
			for _, p := range pings {
				if p.Error != "" {
					issues = append(issues, fmt.Sprintf("%s: %s", p.Provider, p.Error))
				}
			}

			healthy := active > 0 && len(issues) == 0
			summary := fmt.Sprintf("%d/%d providers active (mode=%s)", active, len(infos), cfg.Mode)
			if len(issues) > 0 {
				summary += " | issues: " + strings.Join(issues, "; ")
			}

			report := core.DoctorReport{
				Mode:      cfg.Mode,
				Providers: infos,
				Endpoint:  cfg.Pricing.Endpoint,
				APIKeySet: cfg.Pricing.APIKey != "",
				Cache:     cacheDesc,
				Pings:     pings,
				Healthy:   healthy,
				Summary:   summary,
			}

			return output.JSON(report)
		},
	}
	return cmd
}

// pingWarmUp pings adapters that advertise a warm-up capability.
func pingWarmUp(ctx context.Context, adapters []core.LodgingAdapter) []core.PingReport {
	var reports []core.PingReport
	for _, a := range adapters {
		pinger, ok := a.(core.Pinger)
		if !ok || !slices.Contains(a.Capabilities(), core.CapWarmUp) {
			continue
		}
		status, latency, err := pinger.Ping(ctx)
		r := core.PingReport{
			Provider:  a.Name(),
			Status:    status,
			LatencyMs: latency.Milliseconds(),
		}
		if err != nil {
			r.Error = err.Error()
		}
		reports = append(reports, r)
	}
	return reports
}
