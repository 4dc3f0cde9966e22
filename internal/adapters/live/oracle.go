package live

import (
	"context"
	"net/url"
	"time"

	"github.com/beetlebot/skitrip-cli/internal/core"
	"github.com/beetlebot/skitrip-cli/internal/pricing"
)

// OracleAdapter prices stays with the hosted price predictor. The public
// endpoint needs no credentials; a self-hosted one may want an API key.
// A cold backend can take tens of seconds to answer its first request.
type OracleAdapter struct {
	client *pricing.Client
}

func NewOracleAdapter(client *pricing.Client) *OracleAdapter {
	return &OracleAdapter{client: client}
}

func (a *OracleAdapter) Name() string            { return "price_oracle" }
func (a *OracleAdapter) Tier() core.ProviderTier { return core.TierPublic }
func (a *OracleAdapter) Capabilities() []core.Capability {
	return []core.Capability{core.CapLodgingPrice, core.CapWarmUp}
}

func (a *OracleAdapter) Available() (bool, string) {
	u, err := url.Parse(a.client.Endpoint())
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return false, "set SKITRIP_PRICE_ENDPOINT to an http(s) URL"
	}
	return true, ""
}

func (a *OracleAdapter) LookupPrice(ctx context.Context, req pricing.Request) pricing.Result {
	return a.client.RequestPrice(ctx, req)
}

func (a *OracleAdapter) Ping(ctx context.Context) (int, time.Duration, error) {
	return a.client.Ping(ctx)
}
