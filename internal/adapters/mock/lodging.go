package mock

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/beetlebot/skitrip-cli/internal/core"
	"github.com/beetlebot/skitrip-cli/internal/cost"
	"github.com/beetlebot/skitrip-cli/internal/pricing"
)

// LodgingAdapter invents stable lodging prices so the CLI works offline.
// The same stay always gets the same price.
type LodgingAdapter struct {
	latency time.Duration
}

func NewLodgingAdapter(latency time.Duration) *LodgingAdapter {
	return &LodgingAdapter{latency: latency}
}

func (a *LodgingAdapter) Name() string                    { return "mock_lodging" }
func (a *LodgingAdapter) Tier() core.ProviderTier         { return core.TierOffline }
func (a *LodgingAdapter) Capabilities() []core.Capability { return []core.Capability{core.CapLodgingPrice} }
func (a *LodgingAdapter) Available() (bool, string)       { return true, "" }

type mockRateBand struct {
	Name    string
	Nightly float64
}

// Nightly rates for a two-guest rental near a ski area.
var mockRateBands = []mockRateBand{
	{"motel", 95},
	{"condo", 165},
	{"cabin", 210},
	{"lodge", 280},
	{"slopeside", 390},
}

func (a *LodgingAdapter) LookupPrice(ctx context.Context, req pricing.Request) pricing.Result {
	if err := req.Validate(); err != nil {
		return pricing.Failed(err)
	}
	if a.latency > 0 {
		t := time.NewTimer(a.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return pricing.Failed(fmt.Errorf("%w: %v", pricing.ErrCanceled, ctx.Err()))
		case <-t.C:
		}
	}

	seed := fmt.Sprintf("%.4f,%.4f|%s|%s", req.Lat, req.Lon, req.CheckIn, req.CheckOut)
	rng := rand.New(rand.NewSource(hashSeed(seed)))

	band := mockRateBands[rng.Intn(len(mockRateBands))]
	variance := 0.8 + rng.Float64()*0.4
	nights := cost.Nights(req.CheckIn, req.CheckOut)
	guestFactor := 1 + 0.15*float64(max(req.Guests-2, 0))

	total := band.Nightly * variance * float64(nights) * guestFactor
	return pricing.Resolved(math.Round(total*100) / 100)
}

func hashSeed(s string) int64 {
	var h int64
	for _, c := range s {
		h = h*31 + int64(c)
	}
	if h < 0 {
		h = -h
	}
	return h
}
