package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"github.com/beetlebot/skitrip-cli/internal/cache"
	"github.com/beetlebot/skitrip-cli/internal/pricing"
)

// priceCacheVersion is bumped whenever cachedPrice changes shape.
const priceCacheVersion = "v2"

// cachedPrice records the lookup a price answered along with the price, so
// a record is only served for the exact stay it was quoted for.
type cachedPrice struct {
	Provider string    `json:"provider"`
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	Guests   int       `json:"guests"`
	CheckIn  string    `json:"checkIn"`
	CheckOut string    `json:"checkOut"`
	Price    float64   `json:"price"`
	QuotedAt time.Time `json:"quotedAt"`
}

func newCachedPrice(provider string, req pricing.Request, price float64) cachedPrice {
	return cachedPrice{
		Provider: provider,
		Lat:      req.Lat,
		Lon:      req.Lon,
		Guests:   req.Guests,
		CheckIn:  req.CheckIn,
		CheckOut: req.CheckOut,
		Price:    price,
		QuotedAt: time.Now().UTC(),
	}
}

func (cp cachedPrice) answers(provider string, req pricing.Request) bool {
	return cp.Provider == provider &&
		cp.Lat == req.Lat && cp.Lon == req.Lon &&
		cp.Guests == req.Guests &&
		cp.CheckIn == req.CheckIn && cp.CheckOut == req.CheckOut &&
		cp.Price > 0
}

// CachedLodging answers repeat lookups from a Cache. Only successful prices
// are stored, so failures are always retried against the wrapped adapter.
type CachedLodging struct {
	next  LodgingAdapter
	cache Cache
}

func NewCachedLodging(next LodgingAdapter, c Cache) *CachedLodging {
	return &CachedLodging{next: next, cache: c}
}

func (c *CachedLodging) Name() string               { return c.next.Name() }
func (c *CachedLodging) Tier() ProviderTier         { return c.next.Tier() }
func (c *CachedLodging) Capabilities() []Capability { return c.next.Capabilities() }
func (c *CachedLodging) Available() (bool, string)  { return c.next.Available() }

func (c *CachedLodging) LookupPrice(ctx context.Context, req pricing.Request) pricing.Result {
	if err := req.Validate(); err != nil {
		return pricing.Failed(err)
	}
	provider := c.next.Name()
	key := priceCacheKey(provider, req)

	if data, ok := c.cache.Get(ctx, key); ok {
		var cp cachedPrice
		switch err := json.Unmarshal(data, &cp); {
		case err != nil:
			slog.Debug("price cache record unreadable", "provider", provider, "error", err)
		case !cp.answers(provider, req):
			slog.Debug("price cache record is for another stay", "provider", provider,
				"lat", req.Lat, "lon", req.Lon, "cached_check_in", cp.CheckIn, "cached_guests", cp.Guests)
		default:
			slog.Debug("price cache hit", "provider", provider, "lat", req.Lat, "lon", req.Lon,
				"quoted_at", cp.QuotedAt)
			return pricing.Resolved(cp.Price)
		}
	}

	res := c.next.LookupPrice(ctx, req)
	if !res.OK {
		return res
	}
	data, err := json.Marshal(newCachedPrice(provider, req, res.Price))
	if err == nil {
		err = c.cache.Set(ctx, key, data)
	}
	if err != nil {
		slog.Warn("price cache write failed", "error", err)
	}
	return res
}

// Ping forwards to the wrapped adapter when it supports warm-up.
func (c *CachedLodging) Ping(ctx context.Context) (int, time.Duration, error) {
	if p, ok := c.next.(Pinger); ok {
		return p.Ping(ctx)
	}
	return 0, 0, nil
}

func priceCacheKey(provider string, req pricing.Request) string {
	return cache.CacheKey(
		"price",
		priceCacheVersion,
		provider,
		strconv.FormatFloat(req.Lat, 'f', -1, 64),
		strconv.FormatFloat(req.Lon, 'f', -1, 64),
		strconv.Itoa(req.Guests),
		req.CheckIn,
		req.CheckOut,
	)
}
