package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/beetlebot/skitrip-cli/internal/config"
	"github.com/beetlebot/skitrip-cli/internal/cost"
	"github.com/beetlebot/skitrip-cli/internal/geo"
	"github.com/beetlebot/skitrip-cli/internal/pricing"
)

type Capability string

const (
	CapLodgingPrice Capability = "lodging.price"
	CapWarmUp       Capability = "warmUp"
)

type ProviderTier string

const (
	TierOffline ProviderTier = "offline"
	TierPublic  ProviderTier = "public"
)

// Resort is one catalog entry. Coordinates are optional; a resort without
// them can be ranked but never priced.
type Resort struct {
	ID         string   `json:"id,omitempty" yaml:"id"`
	Name       string   `json:"name" yaml:"name"`
	Region     string   `json:"region" yaml:"region"`
	Latitude   *float64 `json:"latitude" yaml:"latitude"`
	Longitude  *float64 `json:"longitude" yaml:"longitude"`
	TicketCost float64  `json:"ticketCost" yaml:"ticket_cost"`
	Popularity float64  `json:"popularity" yaml:"popularity"`
	Trails     int      `json:"trails" yaml:"trails"`
}

// Key identifies a resort within a query. Resorts without an ID fall back to
// name plus coordinates.
func (r Resort) Key() string {
	if r.ID != "" {
		return r.ID
	}
	return r.Name + "|" + formatCoord(r.Latitude) + "|" + formatCoord(r.Longitude)
}

// Location returns the resort's coordinates, if it has usable ones.
func (r Resort) Location() (geo.Location, bool) {
	if r.Latitude == nil || r.Longitude == nil {
		return geo.Location{}, false
	}
	loc := geo.Location{Latitude: *r.Latitude, Longitude: *r.Longitude}
	return loc, loc.Valid()
}

func formatCoord(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

type PriceStatus string

const (
	PriceUnknown     PriceStatus = "unknown"
	PriceUnavailable PriceStatus = "unavailable"
	PriceResolved    PriceStatus = "resolved"
)

// LodgingPrice is a predicted lodging total. In JSON it is the number when
// resolved, null when unavailable and the string "unknown" otherwise.
type LodgingPrice struct {
	Status PriceStatus
	Amount float64
}

func UnknownPrice() LodgingPrice     { return LodgingPrice{Status: PriceUnknown} }
func UnavailablePrice() LodgingPrice { return LodgingPrice{Status: PriceUnavailable} }
func ResolvedPrice(amount float64) LodgingPrice {
	return LodgingPrice{Status: PriceResolved, Amount: amount}
}

// Value returns the amount and whether it is a usable number.
func (p LodgingPrice) Value() (float64, bool) {
	if p.Status != PriceResolved {
		return 0, false
	}
	return p.Amount, true
}

func (p LodgingPrice) MarshalJSON() ([]byte, error) {
	switch p.Status {
	case PriceResolved:
		return json.Marshal(p.Amount)
	case PriceUnavailable:
		return []byte("null"), nil
	default:
		return []byte(`"unknown"`), nil
	}
}

func (p *LodgingPrice) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*p = UnavailablePrice()
		return nil
	case len(data) > 0 && data[0] == '"':
		*p = UnknownPrice()
		return nil
	}
	var amount float64
	if err := json.Unmarshal(data, &amount); err != nil {
		return fmt.Errorf("lodging price: %w", err)
	}
	*p = ResolvedPrice(amount)
	return nil
}

// PricedResort is a resort annotated for one query origin.
type PricedResort struct {
	Resort
	DistanceKm    float64      `json:"distanceKm"`
	DistanceKnown bool         `json:"distanceKnown"`
	DrivingTime   string       `json:"drivingTime"`
	Lodging       LodgingPrice `json:"lodging"`
}

type SortKey string

const (
	SortRelevant SortKey = "relevant"
	SortDistance SortKey = "distance"
	SortPrice    SortKey = "price"
	SortTrails   SortKey = "trails"
)

type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// FetchState tracks the lodging lookup for one resort key.
type FetchState int

const (
	NotRequested FetchState = iota
	InFlight
	Resolved
	Failed
)

var fetchStateNames = [...]string{"not_requested", "in_flight", "resolved", "failed"}

func (s FetchState) String() string {
	if s < 0 || int(s) >= len(fetchStateNames) {
		return "unknown"
	}
	return fetchStateNames[s]
}

func (s FetchState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *FetchState) UnmarshalText(text []byte) error {
	for i, name := range fetchStateNames {
		if name == string(text) {
			*s = FetchState(i)
			return nil
		}
	}
	return fmt.Errorf("unknown fetch state %q", text)
}

// Query is one user search.
type Query struct {
	Region       string        `json:"region"`
	OriginZip    string        `json:"originZip,omitempty"`
	Origin       *geo.Location `json:"origin,omitempty"`
	Guests       int           `json:"guests"`
	CheckIn      string        `json:"checkIn"`
	CheckOut     string        `json:"checkOut"`
	Sort         SortKey       `json:"sort"`
	Direction    SortDirection `json:"direction"`
	IncludeSmall bool          `json:"includeSmall"`
}

const (
	AllRegions       = "All"
	DefaultOriginZip = "90210"
	DefaultGuests    = 2
	defaultStayDays  = 3
	dateLayout       = "2006-01-02"
)

// WithDefaults fills unset fields: all regions, Beverly Hills, two guests and
// a three-night stay starting on now's date.
func (q Query) WithDefaults(now time.Time) Query {
	if q.Region == "" {
		q.Region = AllRegions
	}
	if q.OriginZip == "" && q.Origin == nil {
		q.OriginZip = DefaultOriginZip
	}
	if q.Guests <= 0 {
		q.Guests = DefaultGuests
	}
	if q.CheckIn == "" {
		q.CheckIn = now.Format(dateLayout)
	}
	if q.CheckOut == "" {
		if in, err := time.Parse(dateLayout, q.CheckIn); err == nil {
			q.CheckOut = in.AddDate(0, 0, defaultStayDays).Format(dateLayout)
		}
	}
	if q.Sort == "" {
		q.Sort = SortRelevant
	}
	if q.Direction == "" {
		q.Direction = Asc
	}
	return q
}

// Validate rejects queries the engine cannot price.
func (q Query) Validate() error {
	in, err := time.Parse(dateLayout, q.CheckIn)
	if err != nil {
		return fmt.Errorf("invalid check-in date %q: %w", q.CheckIn, err)
	}
	out, err := time.Parse(dateLayout, q.CheckOut)
	if err != nil {
		return fmt.Errorf("invalid check-out date %q: %w", q.CheckOut, err)
	}
	if out.Before(in) {
		return fmt.Errorf("check-out %s is before check-in %s", q.CheckOut, q.CheckIn)
	}
	if q.Guests <= 0 {
		return fmt.Errorf("guests must be positive, got %d", q.Guests)
	}
	if _, err := ParseSortKey(string(q.Sort)); err != nil {
		return err
	}
	if _, err := ParseDirection(string(q.Direction)); err != nil {
		return err
	}
	if q.Origin != nil && !q.Origin.Valid() {
		return fmt.Errorf("invalid origin coordinates")
	}
	return nil
}

// Trip is one row of a View.
type Trip struct {
	PricedResort
	Cost       cost.TripCost `json:"cost"`
	FetchState FetchState    `json:"fetchState"`
	Visible    bool          `json:"visible"`
	Error      string        `json:"error,omitempty"`
}

type ViewStatus string

const (
	StatusIdle    ViewStatus = "idle"
	StatusLoading ViewStatus = "loading"
	StatusReady   ViewStatus = "ready"
	StatusEmpty   ViewStatus = "empty"
)

// View is an immutable snapshot of the engine's state for one epoch.
// Ranked holds every candidate in sort order; Visible is the revealed
// subset that passes the size filter, in the same order.
type View struct {
	Epoch          uint64     `json:"epoch"`
	Query          Query      `json:"query"`
	Status         ViewStatus `json:"status"`
	OriginFallback bool       `json:"originFallback"`
	Nights         int        `json:"nights"`
	Ranked         []Trip     `json:"ranked"`
	Visible        []Trip     `json:"visible"`
	Pending        int        `json:"pending"`
	InFlight       int        `json:"inFlight"`
	Settled        bool       `json:"settled"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

type ProviderInfo struct {
	Name         string       `json:"name"`
	Capabilities []Capability `json:"capabilities"`
	Tier         ProviderTier `json:"tier"`
	Status       string       `json:"status"`
	Reason       string       `json:"reason,omitempty"`
}

type PingReport struct {
	Provider  string `json:"provider"`
	Status    int    `json:"status,omitempty"`
	LatencyMs int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

type DoctorReport struct {
	Mode      config.Mode    `json:"mode"`
	Providers []ProviderInfo `json:"providers"`
	Endpoint  string         `json:"endpoint"`
	APIKeySet bool           `json:"apiKeySet"`
	Cache     string         `json:"cache"`
	Pings     []PingReport   `json:"pings,omitempty"`
	Healthy   bool           `json:"healthy"`
	Summary   string         `json:"summary"`
}

// LodgingAdapter prices one stay. Failures are returned in the Result.
type LodgingAdapter interface {
	Name() string
	Tier() ProviderTier
	Capabilities() []Capability
	Available() (bool, string)
	LookupPrice(ctx context.Context, req pricing.Request) pricing.Result
}

// Pinger is implemented by adapters whose backend can be woken up ahead of
// a search.
type Pinger interface {
	Ping(ctx context.Context) (int, time.Duration, error)
}

// Catalog is the read-only reference data the engine ranks.
type Catalog interface {
	Resorts(region string) []Resort
	Zip(zip string) (geo.Location, bool)
}

// Cache stores raw bytes by key. Implementations own expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte) error
}
