// Package cost holds the trip cost model: the multi-day lift ticket curve,
// the round-trip fuel estimate and the per-trip aggregate.
//
// Nothing in this package returns an error. Missing or unparseable inputs
// degrade to zero or to an unknown total, since a partial estimate is still
// worth showing.
package cost

import (
	"math"
	"time"
)

// Fuel defaults, used when a FuelInput field is left at zero.
const (
	DefaultGasPrice = 3.75 // $/gal
	DefaultMPG      = 28.0
	DefaultAvgSpeed = 55.0 // mph, used when only a driving time is known

	kmToMiles = 0.621371
)

// ticketMultipliers is the day-count curve relative to a one-day ticket,
// calibrated on a season-pass price sheet with a one-day price of 125
// (240, 350, 453, 550, 640, 723 for days 2 through 7).
var ticketMultipliers = [...]float64{
	1: 1.0,
	2: 240.0 / 125,
	3: 350.0 / 125,
	4: 453.0 / 125,
	5: 550.0 / 125,
	6: 640.0 / 125,
	7: 723.0 / 125,
}

const maxCurveDays = 7

// TicketTotal returns the lift ticket cost for days of skiing given a
// one-day base price. Beyond a week every extra day costs the average daily
// rate of the seven-day ticket. ok is false for a non-positive or non-finite
// base price or fewer than one day.
func TicketTotal(basePrice float64, days int) (total float64, ok bool) {
	if basePrice <= 0 || !isFinite(basePrice) || days < 1 {
		return 0, false
	}
	if days <= maxCurveDays {
		return basePrice * ticketMultipliers[days], true
	}
	day7 := ticketMultipliers[maxCurveDays]
	factor := day7 + float64(days-maxCurveDays)*(day7/maxCurveDays)
	return basePrice * factor, true
}

// FuelInput describes a drive for FuelCost. A positive distance wins over
// the driving-time label; DistanceMiles wins over DistanceKm.
type FuelInput struct {
	DrivingTime   string
	DistanceMiles float64
	DistanceKm    float64
	AvgSpeed      float64 // mph
	MPG           float64
	GasPrice      float64 // $/gal
}

// FuelCost estimates the round-trip fuel cost in dollars. It never returns
// NaN or a negative value.
func FuelCost(in FuelInput) float64 {
	avgSpeed := orDefault(in.AvgSpeed, DefaultAvgSpeed)
	mpg := orDefault(in.MPG, DefaultMPG)
	gasPrice := orDefault(in.GasPrice, DefaultGasPrice)

	var oneWayMiles float64
	switch {
	case in.DistanceMiles > 0 && isFinite(in.DistanceMiles):
		oneWayMiles = in.DistanceMiles
	case in.DistanceKm > 0 && isFinite(in.DistanceKm):
		oneWayMiles = in.DistanceKm * kmToMiles
	default:
		oneWayMiles = ParseDrivingHours(in.DrivingTime) * avgSpeed
	}

	gallons := oneWayMiles * 2 / mpg
	c := gallons * gasPrice
	if !isFinite(c) || c < 0 {
		return 0
	}
	return c
}

// TripCost is the aggregate estimate for one resort. Total and PerPerson are
// only meaningful when Known is true.
type TripCost struct {
	TicketTotal  float64 `json:"ticketTotal"`
	TicketKnown  bool    `json:"ticketKnown"`
	FuelTotal    float64 `json:"fuelTotal"`
	LodgingTotal float64 `json:"lodgingTotal"`
	LodgingKnown bool    `json:"lodgingKnown"`
	Total        float64 `json:"total"`
	PerPerson    float64 `json:"perPerson"`
	Known        bool    `json:"known"`
}

// Status renders the aggregate state for display.
func (c TripCost) Status() string {
	if c.Known {
		return "known"
	}
	return "pending"
}

// TripTotal combines the parts of a trip. The total exists only when both
// the ticket and the lodging prices are known; fuel is always an estimate.
func TripTotal(ticket float64, ticketKnown bool, lodging float64, lodgingKnown bool, fuel float64, guests int) TripCost {
	c := TripCost{
		TicketTotal:  ticket,
		TicketKnown:  ticketKnown && isFinite(ticket),
		FuelTotal:    fuel,
		LodgingTotal: lodging,
		LodgingKnown: lodgingKnown && isFinite(lodging),
	}
	if !isFinite(c.FuelTotal) || c.FuelTotal < 0 {
		c.FuelTotal = 0
	}
	if !c.TicketKnown || !c.LodgingKnown {
		return c
	}
	if guests < 1 {
		guests = 1
	}
	c.Total = c.TicketTotal + c.LodgingTotal + c.FuelTotal
	c.PerPerson = c.Total / float64(guests)
	c.Known = isFinite(c.Total)
	return c
}

const dateLayout = "2006-01-02"

// Nights returns the number of nights between two YYYY-MM-DD dates, never
// less than one. The same count is used as the number of ski days.
func Nights(checkIn, checkOut string) int {
	in, err := time.Parse(dateLayout, checkIn)
	if err != nil {
		return 1
	}
	out, err := time.Parse(dateLayout, checkOut)
	if err != nil {
		return 1
	}
	n := int(out.Sub(in).Hours() / 24)
	if n < 1 {
		return 1
	}
	return n
}

func orDefault(v, def float64) float64 {
	if v <= 0 || !isFinite(v) {
		return def
	}
	return v
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
