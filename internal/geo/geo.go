// Package geo contains the great-circle helpers used to estimate how far a
// resort is from the traveller and roughly how long the drive takes.
package geo

import (
	"fmt"
	"math"
	"strings"
)

const (
	earthRadiusKm = 6371.0

	// DefaultDrivingSpeedKmh is the average road speed assumed for labels.
	DefaultDrivingSpeedKmh = 80.0

	labelStepMinutes = 15
)

// Location is a point in decimal degrees.
type Location struct {
	Latitude  float64 `json:"latitude" yaml:"lat"`
	Longitude float64 `json:"longitude" yaml:"long"`
}

// Valid reports whether both coordinates are finite.
func (l Location) Valid() bool {
	return isFinite(l.Latitude) && isFinite(l.Longitude)
}

// DistanceKm returns the great-circle distance in kilometres between a and b.
func DistanceKm(a, b Location) float64 {
	dLat := degreesToRadians(b.Latitude - a.Latitude)
	dLng := degreesToRadians(b.Longitude - a.Longitude)

	rLat1 := degreesToRadians(a.Latitude)
	rLat2 := degreesToRadians(b.Latitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	// Rounding can push h just outside [0, 1] for antipodal points.
	h = math.Min(1, math.Max(0, h))
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKm * c
}

// DrivingTimeLabel estimates the drive from a to b at avgSpeedKmh and renders
// it rounded to the nearest quarter hour, e.g. "2 hr 15 min".
func DrivingTimeLabel(a, b Location, avgSpeedKmh float64) string {
	if avgSpeedKmh <= 0 || !isFinite(avgSpeedKmh) {
		avgSpeedKmh = DefaultDrivingSpeedKmh
	}
	hours := DistanceKm(a, b) / avgSpeedKmh
	steps := math.Round(hours * 60 / labelStepMinutes)
	return FormatMinutes(int(steps) * labelStepMinutes)
}

// FormatMinutes renders a minute count as "H hr M min", "H hr" or "M min",
// dropping zero components. Zero renders as "0 min".
func FormatMinutes(total int) string {
	if total < 0 {
		total = 0
	}
	hours := total / 60
	minutes := total % 60

	var b strings.Builder
	switch {
	case hours > 0 && minutes > 0:
		fmt.Fprintf(&b, "%d hr %d min", hours, minutes)
	case hours > 0:
		fmt.Fprintf(&b, "%d hr", hours)
	default:
		fmt.Fprintf(&b, "%d min", minutes)
	}
	return b.String()
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
