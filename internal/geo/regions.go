package geo

// Region centroids used when the traveller's zip code is unknown.
var regionCentroids = map[string]Location{
	"Midwest":     {Latitude: 41.8781, Longitude: -87.6298},  // Chicago
	"Rockies":     {Latitude: 39.7392, Longitude: -104.9903}, // Denver
	"Northeast":   {Latitude: 40.7128, Longitude: -74.0060},  // New York
	"Midatlantic": {Latitude: 39.9526, Longitude: -75.1652},  // Philadelphia
	"West":        {Latitude: 34.1030, Longitude: -118.4105}, // Beverly Hills
}

// DefaultOrigin is the last-resort origin when neither zip nor region resolve.
var DefaultOrigin = regionCentroids["West"]

// RegionCentroid returns the default origin for a region.
func RegionCentroid(region string) (Location, bool) {
	loc, ok := regionCentroids[region]
	return loc, ok
}
