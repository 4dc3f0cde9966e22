package cost

import (
	"regexp"
	"strconv"
	"strings"
)

// Accepted driving-time patterns. Hour and minute parts may appear together
// ("3 hr 20 min"); the clock form ("3:30") is only tried when neither does.
var (
	hoursPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:hours|hour|hrs|hr|h)`)
	minutesPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:minutes|minute|mins|min|m)`)
	clockPattern   = regexp.MustCompile(`(\d+):(\d{1,2})`)
)

// ParseDrivingHours turns a driving-time label such as "2h", "2 hr",
// "45 min", "3 hr 20 min" or "3:30" into hours. Anything else is 0.
func ParseDrivingHours(label string) float64 {
	s := strings.ToLower(strings.TrimSpace(label))
	if s == "" {
		return 0
	}

	var hours float64
	hr := hoursPattern.FindStringSubmatch(s)
	mn := minutesPattern.FindStringSubmatch(s)
	if hr != nil {
		hours += parseFloat(hr[1])
	}
	if mn != nil {
		hours += parseFloat(mn[1]) / 60
	}

	if hr == nil && mn == nil {
		if m := clockPattern.FindStringSubmatch(s); m != nil {
			hours = parseFloat(m[1]) + parseFloat(m[2])/60
		}
	}

	if !isFinite(hours) {
		return 0
	}
	return hours
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
