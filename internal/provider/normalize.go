package provider

import (
	"strconv"

	transit "github.com/EILE23/BusTrackr/internal/transit/domain"
)

// Normalizers for the provider's string-typed field encodings. The live feed
// routinely ships missing or malformed values, so every function here is
// total: a bad field yields a documented default instead of an error, and one
// bad field never discards the rest of the record.

// ParseCoordinate parses a decimal-degree coordinate string.
func ParseCoordinate(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

// ClassifyCongestion maps the small-integer congestion code to a level:
// code <= 1 is LOW, 2-3 is MEDIUM, >= 4 is HIGH. An unparseable code
// defaults to LOW.
func ClassifyCongestion(code string) transit.Congestion {
	level, err := strconv.Atoi(code)
	if err != nil {
		return transit.CongestionLow
	}
	switch {
	case level <= 1:
		return transit.CongestionLow
	case level <= 3:
		return transit.CongestionMedium
	default:
		return transit.CongestionHigh
	}
}

// SecondsToMinutes converts a seconds-as-string timer to whole minutes,
// flooring via integer division. Unparseable input defaults to 0.
func SecondsToMinutes(s string) int {
	seconds, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return seconds / 60
}

// ParseStopCount parses a remaining-stop counter, defaulting to 0.
func ParseStopCount(s string) int {
	count, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return count
}
