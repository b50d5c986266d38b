package mpd

import (
	"regexp"
	"strconv"
	"time"
)

var isoDurationRe = regexp.MustCompile(
	`^P(?:(\d+(?:\.\d+)?)Y)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)D)?` +
		`(?:T(?:(\d+(?:\.\d+)?)H)?(?:(\d+(?:\.\d+)?)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)

// parseISODuration parses an ISO 8601 duration (PnYnMnDTnHnMnS). Years
// approximate to 365 days and months to 30 days. Unparsable strings return 0,
// matching the lenient "best effort" stance expected of manifest polling.
func parseISODuration(s string) time.Duration {
	if s == "" {
		return 0
	}
	m := isoDurationRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}

	years := parseFloatOr0(m[1])
	months := parseFloatOr0(m[2])
	days := parseFloatOr0(m[3])
	hours := parseFloatOr0(m[4])
	minutes := parseFloatOr0(m[5])
	seconds := parseFloatOr0(m[6])

	total := years*365*24*float64(time.Hour) +
		months*30*24*float64(time.Hour) +
		days*24*float64(time.Hour) +
		hours*float64(time.Hour) +
		minutes*float64(time.Minute) +
		seconds*float64(time.Second)

	return time.Duration(total)
}

func parseFloatOr0(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
