package mpd

import (
	"regexp"
	"strconv"
	"strings"
)

// dollarEscape is a sentinel unlikely to occur in a manifest template,
// standing in for a literal "$$" while other substitutions run so that a
// substituted value can never itself be mistaken for another variable.
const dollarEscape = "\x00DOLLAR\x00"

var formatSpecRe = regexp.MustCompile(`\$(RepresentationID|Number|Bandwidth|Time)(%0?(\d+)?([diouxX]))?\$`)

// templateVars holds the substitution values for one segment/init URL fill.
type templateVars struct {
	representationID string
	number           int64
	bandwidth        int64
	time             int64
}

// expandTemplate fills a DASH URL template ($Number$, $Time$, $Bandwidth$,
// $RepresentationID$, with optional "%0W[diouxX]"-style padding and radix,
// and "$$" escaped to a literal "$"). Unknown variable names are left
// verbatim.
func expandTemplate(tmpl string, v templateVars) string {
	s := strings.ReplaceAll(tmpl, "$$", dollarEscape)

	s = formatSpecRe.ReplaceAllStringFunc(s, func(match string) string {
		groups := formatSpecRe.FindStringSubmatch(match)
		name, spec, widthStr, conv := groups[1], groups[2], groups[3], groups[4]

		var n int64
		switch name {
		case "RepresentationID":
			return v.representationID
		case "Number":
			n = v.number
		case "Time":
			n = v.time
		case "Bandwidth":
			n = v.bandwidth
		default:
			return match
		}

		value := formatIntSpec(n, conv)

		if spec == "" {
			return value
		}
		width, _ := strconv.Atoi(widthStr)
		pad := " "
		if strings.HasPrefix(spec, "%0") {
			pad = "0"
		}
		for len(value) < width {
			value = pad + value
		}
		return value
	})

	return strings.ReplaceAll(s, dollarEscape, "$")
}

// formatIntSpec renders n per a DASH template's conversion character: d/i/u
// decimal, o octal, x/X hex. An empty conv (no format spec present) defaults
// to decimal.
func formatIntSpec(n int64, conv string) string {
	switch conv {
	case "o":
		return strconv.FormatInt(n, 8)
	case "x":
		return strconv.FormatInt(n, 16)
	case "X":
		return strings.ToUpper(strconv.FormatInt(n, 16))
	default:
		return strconv.FormatInt(n, 10)
	}
}
