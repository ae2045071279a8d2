package soap

import (
	"regexp"
	"strings"
)

// vitalKind describes how to recognise and render one kind of vital sign.
type vitalKind struct {
	label string
	names *regexp.Regexp
	value *regexp.Regexp
	unit  string
}

var (
	bpValueRe = regexp.MustCompile(`(\d{2,3})\s*(?:/|over)\s*(\d{2,3})`)
	numberRe  = regexp.MustCompile(`\d{1,3}(?:\.\d)?`)
)

// vitalKinds is checked in order; the first kind whose name pattern matches
// the entity text wins.
var vitalKinds = []vitalKind{
	{label: "Blood Pressure", names: regexp.MustCompile(`(?i)\b(?:blood pressure|bp)\b`), value: bpValueRe},
	{label: "Heart Rate", names: regexp.MustCompile(`(?i)\b(?:heart rate|hr|pulse)\b`), value: numberRe, unit: " bpm"},
	{label: "Temperature", names: regexp.MustCompile(`(?i)\b(?:temperature|temp)\b`), value: numberRe},
	{label: "Respiratory Rate", names: regexp.MustCompile(`(?i)\b(?:respiratory rate|rr)\b`), value: numberRe},
	{label: "Oxygen Saturation", names: regexp.MustCompile(`(?i)\b(?:oxygen saturation|o2 sat|spo2)\b`), value: numberRe, unit: "%"},
}

// normalizeVital rewrites a matched vital-sign span into a charted
// "Label: value" line. Spoken forms are normalised, e.g.
// "blood pressure is 140 over 90" becomes "Blood Pressure: 140/90".
// Spans that fit no known kind are returned trimmed but otherwise verbatim.
func normalizeVital(text string) string {
	trimmed := strings.TrimSpace(text)

	for _, k := range vitalKinds {
		if !k.names.MatchString(trimmed) {
			continue
		}

		if k.label == "Blood Pressure" {
			if m := bpValueRe.FindStringSubmatch(trimmed); m != nil {
				return "Blood Pressure: " + m[1] + "/" + m[2]
			}
			break
		}

		// Strip the name portion first so a number inside the name (none
		// today, but "o2 sat" carries a digit) is not taken as the reading.
		rest := k.names.ReplaceAllString(trimmed, "")
		value := k.value.FindString(rest)
		if value == "" {
			break
		}
		return k.label + ": " + value + k.unit
	}

	return trimmed
}
