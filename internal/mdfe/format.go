package mdfe

import (
	"strings"
	"time"
)

// DateTimeLayout is the dhEmi format: local time with UTC offset, no fraction.
const DateTimeLayout = "2006-01-02T15:04:05-07:00"

// PadLeft pads a string with a character on the left to reach the target length.
func PadLeft(s string, length int, padChar rune) string {
	if len(s) >= length {
		return s
	}
	return strings.Repeat(string(padChar), length-len(s)) + s
}

// TrimLeadingZeros renders a numeric field the way the schema wants serie and
// nMDF: no left padding, but a lone "0" survives.
func TrimLeadingZeros(s string) string {
	trimmed := strings.TrimLeft(s, "0")
	if trimmed == "" && s != "" {
		return "0"
	}
	return trimmed
}

// DigitsOnly drops every non-digit rune. Keys pasted with separators
// ("MDFe", spaces, dots) are accepted through it.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ParseDateTime accepts dhEmi with or without offset. A value without offset
// is read in loc.
func ParseDateTime(value string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(DateTimeLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation("2006-01-02T15:04:05", value, loc)
}
