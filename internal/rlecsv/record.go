package rlecsv

import (
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/mcslog/internal/errors"
)

const (
	// HeaderLines is the number of lines preceding the data rows.
	HeaderLines = 4

	repeatMarker = "Repeat"

	layoutSeconds = "01/02/2006 15:04:05"
	layoutMicro   = layoutSeconds + ".000000"

	maxFractionDigits = 9
)

// Record is one telemetry sample: a timestamp, the numeric value columns and
// any raw trailing fields. Synthetic is set on records re-created from a
// compressed run; rows present in the log, including the row opening a run,
// are not synthetic.
type Record struct {
	Time      time.Time
	Values    []float64
	Extra     []string
	Synthetic bool
}

// ParseTimestamp parses the log timestamp format. Writers normally emit six
// fractional digits, but some truncate to milliseconds and others append
// nanoseconds, so 1 to 9 digits are accepted. The result is truncated to
// whole microseconds.
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return time.Time{}, errors.New().WithMessage(ErrMalformedTimestamp, "missing fractional seconds")
	}

	frac := s[dot+1:]
	if len(frac) == 0 || len(frac) > maxFractionDigits || strings.Trim(frac, "0123456789") != "" {
		return time.Time{}, errors.New().WithMessage(ErrMalformedTimestamp,
			"fractional seconds must have 1 to 9 digits")
	}

	t, err := time.ParseInLocation(layoutSeconds, s[:dot], loc)
	if err != nil {
		return time.Time{}, err
	}

	ns, err := strconv.Atoi(frac + strings.Repeat("0", maxFractionDigits-len(frac)))
	if err != nil {
		return time.Time{}, err
	}

	return t.Add(time.Duration(ns)).Truncate(time.Microsecond), nil
}

// FormatTimestamp renders t in the log timestamp format.
func FormatTimestamp(t time.Time) string {
	return t.Format(layoutMicro)
}

// repeatCount returns the run length carried by a trailing tag such as
// "Repeat 12". ok is false when the field is not a repeat tag at all.
func repeatCount(tag string) (n int, ok bool, err error) {
	if !strings.Contains(tag, repeatMarker) {
		return 0, false, nil
	}

	tokens := strings.Fields(tag)
	n, err = strconv.Atoi(tokens[len(tokens)-1])
	if err != nil {
		return 0, true, err
	}

	return n, true, nil
}
