package engine

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
	"unsafe"
)

const (
	dayLayout   = "2006-01-02"
	monthLayout = "2006-01"
)

// Accepted purchase/delivery timestamp layouts, most common first.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04",
	dayLayout,
}

var errTimestamp = errors.New("unrecognized timestamp layout")

func unsafeToString(b []byte) string {
	return unsafe.String(unsafe.SliceData(b), len(b))
}

// parseTimestamp keeps whatever zone the value carries; values without
// an offset are read as UTC.
func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errTimestamp
}

// fastFloat parses plain decimals like "-123.45".
// It reports false for anything else (exponents, NaN, stray bytes).
func fastFloat(b []byte) (float64, bool) {
	if len(b) == 0 {
		return 0, false
	}
	neg := false
	i := 0
	if b[0] == '-' || b[0] == '+' {
		neg = b[0] == '-'
		i++
	}
	digits := 0
	var num float64
	for i < len(b) && b[i] != '.' {
		c := b[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		num = num*10 + float64(c-'0')
		digits++
		i++
	}
	if i < len(b) {
		i++
		div := 10.0
		for i < len(b) {
			c := b[i]
			if c < '0' || c > '9' {
				return 0, false
			}
			num += float64(c-'0') / div
			div *= 10
			digits++
			i++
		}
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		num = -num
	}
	return num, true
}

// parseNumber accepts anything strconv does, minus NaN and infinities.
func parseNumber(s string) (float64, bool) {
	if f, ok := fastFloat([]byte(s)); ok {
		return f, true
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// numbers parses each dictionary entry once. Invalid entries are 0.
func (c *Column) numbers() []float64 {
	nums := make([]float64, len(c.Dict))
	for id, raw := range c.Dict {
		if f, ok := parseNumber(raw); ok {
			nums[id] = f
		}
	}
	return nums
}

// timestamps parses each dictionary entry once. ok[id] is false for
// entries that do not parse.
func (c *Column) timestamps() (times []time.Time, ok []bool) {
	times = make([]time.Time, len(c.Dict))
	ok = make([]bool, len(c.Dict))
	for id, raw := range c.Dict {
		if t, err := parseTimestamp(raw); err == nil {
			times[id] = t
			ok[id] = true
		}
	}
	return times, ok
}

// malformed builds the error for a row whose cell did not parse.
func (c *Column) malformed(row int) *MalformedInputError {
	v, _ := c.Value(row)
	_, err := parseTimestamp(v)
	return &MalformedInputError{Column: c.Name, Row: row, Value: v, Err: err}
}
