// Package humanize renders byte counts and durations for the dashboard and
// the job table, and parses the byte totals rsync reports.
package humanize

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var byteUnits = []string{"KB", "MB", "GB", "TB"}

var (
	reExactBytes = regexp.MustCompile(`(\d+)\s*bytes`)
	reUnitBytes  = regexp.MustCompile(`(?i)([0-9.]+)\s*([KMGT]?)B?`)
)

var unitMultiplier = map[string]float64{
	"":  1,
	"K": 1 << 10,
	"M": 1 << 20,
	"G": 1 << 30,
	"T": 1 << 40,
}

// Bytes formats n with binary (1024) steps. Anything past terabytes is
// reported in PB without an upper bound.
func Bytes(n int64) string {
	if n < 1024 {
		return fmt.Sprintf("%d bytes", n)
	}
	v := float64(n)
	for _, unit := range byteUnits {
		v /= 1024
		if v < 1024 {
			return fmt.Sprintf("%.1f%s", v, unit)
		}
	}
	return fmt.Sprintf("%.1fPB", v/1024)
}

func OptionalBytes(n *int64) string {
	if n == nil {
		return "0 bytes"
	}
	return Bytes(*n)
}

// Duration truncates seconds to a whole number and renders it as
// "Ns", "Mm Ss" or "Hh Mm Ss".
func Duration(seconds float64) string {
	s := int64(seconds)
	if s < 60 {
		return fmt.Sprintf("%ds", s)
	}
	m, s := s/60, s%60
	if m < 60 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	h, m := m/60, m%60
	return fmt.Sprintf("%dh %dm %ds", h, m, s)
}

func OptionalDuration(seconds *float64) string {
	if seconds == nil {
		return "0s"
	}
	return Duration(*seconds)
}

// ParseBytes extracts a byte count from text such as "12,345 bytes" or
// "1.5K". Thousands separators are dropped before matching.
func ParseBytes(s string) (int64, bool) {
	s = strings.ReplaceAll(s, ",", "")
	if m := reExactBytes.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	if m := reUnitBytes.FindStringSubmatch(s); m != nil {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		n := v * unitMultiplier[strings.ToUpper(m[2])]
		if n >= math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}
