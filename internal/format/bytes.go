// Package format renders byte counts and bit rates for display.
package format

import (
	"math"
	"strconv"
)

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

var rateUnits = []string{"bit/s", "kbit/s", "Mbit/s", "Gbit/s"}

// Bytes renders a byte count using 1024-based units from B to TB. The scaled
// value is rounded to two decimals with trailing zeros dropped, so 1536 is
// "1.5 KB" and 1024 is "1 KB". Zero is always "0 B".
func Bytes(bytes uint64) string {
	if bytes == 0 {
		return "0 B"
	}

	i := 0
	for i < len(byteUnits)-1 && bytes >= uint64(1)<<(10*(i+1)) {
		i++
	}

	scaled := float64(bytes) / float64(uint64(1)<<(10*i))

	return trim(scaled) + " " + byteUnits[i]
}

// Rate renders a bit rate with 1000-based units, matching the collector's own
// live output ("12.5 kbit/s"). Non-positive and NaN rates render as "0 bit/s".
func Rate(bitsPerSecond float64) string {
	if !(bitsPerSecond > 0) || math.IsInf(bitsPerSecond, 0) {
		return "0 bit/s"
	}

	i := 0
	scaled := bitsPerSecond
	for scaled >= 1000 && i < len(rateUnits)-1 {
		scaled /= 1000
		i++
	}

	return trim(scaled) + " " + rateUnits[i]
}

func trim(v float64) string {
	rounded := math.Round(v*100) / 100
	return strconv.FormatFloat(rounded, 'f', -1, 64)
}
