package services

import (
	"math"
	"strconv"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders bytes in the largest unit not above the value,
// rounded to two decimals with trailing zeros dropped.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}

	const k = 1024
	i := 0
	div := int64(1)
	for i < len(sizeUnits)-1 && bytes/div >= k {
		div *= k
		i++
	}

	v := float64(bytes) / float64(div)
	v = math.Floor(v*100+0.5) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}
