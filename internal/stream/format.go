// Package stream turns resolved links into Stremio stream entries.
package stream

import (
	"fmt"
	"math"
	"strconv"
)

const unitBase = 1024

var units = []string{"B", "KB", "MB", "GB", "TB"}

// HumanBytes formats a size on a 1024 scale: whole bytes below 1 KB, two
// decimals above. 1500000000 gives "1.40 GB".
func HumanBytes(n int64) string {
	if n < unitBase {
		return strconv.FormatInt(max(n, 0), 10) + " " + units[0]
	}
	value := float64(n)
	i := 0
	for value >= unitBase && i < len(units)-1 {
		value /= unitBase
		i++
	}
	// 1023.999 KB would print as "1024.00 KB"
	if math.Round(value*100) >= unitBase*100 && i < len(units)-1 {
		value /= unitBase
		i++
	}
	return fmt.Sprintf("%.2f %s", value, units[i])
}
