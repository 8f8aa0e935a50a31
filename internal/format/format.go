package format

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// RelativeTime renders how long ago t was, relative to now
// ("Just now", "3 minutes ago", "1 day ago").
func RelativeTime(t, now time.Time) string {
	seconds := int64(now.Sub(t) / time.Second)

	switch {
	case seconds < 60:
		return "Just now"
	case seconds < 3600:
		return plural(seconds/60, "minute") + " ago"
	case seconds < 86400:
		return plural(seconds/3600, "hour") + " ago"
	default:
		return plural(seconds/86400, "day") + " ago"
	}
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// FileSize renders a byte count in the largest unit up to GB that does not
// exceed it, rounded to two decimals.
func FileSize(bytes int64) string {
	if bytes == 0 {
		return "0 Bytes"
	}
	if bytes < 0 {
		return "-" + FileSize(-bytes)
	}

	unit := 0
	scale := int64(1)
	for unit < len(sizeUnits)-1 && bytes >= scale*1024 {
		scale *= 1024
		unit++
	}

	value := math.Round(float64(bytes)/float64(scale)*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[unit]
}
