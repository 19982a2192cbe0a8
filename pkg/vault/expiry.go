package vault

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseExpiry parses a duration shorthand like "24h", "7d", "30m",
// "2w" into an absolute expiry time relative to now.
func parseExpiry(now time.Time, expiry string) (time.Time, error) {
	expiry = strings.TrimSpace(expiry)
	if expiry == "" {
		return time.Time{}, fmt.Errorf("vault: empty expiry string")
	}

	unit := expiry[len(expiry)-1:]
	numStr := expiry[:len(expiry)-1]
	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("vault: invalid expiry %q", expiry)
	}

	var d time.Duration
	switch unit {
	case "m":
		d = time.Duration(num) * time.Minute
	case "h":
		d = time.Duration(num) * time.Hour
	case "d":
		d = time.Duration(num) * 24 * time.Hour
	case "w":
		d = time.Duration(num) * 7 * 24 * time.Hour
	default:
		return time.Time{}, fmt.Errorf("vault: unknown time unit %q, use m/h/d/w", unit)
	}

	return now.Add(d), nil
}
