package reminder

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"
)

// ErrInvalidDelay is returned for delays that are not "<positive int><m|h|d|w>".
var ErrInvalidDelay = errors.New("invalid delay")

var delayPattern = regexp.MustCompile(`^(\d+)([mhdw])$`)

var delayUnits = map[string]time.Duration{
	"m": time.Minute,
	"h": time.Hour,
	"d": 24 * time.Hour,
	"w": 7 * 24 * time.Hour,
}

// ParseDelay decodes delays such as "10m", "3d" or "1w".
func ParseDelay(s string) (time.Duration, error) {
	m := delayPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidDelay, s)
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w %q", ErrInvalidDelay, s)
	}
	unit := delayUnits[m[2]]
	if n > math.MaxInt64/int64(unit) {
		return 0, fmt.Errorf("%w %q: too far in the future", ErrInvalidDelay, s)
	}
	return time.Duration(n) * unit, nil
}

// Humanize renders the time left before a reminder fires.
func Humanize(d time.Duration) string {
	const day = 24 * time.Hour
	days := int(d / day)
	switch {
	case days > 7:
		return in(days/7, "week")
	case days > 0:
		return in(days, "day")
	case d > time.Hour:
		return in(int(d/time.Hour), "hour")
	case d > time.Minute:
		return in(int(d/time.Minute), "minute")
	}
	return "soon"
}

func in(n int, unit string) string {
	if n > 1 {
		unit += "s"
	}
	return fmt.Sprintf("in %d %s", n, unit)
}
