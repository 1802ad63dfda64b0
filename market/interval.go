package market

import (
	"fmt"
	"strings"
	"time"
)

// IntervalDuration maps a venue kline interval ("1", "60", "D", ...) to its
// bar length. "M" is treated as 30 days.
func IntervalDuration(iv string) (time.Duration, error) {
	switch strings.ToUpper(strings.TrimSpace(iv)) {
	case "1":
		return time.Minute, nil
	case "3":
		return 3 * time.Minute, nil
	case "5":
		return 5 * time.Minute, nil
	case "15":
		return 15 * time.Minute, nil
	case "30":
		return 30 * time.Minute, nil
	case "60":
		return time.Hour, nil
	case "120":
		return 2 * time.Hour, nil
	case "240":
		return 4 * time.Hour, nil
	case "360":
		return 6 * time.Hour, nil
	case "720":
		return 12 * time.Hour, nil
	case "D":
		return 24 * time.Hour, nil
	case "W":
		return 7 * 24 * time.Hour, nil
	case "M":
		return 30 * 24 * time.Hour, nil
	default:
		return 0, fmt.Errorf("unsupported kline interval %q", iv)
	}
}

// Gap is a run of missing bars in a candle series.
type Gap struct {
	After   time.Time `json:"after"`
	Missing int       `json:"missing"`
	Kind    string    `json:"kind"`
}

// FindGaps reports missing bars in cs, which must be sorted oldest first.
// A single missing bar is "minor", anything longer "suspicious".
func FindGaps(cs []Candle, step time.Duration) []Gap {
	if step <= 0 {
		return nil
	}
	var gaps []Gap
	for i := 1; i < len(cs); i++ {
		delta := cs[i].Time.Sub(cs[i-1].Time)
		if delta <= step {
			continue
		}
		missing := int(delta/step) - 1
		if missing <= 0 {
			continue
		}
		kind := "minor"
		if missing > 1 {
			kind = "suspicious"
		}
		gaps = append(gaps, Gap{After: cs[i-1].Time, Missing: missing, Kind: kind})
	}
	return gaps
}
