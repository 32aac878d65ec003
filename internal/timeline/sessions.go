// Package timeline derives activity structure from bare event timestamps:
// gap-based session segmentation and fixed-granularity bucket counts.
//
// Several extractors share these primitives; the only platform-specific part
// is which export fields the timestamps come from.
package timeline

import (
	"sort"
	"time"
)

// DefaultInactivity is the gap that separates two usage sessions.
const DefaultInactivity = 5 * time.Minute

// Session is a maximal run of events with no inter-event gap exceeding the
// inactivity threshold.
type Session struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration
}

// Sessions partitions timestamps into sessions. Input order does not matter;
// the result is sorted by start time and covers every timestamp exactly once.
// A gap strictly greater than inactivity starts a new session; a gap exactly
// equal to it does not. An empty input yields nil, a single timestamp yields
// one zero-duration session.
func Sessions(timestamps []time.Time, inactivity time.Duration) []Session {
	if len(timestamps) == 0 {
		return nil
	}

	ts := make([]time.Time, len(timestamps))
	copy(ts, timestamps)
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })

	if len(ts) == 1 {
		return []Session{{Start: ts[0], End: ts[0]}}
	}

	var sessions []Session
	start := ts[0]
	end := ts[0]
	for i := 1; i < len(ts); i++ {
		if ts[i].Sub(ts[i-1]) > inactivity {
			sessions = append(sessions, Session{Start: start, End: end, Duration: end.Sub(start)})
			start = ts[i]
		}
		end = ts[i]
	}
	sessions = append(sessions, Session{Start: start, End: end, Duration: end.Sub(start)})
	return sessions
}
