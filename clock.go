package flame

import "time"

// epoch anchors the default clock. Durations measured from it use the
// monotonic clock reading, so they're immune to wall clock adjustments.
var epoch = time.Now()

func monotonicNanos() int64 {
	return int64(time.Since(epoch))
}
