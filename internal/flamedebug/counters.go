package flamedebug

import "sync/atomic"

// HookCounters track what happens to probe firings inside the global hook.
type HookCounters struct {
	Fired     atomic.Uint64 // probe reached an installed hook
	Recorded  atomic.Uint64 // record appended to a buffer
	Excluded  atomic.Uint64 // frame belonged to an excluded package
	Invalid   atomic.Uint64 // event kind was neither open nor close
	Recovered atomic.Uint64 // frame extraction failed and was skipped
	Stale     atomic.Uint64 // exit probe outlived its session
}

// Values returns the current values of the counters.
func (hc *HookCounters) Values() HookValues {
	return HookValues{
		Fired:     hc.Fired.Load(),
		Recorded:  hc.Recorded.Load(),
		Excluded:  hc.Excluded.Load(),
		Invalid:   hc.Invalid.Load(),
		Recovered: hc.Recovered.Load(),
		Stale:     hc.Stale.Load(),
	}
}

// HookValues is a point-in-time snapshot of HookCounters.
type HookValues struct {
	Fired     uint64 `json:"fired"`
	Recorded  uint64 `json:"recorded"`
	Excluded  uint64 `json:"excluded"`
	Invalid   uint64 `json:"invalid"`
	Recovered uint64 `json:"recovered"`
	Stale     uint64 `json:"stale"`
}

// Hook tracks the process-wide hook.
var Hook HookCounters
