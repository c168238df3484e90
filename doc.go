// Package flame records function call and return events with nanosecond
// timestamps, and exports them as flamegraph-compatible JSON profiles.
//
// Go doesn't offer a runtime callback for every call and return, so observed
// functions carry a probe, which reports to a single process-wide hook.
//
//	func handle(req *Request) error {
//	    defer flame.Enter().Exit()
//	    ...
//	}
//
// The hook is installed by [Recorder.Start] and removed by [Recorder.Stop].
// While no recorder is active, probes cost a single atomic load. While a
// recorder is active, each probe firing becomes a [flamebuf.Record] in the
// recorder's buffer, which can be exported with [Recorder.Export] in the
// speedscope format (https://www.speedscope.app), or in the Chrome trace event
// format via [Recorder.ExportFormat].
//
// Only one recorder may be active in a process at a time. Probes placed in
// package flame itself, and in any package passed to [WithExclude], are never
// recorded.
//
// Most programs only need [Track], which records a single function and writes
// the profile to a file when it returns.
package flame
