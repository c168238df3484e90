package flame

import (
	"sync/atomic"

	"github.com/peterbourgon/flame/flamebuf"
	"github.com/peterbourgon/flame/internal/flamedebug"
)

// installed is the single process-wide registration point for the call hook.
// Probes load it on every firing; recorders swap it on start and stop.
var installed atomic.Pointer[hook]

// hook binds the global registration point to one session of one recorder.
// Each session gets a distinct hook, so probes can tell sessions apart.
type hook struct {
	rec *Recorder
}

func installHook(h *hook) error {
	if !installed.CompareAndSwap(nil, h) {
		return ErrHookBusy
	}
	return nil
}

func uninstallHook(h *hook) error {
	if !installed.CompareAndSwap(h, nil) {
		return ErrHookNotInstalled
	}
	return nil
}

// fire turns a probe firing into a record. It returns true if a record was
// appended. It never panics.
func (h *hook) fire(kind flamebuf.Kind, fr *frame) (ok bool) {
	defer func() {
		if recover() != nil {
			flamedebug.Hook.Recovered.Add(1)
			ok = false
		}
	}()

	r := h.rec

	if r.exclude.excludes(fr.pkg) {
		flamedebug.Hook.Excluded.Add(1)
		return false
	}

	if !kind.Valid() {
		flamedebug.Hook.Invalid.Add(1)
		return false
	}

	rec, ok := r.append(h, kind, fr)
	if !ok {
		flamedebug.Hook.Stale.Add(1)
		return false
	}

	flamedebug.Hook.Recorded.Add(1)

	if r.broker.Active() {
		r.broker.Publish(rec)
	}

	return true
}

// HookStats counts probe firings across every session in the process.
type HookStats struct {
	Fired     uint64 `json:"fired"`
	Recorded  uint64 `json:"recorded"`
	Excluded  uint64 `json:"excluded"`
	Invalid   uint64 `json:"invalid"`
	Recovered uint64 `json:"recovered"`
	Stale     uint64 `json:"stale"`
}

// Stats returns process-wide counters for the call hook.
func Stats() HookStats {
	return HookStats(flamedebug.Hook.Values())
}
